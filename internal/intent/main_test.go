package intent

import (
	"os"
	"testing"

	"github.com/toluade/factorpool/internal/testutil/dblock"
)

func TestMain(m *testing.M) {
	release := dblock.Acquire()
	code := m.Run()
	release()
	os.Exit(code)
}
