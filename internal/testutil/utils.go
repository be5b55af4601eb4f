package testutil

import (
	"io"
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger tagged with the running test's name.
// Output is discarded once the test completes so goroutines that outlive
// the test do not interleave with later tests.
func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[go-chat test "+t.Name()+"] ", log.LstdFlags|log.Lmsgprefix)
	t.Cleanup(func() {
		logger.SetOutput(io.Discard)
	})
	return logger
}
