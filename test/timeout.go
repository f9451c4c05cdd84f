package test

import (
	"os"
	"runtime/pprof"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
)

// Guard fails the test run with a goroutine dump if the test takes longer
// than Timeout, and checks on cleanup that the test left no goroutines
// running.
func Guard(t *testing.T) {
	t.Helper()

	leakCheck := leaktest.CheckTimeout(t, Timeout)
	timer := time.AfterFunc(Timeout, func() {
		DumpGoroutines()
		panic("test " + t.Name() + " timed out")
	})

	t.Cleanup(func() {
		timer.Stop()
		leakCheck()
	})
}

// DumpGoroutines writes the stacks of all goroutines to stdout.
func DumpGoroutines() {
	_ = pprof.Lookup("goroutine").WriteTo(os.Stdout, 1)
}
