package engine

import (
	"io"
	"log"
	"os"
)

// No repository in the retrieved corpus imports a structured logging
// library; the nearest teacher (KTStephano-GVM) prints straight to stdout
// via fmt.Println/fmt.Printf in vm.printCurrentState/printDebugOutput. This
// keeps that texture with the standard `log` package instead of a
// third-party logger. No code in this package writes to debugLog; the
// CLI's -debug step trace is printed by a STEP hook in cmd/isaeng.
var debugLog = log.New(os.Stderr, "", 0)

// SetDebugOutput redirects debug-mode tracing, primarily for tests that
// want to assert on the transcript instead of polluting stderr.
func SetDebugOutput(w io.Writer) {
	debugLog.SetOutput(w)
}
