// corechain wires the node's subsystems together, matching the shape of
// daglabs-btcd/kaspad.go and daglabs-btcd/log.go: a package main at the
// module root, not a cmd/ subpackage.
package main

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/civicledger/corechain/logger"
)

// initLogRotator wires every subsystem logger to a single rotating log file.
func initLogRotator(logFile string, maxRolls int) error {
	return logger.Default.InitLogRotator(logFile, maxRolls)
}

// setLogLevel changes the minimum severity written by every subsystem logger.
func setLogLevel(l logger.Level) {
	logger.Default.SetLevel(l)
}

// spawn runs f in a goroutine, recovering any panic, logging it at
// Critical with both the spawn-site and panic-time stack traces, and
// exiting the process — matching daglabs-btcd's
// util/panics.GoroutineWrapperFunc: a background goroutine is never
// allowed to panic silently and leave the process in an inconsistent
// state.
func spawn(name string, f func()) {
	stackTrace := debug.Stack()
	go func() {
		defer handlePanic(name, stackTrace)
		f()
	}()
}

func handlePanic(name string, spawnStackTrace []byte) {
	err := recover()
	if err == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		log.Criticalf("fatal error in %s: %+v", name, err)
		log.Criticalf("spawn-site stack trace: %s", spawnStackTrace)
		log.Criticalf("panic stack trace: %s", debug.Stack())
		close(done)
	}()

	const panicHandlerTimeout = 5 * time.Second
	select {
	case <-time.After(panicHandlerTimeout):
		fmt.Fprintln(os.Stderr, "couldn't handle a fatal error in time, exiting")
	case <-done:
	}
	os.Exit(1)
}
