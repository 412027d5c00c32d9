package go_func_utils

import (
	"log"
	"runtime/debug"
	"sync"
)

// SafeGo runs fn on a new goroutine. A panic is written to logger with the
// goroutine name and stack before it is re-raised, so crashes in background
// workers (speech queue, sample providers, websocket pumps) always reach the log file.
func SafeGo(logger *log.Logger, name string, fn func()) {
	go func() {
		defer recoverAndLog(logger, name)
		fn()
	}()
}

// SafeGoWG is SafeGo tracked by wg. wg.Done is called when fn returns.
func SafeGoWG(wg *sync.WaitGroup, logger *log.Logger, name string, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer recoverAndLog(logger, name)
		fn()
	}()
}

func recoverAndLog(logger *log.Logger, name string) {
	if r := recover(); r != nil {
		logger.Printf("PANIC in %s: %v\n%s", name, r, debug.Stack())
		panic(r)
	}
}
