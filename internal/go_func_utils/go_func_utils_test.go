package go_func_utils

import (
	"bytes"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeGoWG_RunsAndSignalsDone(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	var wg sync.WaitGroup
	ran := false
	SafeGoWG(&wg, logger, "worker", func() { ran = true })
	wg.Wait()

	assert.True(t, ran)
	assert.Empty(t, buf.String())
}

func TestRecoverAndLog_LogsBeforeRepanic(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	assert.PanicsWithValue(t, "boom", func() {
		defer recoverAndLog(logger, "speech")
		panic("boom")
	})
	assert.Contains(t, buf.String(), "PANIC in speech: boom")
}
