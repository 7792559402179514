package io

import (
	"testing"

	"go.uber.org/goleak"
)

// The IO coordinator's per-thread semaphores and lock-timeout timers are
// the kind of background state that leaks quietly; verify nothing survives
// a test's teardown.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
