package gc

import (
	"testing"

	"go.uber.org/goleak"
)

// The collectors run synchronously, but the safepoint tests park mutator
// goroutines; verify none leak past a test's lifetime.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
