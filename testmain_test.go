package wmediumd

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies that every test tears down its event loop and
// transport goroutines.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
