package testutil

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

// WaitFor polls condition every interval until it holds, giving up once
// timeout has elapsed.
func WaitFor(timeout, interval time.Duration, condition func() bool) error {
	if timeout < interval {
		return errors.New("timeout must be greater than interval")
	}

	deadline := time.Now().Add(timeout)
	for !condition() {
		if time.Now().After(deadline) {
			return errors.Errorf("condition not met within %v", timeout)
		}
		time.Sleep(interval)
	}
	return nil
}

// Eventually fails the test if condition does not hold within timeout.
func Eventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()

	interval := timeout / 50
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	if err := WaitFor(timeout, interval, condition); err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}
