package testutil

import (
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// Logs are discarded unless tests run verbosely.
func init() {
	logrus.SetLevel(logrus.TraceLevel)

	for _, arg := range os.Args {
		if arg == "-test.v=true" {
			return
		}
	}
	logrus.StandardLogger().Out = io.Discard
}

// CaptureLogs records every entry written to the standard logger until the
// test ends.
func CaptureLogs(t *testing.T) *test.Hook {
	hook := test.NewLocal(logrus.StandardLogger())
	t.Cleanup(func() {
		logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
	})
	return hook
}

// FindLog returns the last captured entry with message msg, or nil.
func FindLog(hook *test.Hook, msg string) *logrus.Entry {
	entries := hook.AllEntries()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Message == msg {
			return entries[i]
		}
	}
	return nil
}
