package logrus

import (
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestLoggerSatisfiesInterface(t *testing.T) {
	base := logrus.New()
	base.SetOutput(io.Discard)

	l := New(base)
	l.Info("starting")
	l.With("worker", 3).Warn("slow housekeeping tick")
	l.Error("transfer failed", errors.New("boom"), "session", "abc-123")
}
