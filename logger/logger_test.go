package logger_test

import (
	"strings"
	"testing"

	"github.com/ivajon/symex/logger"
)

func TestLoggerTail(t *testing.T) {
	log := logger.NewLogger(100)
	w := &strings.Builder{}

	log.Write(w)
	equate(t, w.String(), "")

	log.Log(logger.Allow, "test", "this is a test")
	log.Write(w)
	equate(t, w.String(), "test: this is a test\n")

	w.Reset()
	log.Log(logger.Allow, "test2", "this is another test")
	log.Write(w)
	equate(t, w.String(), "test: this is a test\ntest2: this is another test\n")

	w.Reset()
	log.Tail(w, 100)
	equate(t, w.String(), "test: this is a test\ntest2: this is another test\n")

	w.Reset()
	log.Tail(w, 1)
	equate(t, w.String(), "test2: this is another test\n")

	w.Reset()
	log.Tail(w, 0)
	equate(t, w.String(), "")
}

type denyAll struct{}

func (denyAll) AllowLogging() bool { return false }

func TestLoggerPermission(t *testing.T) {
	log := logger.NewLogger(10)
	w := &strings.Builder{}

	log.Log(denyAll{}, "blocked", "should not appear")
	log.Write(w)
	equate(t, w.String(), "")
}

func TestLoggerWrapsAroundCapacity(t *testing.T) {
	log := logger.NewLogger(2)
	w := &strings.Builder{}

	log.Log(logger.Allow, "a", "1")
	log.Log(logger.Allow, "b", "2")
	log.Log(logger.Allow, "c", "3")

	log.Write(w)
	equate(t, w.String(), "b: 2\nc: 3\n")
}

func equate(t *testing.T, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
