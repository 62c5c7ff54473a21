package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ohmynofan/questline-bot/internal/domain/model"
	"github.com/sirupsen/logrus"
)

type sample struct{}

func TestClassLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, logrus.DebugLevel)
	defer SetOutput(&bytes.Buffer{}, logrus.InfoLevel)

	state := model.NewAccountState(2)
	state.Address = "0xabc"
	log := NewLogger(&sample{}, state)

	log.Success("quest done")
	log.Debugf("attempt %d", 3)

	out := buf.String()
	for _, want := range []string{"class=sample", "account=3", "address=0xabc", "result=success", "quest done", "attempt 3", "func=TestClassLoggerFields"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, logrus.WarnLevel)
	defer SetOutput(&bytes.Buffer{}, logrus.InfoLevel)

	log := NewNamed("test", nil)
	log.Info("hidden")
	log.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn message missing")
	}
}

func TestWait(t *testing.T) {
	log := NewNamed("test", nil)

	start := time.Now()
	if err := log.Wait(context.Background(), 20*time.Millisecond, "waiting"); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Wait returned early")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := log.Wait(ctx, time.Hour, "cancelled"); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestInitWritesFile(t *testing.T) {
	path := t.TempDir() + "/logs/app.log"
	if err := Init(path, "info"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	NewNamed("file", nil).Info("to file")
	if err := Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
