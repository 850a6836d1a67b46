package log

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLog_WritesLevelCategoryAndFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)
	t.Cleanup(ResetForTesting)

	Info(CatMulticast, "notified observers", "subject", "abc", "delivered", 3)

	line := buf.String()
	require.Contains(t, line, "[INFO] [multicast] notified observers")
	require.Contains(t, line, "subject=abc")
	require.Contains(t, line, "delivered=3")
}

func TestLog_OddFieldCount(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)
	t.Cleanup(ResetForTesting)

	Error(CatWeak, "dangling", "orphan")

	require.Contains(t, buf.String(), "orphan=<missing>")
}

func TestLog_ErrorErr(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)
	t.Cleanup(ResetForTesting)

	ErrorErr(CatConfig, "failed", os.ErrNotExist, "path", "/tmp/x")
	ErrorErr(CatConfig, "nil error", nil)

	out := buf.String()
	require.Contains(t, out, "error=file does not exist")
	require.Contains(t, out, "error=<nil>")
}

func TestLog_LevelLabels(t *testing.T) {
	tests := []struct {
		name  string
		write func(Category, string, ...any)
		label string
	}{
		{"debug", Debug, "[DEBUG]"},
		{"info", Info, "[INFO]"},
		{"error", Error, "[ERROR]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			InitWithWriter(&buf)
			t.Cleanup(ResetForTesting)

			tt.write(CatUI, "entry")

			require.Contains(t, buf.String(), tt.label+" [ui] entry")
			require.Equal(t, 1, strings.Count(buf.String(), "\n"))
		})
	}
}

func TestLog_NoLoggerIsNoop(t *testing.T) {
	ResetForTesting()
	require.NotPanics(t, func() {
		Info(CatWatcher, "no logger configured")
	})
	require.Nil(t, NewListener(context.Background()))
}

func TestLog_InitWritesFile(t *testing.T) {
	ResetForTesting()
	t.Cleanup(ResetForTesting)

	path := filepath.Join(t.TempDir(), "debug.log")
	cleanup, err := Init(path)
	require.NoError(t, err)

	Info(CatTrace, "provider started")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "[trace] provider started")
}

func TestLog_ListenerReceivesEntries(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)
	t.Cleanup(ResetForTesting)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := NewListener(ctx)
	require.NotNil(t, listener)

	done := make(chan LogEvent, 1)
	go func() {
		if ev, ok := listener.Listen()().(LogEvent); ok {
			done <- ev
		}
	}()

	// The listener subscribes synchronously, so the entry is buffered for it.
	Info(CatUI, "streamed")

	select {
	case ev := <-done:
		require.Contains(t, ev.Payload, "streamed")
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for log event")
	}
}
