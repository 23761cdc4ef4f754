package irradiance

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/irradiance/gpucore"
	"github.com/gogpu/irradiance/recording"
)

// withLogger installs l for the duration of the test.
func withLogger(t *testing.T, l *slog.Logger) {
	t.Helper()
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })
	SetLogger(l)
}

func TestNopHandler(t *testing.T) {
	var h slog.Handler = nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = true", level)
		}
	}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("Handle = %v", err)
	}
	if _, ok := h.WithAttrs([]slog.Attr{slog.Int("level", 3)}).(nopHandler); !ok {
		t.Error("WithAttrs left the nop handler")
	}
	if _, ok := h.WithGroup("probe").(nopHandler); !ok {
		t.Error("WithGroup left the nop handler")
	}
}

func TestLoggerDefaultsToSilent(t *testing.T) {
	withLogger(t, slog.Default())
	SetLogger(nil)

	l := Logger()
	if l == nil {
		t.Fatal("Logger() = nil after SetLogger(nil)")
	}
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("silent logger enabled at error level")
	}
}

// loggingDevice is a recording device that accepts a logger.
type loggingDevice struct {
	*recording.Device
	logger *slog.Logger
}

func (d *loggingDevice) SetLogger(l *slog.Logger) { d.logger = l }

func TestNewPropagatesLogger(t *testing.T) {
	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	withLogger(t, custom)

	dev := &loggingDevice{Device: recording.NewDevice()}
	New(dev, nil)
	if dev.logger != custom {
		t.Error("device did not receive the package logger")
	}
}

func TestProbeLogLevels(t *testing.T) {
	tests := []struct {
		level   slog.Level
		want    []string
		notWant []string
	}{
		{slog.LevelInfo, []string{"probe initialized", "probe closed"}, []string{"level=DEBUG"}},
		{slog.LevelDebug, []string{"probe initialized", "frame recorded", "level=DEBUG"}, nil},
		{slog.LevelWarn, nil, []string{"probe initialized", "frame recorded"}},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			withLogger(t, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: tt.level})))

			dev := recording.NewDevice()
			lp := New(dev, nil)
			if err := lp.InitSources(uploadSources(t, dev, 2, 16, 16)); err != nil {
				t.Fatal(err)
			}
			processFrame(t, dev, lp, gpucore.StateShaderRead)
			lp.Close()

			out := buf.String()
			for _, msg := range tt.want {
				if !strings.Contains(out, msg) {
					t.Errorf("output missing %q:\n%s", msg, out)
				}
			}
			for _, msg := range tt.notWant {
				if strings.Contains(out, msg) {
					t.Errorf("output contains %q:\n%s", msg, out)
				}
			}
		})
	}
}

func TestLoggerConcurrentSwap(t *testing.T) {
	withLogger(t, nil)

	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				SetLogger(slog.Default())
				SetLogger(nil)
				return
			}
			Logger().Debug("irradiance: swap", "goroutine", i)
		}()
	}
	wg.Wait()
}
