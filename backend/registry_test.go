package backend

import (
	"errors"
	"log/slog"
	"slices"
	"testing"

	"github.com/gogpu/irradiance/gpucore"
	"github.com/gogpu/irradiance/recording"
)

// loggedDevice records the logger it receives.
type loggedDevice struct {
	*recording.Device
	logger *slog.Logger
}

func (d *loggedDevice) SetLogger(l *slog.Logger) { d.logger = l }

// withRegistry runs fn against an empty registry and restores the previous
// one afterwards.
func withRegistry(t *testing.T, fn func()) {
	t.Helper()
	registryMu.Lock()
	saved := backends
	backends = make(map[string]BackendFactory)
	registryMu.Unlock()

	defer func() {
		registryMu.Lock()
		backends = saved
		registryMu.Unlock()
		SetLogger(nil)
	}()
	fn()
}

func recordingFactory(name string) BackendFactory {
	return func() (gpucore.Device, error) {
		return &loggedDevice{Device: recording.NewDevice()}, nil
	}
}

func failingFactory(err error) BackendFactory {
	return func() (gpucore.Device, error) { return nil, err }
}

func TestRegisterAndGet(t *testing.T) {
	withRegistry(t, func() {
		Register("test", recordingFactory("test"))

		if !IsRegistered("test") {
			t.Fatal("IsRegistered(test) = false")
		}
		dev, err := Get("test")
		if err != nil {
			t.Fatalf("Get(test) error = %v", err)
		}
		defer dev.Close()
		if dev.Name() != "recording" {
			t.Errorf("Name() = %q, want %q", dev.Name(), "recording")
		}

		Unregister("test")
		if IsRegistered("test") {
			t.Error("IsRegistered(test) = true after Unregister")
		}
	})
}

func TestGetUnknown(t *testing.T) {
	withRegistry(t, func() {
		_, err := Get("missing")
		if !errors.Is(err, ErrBackendNotAvailable) {
			t.Errorf("Get(missing) error = %v, want ErrBackendNotAvailable", err)
		}
	})
}

func TestGetFactoryError(t *testing.T) {
	withRegistry(t, func() {
		errNoAdapter := errors.New("no adapter")
		Register(BackendWGPU, failingFactory(errNoAdapter))

		_, err := Get(BackendWGPU)
		if !errors.Is(err, errNoAdapter) {
			t.Errorf("Get(wgpu) error = %v, want %v", err, errNoAdapter)
		}
	})
}

func TestAvailableSorted(t *testing.T) {
	withRegistry(t, func() {
		Register("zeta", recordingFactory("zeta"))
		Register("alpha", recordingFactory("alpha"))
		Register(BackendSoftware, recordingFactory(BackendSoftware))

		got := Available()
		want := []string{"alpha", BackendSoftware, "zeta"}
		if !slices.Equal(got, want) {
			t.Errorf("Available() = %v, want %v", got, want)
		}
	})
}

func TestDefaultPriority(t *testing.T) {
	tests := []struct {
		name     string
		register map[string]BackendFactory
		wantErr  bool
	}{
		{
			name:     "empty registry",
			register: nil,
			wantErr:  true,
		},
		{
			name: "software only",
			register: map[string]BackendFactory{
				BackendSoftware: recordingFactory(BackendSoftware),
			},
		},
		{
			name: "wgpu fails, software wins",
			register: map[string]BackendFactory{
				BackendWGPU:     failingFactory(errors.New("no adapter")),
				BackendSoftware: recordingFactory(BackendSoftware),
			},
		},
		{
			name: "every factory fails",
			register: map[string]BackendFactory{
				BackendWGPU: failingFactory(errors.New("no adapter")),
			},
			wantErr: true,
		},
		{
			name: "unknown backend is a fallback",
			register: map[string]BackendFactory{
				"custom": recordingFactory("custom"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withRegistry(t, func() {
				for name, f := range tt.register {
					Register(name, f)
				}
				dev, err := Default()
				if tt.wantErr {
					if !errors.Is(err, ErrBackendNotAvailable) {
						t.Errorf("Default() error = %v, want ErrBackendNotAvailable", err)
					}
					return
				}
				if err != nil {
					t.Fatalf("Default() error = %v", err)
				}
				dev.Close()
			})
		})
	}
}

func TestDefaultPrefersWGPU(t *testing.T) {
	withRegistry(t, func() {
		var created []string
		factory := func(name string) BackendFactory {
			return func() (gpucore.Device, error) {
				created = append(created, name)
				return recording.NewDevice(), nil
			}
		}
		Register(BackendSoftware, factory(BackendSoftware))
		Register(BackendWGPU, factory(BackendWGPU))

		dev, err := Default()
		if err != nil {
			t.Fatalf("Default() error = %v", err)
		}
		dev.Close()
		if !slices.Equal(created, []string{BackendWGPU}) {
			t.Errorf("factories called = %v, want [wgpu]", created)
		}
	})
}

func TestMustDefaultPanics(t *testing.T) {
	withRegistry(t, func() {
		defer func() {
			if recover() == nil {
				t.Error("MustDefault() did not panic on an empty registry")
			}
		}()
		MustDefault()
	})
}

func TestSetLoggerPropagates(t *testing.T) {
	withRegistry(t, func() {
		Register("test", recordingFactory("test"))

		dev, err := Get("test")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got := dev.(*loggedDevice).logger; got != nil {
			t.Errorf("logger = %v before SetLogger, want nil", got)
		}

		l := slog.New(slog.DiscardHandler)
		SetLogger(l)
		dev, err = Get("test")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got := dev.(*loggedDevice).logger; got != l {
			t.Error("device did not receive the registry logger")
		}
	})
}
