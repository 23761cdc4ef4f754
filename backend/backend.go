package backend

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/irradiance/gpucore"
)

// Backend name constants.
const (
	// BackendSoftware is the name of the CPU reference device.
	BackendSoftware = "software"

	// BackendWGPU is the name of the Pure Go GPU device (gogpu/wgpu HAL).
	BackendWGPU = "wgpu"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not registered
	// or its factory cannot create a device.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// BackendFactory creates a new device. A factory returns an error when the
// backend cannot run on this machine (no adapter, no driver).
type BackendFactory func() (gpucore.Device, error)

// loggerSetter is implemented by devices that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// loggerPtr holds the logger handed to every device created by Get or Default.
// Nil means devices keep their own default.
var loggerPtr atomic.Pointer[slog.Logger]

// SetLogger sets the logger passed to devices created through the registry.
// Pass nil to stop propagating a logger.
//
// SetLogger is safe for concurrent use.
func SetLogger(l *slog.Logger) {
	loggerPtr.Store(l)
}

// configure hands the registry logger to dev.
func configure(dev gpucore.Device) gpucore.Device {
	if l := loggerPtr.Load(); l != nil {
		if ls, ok := dev.(loggerSetter); ok {
			ls.SetLogger(l)
		}
	}
	return dev
}
