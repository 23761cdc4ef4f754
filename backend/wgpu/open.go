//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Register the Vulkan HAL backend.
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/irradiance/backend"
	"github.com/gogpu/irradiance/gpucore"
)

func init() {
	backend.Register(backend.BackendWGPU, func() (gpucore.Device, error) {
		return New()
	})
}

// New opens a standalone Vulkan device on the first discrete or
// integrated adapter, or on the first adapter if there is neither.
func New(opts ...Option) (*Device, error) {
	b, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, errors.New("wgpu: vulkan backend not available")
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}

	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}

	d := newDevice(openDev.Device, openDev.Queue, opts)
	d.instance = instance
	d.adapter = selected.Info.Name
	slogger().Info("wgpu: device opened", "adapter", selected.Info.Name)
	return d, nil
}

// halProvider is implemented by device providers that expose their HAL
// device and queue.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// NewFromProvider creates a device on the GPU device of provider. The
// provider must implement HalDevice() any and HalQueue() any returning a
// hal.Device and a hal.Queue. Close does not destroy the shared device.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Device, error) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, errors.New("wgpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, errors.New("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, errors.New("wgpu: provider HalQueue is not hal.Queue")
	}

	d := newDevice(device, queue, opts)
	d.external = true
	slogger().Debug("wgpu: using shared GPU device")
	return d, nil
}
