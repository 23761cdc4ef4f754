package backend

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/irradiance/gpucore"
)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]BackendFactory)
	// Priority order for backend selection (first available wins).
	// WGPU > Software (software is the always-available fallback).
	backendPriority = []string{BackendWGPU, BackendSoftware}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get creates a device from the named backend.
func Get(name string) (gpucore.Device, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	dev, err := factory()
	if err != nil {
		return nil, fmt.Errorf("backend: %s: %w", name, err)
	}
	return configure(dev), nil
}

// Default creates a device from the best available backend.
// Priority order: wgpu > software, then any other registered backend in
// name order. A backend whose factory fails is skipped.
func Default() (gpucore.Device, error) {
	registryMu.RLock()
	order := make([]BackendFactory, 0, len(backends))
	for _, name := range backendPriority {
		if factory, ok := backends[name]; ok {
			order = append(order, factory)
		}
	}
	rest := make([]string, 0, len(backends))
	for name := range backends {
		if !slices.Contains(backendPriority, name) {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	for _, name := range rest {
		order = append(order, backends[name])
	}
	registryMu.RUnlock()

	var lastErr error
	for _, factory := range order {
		dev, err := factory()
		if err != nil {
			lastErr = err
			continue
		}
		if dev != nil {
			return configure(dev), nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendNotAvailable, lastErr)
	}
	return nil, ErrBackendNotAvailable
}

// MustDefault returns the default device or panics.
func MustDefault() gpucore.Device {
	dev, err := Default()
	if err != nil {
		panic(err)
	}
	return dev
}
