// Package device models the execution environment the resource manager and
// selection kernels run against: a set of devices, each with a fixed memory
// capacity and capability flags, and per-device streams that execute enqueued
// work in submission order.
//
// # Current Device
//
// CUDA tracks the current device per host thread. Go has no thread-local
// storage and goroutines migrate between threads, so the current device is a
// process-wide setting here. Callers that operate on multiple devices should
// pass explicit device IDs rather than relying on SetCurrent.
package device

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrInvalidDevice is returned when a device ID is out of range.
	ErrInvalidDevice = errors.New("device: invalid device id")
)

// DefaultTotalMemory is the memory capacity of the default device (8 GiB).
const DefaultTotalMemory = 8 << 30

// Properties describes a device's fixed capabilities.
type Properties struct {
	// Name is a human-readable device name used in diagnostics.
	Name string

	// TotalMemory is the device memory capacity in bytes.
	TotalMemory int64

	// BFloat16 reports whether the device supports bfloat16 arithmetic.
	BFloat16 bool
}

// Device is one registered device.
type Device struct {
	id    int
	props Properties
}

// ID returns the device's ID.
func (d *Device) ID() int { return d.id }

// Properties returns the device's fixed properties.
func (d *Device) Properties() Properties { return d.props }

func (d *Device) String() string {
	return fmt.Sprintf("device %d (%s)", d.id, d.props.Name)
}

var (
	registryMu sync.RWMutex
	registry   []*Device
	current    atomic.Int64
)

func init() {
	// A single default device keeps the zero-configuration path working.
	registry = []*Device{{
		id: 0,
		props: Properties{
			Name:        "sim-0",
			TotalMemory: DefaultTotalMemory,
			BFloat16:    true,
		},
	}}
}

// Configure replaces the device registry. It is intended for process startup
// and tests; it must not be called concurrently with device use.
// Passing no properties restores a single default device.
func Configure(props ...Properties) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if len(props) == 0 {
		props = []Properties{{
			Name:        "sim-0",
			TotalMemory: DefaultTotalMemory,
			BFloat16:    true,
		}}
	}

	registry = make([]*Device, len(props))
	for i, p := range props {
		if p.TotalMemory <= 0 {
			p.TotalMemory = DefaultTotalMemory
		}
		if p.Name == "" {
			p.Name = fmt.Sprintf("sim-%d", i)
		}
		registry[i] = &Device{id: i, props: p}
	}

	current.Store(0)
}

// Count returns the number of registered devices.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Get returns the device with the given ID.
func Get(id int) (*Device, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if id < 0 || id >= len(registry) {
		return nil, fmt.Errorf("%w: %d (have %d devices)", ErrInvalidDevice, id, len(registry))
	}

	return registry[id], nil
}

// Valid reports whether id names a registered device.
func Valid(id int) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return id >= 0 && id < len(registry)
}

// Current returns the current device ID.
func Current() int {
	return int(current.Load())
}

// SetCurrent sets the current device. See the package comment for how this
// differs from CUDA's per-thread semantics.
func SetCurrent(id int) error {
	if !Valid(id) {
		return fmt.Errorf("%w: %d", ErrInvalidDevice, id)
	}
	current.Store(int64(id))
	return nil
}
