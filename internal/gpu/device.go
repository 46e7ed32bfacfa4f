package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// ErrNoAdapter is returned when the HAL instance exposes no adapters.
var ErrNoAdapter = errors.New("gpu: no adapter available")

// Device is an open HAL device together with the instance that owns it.
type Device struct {
	Device hal.Device
	Queue  hal.Queue
	close  func()
}

// Close destroys the device and its instance.
func (d *Device) Close() {
	if d == nil || d.close == nil {
		return
	}
	d.close()
	d.close = nil
}

// OpenNoopDevice opens the headless noop HAL backend. Shader modules created on
// it are validated for shape but never run.
func OpenNoopDevice() (*Device, error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("gpu: create noop instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open noop device: %w", err)
	}
	return &Device{
		Device: openDev.Device,
		Queue:  openDev.Queue,
		close: func() {
			openDev.Device.Destroy()
			instance.Destroy()
		},
	}, nil
}
