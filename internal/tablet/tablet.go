// Package tablet writes the coordinate transformation matrix of Wacom input
// devices so the tablet covers a single output.
package tablet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ItsNotGoodName/wacom-randr/internal/core"
	"github.com/ItsNotGoodName/wacom-randr/internal/topology"
)

const (
	DefaultPrefix = "Wacom"
	PropertyName  = "Coordinate Transformation Matrix"
	PropertyType  = "FLOAT"
)

// Device is an input device as reported by the server.
type Device struct {
	ID      uint16
	Name    string
	Enabled bool
}

// Devices is the input side of the display server.
type Devices interface {
	Devices() ([]Device, error)
	PropertyNames(id uint16) ([]string, error)
	FloatProperty(id uint16, property string) ([]float32, error)
	SetFloatProperty(id uint16, property, typ string, values []float32) error
}

// IsTablet reports whether the device name carries prefix.
func IsTablet(name, prefix string) bool {
	return strings.HasPrefix(name, prefix)
}

type Status string

const (
	StatusApplied Status = "applied"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
	StatusDryRun  Status = "dry-run"
)

// Result is the outcome of one device.
type Result struct {
	Device Device
	Status Status
	Err    error
}

// Report is the outcome of one Apply.
type Report struct {
	Target  topology.Output
	Matched bool
	Matrix  Matrix
	Results []Result
}

// Err joins every per-device failure.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			errs = append(errs, fmt.Errorf("%s (%d): %w", res.Device.Name, res.Device.ID, res.Err))
		}
	}
	return errors.Join(errs...)
}

func (r Report) Count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

type Mapper struct {
	devices Devices
	prefix  string
	dryRun  bool
}

func NewMapper(devices Devices, prefix string, dryRun bool) Mapper {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Mapper{
		devices: devices,
		prefix:  prefix,
		dryRun:  dryRun,
	}
}

// Apply maps every tablet to the output called target, falling back to the
// first output. The returned error is for the pass as a whole; device
// failures are collected in the report and do not stop the other devices.
func (m Mapper) Apply(snapshot topology.Snapshot, target string) (Report, error) {
	output, matched, err := SelectTarget(snapshot, target)
	if err != nil {
		return Report{}, err
	}

	matrix, err := NewMatrix(snapshot, output)
	if err != nil {
		return Report{Target: output, Matched: matched}, err
	}

	report := Report{
		Target:  output,
		Matched: matched,
		Matrix:  matrix,
	}

	devices, err := m.devices.Devices()
	if err != nil {
		return report, core.NewProtocolError("query input devices", err)
	}

	for _, device := range devices {
		if !IsTablet(device.Name, m.prefix) {
			continue
		}
		report.Results = append(report.Results, m.applyDevice(device, matrix))
	}

	return report, nil
}

func (m Mapper) applyDevice(device Device, matrix Matrix) Result {
	ok, err := m.hasMatrix(device)
	if err != nil {
		return Result{Device: device, Status: StatusFailed, Err: err}
	}
	if !ok {
		return Result{Device: device, Status: StatusSkipped}
	}

	if m.dryRun {
		return Result{Device: device, Status: StatusDryRun}
	}

	if !matrix.Finite() {
		return Result{Device: device, Status: StatusFailed, Err: ErrDegenerateBounds}
	}

	if err := m.devices.SetFloatProperty(device.ID, PropertyName, PropertyType, matrix.Values()); err != nil {
		return Result{Device: device, Status: StatusFailed, Err: core.NewProtocolError("set "+PropertyName, err)}
	}

	return Result{Device: device, Status: StatusApplied}
}

func (m Mapper) hasMatrix(device Device) (bool, error) {
	names, err := m.devices.PropertyNames(device.ID)
	if err != nil {
		return false, core.NewProtocolError("list device properties", err)
	}
	for _, name := range names {
		if name == PropertyName {
			return true, nil
		}
	}
	return false, nil
}

// State is the current transform of one tablet.
type State struct {
	ID      uint16    `yaml:"id"`
	Name    string    `yaml:"name"`
	Enabled bool      `yaml:"enabled"`
	Matrix  []float32 `yaml:"matrix,omitempty"`
	Error   string    `yaml:"error,omitempty"`
}

// Inspect reads back the transform of every tablet. Tablets without the
// property are listed without a matrix.
func (m Mapper) Inspect() ([]State, error) {
	devices, err := m.devices.Devices()
	if err != nil {
		return nil, core.NewProtocolError("query input devices", err)
	}

	states := []State{}
	for _, device := range devices {
		if !IsTablet(device.Name, m.prefix) {
			continue
		}

		state := State{ID: device.ID, Name: device.Name, Enabled: device.Enabled}

		ok, err := m.hasMatrix(device)
		switch {
		case err != nil:
			state.Error = err.Error()
		case ok:
			values, err := m.devices.FloatProperty(device.ID, PropertyName)
			if err != nil {
				state.Error = core.NewProtocolError("get "+PropertyName, err).Error()
			} else {
				state.Matrix = values
			}
		}

		states = append(states, state)
	}

	return states, nil
}
