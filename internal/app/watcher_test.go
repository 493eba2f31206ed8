package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ItsNotGoodName/wacom-randr/internal/core"
	"github.com/ItsNotGoodName/wacom-randr/internal/tablet"
	"github.com/ItsNotGoodName/wacom-randr/internal/topology"
	"github.com/ItsNotGoodName/wacom-randr/internal/xserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	before func(d *fakeDisplay)
	event  xserver.Event
	err    error
}

// fakeDisplay serves a scripted event stream. Every output is connected and
// driven by the CRTC with the same index.
type fakeDisplay struct {
	snapshot   topology.Snapshot
	resolveErr error
	steps      []step
	block      bool

	writes [][]float32

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeDisplay(snapshot topology.Snapshot, steps ...step) *fakeDisplay {
	return &fakeDisplay{
		snapshot: snapshot,
		steps:    steps,
		closed:   make(chan struct{}),
	}
}

func (d *fakeDisplay) Outputs() ([]topology.OutputID, error) {
	if d.resolveErr != nil {
		return nil, d.resolveErr
	}
	ids := make([]topology.OutputID, 0, len(d.snapshot))
	for i := range d.snapshot {
		ids = append(ids, topology.OutputID(i+1))
	}
	return ids, nil
}

func (d *fakeDisplay) OutputInfo(id topology.OutputID) (topology.OutputInfo, error) {
	return topology.OutputInfo{Name: d.snapshot[id-1].Name, Connected: true, Crtc: topology.CrtcID(id)}, nil
}

func (d *fakeDisplay) CrtcInfo(id topology.CrtcID) (topology.CrtcInfo, error) {
	o := d.snapshot[id-1]
	return topology.CrtcInfo{X: o.X, Y: o.Y, Width: o.Width, Height: o.Height}, nil
}

func (d *fakeDisplay) Devices() ([]tablet.Device, error) {
	return []tablet.Device{
		{ID: 2, Name: "Virtual core pointer", Enabled: true},
		{ID: 10, Name: "Wacom One Pen stylus", Enabled: true},
	}, nil
}

func (d *fakeDisplay) PropertyNames(id uint16) ([]string, error) {
	return []string{"Device Enabled", tablet.PropertyName}, nil
}

func (d *fakeDisplay) FloatProperty(id uint16, property string) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func (d *fakeDisplay) SetFloatProperty(id uint16, property, typ string, values []float32) error {
	d.writes = append(d.writes, append([]float32(nil), values...))
	return nil
}

func (d *fakeDisplay) NextEvent() (xserver.Event, error) {
	if len(d.steps) == 0 {
		if d.block {
			<-d.closed
		}
		return xserver.Event{}, &core.ConnectionError{Op: "wait for event"}
	}

	s := d.steps[0]
	d.steps = d.steps[1:]
	if s.before != nil {
		s.before(d)
	}
	return s.event, s.err
}

func (d *fakeDisplay) Close() error {
	d.closeOnce.Do(func() { close(d.closed) })
	return nil
}

var (
	sideBySide = topology.Snapshot{
		{Name: "DP-1", X: 0, Y: 0, Width: 1920, Height: 1080},
		{Name: "DP-2", X: 1920, Y: 0, Width: 1920, Height: 1080},
	}
	laptopOnly = topology.Snapshot{
		{Name: "DP-2", X: 0, Y: 0, Width: 1920, Height: 1080},
	}

	rightHalf = []float32{0.5, 0, 0.5, 0, 1, 0, 0, 0, 1}
	identity  = []float32{1, 0, 0, 0, 1, 0, 0, 0, 1}
)

func setSnapshot(snapshot topology.Snapshot) func(d *fakeDisplay) {
	return func(d *fakeDisplay) { d.snapshot = snapshot }
}

var (
	displayEvent = xserver.Event{Kind: xserver.EventDisplay, Name: "ScreenChangeNotify"}
	devicesEvent = xserver.Event{Kind: xserver.EventDevices, Name: "DevicePresenceNotify"}
	otherEvent   = xserver.Event{Kind: xserver.EventOther, Name: "ConfigureNotify"}
)

func TestWatcherApply(t *testing.T) {
	d := newFakeDisplay(sideBySide)

	snapshot, report, err := NewWatcher(d, Options{Output: "DP-2"}).Apply()

	require.NoError(t, err)
	assert.Equal(t, sideBySide, snapshot)
	assert.True(t, report.Matched)
	assert.Equal(t, 1, report.Count(tablet.StatusApplied))
	assert.Equal(t, [][]float32{rightHalf}, d.writes)
}

func TestWatcherServe(t *testing.T) {
	d := newFakeDisplay(sideBySide,
		step{event: displayEvent},
		step{before: setSnapshot(laptopOnly), event: displayEvent},
		step{event: otherEvent},
		step{event: devicesEvent},
	)

	err := NewWatcher(d, Options{Output: "DP-2"}).Serve(context.Background())

	assert.True(t, core.IsConnectionError(err))
	assert.Equal(t, [][]float32{rightHalf, identity, identity}, d.writes)
}

func TestWatcherServe_DevicesReuseSnapshot(t *testing.T) {
	d := newFakeDisplay(sideBySide,
		step{before: setSnapshot(laptopOnly), event: devicesEvent},
	)

	err := NewWatcher(d, Options{Output: "DP-2"}).Serve(context.Background())

	assert.True(t, core.IsConnectionError(err))
	assert.Equal(t, [][]float32{rightHalf, rightHalf}, d.writes)
}

func TestWatcherServe_DevicesRefresh(t *testing.T) {
	d := newFakeDisplay(sideBySide,
		step{before: setSnapshot(laptopOnly), event: devicesEvent},
		step{event: displayEvent},
	)

	err := NewWatcher(d, Options{Output: "DP-2", Refresh: true}).Serve(context.Background())

	assert.True(t, core.IsConnectionError(err))
	assert.Equal(t, [][]float32{rightHalf, identity}, d.writes, "refreshed snapshot becomes the previous one")
}

func TestWatcherServe_FailedPassesContinue(t *testing.T) {
	d := newFakeDisplay(sideBySide,
		step{before: setSnapshot(topology.Snapshot{}), event: displayEvent},
		step{err: &core.ProtocolError{Op: "wait for event", Name: "BadDevice"}},
		step{before: setSnapshot(sideBySide), event: displayEvent},
		step{before: func(d *fakeDisplay) { d.resolveErr = errors.New("BadMatch") }, event: displayEvent},
		step{before: func(d *fakeDisplay) { d.resolveErr = nil; d.snapshot = laptopOnly }, event: displayEvent},
	)

	err := NewWatcher(d, Options{Output: "DP-2"}).Serve(context.Background())

	assert.True(t, core.IsConnectionError(err))
	assert.Equal(t, [][]float32{rightHalf, identity}, d.writes)
}

func TestWatcherServe_DegenerateWritesNothing(t *testing.T) {
	d := newFakeDisplay(sideBySide,
		step{before: setSnapshot(topology.Snapshot{{Name: "DP-2", Width: 0, Height: 1080}}), event: displayEvent},
	)

	err := NewWatcher(d, Options{Output: "DP-2"}).Serve(context.Background())

	assert.True(t, core.IsConnectionError(err))
	assert.Equal(t, [][]float32{rightHalf}, d.writes)
}

func TestWatcherServe_ConnectionLostWhileResolving(t *testing.T) {
	d := newFakeDisplay(sideBySide,
		step{before: func(d *fakeDisplay) { d.resolveErr = &core.ConnectionError{Op: "get screen resources"} }, event: displayEvent},
		step{event: displayEvent},
	)

	err := NewWatcher(d, Options{Output: "DP-2"}).Serve(context.Background())

	assert.True(t, core.IsConnectionError(err))
	assert.Len(t, d.steps, 1, "stops at the first connection error")
}

func TestWatcherServe_InitialFailure(t *testing.T) {
	d := newFakeDisplay(sideBySide, step{event: displayEvent})
	d.resolveErr = errors.New("BadValue")

	err := NewWatcher(d, Options{Output: "DP-2"}).Serve(context.Background())

	var perr *core.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Len(t, d.steps, 1, "never waits for events")
	assert.Empty(t, d.writes)
}

func TestWatcherServe_NoOutputsAtStart(t *testing.T) {
	d := newFakeDisplay(topology.Snapshot{})

	err := NewWatcher(d, Options{Output: "DP-2"}).Serve(context.Background())

	assert.ErrorIs(t, err, tablet.ErrNoOutputs)
}

func TestWatcherServe_Canceled(t *testing.T) {
	d := newFakeDisplay(sideBySide)
	d.block = true

	ctx, cancel := context.WithCancel(context.Background())
	errC := make(chan error, 1)
	go func() { errC <- NewWatcher(d, Options{Output: "DP-2"}).Serve(ctx) }()

	cancel()

	assert.ErrorIs(t, <-errC, context.Canceled)
}
