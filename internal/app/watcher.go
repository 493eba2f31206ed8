// Package app keeps tablets mapped to an output, once or for as long as the
// display server runs.
package app

import (
	"context"
	"log/slog"

	"github.com/ItsNotGoodName/wacom-randr/internal/core"
	"github.com/ItsNotGoodName/wacom-randr/internal/tablet"
	"github.com/ItsNotGoodName/wacom-randr/internal/topology"
	"github.com/ItsNotGoodName/wacom-randr/internal/xserver"
	"github.com/google/uuid"
)

// Display is the X server as seen by the watcher.
type Display interface {
	topology.Source
	tablet.Devices
	NextEvent() (xserver.Event, error)
	Close() error
}

type Options struct {
	Output  string
	Prefix  string
	DryRun  bool
	Refresh bool
}

type Watcher struct {
	display Display
	mapper  tablet.Mapper
	output  string
	refresh bool
}

func NewWatcher(display Display, opts Options) *Watcher {
	return &Watcher{
		display: display,
		mapper:  tablet.NewMapper(display, opts.Prefix, opts.DryRun),
		output:  opts.Output,
		refresh: opts.Refresh,
	}
}

func (w *Watcher) String() string {
	return "app.Watcher"
}

// Apply resolves the topology and maps every tablet once. The error is for
// the pass as a whole, device failures are in the report.
func (w *Watcher) Apply() (topology.Snapshot, tablet.Report, error) {
	snapshot, err := topology.Resolve(w.display)
	if err != nil {
		return nil, tablet.Report{}, err
	}

	report, err := w.apply("start", snapshot)
	return snapshot, report, err
}

// Serve maps tablets and then re-maps them on every relevant event until the
// connection is lost or ctx is done.
func (w *Watcher) Serve(ctx context.Context) error {
	previous, _, err := w.Apply()
	if err != nil {
		return err
	}

	// Unblocks NextEvent.
	stop := context.AfterFunc(ctx, func() { w.display.Close() })
	defer stop()

	for {
		ev, err := w.display.NextEvent()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if core.IsConnectionError(err) {
				return err
			}
			slog.Warn("X error while waiting for events", "error", err)
			continue
		}

		previous, err = w.dispatch(ev, previous)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if core.IsConnectionError(err) {
				return err
			}
			slog.Error("Failed to map tablets", "event", ev.Name, "error", err)
		}
	}
}

// dispatch handles one event and returns the snapshot the next event is
// compared against. It is only replaced after a successful pass.
func (w *Watcher) dispatch(ev xserver.Event, previous topology.Snapshot) (topology.Snapshot, error) {
	switch ev.Kind {
	case xserver.EventDisplay:
		current, err := topology.Resolve(w.display)
		if err != nil {
			return previous, err
		}
		if !topology.Changed(previous, current) {
			slog.Debug("Outputs unchanged", "event", ev.Name)
			return previous, nil
		}

		slog.Info("Outputs changed", "event", ev.Name, "outputs", current.String())
		if _, err := w.apply(ev.Kind.String(), current); err != nil {
			return previous, err
		}
		return current, nil
	case xserver.EventDevices:
		snapshot := previous
		if w.refresh {
			current, err := topology.Resolve(w.display)
			if err != nil {
				return previous, err
			}
			snapshot = current
		}

		slog.Debug("Input devices changed", "event", ev.Name)
		if _, err := w.apply(ev.Kind.String(), snapshot); err != nil {
			return previous, err
		}
		return snapshot, nil
	default:
		slog.Debug("Ignoring event", "event", ev.Name)
		return previous, nil
	}
}

func (w *Watcher) apply(reason string, snapshot topology.Snapshot) (tablet.Report, error) {
	log := slog.With("pass", uuid.NewString(), "reason", reason)

	report, err := w.mapper.Apply(snapshot, w.output)
	if err != nil {
		return report, err
	}

	if !report.Matched {
		log.Warn("Output not found, using first output", "want", w.output, "output", report.Target.Name)
	}

	if len(report.Results) == 0 {
		log.Warn("No tablet found")
	}

	for _, res := range report.Results {
		switch res.Status {
		case tablet.StatusApplied:
			log.Info("Mapped tablet", "device", res.Device.Name, "id", res.Device.ID, "output", report.Target.String(), "matrix", report.Matrix.String())
		case tablet.StatusDryRun:
			log.Info("Would map tablet", "device", res.Device.Name, "id", res.Device.ID, "output", report.Target.String(), "matrix", report.Matrix.String())
		case tablet.StatusSkipped:
			log.Debug("Skipping device without "+tablet.PropertyName, "device", res.Device.Name, "id", res.Device.ID)
		case tablet.StatusFailed:
			log.Error("Failed to map tablet", "device", res.Device.Name, "id", res.Device.ID, "error", res.Err)
		}
	}

	return report, nil
}
