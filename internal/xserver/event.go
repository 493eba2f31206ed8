package xserver

import (
	"github.com/ItsNotGoodName/wacom-randr/internal/core"
	"github.com/ItsNotGoodName/wacom-randr/internal/xinput"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/randr"
)

type EventKind int

const (
	EventOther EventKind = iota
	// EventDisplay is any RandR notification.
	EventDisplay
	// EventDevices is an input device being added, removed, enabled or disabled.
	EventDevices
)

func (k EventKind) String() string {
	switch k {
	case EventDisplay:
		return "display"
	case EventDevices:
		return "devices"
	default:
		return "other"
	}
}

type Event struct {
	Kind EventKind
	Name string
}

// NextEvent blocks until the server sends an event. A closed connection is a
// core.ConnectionError. Error replies to unchecked requests are returned as
// core.ProtocolError and do not end the stream.
func (s *Server) NextEvent() (Event, error) {
	ev, err := s.conn.WaitForEvent()
	if ev == nil && err == nil {
		return Event{}, &core.ConnectionError{Op: "wait for event"}
	}
	if err != nil {
		return Event{}, core.NewProtocolError("wait for event", err)
	}

	return classify(ev), nil
}

func classify(ev xgb.Event) Event {
	switch ev := ev.(type) {
	case randr.ScreenChangeNotifyEvent:
		return Event{Kind: EventDisplay, Name: "ScreenChangeNotify"}
	case randr.NotifyEvent:
		return Event{Kind: EventDisplay, Name: "Notify"}
	case xinput.DevicePresenceNotifyEvent:
		switch ev.Devchange {
		case xinput.DeviceChangeAdded, xinput.DeviceChangeRemoved, xinput.DeviceChangeEnabled, xinput.DeviceChangeDisabled:
			return Event{Kind: EventDevices, Name: "DevicePresenceNotify"}
		}
		return Event{Kind: EventOther, Name: "DevicePresenceNotify"}
	default:
		return Event{Kind: EventOther, Name: ev.String()}
	}
}
