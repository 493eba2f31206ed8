// Package xserver talks to the X server for the rest of the program. It
// resolves RandR outputs, configures XInput devices and waits for events.
package xserver

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ItsNotGoodName/wacom-randr/internal/core"
	"github.com/ItsNotGoodName/wacom-randr/internal/tablet"
	"github.com/ItsNotGoodName/wacom-randr/internal/topology"
	"github.com/ItsNotGoodName/wacom-randr/internal/xinput"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/xproto"
)

const (
	randrMajor, randrMinor   = 1, 3
	xinputMajor, xinputMinor = 2, 3
)

// NotifyMask is every RandR notification the watcher listens for.
const NotifyMask = randr.NotifyMaskScreenChange |
	randr.NotifyMaskCrtcChange |
	randr.NotifyMaskOutputChange |
	randr.NotifyMaskOutputProperty |
	randr.NotifyMaskProviderChange |
	randr.NotifyMaskProviderProperty |
	randr.NotifyMaskResourceChange

type Server struct {
	conn      *xgb.Conn
	root      xproto.Window
	timestamp xproto.Timestamp
	atoms     map[string]xproto.Atom
	closeOnce sync.Once
}

// Connect opens display and checks that RandR and XInput are usable. An
// empty display means $DISPLAY.
func Connect(display string) (*Server, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, &core.ConnectionError{Op: "connect to display " + display, Err: err}
	}

	s := &Server{
		conn:  conn,
		root:  xproto.Setup(conn).DefaultScreen(conn).Root,
		atoms: make(map[string]xproto.Atom),
	}

	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func (s *Server) init() error {
	if err := randr.Init(s.conn); err != nil {
		return core.Preconditionf("RandR extension: %v", err)
	}

	rv, err := reply[randr.QueryVersionReply]("RandR query version")(randr.QueryVersion(s.conn, randrMajor, 5).Reply())
	if err != nil {
		return err
	}
	if rv.MajorVersion < randrMajor || (rv.MajorVersion == randrMajor && rv.MinorVersion < randrMinor) {
		return core.Preconditionf("RandR %d.%d is too old, need %d.%d", rv.MajorVersion, rv.MinorVersion, randrMajor, randrMinor)
	}

	if err := xinput.Init(s.conn); err != nil {
		return core.Preconditionf("XInput extension: %v", err)
	}

	xv, err := reply[xinput.XIQueryVersionReply]("XInput query version")(xinput.XIQueryVersion(s.conn, xinputMajor, xinputMinor).Reply())
	if err != nil {
		return err
	}
	if xv.MajorVersion < 2 {
		return core.Preconditionf("XInput %d.%d is too old, need 2.0", xv.MajorVersion, xv.MinorVersion)
	}

	slog.Debug("Connected to X server",
		"randr", fmt.Sprintf("%d.%d", rv.MajorVersion, rv.MinorVersion),
		"xinput", fmt.Sprintf("%d.%d", xv.MajorVersion, xv.MinorVersion))

	return nil
}

// Close can be called more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(s.conn.Close)
	return nil
}

// reply turns the (reply, error) pair of a cookie into typed errors. A nil
// reply without an error means the connection was closed.
func reply[T any](op string) func(*T, error) (*T, error) {
	return func(r *T, err error) (*T, error) {
		if err != nil {
			return nil, core.NewProtocolError(op, err)
		}
		if r == nil {
			return nil, &core.ConnectionError{Op: op}
		}
		return r, nil
	}
}

func (s *Server) Outputs() ([]topology.OutputID, error) {
	res, err := reply[randr.GetScreenResourcesCurrentReply]("get screen resources")(randr.GetScreenResourcesCurrent(s.conn, s.root).Reply())
	if err != nil {
		return nil, err
	}
	s.timestamp = res.ConfigTimestamp

	ids := make([]topology.OutputID, 0, len(res.Outputs))
	for _, o := range res.Outputs {
		ids = append(ids, topology.OutputID(o))
	}
	return ids, nil
}

func (s *Server) OutputInfo(id topology.OutputID) (topology.OutputInfo, error) {
	info, err := reply[randr.GetOutputInfoReply]("get output info")(randr.GetOutputInfo(s.conn, randr.Output(id), s.timestamp).Reply())
	if err != nil {
		return topology.OutputInfo{}, err
	}
	return outputInfo(id, info)
}

// outputInfo converts the reply. Queries made with a stale config timestamp
// come back with a failed status and zeroed fields.
func outputInfo(id topology.OutputID, info *randr.GetOutputInfoReply) (topology.OutputInfo, error) {
	if info.Status != randr.SetConfigSuccess {
		return topology.OutputInfo{}, configStatusError(fmt.Sprintf("output %d info", id), info.Status)
	}
	return topology.OutputInfo{
		Name:      string(info.Name),
		Connected: info.Connection == randr.ConnectionConnected,
		Crtc:      topology.CrtcID(info.Crtc),
	}, nil
}

func (s *Server) CrtcInfo(id topology.CrtcID) (topology.CrtcInfo, error) {
	info, err := reply[randr.GetCrtcInfoReply]("get crtc info")(randr.GetCrtcInfo(s.conn, randr.Crtc(id), s.timestamp).Reply())
	if err != nil {
		return topology.CrtcInfo{}, err
	}
	return crtcInfo(id, info)
}

func crtcInfo(id topology.CrtcID, info *randr.GetCrtcInfoReply) (topology.CrtcInfo, error) {
	if info.Status != randr.SetConfigSuccess {
		return topology.CrtcInfo{}, configStatusError(fmt.Sprintf("crtc %d info", id), info.Status)
	}
	return topology.CrtcInfo{
		X:      info.X,
		Y:      info.Y,
		Width:  info.Width,
		Height: info.Height,
	}, nil
}

var configStatusNames = map[byte]string{
	randr.SetConfigInvalidConfigTime: "InvalidConfigTime",
	randr.SetConfigInvalidTime:       "InvalidTime",
	randr.SetConfigFailed:            "Failed",
}

func configStatusError(op string, status byte) error {
	name, ok := configStatusNames[status]
	if !ok {
		name = fmt.Sprintf("status %d", status)
	}
	return &core.ProtocolError{Op: op, Name: name, Err: fmt.Errorf("RandR config status %s", name)}
}

func (s *Server) Devices() ([]tablet.Device, error) {
	res, err := reply[xinput.XIQueryDeviceReply]("query devices")(xinput.XIQueryDevice(s.conn, xinput.DeviceAll).Reply())
	if err != nil {
		return nil, err
	}
	return devices(res.Infos), nil
}

func devices(infos []xinput.XIDeviceInfo) []tablet.Device {
	devices := make([]tablet.Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, tablet.Device{
			ID:      uint16(info.Deviceid),
			Name:    info.Name,
			Enabled: info.Enabled,
		})
	}
	return devices
}

// PropertyNames lists the property names of a device. Atom names are
// requested together and then collected.
func (s *Server) PropertyNames(id uint16) ([]string, error) {
	res, err := reply[xinput.XIListPropertiesReply]("list properties")(xinput.XIListProperties(s.conn, xinput.DeviceId(id)).Reply())
	if err != nil {
		return nil, err
	}

	cookies := make([]xproto.GetAtomNameCookie, 0, len(res.Properties))
	for _, atom := range res.Properties {
		cookies = append(cookies, xproto.GetAtomName(s.conn, atom))
	}

	names := make([]string, 0, len(cookies))
	for i, cookie := range cookies {
		name, err := reply[xproto.GetAtomNameReply](fmt.Sprintf("get atom name %d", res.Properties[i]))(cookie.Reply())
		if err != nil {
			return nil, err
		}
		names = append(names, name.Name)
	}

	return names, nil
}

// atom interns name without creating it.
func (s *Server) atom(name string) (xproto.Atom, error) {
	if atom, ok := s.atoms[name]; ok {
		return atom, nil
	}

	res, err := reply[xproto.InternAtomReply]("intern atom "+name)(xproto.InternAtom(s.conn, true, uint16(len(name)), name).Reply())
	if err != nil {
		return 0, err
	}
	if res.Atom == xproto.AtomNone {
		return 0, core.Preconditionf("atom %q does not exist", name)
	}

	s.atoms[name] = res.Atom
	return res.Atom, nil
}

func (s *Server) FloatProperty(id uint16, property string) ([]float32, error) {
	prop, err := s.atom(property)
	if err != nil {
		return nil, err
	}

	res, err := reply[xinput.XIGetPropertyReply]("get property "+property)(xinput.XIGetProperty(s.conn, xinput.DeviceId(id), false, prop, xinput.AnyPropertyType, 0, 64).Reply())
	if err != nil {
		return nil, err
	}
	if res.Format != 32 {
		return nil, fmt.Errorf("property %s has format %d", property, res.Format)
	}

	return xinput.Float32sFromItems(res.Items), nil
}

func (s *Server) SetFloatProperty(id uint16, property, typ string, values []float32) error {
	prop, err := s.atom(property)
	if err != nil {
		return err
	}
	atomType, err := s.atom(typ)
	if err != nil {
		return err
	}

	err = xinput.XIChangePropertyChecked(s.conn, xinput.DeviceId(id), xinput.PropModeReplace, 32, prop, atomType, uint32(len(values)), xinput.Float32Items(values)).Check()
	if err != nil {
		return core.NewProtocolError("change property "+property, err)
	}
	return nil
}

// SelectEvents subscribes the root window to output changes and device
// hierarchy changes.
func (s *Server) SelectEvents() error {
	if err := randr.SelectInputChecked(s.conn, s.root, NotifyMask).Check(); err != nil {
		return core.NewProtocolError("RandR select input", err)
	}
	if err := xinput.SelectExtensionEventChecked(s.conn, s.root, []xinput.EventClass{xinput.DevicePresence}).Check(); err != nil {
		return core.NewProtocolError("XInput select extension event", err)
	}
	return nil
}
