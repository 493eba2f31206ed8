// Package xinput is the X client API for the parts of the XInputExtension
// extension needed to configure absolute pointer devices.
//
// It follows the layout of the xgb extension packages (Init, cookies,
// request builders and reply decoders) so it plugs into an xgb.Conn the same
// way randr does. Only fixed-size (32 byte) events are used because xgb frames
// every event as 32 bytes; XI2 generic events are never selected.
package xinput

import (
	"math"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// ExtName is the name the server advertises for the extension.
const ExtName = "XInputExtension"

// Init must be called before using the XInputExtension extension.
func Init(c *xgb.Conn) error {
	reply, err := xproto.QueryExtension(c, uint16(len(ExtName)), ExtName).Reply()
	switch {
	case err != nil:
		return err
	case reply == nil:
		return xgb.Errorf("no reply to QueryExtension for %s", ExtName)
	case !reply.Present:
		return xgb.Errorf("No extension named %s could be found on on the server.", ExtName)
	}

	c.ExtLock.Lock()
	c.Extensions[ExtName] = reply.MajorOpcode
	c.ExtLock.Unlock()
	for evNum, fun := range xgb.NewExtEventFuncs[ExtName] {
		xgb.NewEventFuncs[int(reply.FirstEvent)+evNum] = fun
	}
	for errNum, fun := range xgb.NewExtErrorFuncs[ExtName] {
		xgb.NewErrorFuncs[int(reply.FirstError)+errNum] = fun
	}
	return nil
}

func init() {
	xgb.NewExtEventFuncs[ExtName] = make(map[int]xgb.NewEventFun)
	xgb.NewExtErrorFuncs[ExtName] = make(map[int]xgb.NewErrorFun)

	xgb.NewExtEventFuncs[ExtName][DevicePresenceNotify] = DevicePresenceNotifyEventNew

	for num, name := range errorNames {
		xgb.NewExtErrorFuncs[ExtName][num] = newErrorFun(name)
	}
}

type DeviceId uint16

const DeviceAll DeviceId = 0

const (
	DeviceTypeMasterPointer  = 1
	DeviceTypeMasterKeyboard = 2
	DeviceTypeSlavePointer   = 3
	DeviceTypeSlaveKeyboard  = 4
	DeviceTypeFloatingSlave  = 5
)

const PropModeReplace = 0

const (
	DeviceChangeAdded          = 0
	DeviceChangeRemoved        = 1
	DeviceChangeEnabled        = 2
	DeviceChangeDisabled       = 3
	DeviceChangeUnrecoverable  = 4
	DeviceChangeControlChanged = 5
)

// EventClass selects an XInput 1 event for SelectExtensionEvent. The high
// bits carry the device id, the low byte the event type offset.
type EventClass uint32

// DevicePresence is the class for DevicePresenceNotify; it is not bound to a
// device.
const DevicePresence EventClass = 0x10000

// AnyPropertyType matches any property type in XIGetProperty.
const AnyPropertyType xproto.Atom = 0

// Error codes relative to the extension's first error.
const (
	BadDevice  = 0
	BadEvent   = 1
	BadMode    = 2
	DeviceBusy = 3
	BadClass   = 4
)

var errorNames = map[int]string{
	BadDevice:  "BadDevice",
	BadEvent:   "BadEvent",
	BadMode:    "BadMode",
	DeviceBusy: "DeviceBusy",
	BadClass:   "BadClass",
}

// Error is any error reply of the extension. Without registered constructors
// xgb drops these replies and the waiting cookie never returns.
type Error struct {
	Sequence    uint16
	NiceName    string
	Code        byte
	BadValue    uint32
	MinorOpcode uint16
	MajorOpcode byte
}

func newErrorFun(name string) xgb.NewErrorFun {
	return func(buf []byte) xgb.Error {
		v := Error{NiceName: name}

		b := 1 // skip error determinant

		v.Code = buf[b]
		b += 1

		v.Sequence = xgb.Get16(buf[b:])
		b += 2

		v.BadValue = xgb.Get32(buf[b:])
		b += 4

		v.MinorOpcode = xgb.Get16(buf[b:])
		b += 2

		v.MajorOpcode = buf[b]

		return v
	}
}

// SequenceId returns the sequence id attached to the error.
func (err Error) SequenceId() uint16 {
	return err.Sequence
}

// BadId returns the offending value of the error.
func (err Error) BadId() uint32 {
	return err.BadValue
}

// ErrorCode returns the raw code, major and minor opcode triple.
func (err Error) ErrorCode() (byte, byte, uint16) {
	return err.Code, err.MajorOpcode, err.MinorOpcode
}

func (err Error) Error() string {
	fieldVals := make([]string, 0, 5)
	fieldVals = append(fieldVals, "NiceName: "+err.NiceName)
	fieldVals = append(fieldVals, xgb.Sprintf("Sequence: %d", err.Sequence))
	fieldVals = append(fieldVals, xgb.Sprintf("BadValue: %d", err.BadValue))
	fieldVals = append(fieldVals, xgb.Sprintf("MinorOpcode: %d", err.MinorOpcode))
	fieldVals = append(fieldVals, xgb.Sprintf("MajorOpcode: %d", err.MajorOpcode))
	return err.NiceName + " {" + xgb.StringsJoin(fieldVals, ", ") + "}"
}

// DevicePresenceNotify is the event number for a DevicePresenceNotifyEvent.
const DevicePresenceNotify = 15

// DevicePresenceNotifyEvent reports that an input device was added, removed,
// enabled or disabled.
type DevicePresenceNotifyEvent struct {
	Sequence  uint16
	Time      xproto.Timestamp
	Devchange byte
	DeviceId  byte
	Control   uint16
	// padding: 20 bytes
}

// DevicePresenceNotifyEventNew constructs a DevicePresenceNotifyEvent value
// that implements xgb.Event from a byte slice.
func DevicePresenceNotifyEventNew(buf []byte) xgb.Event {
	v := DevicePresenceNotifyEvent{}
	b := 1 // don't read event number

	b += 1 // padding

	v.Sequence = xgb.Get16(buf[b:])
	b += 2

	v.Time = xproto.Timestamp(xgb.Get32(buf[b:]))
	b += 4

	v.Devchange = buf[b]
	b += 1

	v.DeviceId = buf[b]
	b += 1

	v.Control = xgb.Get16(buf[b:])

	return v
}

// Bytes writes a DevicePresenceNotifyEvent value to a byte slice. The event
// number is relative to the extension's first event and has to be fixed up by
// the caller before sending.
func (v DevicePresenceNotifyEvent) Bytes() []byte {
	buf := make([]byte, 32)
	b := 0

	buf[b] = DevicePresenceNotify
	b += 1

	b += 1 // padding

	xgb.Put16(buf[b:], v.Sequence)
	b += 2

	xgb.Put32(buf[b:], uint32(v.Time))
	b += 4

	buf[b] = v.Devchange
	b += 1

	buf[b] = v.DeviceId
	b += 1

	xgb.Put16(buf[b:], v.Control)

	return buf
}

// SequenceId returns the sequence id attached to the DevicePresenceNotify event.
func (v DevicePresenceNotifyEvent) SequenceId() uint16 {
	return v.Sequence
}

// String is a rudimentary string representation of DevicePresenceNotifyEvent.
func (v DevicePresenceNotifyEvent) String() string {
	fieldVals := make([]string, 0, 5)
	fieldVals = append(fieldVals, xgb.Sprintf("Sequence: %d", v.Sequence))
	fieldVals = append(fieldVals, xgb.Sprintf("Time: %d", v.Time))
	fieldVals = append(fieldVals, xgb.Sprintf("Devchange: %d", v.Devchange))
	fieldVals = append(fieldVals, xgb.Sprintf("DeviceId: %d", v.DeviceId))
	fieldVals = append(fieldVals, xgb.Sprintf("Control: %d", v.Control))
	return "DevicePresenceNotify {" + xgb.StringsJoin(fieldVals, ", ") + "}"
}

// Float32Items encodes values as format 32 property items.
func Float32Items(values []float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, f := range values {
		xgb.Put32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Float32sFromItems decodes format 32 property items.
func Float32sFromItems(items []byte) []float32 {
	values := make([]float32, len(items)/4)
	for i := range values {
		values[i] = math.Float32frombits(xgb.Get32(items[i*4:]))
	}
	return values
}

func checkExt(c *xgb.Conn, request string) {
	c.ExtLock.RLock()
	defer c.ExtLock.RUnlock()
	if _, ok := c.Extensions[ExtName]; !ok {
		panic("Cannot issue request '" + request + "' using the uninitialized extension '" + ExtName + "'. xinput.Init(connObj) must be called first.")
	}
}

func majorOpcode(c *xgb.Conn) byte {
	c.ExtLock.RLock()
	defer c.ExtLock.RUnlock()
	return c.Extensions[ExtName]
}
