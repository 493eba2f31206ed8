package xinput

import (
	"math"
	"testing"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOpcode = 131

func testConn() *xgb.Conn {
	return &xgb.Conn{Extensions: map[string]byte{ExtName: testOpcode}}
}

func replyHeader(extra []byte, fields func(buf []byte)) []byte {
	buf := make([]byte, 32+len(extra))
	buf[0] = 1
	xgb.Put16(buf[2:], 9)
	xgb.Put32(buf[4:], uint32(len(extra)/4))
	fields(buf)
	copy(buf[32:], extra)
	return buf
}

func deviceInfo(id DeviceId, typ uint16, enabled bool, name string, classLens ...uint16) []byte {
	buf := make([]byte, 12+xgb.Pad(len(name)))
	xgb.Put16(buf[0:], uint16(id))
	xgb.Put16(buf[2:], typ)
	xgb.Put16(buf[4:], 2)
	xgb.Put16(buf[6:], uint16(len(classLens)))
	xgb.Put16(buf[8:], uint16(len(name)))
	if enabled {
		buf[10] = 1
	}
	copy(buf[12:], name)

	for _, l := range classLens {
		class := make([]byte, int(l)*4)
		xgb.Put16(class[0:], 1)
		xgb.Put16(class[2:], l)
		buf = append(buf, class...)
	}
	return buf
}

func TestXIQueryVersionRequest(t *testing.T) {
	buf := xiQueryVersionRequest(testConn(), 2, 3)

	assert.Equal(t, []byte{testOpcode, opXIQueryVersion, 2, 0, 2, 0, 3, 0}, buf)
}

func TestXIQueryVersionReply(t *testing.T) {
	buf := replyHeader(nil, func(buf []byte) {
		xgb.Put16(buf[8:], 2)
		xgb.Put16(buf[10:], 4)
	})

	reply := xiQueryVersionReply(buf)

	assert.Equal(t, uint16(9), reply.Sequence)
	assert.Equal(t, uint16(2), reply.MajorVersion)
	assert.Equal(t, uint16(4), reply.MinorVersion)
}

func TestXIQueryDeviceReply(t *testing.T) {
	var extra []byte
	extra = append(extra, deviceInfo(2, DeviceTypeMasterPointer, true, "Virtual core pointer", 2, 3)...)
	extra = append(extra, deviceInfo(11, DeviceTypeSlavePointer, false, "Wacom Intuos Pro M Pen stylus", 4)...)
	extra = append(extra, deviceInfo(12, DeviceTypeSlaveKeyboard, true, "AT")...)

	buf := replyHeader(extra, func(buf []byte) {
		xgb.Put16(buf[8:], 3)
	})

	reply := xiQueryDeviceReply(buf)

	require.Len(t, reply.Infos, 3)
	assert.Equal(t, XIDeviceInfo{
		Deviceid:   2,
		Type:       DeviceTypeMasterPointer,
		Attachment: 2,
		NumClasses: 2,
		Enabled:    true,
		Name:       "Virtual core pointer",
	}, reply.Infos[0])
	assert.Equal(t, DeviceId(11), reply.Infos[1].Deviceid)
	assert.Equal(t, "Wacom Intuos Pro M Pen stylus", reply.Infos[1].Name)
	assert.False(t, reply.Infos[1].Enabled)
	assert.Equal(t, "AT", reply.Infos[2].Name)
	assert.Equal(t, uint16(DeviceTypeSlaveKeyboard), reply.Infos[2].Type)
}

func TestXIQueryDeviceReply_Truncated(t *testing.T) {
	extra := deviceInfo(2, DeviceTypeMasterPointer, true, "pointer")
	buf := replyHeader(extra, func(buf []byte) {
		xgb.Put16(buf[8:], 5)
	})

	reply := xiQueryDeviceReply(buf)

	require.Len(t, reply.Infos, 1)
	assert.Equal(t, "pointer", reply.Infos[0].Name)
}

func TestXIQueryDeviceRequest(t *testing.T) {
	buf := xiQueryDeviceRequest(testConn(), DeviceAll)

	assert.Equal(t, []byte{testOpcode, opXIQueryDevice, 2, 0, 0, 0, 0, 0}, buf)
}

func TestXIListPropertiesReply(t *testing.T) {
	extra := make([]byte, 12)
	xgb.Put32(extra[0:], 270)
	xgb.Put32(extra[4:], 271)
	xgb.Put32(extra[8:], 300)

	buf := replyHeader(extra, func(buf []byte) {
		xgb.Put16(buf[8:], 3)
	})

	reply := xiListPropertiesReply(buf)

	assert.Equal(t, []xproto.Atom{270, 271, 300}, reply.Properties)
}

func TestXIChangePropertyRequest(t *testing.T) {
	values := []float32{0.5, 0, 0.5, 0, 1, 0, 0, 0, 1}

	buf := xiChangePropertyRequest(testConn(), 14, PropModeReplace, 32, 280, 290, uint32(len(values)), Float32Items(values))

	require.Len(t, buf, 56)
	assert.Equal(t, byte(testOpcode), buf[0])
	assert.Equal(t, byte(opXIChangeProperty), buf[1])
	assert.Equal(t, uint16(14), xgb.Get16(buf[2:]), "request length in 4-byte units")
	assert.Equal(t, uint16(14), xgb.Get16(buf[4:]), "device id")
	assert.Equal(t, byte(PropModeReplace), buf[6])
	assert.Equal(t, byte(32), buf[7])
	assert.Equal(t, uint32(280), xgb.Get32(buf[8:]))
	assert.Equal(t, uint32(290), xgb.Get32(buf[12:]))
	assert.Equal(t, uint32(9), xgb.Get32(buf[16:]))
	assert.Equal(t, values, Float32sFromItems(buf[20:]))
}

func TestXIGetPropertyRequest(t *testing.T) {
	buf := xiGetPropertyRequest(testConn(), 11, false, 280, AnyPropertyType, 0, 9)

	require.Len(t, buf, 24)
	assert.Equal(t, uint16(6), xgb.Get16(buf[2:]))
	assert.Equal(t, uint16(11), xgb.Get16(buf[4:]))
	assert.Equal(t, byte(0), buf[6])
	assert.Equal(t, uint32(280), xgb.Get32(buf[8:]))
	assert.Equal(t, uint32(0), xgb.Get32(buf[12:]))
	assert.Equal(t, uint32(0), xgb.Get32(buf[16:]))
	assert.Equal(t, uint32(9), xgb.Get32(buf[20:]))
}

func TestXIGetPropertyReply(t *testing.T) {
	values := []float32{1, 0, 0, 0, 1, 0, 0, 0, 1}
	extra := Float32Items(values)

	buf := replyHeader(extra, func(buf []byte) {
		xgb.Put32(buf[8:], 290)
		xgb.Put32(buf[12:], 0)
		xgb.Put32(buf[16:], uint32(len(values)))
		buf[20] = 32
	})

	reply := xiGetPropertyReply(buf)

	assert.Equal(t, xproto.Atom(290), reply.Type)
	assert.Equal(t, byte(32), reply.Format)
	assert.Equal(t, uint32(9), reply.NumItems)
	assert.Equal(t, values, Float32sFromItems(reply.Items))
}

func TestSelectExtensionEventRequest(t *testing.T) {
	buf := selectExtensionEventRequest(testConn(), 0x2a, []EventClass{DevicePresence})

	require.Len(t, buf, 16)
	assert.Equal(t, byte(opSelectExtensionEvent), buf[1])
	assert.Equal(t, uint16(4), xgb.Get16(buf[2:]))
	assert.Equal(t, uint32(0x2a), xgb.Get32(buf[4:]))
	assert.Equal(t, uint16(1), xgb.Get16(buf[8:]))
	assert.Equal(t, uint32(0x10000), xgb.Get32(buf[12:]))
}

func TestDevicePresenceNotifyEventNew(t *testing.T) {
	buf := make([]byte, 32)
	buf[0] = 66 + DevicePresenceNotify
	xgb.Put16(buf[2:], 77)
	xgb.Put32(buf[4:], 123456)
	buf[8] = DeviceChangeEnabled
	buf[9] = 13

	ev, ok := DevicePresenceNotifyEventNew(buf).(DevicePresenceNotifyEvent)

	require.True(t, ok)
	assert.Equal(t, uint16(77), ev.SequenceId())
	assert.Equal(t, xproto.Timestamp(123456), ev.Time)
	assert.Equal(t, byte(DeviceChangeEnabled), ev.Devchange)
	assert.Equal(t, byte(13), ev.DeviceId)
}

func TestErrorConstructor(t *testing.T) {
	buf := make([]byte, 32)
	buf[1] = 134 // first error + BadDevice
	xgb.Put16(buf[2:], 5)
	xgb.Put32(buf[4:], 99)
	xgb.Put16(buf[8:], opXIChangeProperty)
	buf[10] = testOpcode

	xerr := newErrorFun(errorNames[BadDevice])(buf)

	perr, ok := xerr.(Error)
	require.True(t, ok)
	assert.Equal(t, "BadDevice", perr.NiceName)
	assert.Equal(t, uint16(5), perr.SequenceId())
	assert.Equal(t, uint32(99), perr.BadId())

	code, major, minor := perr.ErrorCode()
	assert.Equal(t, byte(134), code)
	assert.Equal(t, byte(testOpcode), major)
	assert.Equal(t, uint16(opXIChangeProperty), minor)
}

func TestFloat32Items(t *testing.T) {
	items := Float32Items([]float32{1, float32(math.Inf(1))})

	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f, 0x00, 0x00, 0x80, 0x7f}, items)
}

func TestRegisteredFuncs(t *testing.T) {
	assert.Contains(t, xgb.NewExtEventFuncs[ExtName], DevicePresenceNotify)
	assert.Len(t, xgb.NewExtErrorFuncs[ExtName], len(errorNames))
}
