package xinput

import (
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// Request opcodes.
const (
	opSelectExtensionEvent = 6
	opXIQueryVersion       = 47
	opXIQueryDevice        = 48
	opXIListProperties     = 56
	opXIChangeProperty     = 57
	opXIGetProperty        = 59
)

// XIQueryVersionCookie is a cookie used only for XIQueryVersion requests.
type XIQueryVersionCookie struct {
	*xgb.Cookie
}

// XIQueryVersion sends a checked request.
// If an error occurs, it will be returned with the reply by calling XIQueryVersionCookie.Reply()
func XIQueryVersion(c *xgb.Conn, MajorVersion uint16, MinorVersion uint16) XIQueryVersionCookie {
	checkExt(c, "XIQueryVersion")
	cookie := c.NewCookie(true, true)
	c.NewRequest(xiQueryVersionRequest(c, MajorVersion, MinorVersion), cookie)
	return XIQueryVersionCookie{cookie}
}

// XIQueryVersionReply represents the data returned from a XIQueryVersion request.
type XIQueryVersionReply struct {
	Sequence     uint16 // sequence number of the request for this reply
	Length       uint32 // number of bytes in this reply
	MajorVersion uint16
	MinorVersion uint16
}

// Reply blocks and returns the reply data for a XIQueryVersion request.
func (cook XIQueryVersionCookie) Reply() (*XIQueryVersionReply, error) {
	buf, err := cook.Cookie.Reply()
	if err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, nil
	}
	return xiQueryVersionReply(buf), nil
}

func xiQueryVersionReply(buf []byte) *XIQueryVersionReply {
	v := new(XIQueryVersionReply)
	b := 1 // skip reply determinant

	b += 1 // padding

	v.Sequence = xgb.Get16(buf[b:])
	b += 2

	v.Length = xgb.Get32(buf[b:]) // 4-byte units
	b += 4

	v.MajorVersion = xgb.Get16(buf[b:])
	b += 2

	v.MinorVersion = xgb.Get16(buf[b:])

	return v
}

func xiQueryVersionRequest(c *xgb.Conn, MajorVersion uint16, MinorVersion uint16) []byte {
	size := 8
	b := 0
	buf := make([]byte, size)

	buf[b] = majorOpcode(c)
	b += 1

	buf[b] = opXIQueryVersion
	b += 1

	xgb.Put16(buf[b:], uint16(size/4))
	b += 2

	xgb.Put16(buf[b:], MajorVersion)
	b += 2

	xgb.Put16(buf[b:], MinorVersion)

	return buf
}

// XIDeviceInfo describes one input device. Device classes are skipped.
type XIDeviceInfo struct {
	Deviceid   DeviceId
	Type       uint16
	Attachment DeviceId
	NumClasses uint16
	Enabled    bool
	Name       string
}

// XIQueryDeviceCookie is a cookie used only for XIQueryDevice requests.
type XIQueryDeviceCookie struct {
	*xgb.Cookie
}

// XIQueryDevice sends a checked request.
// If an error occurs, it will be returned with the reply by calling XIQueryDeviceCookie.Reply()
func XIQueryDevice(c *xgb.Conn, Deviceid DeviceId) XIQueryDeviceCookie {
	checkExt(c, "XIQueryDevice")
	cookie := c.NewCookie(true, true)
	c.NewRequest(xiQueryDeviceRequest(c, Deviceid), cookie)
	return XIQueryDeviceCookie{cookie}
}

// XIQueryDeviceReply represents the data returned from a XIQueryDevice request.
type XIQueryDeviceReply struct {
	Sequence uint16
	Length   uint32
	NumInfos uint16
	Infos    []XIDeviceInfo
}

// Reply blocks and returns the reply data for a XIQueryDevice request.
func (cook XIQueryDeviceCookie) Reply() (*XIQueryDeviceReply, error) {
	buf, err := cook.Cookie.Reply()
	if err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, nil
	}
	return xiQueryDeviceReply(buf), nil
}

func xiQueryDeviceReply(buf []byte) *XIQueryDeviceReply {
	v := new(XIQueryDeviceReply)
	b := 1 // skip reply determinant

	b += 1 // padding

	v.Sequence = xgb.Get16(buf[b:])
	b += 2

	v.Length = xgb.Get32(buf[b:])
	b += 4

	v.NumInfos = xgb.Get16(buf[b:])
	b += 2

	b += 22 // padding

	v.Infos = make([]XIDeviceInfo, 0, v.NumInfos)
	for i := 0; i < int(v.NumInfos); i++ {
		if b+12 > len(buf) {
			break
		}

		info := XIDeviceInfo{}

		info.Deviceid = DeviceId(xgb.Get16(buf[b:]))
		b += 2

		info.Type = xgb.Get16(buf[b:])
		b += 2

		info.Attachment = DeviceId(xgb.Get16(buf[b:]))
		b += 2

		info.NumClasses = xgb.Get16(buf[b:])
		b += 2

		nameLen := int(xgb.Get16(buf[b:]))
		b += 2

		info.Enabled = buf[b] == 1
		b += 1

		b += 1 // padding

		if b+nameLen > len(buf) {
			break
		}
		info.Name = string(buf[b : b+nameLen])
		b += xgb.Pad(nameLen)

		// Every class starts with type and length, the length counting
		// 4-byte units of the whole class.
		for j := 0; j < int(info.NumClasses) && b+4 <= len(buf); j++ {
			b += int(xgb.Get16(buf[b+2:])) * 4
		}

		v.Infos = append(v.Infos, info)
	}

	return v
}

func xiQueryDeviceRequest(c *xgb.Conn, Deviceid DeviceId) []byte {
	size := 8
	b := 0
	buf := make([]byte, size)

	buf[b] = majorOpcode(c)
	b += 1

	buf[b] = opXIQueryDevice
	b += 1

	xgb.Put16(buf[b:], uint16(size/4))
	b += 2

	xgb.Put16(buf[b:], uint16(Deviceid))
	b += 2

	b += 2 // padding

	return buf
}

// XIListPropertiesCookie is a cookie used only for XIListProperties requests.
type XIListPropertiesCookie struct {
	*xgb.Cookie
}

// XIListProperties sends a checked request.
// If an error occurs, it will be returned with the reply by calling XIListPropertiesCookie.Reply()
func XIListProperties(c *xgb.Conn, Deviceid DeviceId) XIListPropertiesCookie {
	checkExt(c, "XIListProperties")
	cookie := c.NewCookie(true, true)
	c.NewRequest(xiListPropertiesRequest(c, Deviceid), cookie)
	return XIListPropertiesCookie{cookie}
}

// XIListPropertiesReply represents the data returned from a XIListProperties request.
type XIListPropertiesReply struct {
	Sequence      uint16
	Length        uint32
	NumProperties uint16
	Properties    []xproto.Atom
}

// Reply blocks and returns the reply data for a XIListProperties request.
func (cook XIListPropertiesCookie) Reply() (*XIListPropertiesReply, error) {
	buf, err := cook.Cookie.Reply()
	if err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, nil
	}
	return xiListPropertiesReply(buf), nil
}

func xiListPropertiesReply(buf []byte) *XIListPropertiesReply {
	v := new(XIListPropertiesReply)
	b := 1 // skip reply determinant

	b += 1 // padding

	v.Sequence = xgb.Get16(buf[b:])
	b += 2

	v.Length = xgb.Get32(buf[b:])
	b += 4

	v.NumProperties = xgb.Get16(buf[b:])
	b += 2

	b += 22 // padding

	v.Properties = make([]xproto.Atom, 0, v.NumProperties)
	for i := 0; i < int(v.NumProperties) && b+4 <= len(buf); i++ {
		v.Properties = append(v.Properties, xproto.Atom(xgb.Get32(buf[b:])))
		b += 4
	}

	return v
}

func xiListPropertiesRequest(c *xgb.Conn, Deviceid DeviceId) []byte {
	size := 8
	b := 0
	buf := make([]byte, size)

	buf[b] = majorOpcode(c)
	b += 1

	buf[b] = opXIListProperties
	b += 1

	xgb.Put16(buf[b:], uint16(size/4))
	b += 2

	xgb.Put16(buf[b:], uint16(Deviceid))
	b += 2

	b += 2 // padding

	return buf
}

// XIChangePropertyCookie is a cookie used only for XIChangeProperty requests.
type XIChangePropertyCookie struct {
	*xgb.Cookie
}

// XIChangePropertyChecked sends a checked request.
// If an error occurs, it can be retrieved using XIChangePropertyCookie.Check()
func XIChangePropertyChecked(c *xgb.Conn, Deviceid DeviceId, Mode byte, Format byte, Property xproto.Atom, Type xproto.Atom, NumItems uint32, Items []byte) XIChangePropertyCookie {
	checkExt(c, "XIChangeProperty")
	cookie := c.NewCookie(true, false)
	c.NewRequest(xiChangePropertyRequest(c, Deviceid, Mode, Format, Property, Type, NumItems, Items), cookie)
	return XIChangePropertyCookie{cookie}
}

// Check returns an error if one occurred for checked requests that are not expecting a reply.
// This cannot be called for requests expecting a reply, nor for unchecked requests.
func (cook XIChangePropertyCookie) Check() error {
	return cook.Cookie.Check()
}

// xiChangePropertyRequest writes a XIChangeProperty request. Items must hold
// NumItems values of Format bits each.
func xiChangePropertyRequest(c *xgb.Conn, Deviceid DeviceId, Mode byte, Format byte, Property xproto.Atom, Type xproto.Atom, NumItems uint32, Items []byte) []byte {
	size := xgb.Pad(20 + len(Items))
	b := 0
	buf := make([]byte, size)

	buf[b] = majorOpcode(c)
	b += 1

	buf[b] = opXIChangeProperty
	b += 1

	xgb.Put16(buf[b:], uint16(size/4))
	b += 2

	xgb.Put16(buf[b:], uint16(Deviceid))
	b += 2

	buf[b] = Mode
	b += 1

	buf[b] = Format
	b += 1

	xgb.Put32(buf[b:], uint32(Property))
	b += 4

	xgb.Put32(buf[b:], uint32(Type))
	b += 4

	xgb.Put32(buf[b:], NumItems)
	b += 4

	copy(buf[b:], Items)

	return buf
}

// XIGetPropertyCookie is a cookie used only for XIGetProperty requests.
type XIGetPropertyCookie struct {
	*xgb.Cookie
}

// XIGetProperty sends a checked request.
// If an error occurs, it will be returned with the reply by calling XIGetPropertyCookie.Reply()
func XIGetProperty(c *xgb.Conn, Deviceid DeviceId, Delete bool, Property xproto.Atom, Type xproto.Atom, Offset uint32, Len uint32) XIGetPropertyCookie {
	checkExt(c, "XIGetProperty")
	cookie := c.NewCookie(true, true)
	c.NewRequest(xiGetPropertyRequest(c, Deviceid, Delete, Property, Type, Offset, Len), cookie)
	return XIGetPropertyCookie{cookie}
}

// XIGetPropertyReply represents the data returned from a XIGetProperty request.
type XIGetPropertyReply struct {
	Sequence   uint16
	Length     uint32
	Type       xproto.Atom
	BytesAfter uint32
	NumItems   uint32
	Format     byte
	Items      []byte // NumItems * Format / 8 bytes
}

// Reply blocks and returns the reply data for a XIGetProperty request.
func (cook XIGetPropertyCookie) Reply() (*XIGetPropertyReply, error) {
	buf, err := cook.Cookie.Reply()
	if err != nil {
		return nil, err
	}
	if buf == nil {
		return nil, nil
	}
	return xiGetPropertyReply(buf), nil
}

func xiGetPropertyReply(buf []byte) *XIGetPropertyReply {
	v := new(XIGetPropertyReply)
	b := 1 // skip reply determinant

	b += 1 // padding

	v.Sequence = xgb.Get16(buf[b:])
	b += 2

	v.Length = xgb.Get32(buf[b:])
	b += 4

	v.Type = xproto.Atom(xgb.Get32(buf[b:]))
	b += 4

	v.BytesAfter = xgb.Get32(buf[b:])
	b += 4

	v.NumItems = xgb.Get32(buf[b:])
	b += 4

	v.Format = buf[b]
	b += 1

	b += 11 // padding

	n := int(v.NumItems) * int(v.Format) / 8
	if b+n > len(buf) {
		n = len(buf) - b
	}
	v.Items = make([]byte, n)
	copy(v.Items, buf[b:b+n])

	return v
}

func xiGetPropertyRequest(c *xgb.Conn, Deviceid DeviceId, Delete bool, Property xproto.Atom, Type xproto.Atom, Offset uint32, Len uint32) []byte {
	size := 24
	b := 0
	buf := make([]byte, size)

	buf[b] = majorOpcode(c)
	b += 1

	buf[b] = opXIGetProperty
	b += 1

	xgb.Put16(buf[b:], uint16(size/4))
	b += 2

	xgb.Put16(buf[b:], uint16(Deviceid))
	b += 2

	if Delete {
		buf[b] = 1
	}
	b += 1

	b += 1 // padding

	xgb.Put32(buf[b:], uint32(Property))
	b += 4

	xgb.Put32(buf[b:], uint32(Type))
	b += 4

	xgb.Put32(buf[b:], Offset)
	b += 4

	xgb.Put32(buf[b:], Len)

	return buf
}

// SelectExtensionEventCookie is a cookie used only for SelectExtensionEvent requests.
type SelectExtensionEventCookie struct {
	*xgb.Cookie
}

// SelectExtensionEventChecked sends a checked request.
// If an error occurs, it can be retrieved using SelectExtensionEventCookie.Check()
func SelectExtensionEventChecked(c *xgb.Conn, Window xproto.Window, Classes []EventClass) SelectExtensionEventCookie {
	checkExt(c, "SelectExtensionEvent")
	cookie := c.NewCookie(true, false)
	c.NewRequest(selectExtensionEventRequest(c, Window, Classes), cookie)
	return SelectExtensionEventCookie{cookie}
}

// Check returns an error if one occurred for checked requests that are not expecting a reply.
func (cook SelectExtensionEventCookie) Check() error {
	return cook.Cookie.Check()
}

func selectExtensionEventRequest(c *xgb.Conn, Window xproto.Window, Classes []EventClass) []byte {
	size := 12 + 4*len(Classes)
	b := 0
	buf := make([]byte, size)

	buf[b] = majorOpcode(c)
	b += 1

	buf[b] = opSelectExtensionEvent
	b += 1

	xgb.Put16(buf[b:], uint16(size/4))
	b += 2

	xgb.Put32(buf[b:], uint32(Window))
	b += 4

	xgb.Put16(buf[b:], uint16(len(Classes)))
	b += 2

	b += 2 // padding

	for _, class := range Classes {
		xgb.Put32(buf[b:], uint32(class))
		b += 4
	}

	return buf
}
