// Package topology resolves the active RandR outputs into a comparable
// snapshot of their names and geometry.
package topology

import (
	"fmt"
	"strings"

	"github.com/ItsNotGoodName/wacom-randr/internal/core"
)

type (
	OutputID uint32
	CrtcID   uint32
)

// OutputInfo is the part of an output's info the resolver needs.
type OutputInfo struct {
	Name      string
	Connected bool
	Crtc      CrtcID
}

// CrtcInfo is the position and size of a CRTC in the virtual desktop.
type CrtcInfo struct {
	X      int16
	Y      int16
	Width  uint16
	Height uint16
}

// Source enumerates outputs and CRTCs of the display server.
type Source interface {
	Outputs() ([]OutputID, error)
	OutputInfo(id OutputID) (OutputInfo, error)
	CrtcInfo(id CrtcID) (CrtcInfo, error)
}

// Output is one active output. It is comparable with ==.
type Output struct {
	Name   string `yaml:"name"`
	X      int16  `yaml:"x"`
	Y      int16  `yaml:"y"`
	Width  uint16 `yaml:"width"`
	Height uint16 `yaml:"height"`
}

func (o Output) String() string {
	return fmt.Sprintf("%s %dx%d+%d+%d", o.Name, o.Width, o.Height, o.X, o.Y)
}

// Snapshot is the ordered list of active outputs in server enumeration order.
type Snapshot []Output

// Resolve builds a snapshot of every output that is connected and driven by
// a CRTC. Any failed query fails the whole resolution.
func Resolve(src Source) (Snapshot, error) {
	ids, err := src.Outputs()
	if err != nil {
		return nil, core.NewProtocolError("list outputs", err)
	}

	snapshot := make(Snapshot, 0, len(ids))
	for _, id := range ids {
		info, err := src.OutputInfo(id)
		if err != nil {
			return nil, core.NewProtocolError(fmt.Sprintf("output %d info", id), err)
		}

		if !info.Connected || info.Crtc == 0 {
			continue
		}

		crtc, err := src.CrtcInfo(info.Crtc)
		if err != nil {
			return nil, core.NewProtocolError(fmt.Sprintf("crtc %d info for output %s", info.Crtc, info.Name), err)
		}

		snapshot = append(snapshot, Output{
			Name:   info.Name,
			X:      crtc.X,
			Y:      crtc.Y,
			Width:  crtc.Width,
			Height: crtc.Height,
		})
	}

	return snapshot, nil
}

// Changed reports whether current differs from previous element by element.
// The same outputs in a different order count as a change.
func Changed(previous, current Snapshot) bool {
	if len(previous) != len(current) {
		return true
	}
	for i := range previous {
		if previous[i] != current[i] {
			return true
		}
	}
	return false
}

// Find returns the output called name.
func (s Snapshot) Find(name string) (Output, bool) {
	for _, o := range s {
		if o.Name == name {
			return o, true
		}
	}
	return Output{}, false
}

// Bounds returns the bounding box of the whole virtual desktop. Widened to
// int32 because x+width does not fit int16 for outputs near the edge.
func (s Snapshot) Bounds() (minX, minY, maxX, maxY int32, ok bool) {
	if len(s) == 0 {
		return 0, 0, 0, 0, false
	}

	minX, minY = int32(s[0].X), int32(s[0].Y)
	maxX, maxY = int32(s[0].X)+int32(s[0].Width), int32(s[0].Y)+int32(s[0].Height)
	for _, o := range s[1:] {
		minX = min(minX, int32(o.X))
		minY = min(minY, int32(o.Y))
		maxX = max(maxX, int32(o.X)+int32(o.Width))
		maxY = max(maxY, int32(o.Y)+int32(o.Height))
	}

	return minX, minY, maxX, maxY, true
}

func (s Snapshot) String() string {
	if len(s) == 0 {
		return "[]"
	}
	names := make([]string, 0, len(s))
	for _, o := range s {
		names = append(names, o.String())
	}
	return "[" + strings.Join(names, ", ") + "]"
}
