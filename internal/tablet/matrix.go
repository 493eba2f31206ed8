package tablet

import (
	"errors"
	"fmt"
	"math"

	"github.com/ItsNotGoodName/wacom-randr/internal/core"
	"github.com/ItsNotGoodName/wacom-randr/internal/topology"
)

var (
	// ErrNoOutputs is returned when there is no output to map tablets to.
	ErrNoOutputs = &core.PreconditionError{What: "no active outputs"}

	// ErrDegenerateBounds is returned when the desktop has zero width or
	// height, which would put non-finite values in the matrix.
	ErrDegenerateBounds = errors.New("degenerate desktop bounds")
)

// Matrix is a row-major 3x3 affine transform mapping the normalized virtual
// desktop onto the normalized area of one output.
//
//	cx  0 dx
//	 0 cy dy
//	 0  0  1
type Matrix [9]float32

// SelectTarget returns the output called name, or the first output when no
// output has that name.
func SelectTarget(snapshot topology.Snapshot, name string) (topology.Output, bool, error) {
	if len(snapshot) == 0 {
		return topology.Output{}, false, ErrNoOutputs
	}
	if o, ok := snapshot.Find(name); ok {
		return o, true, nil
	}
	return snapshot[0], false, nil
}

// NewMatrix derives the transform placing target inside the bounding box of
// every output in snapshot.
func NewMatrix(snapshot topology.Snapshot, target topology.Output) (Matrix, error) {
	minX, minY, maxX, maxY, ok := snapshot.Bounds()
	if !ok {
		return Matrix{}, ErrNoOutputs
	}

	width, height := float32(maxX-minX), float32(maxY-minY)
	if width <= 0 || height <= 0 {
		return Matrix{}, fmt.Errorf("%w: %dx%d", ErrDegenerateBounds, maxX-minX, maxY-minY)
	}

	dx := (float32(target.X) - float32(minX)) / width
	dy := (float32(target.Y) - float32(minY)) / height
	cx := float32(target.Width) / width
	cy := float32(target.Height) / height

	m := Matrix{
		cx, 0, dx,
		0, cy, dy,
		0, 0, 1,
	}
	if !m.Finite() {
		return Matrix{}, fmt.Errorf("%w: %s", ErrDegenerateBounds, m)
	}

	return m, nil
}

// Finite reports whether every element is a finite number.
func (m Matrix) Finite() bool {
	for _, v := range m {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

func (m Matrix) Values() []float32 {
	return m[:]
}

func (m Matrix) String() string {
	return fmt.Sprintf("[%g %g %g; %g %g %g; %g %g %g]", m[0], m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8])
}
