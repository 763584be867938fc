package touch

import (
	"github.com/robotalks/nv.go/pkg/nv"
)

// Point is a touch position. Z is the pressure.
type Point struct {
	X, Y, Z int
}

// Calibration is the raw range of the panel axes.
type Calibration struct {
	MinX, MaxX int16
	MinY, MaxY int16
}

// DefaultCalibration fits a typical XPT2046 panel.
var DefaultCalibration = Calibration{MinX: 250, MaxX: 3800, MinY: 250, MaxY: 3800}

// CalibrationSize is the number of storage bytes used by a Calibration.
const CalibrationSize = 8

// IsValid reports whether both ranges are non-empty.
func (c Calibration) IsValid() bool {
	return c.MinX < c.MaxX && c.MinY < c.MaxY
}

// Map scales a raw point onto a width x height display. Points outside the
// calibrated range map outside the display.
func (c Calibration) Map(raw Point, width, height int) Point {
	return Point{
		X: scale(raw.X, int(c.MinX), int(c.MaxX), width),
		Y: scale(raw.Y, int(c.MinY), int(c.MaxY), height),
		Z: raw.Z,
	}
}

func scale(v, lo, hi, out int) int {
	if hi == lo {
		return 0
	}
	return (v - lo) * out / (hi - lo)
}

// LoadCalibration reads the calibration stored at addr. The default is
// returned when the image is not valid or holds no usable calibration.
func LoadCalibration(s *nv.Store, addr int) (Calibration, error) {
	if !s.Valid() {
		return DefaultCalibration, nil
	}
	var fields [4]int16
	for n := range fields {
		v, err := s.ReadInt16(addr + n*2)
		if err != nil {
			return DefaultCalibration, err
		}
		fields[n] = v
	}
	c := Calibration{MinX: fields[0], MaxX: fields[1], MinY: fields[2], MaxY: fields[3]}
	if !c.IsValid() {
		return DefaultCalibration, nil
	}
	return c, nil
}

// SaveCalibration stores c at addr. Unchanged fields are not rewritten.
func SaveCalibration(s *nv.Store, addr int, c Calibration) error {
	for n, v := range [4]int16{c.MinX, c.MaxX, c.MinY, c.MaxY} {
		if err := s.UpdateInt16(addr+n*2, v); err != nil {
			return err
		}
	}
	return nil
}
