// Package fram simulates ferroelectric RAM: byte writes complete
// immediately and cells do not wear.
package fram

import (
	"github.com/robotalks/nv.go/pkg/nv/media"
)

// Device is an in-memory FRAM.
type Device struct {
	data   []byte
	writes uint64

	// FailWrites makes every write fail with the error, for fault injection.
	FailWrites error
}

// New creates a Device.
func New() *Device {
	return &Device{}
}

// Init implements nv.Backend. Existing content is kept when the size
// does not change.
func (d *Device) Init(size int) error {
	if len(d.data) != size {
		d.data = make([]byte, size)
	}
	return nil
}

// Busy implements nv.Backend.
func (d *Device) Busy() bool { return false }

// ReadFromStorage implements nv.Backend.
func (d *Device) ReadFromStorage(i int) (byte, error) {
	if err := media.CheckAddr(i, len(d.data)); err != nil {
		return 0, err
	}
	return d.data[i], nil
}

// WriteToStorage implements nv.Backend.
func (d *Device) WriteToStorage(i int, b byte) error {
	if err := media.CheckAddr(i, len(d.data)); err != nil {
		return err
	}
	if d.FailWrites != nil {
		return d.FailWrites
	}
	d.data[i] = b
	d.writes++
	return nil
}

// Writes is the number of bytes written so far.
func (d *Device) Writes() uint64 { return d.writes }

// Bytes exposes the raw image.
func (d *Device) Bytes() []byte { return d.data }
