// Package eeprom simulates a byte programmable EEPROM. Every write holds
// the device busy for a write cycle and cells wear out after Endurance
// writes.
package eeprom

import (
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/nv.go/pkg/nv/media"
)

// Config describes the simulated part.
type Config struct {
	// WriteCycle is how long a byte write keeps the device busy.
	WriteCycle time.Duration
	// Endurance is the number of writes a cell survives, 0 is unlimited.
	Endurance uint32
	// Clock drives the write cycle, nil uses time.Now.
	Clock media.Clock
}

// DefaultWriteCycle is the typical byte write time of AVR class EEPROM.
const DefaultWriteCycle = 3300 * time.Microsecond

// DefaultEndurance is the typical rated endurance of a cell.
const DefaultEndurance = 100000

// Erased is the value of a cell which was never written.
const Erased byte = 0xff

// DefaultConfig returns the datasheet defaults.
func DefaultConfig() Config {
	return Config{WriteCycle: DefaultWriteCycle, Endurance: DefaultEndurance}
}

// Device is a simulated EEPROM.
type Device struct {
	config Config

	data []byte
	wear []uint32

	cycle     *write
	busyUntil time.Time
	result    error
}

type write struct {
	addr  int
	value byte
}

// New creates a Device.
func New(config Config) *Device {
	return &Device{config: config}
}

// Init implements nv.Backend. Content survives a re-init of the same size.
func (d *Device) Init(size int) error {
	if len(d.data) == size {
		return nil
	}
	d.data = make([]byte, size)
	for n := range d.data {
		d.data[n] = Erased
	}
	d.wear = make([]uint32, size)
	d.cycle, d.result = nil, nil
	return nil
}

// Busy implements nv.Backend.
func (d *Device) Busy() bool {
	if d.cycle != nil && !d.config.Clock.Now().Before(d.busyUntil) {
		d.complete()
	}
	return d.cycle != nil
}

func (d *Device) complete() {
	w := d.cycle
	d.cycle = nil
	if d.config.Endurance > 0 && d.wear[w.addr] >= d.config.Endurance {
		d.result = media.ErrWornOut
		glog.Warningf("eeprom: cell %d worn out", w.addr)
		return
	}
	d.data[w.addr] = w.value
	d.wear[w.addr]++
	d.result = nil
}

// Completed implements nv.Completer.
func (d *Device) Completed() error { return d.result }

// ReadFromStorage implements nv.Backend. A read issued during a write cycle
// waits for it, like the hardware does.
func (d *Device) ReadFromStorage(i int) (byte, error) {
	if err := media.CheckAddr(i, len(d.data)); err != nil {
		return 0, err
	}
	if d.cycle != nil {
		d.complete()
	}
	return d.data[i], nil
}

// WriteToStorage implements nv.Backend. It starts a write cycle.
func (d *Device) WriteToStorage(i int, b byte) error {
	if err := media.CheckAddr(i, len(d.data)); err != nil {
		return err
	}
	if d.Busy() {
		return media.ErrBusy
	}
	d.cycle = &write{addr: i, value: b}
	d.busyUntil = d.config.Clock.Now().Add(d.config.WriteCycle)
	return nil
}

// Wear returns the number of completed writes of cell i.
func (d *Device) Wear(i int) uint32 { return d.wear[i] }

// Bytes exposes the raw image, e.g. to inject corruption.
func (d *Device) Bytes() []byte { return d.data }
