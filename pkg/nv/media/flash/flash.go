// Package flash simulates page organized flash behind a RAM page buffer.
// Writes land in the buffer; switching pages or syncing erases and
// programs the buffered page, which keeps the device busy for EraseTime.
package flash

import (
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/nv.go/pkg/nv/media"
)

// Config describes the simulated part.
type Config struct {
	PageSize int
	// EraseTime is how long an erase+program of one page keeps the device busy.
	EraseTime time.Duration
	// Endurance is the number of erase cycles a page survives, 0 is unlimited.
	Endurance uint32
	Clock     media.Clock
}

// Defaults.
const (
	DefaultPageSize  = 256
	DefaultEraseTime = 20 * time.Millisecond
	DefaultEndurance = 10000
)

// Erased is the value of erased flash.
const Erased byte = 0xff

// DefaultConfig returns typical values of small NOR flash.
func DefaultConfig() Config {
	return Config{
		PageSize:  DefaultPageSize,
		EraseTime: DefaultEraseTime,
		Endurance: DefaultEndurance,
	}
}

// Device is a simulated flash.
type Device struct {
	config Config
	size   int

	pages  [][]byte
	erases []uint32
	torn   map[int]bool

	buf      []byte
	bufPage  int
	bufDirty bool

	program   *program
	busyUntil time.Time
}

type program struct {
	page int
	data []byte
}

// New creates a Device.
func New(config Config) *Device {
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	return &Device{config: config, bufPage: -1}
}

// Init implements nv.Backend. Content survives a re-init of the same size.
func (d *Device) Init(size int) error {
	if d.size == size {
		return nil
	}
	count := (size + d.config.PageSize - 1) / d.config.PageSize
	d.pages = make([][]byte, count)
	for n := range d.pages {
		d.pages[n] = erasedPage(d.config.PageSize)
	}
	d.erases = make([]uint32, count)
	d.torn = make(map[int]bool)
	d.buf = make([]byte, d.config.PageSize)
	d.bufPage, d.bufDirty, d.program = -1, false, nil
	d.size = size
	return nil
}

func erasedPage(size int) []byte {
	p := make([]byte, size)
	for n := range p {
		p[n] = Erased
	}
	return p
}

// Busy implements nv.Backend.
func (d *Device) Busy() bool {
	if d.program != nil && !d.config.Clock.Now().Before(d.busyUntil) {
		d.finish()
	}
	return d.program != nil
}

func (d *Device) finish() {
	p := d.program
	d.program = nil
	copy(d.pages[p.page], p.data)
	d.erases[p.page]++
	delete(d.torn, p.page)
}

// BatchSize implements nv.Throttler: a whole page can be buffered per poll.
func (d *Device) BatchSize() int { return d.config.PageSize }

// ReadFromStorage implements nv.Backend.
func (d *Device) ReadFromStorage(i int) (byte, error) {
	if err := media.CheckAddr(i, d.size); err != nil {
		return 0, err
	}
	page, off := i/d.config.PageSize, i%d.config.PageSize
	if page == d.bufPage {
		return d.buf[off], nil
	}
	if d.program != nil && d.program.page == page {
		return d.program.data[off], nil
	}
	return d.pages[page][off], nil
}

// WriteToStorage implements nv.Backend.
func (d *Device) WriteToStorage(i int, b byte) error {
	if err := media.CheckAddr(i, d.size); err != nil {
		return err
	}
	if d.Busy() {
		return media.ErrBusy
	}
	page, off := i/d.config.PageSize, i%d.config.PageSize
	if page != d.bufPage {
		if err := d.commit(); err != nil {
			return err
		}
		copy(d.buf, d.pages[page])
		d.bufPage = page
	}
	d.buf[off] = b
	d.bufDirty = true
	return nil
}

// Sync implements nv.Syncer. It starts programming the buffered page.
func (d *Device) Sync() error {
	if d.Busy() {
		return media.ErrBusy
	}
	return d.commit()
}

func (d *Device) commit() error {
	if !d.bufDirty {
		return nil
	}
	page := d.bufPage
	if d.config.Endurance > 0 && d.erases[page] >= d.config.Endurance {
		glog.Warningf("flash: page %d worn out", page)
		return media.ErrWornOut
	}
	data := make([]byte, len(d.buf))
	copy(data, d.buf)
	d.program = &program{page: page, data: data}
	d.busyUntil = d.config.Clock.Now().Add(d.config.EraseTime)
	d.bufDirty = false
	glog.V(3).Infof("flash: programming page %d", page)
	return nil
}

// Valid implements nv.Validator: no page may be left half programmed.
func (d *Device) Valid() bool { return len(d.torn) == 0 }

// PowerLoss simulates losing power: the page buffer is dropped and a page
// being programmed is left erased.
func (d *Device) PowerLoss() {
	if d.program != nil {
		d.pages[d.program.page] = erasedPage(d.config.PageSize)
		d.torn[d.program.page] = true
		d.program = nil
	}
	d.bufPage, d.bufDirty = -1, false
}

// Erases returns the erase count of page.
func (d *Device) Erases(page int) uint32 { return d.erases[page] }

// Corrupt overwrites a persisted byte, bypassing the page buffer.
func (d *Device) Corrupt(i int, b byte) {
	d.pages[i/d.config.PageSize][i%d.config.PageSize] = b
}
