// Package file persists the storage image in a memory mapped file.
// Written pages are tracked and flushed with msync on Sync.
package file

import (
	"bytes"
	"errors"
	"os"
	"sort"

	"github.com/golang/glog"
	"github.com/natefinch/atomic"

	fx "github.com/robotalks/nv.go/pkg/framework"
	"github.com/robotalks/nv.go/pkg/nv/media"
)

// Erased is the fill of a newly created image.
const Erased byte = 0xff

// ErrUnsupported is returned on platforms without mmap.
var ErrUnsupported = errors.New("memory mapped files not supported")

// Device is a file backed image.
type Device struct {
	path     string
	pageSize int

	f     *os.File
	data  []byte
	dirty map[int]struct{}
}

// New creates a Device for the image at path. The file is created on Init
// if it does not exist.
func New(path string) *Device {
	return &Device{path: path, pageSize: os.Getpagesize(), dirty: make(map[int]struct{})}
}

// Path returns the image path.
func (d *Device) Path() string { return d.path }

// Init implements nv.Backend.
func (d *Device) Init(size int) error {
	if d.data != nil {
		if len(d.data) == size {
			return nil
		}
		if err := d.Close(); err != nil {
			return err
		}
	}
	if _, err := os.Stat(d.path); os.IsNotExist(err) {
		glog.Infof("file: creating image %s of %d bytes", d.path, size)
		if err := Export(d.path, bytes.Repeat([]byte{Erased}, size)); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	f, err := os.OpenFile(d.path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if info.Size() != int64(size) {
		glog.Warningf("file: resizing image %s from %d to %d bytes", d.path, info.Size(), size)
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return err
		}
	}
	data, err := mmap(f, size)
	if err != nil {
		f.Close()
		return err
	}
	d.f, d.data = f, data
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
	d.data[i] = b
	d.dirty[i/d.pageSize] = struct{}{}
	return nil
}

type span struct {
	off, len int
}

// spans merges the dirty pages into contiguous page aligned spans.
func (d *Device) spans() []span {
	if len(d.dirty) == 0 {
		return nil
	}
	pages := make([]int, 0, len(d.dirty))
	for p := range d.dirty {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	var spans []span
	for _, p := range pages {
		off := p * d.pageSize
		if n := len(spans); n > 0 && spans[n-1].off+spans[n-1].len == off {
			spans[n-1].len += d.pageSize
			continue
		}
		spans = append(spans, span{off: off, len: d.pageSize})
	}
	return spans
}

// Sync implements nv.Syncer.
func (d *Device) Sync() error {
	for _, s := range d.spans() {
		end := s.off + s.len
		if end > len(d.data) {
			end = len(d.data)
		}
		if err := msync(d.data[s.off:end]); err != nil {
			return err
		}
	}
	d.dirty = make(map[int]struct{})
	return nil
}

// Bytes exposes the mapped image.
func (d *Device) Bytes() []byte { return d.data }

// Close flushes and unmaps the image.
func (d *Device) Close() error {
	if d.data == nil {
		return nil
	}
	var errs fx.AggregatedError
	errs.Add(d.Sync(), munmap(d.data), d.f.Close())
	d.data, d.f = nil, nil
	return errs.Aggregate()
}

// Export atomically replaces the file at path with image.
func Export(path string, image []byte) error {
	return atomic.WriteFile(path, bytes.NewReader(image))
}
