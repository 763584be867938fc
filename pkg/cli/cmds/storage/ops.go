// Package storage registers the storage commands of the nvctl shell.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/robotalks/nv.go/pkg/nv"
	"github.com/robotalks/nv.go/pkg/nv/codec"
	"github.com/robotalks/nv.go/pkg/nv/media/file"
)

// ParseAddr parses a decimal or 0x prefixed address.
func ParseAddr(text string) (int, error) {
	v, err := strconv.ParseUint(text, 0, 31)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", text)
	}
	return int(v), nil
}

// Read reads a value of kind at addr and formats it.
func Read(s *nv.Store, kind codec.Kind, addr int) (string, error) {
	count := kind.Size()
	if kind == codec.KindString {
		count = -codec.MaxBytes
		if avail := s.Size() - addr; avail > 0 && avail < codec.MaxBytes {
			count = -avail
		}
	}
	buf := make([]byte, kind.Size())
	n, err := s.ReadBytes(addr, buf, count)
	if err != nil {
		return "", err
	}
	return kind.Format(buf[:n])
}

// Write stores text as a value of kind at addr. With update set, bytes
// already holding the value are not rewritten.
func Write(s *nv.Store, kind codec.Kind, addr int, text string, update bool) error {
	data, err := kind.Parse(text)
	if err != nil {
		return err
	}
	if update {
		return s.UpdateBytes(addr, data)
	}
	return s.WriteBytes(addr, data)
}

// Poll runs up to n flush steps, stopping early once committed.
func Poll(s *nv.Store, n int) (int, error) {
	for count := 0; count < n; count++ {
		if s.Committed() {
			return count, nil
		}
		if err := s.Poll(); err != nil {
			return count + 1, err
		}
	}
	return n, nil
}

// Commit drains the store.
func Commit(ctx context.Context, s *nv.Store) error {
	return s.Drain(ctx)
}

// Image reads length bytes from addr as clients see them, pending bytes
// included.
func Image(s *nv.Store, addr, length int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("invalid length %d", length)
	}
	image := make([]byte, length)
	for off := 0; off < length; off += codec.MaxBytes {
		count := length - off
		if count > codec.MaxBytes {
			count = codec.MaxBytes
		}
		if _, err := s.ReadBytes(addr+off, image[off:], count); err != nil {
			return nil, err
		}
	}
	return image, nil
}

// Dump formats length bytes from addr as hex, 16 per line.
func Dump(s *nv.Store, addr, length int) (string, error) {
	image, err := Image(s, addr, length)
	if err != nil {
		return "", err
	}
	var w bytes.Buffer
	for off := 0; off < len(image); off += 16 {
		end := off + 16
		if end > len(image) {
			end = len(image)
		}
		line := image[off:end]
		text := make([]byte, len(line))
		for n, b := range line {
			if b >= 0x20 && b < 0x7f {
				text[n] = b
			} else {
				text[n] = '.'
			}
		}
		fmt.Fprintf(&w, "%06x  %-47s  |%s|\n", addr+off, fmt.Sprintf("% x", line), text)
	}
	return strings.TrimSuffix(w.String(), "\n"), nil
}

// Export writes the client image to a file atomically.
func Export(s *nv.Store, path string) error {
	image, err := Image(s, 0, s.Size())
	if err != nil {
		return err
	}
	return file.Export(path, image)
}

// FormatStats renders the counters one per line.
func FormatStats(st nv.Stats) string {
	return fmt.Sprintf("reads:          %d\n"+
		"cache hits:     %d\n"+
		"backend reads:  %d\n"+
		"writes:         %d\n"+
		"suppressed:     %d\n"+
		"flushed:        %d\n"+
		"busy polls:     %d\n"+
		"write failures: %d\n"+
		"seals:          %d\n"+
		"pending:        %d",
		st.Reads, st.CacheHits, st.BackendReads, st.Writes, st.Suppressed,
		st.Flushed, st.BusyPolls, st.WriteFailures, st.Seals, st.Pending)
}
