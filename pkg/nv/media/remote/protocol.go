// Package remote drives storage media attached to a peer, such as the
// EEPROM of a microcontroller, through the frames of package link.
package remote

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/robotalks/nv.go/pkg/link"
	"github.com/robotalks/nv.go/pkg/nv/media"
)

// Request codes.
const (
	OpInit  byte = 0x02 // size:u32
	OpRead  byte = 0x04 // addr:u32 count:u8 -> bytes
	OpWrite byte = 0x06 // addr:u32 bytes...
	OpSync  byte = 0x08
	OpValid byte = 0x0a // -> 0|1
)

// Error codes replied by a Server.
const (
	CodeRequest byte = 0x02
	CodeAddress byte = 0x04
	CodeBusy    byte = 0x06
	CodeMedia   byte = 0x08
)

// MaxRead is the largest count of a single read request.
const MaxRead = link.MaxData - 1

var (
	// ErrRequest is replied for malformed requests.
	ErrRequest = errors.New("malformed request")
	// ErrMedia is replied when the peer media fails.
	ErrMedia = errors.New("peer media error")
	// ErrAddress is replied for accesses outside the peer media.
	ErrAddress = errors.New("peer address out of range")
)

func encodeAddr(addr int, extra ...byte) []byte {
	b := make([]byte, 4, 4+len(extra))
	binary.LittleEndian.PutUint32(b, uint32(addr))
	return append(b, extra...)
}

func decodeAddr(data []byte) (int, []byte, error) {
	if len(data) < 4 {
		return 0, nil, &link.CommandError{Code: CodeRequest}
	}
	return int(binary.LittleEndian.Uint32(data)), data[4:], nil
}

// codeOf maps a media error to the code sent to the client.
func codeOf(err error) byte {
	var addrErr *media.AddressError
	switch {
	case errors.As(err, &addrErr):
		return CodeAddress
	case errors.Is(err, media.ErrBusy):
		return CodeBusy
	}
	return CodeMedia
}

// errorOf maps a reply error back to a sentinel the caller can test.
func errorOf(err error) error {
	var ce *link.CommandError
	if !errors.As(err, &ce) {
		return err
	}
	switch ce.Code {
	case CodeRequest:
		return ErrRequest
	case CodeAddress:
		return ErrAddress
	case CodeBusy:
		return media.ErrBusy
	case CodeMedia:
		return ErrMedia
	}
	return fmt.Errorf("remote: %w", err)
}
