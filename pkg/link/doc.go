// Package link implements the byte stream protocol used to reach a storage
// peer over a serial line, a TCP connection or a websocket.
//
// Both ends number their frames with a one byte sequence. A peer starts
// (and restarts after any framing error) by sending a sync request
// carrying its next sequence; the other end acknowledges with its own.
// Once synced, a receiver only accepts the exact next sequence, so lost or
// garbled bytes force a resync instead of silently corrupting a frame.
// There is no checksum; enable parity on the line if the medium needs it.
//
// Frame layout:
//
//	seq | code:4 (bit 7 event, bits 0-3 command) + len:3 (bits 4-6) | [len] | data
//
// A len field of 7 means the real length (< 0x80) follows in its own byte.
// Replies carry the request sequence as the first data byte; bit 0 of the
// reply code flags an error.
package link
