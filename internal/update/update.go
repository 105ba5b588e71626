// Package update builds VRAM update lists in the neslib wire format.
//
// A list is a sequence of entries terminated by EOF:
//
//	MSB|Horizontal, LSB, length, data...   run written left to right
//	MSB|Vertical,   LSB, length, data...   run written top to bottom
//	MSB,            LSB, value             single byte
//
// Lists are only applied by the display during vertical blank.
package update

import (
	"errors"
	"fmt"
)

const (
	Horizontal = 0x40
	Vertical   = 0x80
	EOF        = 0xFF

	// Capacity is the size of the scratch buffer a list is built in
	Capacity = 0x55

	// PrefixLength is the address and length header ahead of every run
	PrefixLength = 3
)

var (
	ErrTruncated    = errors.New("update list truncated")
	ErrUnterminated = errors.New("update list missing terminator")
)

// Buffer is a fixed-capacity scratch area holding one update list
type Buffer struct {
	data [Capacity]byte
	n    int
}

// Reset discards the list being built
func (b *Buffer) Reset() {
	b.n = 0
}

// Len returns the number of bytes written so far
func (b *Buffer) Len() int {
	return b.n
}

func (b *Buffer) reserve(n int) []byte {
	if b.n+n > Capacity {
		panic(fmt.Sprintf("update: list of %d bytes exceeds buffer capacity %d", b.n+n, Capacity))
	}
	out := b.data[b.n : b.n+n]
	b.n += n
	return out
}

// Begin opens a horizontal run of length bytes at addr and returns its payload
// for the caller to fill
func (b *Buffer) Begin(addr uint16, length int) []byte {
	return b.begin(addr, length, Horizontal)
}

// BeginVertical opens a vertical run of length bytes at addr
func (b *Buffer) BeginVertical(addr uint16, length int) []byte {
	return b.begin(addr, length, Vertical)
}

func (b *Buffer) begin(addr uint16, length int, direction byte) []byte {
	if length <= 0 || length > 0xFF {
		panic(fmt.Sprintf("update: run length %d out of range", length))
	}
	prefix := b.reserve(PrefixLength)
	prefix[0] = byte(addr>>8)&0x3F | direction
	prefix[1] = byte(addr)
	prefix[2] = byte(length)
	return b.reserve(length)
}

// Put appends a single byte write
func (b *Buffer) Put(addr uint16, value byte) {
	entry := b.reserve(3)
	entry[0] = byte(addr>>8) & 0x3F
	entry[1] = byte(addr)
	entry[2] = value
}

// Terminate closes the list
func (b *Buffer) Terminate() {
	b.reserve(1)[0] = EOF
}

// Bytes returns the list built so far
func (b *Buffer) Bytes() []byte {
	return b.data[:b.n]
}

// Entry is one decoded write
type Entry struct {
	Address  uint16
	Vertical bool
	Data     []byte
}

// Decode walks a terminated update list, calling fn for every entry
func Decode(list []byte, fn func(Entry)) error {
	for pos := 0; ; {
		if pos >= len(list) {
			return ErrUnterminated
		}
		head := list[pos]
		if head == EOF {
			return nil
		}
		if pos+3 > len(list) {
			return ErrTruncated
		}
		addr := uint16(head&0x3F)<<8 | uint16(list[pos+1])

		if head&(Horizontal|Vertical) == 0 {
			fn(Entry{Address: addr, Data: list[pos+2 : pos+3]})
			pos += 3
			continue
		}

		length := int(list[pos+2])
		start := pos + PrefixLength
		if start+length > len(list) {
			return ErrTruncated
		}
		fn(Entry{Address: addr, Vertical: head&Vertical != 0, Data: list[start : start+length]})
		pos = start + length
	}
}
