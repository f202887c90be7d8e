// Package format reads the binary archive layout:
//
//	[magic 4]["ARCH", either byte order]
//	[version 1]
//	record*: [nameLen 4][name][originalSize 8][processedSize 8][method 1][payload]
//
// All multi-byte integers use the byte order detected from the magic.
package format

import (
	"encoding/binary"
	"fmt"

	archexerrors "github.com/flaneur2020/archex/archex/errors"
)

const (
	// Magic is "ARCH" read as a big-endian uint32.
	Magic uint32 = 0x41524348

	// HeaderSize is the magic plus the version byte.
	HeaderSize = 5
)

// ByteOrder is the byte order an archive was written in.
type ByteOrder int

const (
	BigEndian ByteOrder = iota + 1
	LittleEndian
)

func (o ByteOrder) String() string {
	switch o {
	case BigEndian:
		return "big-endian"
	case LittleEndian:
		return "little-endian"
	}
	return fmt.Sprintf("ByteOrder(%d)", int(o))
}

// Binary returns the encoding/binary order used to assemble integers.
func (o ByteOrder) Binary() binary.ByteOrder {
	if o == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Header is the fixed archive header.
type Header struct {
	Magic   uint32
	Order   ByteOrder
	Version byte
}

// ParseHeader validates the magic, fixes the byte order and reads the
// version. The version is reported, not enforced.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, archexerrors.ErrArchiveTooSmall.
			WithDetail("length", len(data)).
			WithDetail("need", HeaderSize)
	}

	order := BigEndian
	if binary.BigEndian.Uint32(data[0:4]) != Magic {
		if binary.LittleEndian.Uint32(data[0:4]) != Magic {
			return nil, archexerrors.ErrInvalidMagic.
				WithDetail("magic", fmt.Sprintf("%x", data[0:4]))
		}
		order = LittleEndian
	}

	return &Header{
		Magic:   Magic,
		Order:   order,
		Version: data[4],
	}, nil
}
