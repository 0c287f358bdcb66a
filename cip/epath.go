// Package cip builds encoded CIP paths (EPaths) for explicit messaging.
package cip

import (
	"encoding/binary"
	"fmt"
)

type LogicalType byte
type LogicalFormat byte
type SegmentType byte

// Segment type and logical segment encodings per ODVA v1.4.
const (
	SegPort              SegmentType = 0b000
	SegLogical           SegmentType = 0b001
	SegNetwork           SegmentType = 0b010
	SegSymbolic          SegmentType = 0b011
	SegDataConstructed   SegmentType = 0b101
	SegDataElementary    SegmentType = 0b110

	LogicalClassID         LogicalType = 0b000
	LogicalInstanceID      LogicalType = 0b001
	LogicalMemberID        LogicalType = 0b010
	LogicalConnectionPoint LogicalType = 0b011
	LogicalAttributeID     LogicalType = 0b100

	Format8Bit  LogicalFormat = 0b00
	Format16Bit LogicalFormat = 0b01
	Format32Bit LogicalFormat = 0b10
)

// Path is an encoded path used in CIP requests.
type Path []byte

// WordLen returns the path length in 16-bit words.
func (p Path) WordLen() byte {
	return byte(len(p) / 2)
}

// Builder assembles an EPath fluently. The first error sticks and is
// returned from Build.
type Builder struct {
	err    error
	path   Path
	padded bool
}

// EPath starts a new padded path builder. Padded paths are what the
// Logix request formats expect.
func EPath() *Builder {
	return &Builder{padded: true}
}

func (b *Builder) add(p Path, err error) *Builder {
	if b.err != nil {
		return b
	}
	if err != nil {
		b.err = err
		return b
	}
	b.path = append(b.path, p...)
	return b
}

// Class appends an 8-bit class logical segment.
func (b *Builder) Class(id byte) *Builder {
	return b.add(logicalSegment(LogicalClassID, Format8Bit, []byte{id}, b.padded))
}

// Instance appends an 8-bit instance logical segment.
func (b *Builder) Instance(id byte) *Builder {
	return b.add(logicalSegment(LogicalInstanceID, Format8Bit, []byte{id}, b.padded))
}

// Instance16 appends a 16-bit instance logical segment.
func (b *Builder) Instance16(id uint16) *Builder {
	return b.add(logicalSegment(LogicalInstanceID, Format16Bit, binary.LittleEndian.AppendUint16(nil, id), b.padded))
}

// Instance32 appends a 32-bit instance logical segment.
func (b *Builder) Instance32(id uint32) *Builder {
	return b.add(logicalSegment(LogicalInstanceID, Format32Bit, binary.LittleEndian.AppendUint32(nil, id), b.padded))
}

// Attribute appends an 8-bit attribute logical segment.
func (b *Builder) Attribute(id byte) *Builder {
	return b.add(logicalSegment(LogicalAttributeID, Format8Bit, []byte{id}, b.padded))
}

// Symbol appends symbolic segments for a tag path.
// The period separates segments; the colon is NOT a separator, so
// "Program:MainProgram" stays one segment. Array indices such as
// "MyArray[5]" become member segments.
func (b *Builder) Symbol(tag string) *Builder {
	parts := splitTagPath(tag)
	for _, part := range parts {
		if part.isIndex {
			b = b.add(memberSegment(part.index))
		} else {
			b = b.add(symbolicSegment([]byte(part.name)))
		}
	}
	return b
}

// Build returns a copy of the assembled path, padded to an even byte
// count when the builder is padded.
func (b *Builder) Build() (Path, error) {
	if b.err != nil {
		return nil, b.err
	}

	out := append(Path{}, b.path...)

	if b.padded && len(out)%2 != 0 {
		out = append(out, 0x00)
	}
	return out, nil
}

// logicalSegment encodes a logical segment. Padded 16- and 32-bit
// formats carry an internal pad byte before the value for word
// alignment, so padding must be decided at encode time.
func logicalSegment(logicalType LogicalType, format LogicalFormat, value []byte, padded bool) (Path, error) {
	switch format {
	case Format8Bit:
		if len(value) != 1 {
			return nil, fmt.Errorf("logicalSegment: 8-bit format requires 1 byte, got %d", len(value))
		}
	case Format16Bit:
		if len(value) != 2 {
			return nil, fmt.Errorf("logicalSegment: 16-bit format requires 2 bytes, got %d", len(value))
		}
	case Format32Bit:
		if len(value) != 4 {
			return nil, fmt.Errorf("logicalSegment: 32-bit format requires 4 bytes, got %d", len(value))
		}
	default:
		return nil, fmt.Errorf("logicalSegment: unsupported logical format %v", format)
	}

	capHint := 1 + len(value)
	if padded && format != Format8Bit {
		capHint++
	}
	out := make(Path, 1, capHint)

	out[0] |= (byte(SegLogical) & 0b111) << 5
	out[0] |= (byte(logicalType) & 0b111) << 2
	out[0] |= byte(format) & 0b11

	// Pad byte 0x00 precedes the value for padded 16/32-bit segments.
	if padded && format != Format8Bit {
		out = append(out, 0x00)
	}

	out = append(out, value...)

	return out, nil
}

// tagPart is one component of a tag path: a name or an array index.
type tagPart struct {
	name    string
	index   uint32
	isIndex bool
}

// splitTagPath parses a tag path like "Program:Main.Tag[5].Member" into
// name and index parts.
func splitTagPath(tag string) []tagPart {
	var parts []tagPart
	current := ""

	for i := 0; i < len(tag); i++ {
		ch := tag[i]
		switch ch {
		case '.':
			if current != "" {
				parts = append(parts, tagPart{name: current})
				current = ""
			}
		case '[':
			if current != "" {
				parts = append(parts, tagPart{name: current})
				current = ""
			}
			j := i + 1
			for j < len(tag) && tag[j] != ']' {
				j++
			}
			if j > i+1 {
				var idx uint32
				for _, c := range tag[i+1 : j] {
					if c >= '0' && c <= '9' {
						idx = idx*10 + uint32(c-'0')
					}
				}
				parts = append(parts, tagPart{index: idx, isIndex: true})
			}
			i = j // skip past ']'
		case ']':
			// handled in '[' case
		default:
			current += string(ch)
		}
	}

	if current != "" {
		parts = append(parts, tagPart{name: current})
	}

	return parts
}

// memberSegment encodes a member/element segment for array indexing.
// 16- and 32-bit forms carry a pad byte for alignment.
func memberSegment(index uint32) (Path, error) {
	switch {
	case index <= 0xFF:
		return Path{0x28, byte(index)}, nil
	case index <= 0xFFFF:
		return Path{0x29, 0x00, byte(index), byte(index >> 8)}, nil
	default:
		return Path{0x2A, 0x00, byte(index), byte(index >> 8), byte(index >> 16), byte(index >> 24)}, nil
	}
}

// symbolicSegment encodes an extended ANSI symbolic segment (0x91),
// padded to an even byte count.
func symbolicSegment(symbol []byte) (Path, error) {
	if len(symbol) == 0 {
		return nil, fmt.Errorf("symbolicSegment: empty symbol")
	}
	if len(symbol) > 255 {
		return nil, fmt.Errorf("symbolicSegment: symbol too long, maximum 255 bytes")
	}
	out := Path{0x91, byte(len(symbol))}
	out = append(out, symbol...)
	if len(out)%2 != 0 {
		out = append(out, 0x00)
	}
	return out, nil
}
