// Package session defines the controller-facing interface used by the
// scanner, poller, and CLI. The concrete implementation speaks
// EtherNet/IP to Logix controllers; tests substitute fakes.
package session

import (
	"context"
	"time"
)

// ControllerInfo describes the device behind an open session.
type ControllerInfo struct {
	Address     string // IP or host as configured
	Slot        byte   // CPU slot (0 for CompactLogix)
	ProductName string // e.g. "1756-L83E/B"
	Vendor      string
	Revision    string // firmware revision, e.g. "32.11"
	Serial      string // serial number, hex formatted
}

// RawTag is one symbol table entry exactly as the controller reports
// it, before any tree resolution.
type RawTag struct {
	Name       string // Full name including any "Program:x." prefix
	TypeCode   uint16 // CIP type code with struct/array/system flags
	Instance   uint32 // Symbol instance ID
	Dimensions []int  // Array dimension sizes (nil for scalar)
}

// RawMember is one member entry of a structure definition.
type RawMember struct {
	Name       string
	TypeCode   uint16
	Offset     uint32 // Byte offset within the structure
	Dimensions []int  // Array dimensions (nil for scalar)
	Hidden     bool   // Internal member, excluded from the visible shape
}

// RawDefinition is a structure (UDT/AOI) definition fetched from the
// controller, keyed by template ID.
type RawDefinition struct {
	ID      uint16
	Name    string
	Size    uint32 // Instance size in bytes
	Members []RawMember
}

// Value is the result of reading a single tag path.
type Value struct {
	Path     string      // Path as requested
	TypeCode uint16      // CIP type code from the reply
	TypeName string      // Human-readable type name
	Raw      []byte      // Wire bytes, little-endian
	Go       interface{} // Decoded Go value (nil for undecodable types)
	Time     time.Time   // When the read completed
}

// Session is an open conversation with one controller. Implementations
// are safe for sequential use; concurrent callers must serialize.
type Session interface {
	// Open dials the controller and registers a session.
	Open(ctx context.Context) error

	// Info returns identity details for the connected controller.
	Info(ctx context.Context) (*ControllerInfo, error)

	// Programs lists program names without the "Program:" prefix.
	Programs(ctx context.Context) ([]string, error)

	// ListTags enumerates symbols in one scope. An empty scope means
	// controller scope; otherwise pass a program name.
	ListTags(ctx context.Context, scope string) ([]RawTag, error)

	// TagDefinition fetches the structure definition behind a tag
	// whose type code carries the structure flag. Atomic tags return
	// a definition with no members.
	TagDefinition(ctx context.Context, tag RawTag) (*RawDefinition, error)

	// Read reads one tag by path ("Motor.Speed", "Data[3]",
	// "Program:Main.Count").
	Read(ctx context.Context, path string) (*Value, error)

	// Write writes a value to a tag path. The wire type is inferred
	// from the Go type.
	Write(ctx context.Context, path string, value interface{}) error

	// Close tears the session down. Safe to call more than once.
	Close() error
}
