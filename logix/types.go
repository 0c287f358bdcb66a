package logix

import (
	"fmt"
	"strings"
)

// Logix CIP data type codes. These appear in symbol listings and in the
// DataType field of a read response; the caller interprets the raw
// bytes accordingly.
const (
	TypeBOOL  uint16 = 0x00C1 // 1 byte (0 or 1)
	TypeSINT  uint16 = 0x00C2 // 1 byte signed
	TypeINT   uint16 = 0x00C3 // 2 bytes signed
	TypeDINT  uint16 = 0x00C4 // 4 bytes signed
	TypeLINT  uint16 = 0x00C5 // 8 bytes signed
	TypeUSINT uint16 = 0x00C6 // 1 byte unsigned
	TypeUINT  uint16 = 0x00C7 // 2 bytes unsigned
	TypeUDINT uint16 = 0x00C8 // 4 bytes unsigned
	TypeULINT uint16 = 0x00C9 // 8 bytes unsigned
	TypeREAL  uint16 = 0x00CA // 4 bytes IEEE 754 float
	TypeLREAL uint16 = 0x00CB // 8 bytes IEEE 754 double

	// String types
	TypeSTRING      uint16 = 0x00D0 // Logix STRING (4-byte len + 82 chars)
	TypeShortSTRING uint16 = 0x00DA // 1-byte len + chars

	// Bit string types (arrays of bits)
	TypeBitString8  uint16 = 0x00D1
	TypeBitString16 uint16 = 0x00D2
	TypeBitString32 uint16 = 0x00D3
)

// Symbol type flags packed into the upper bits of a type code.
const (
	// Bit 15 set = structure/UDT; the lower 12 bits carry the
	// template instance ID.
	TypeStructureMask uint16 = 0x8000

	// Bits 13-14 carry the array dimension count (1, 2, or 3).
	TypeArray1D   uint16 = 0x2000
	TypeArray2D   uint16 = 0x4000
	TypeArray3D   uint16 = 0x6000
	TypeArrayMask uint16 = 0x6000

	// Bit 12 set = system/reserved type.
	TypeSystemMask uint16 = 0x1000
)

// BaseType strips the structure/array/system flags from a type code.
func BaseType(typeCode uint16) uint16 {
	return typeCode & 0x0FFF
}

// IsStructure returns true if the type code represents a structure/UDT.
func IsStructure(typeCode uint16) bool {
	return (typeCode & TypeStructureMask) != 0
}

// IsArray returns true if the type code carries array dimension flags.
func IsArray(typeCode uint16) bool {
	return (typeCode & TypeArrayMask) != 0
}

// IsSystemType returns true if the type code carries the system flag.
// System types are internal controller bookkeeping, not user data.
func IsSystemType(typeCode uint16) bool {
	return !IsStructure(typeCode) && (typeCode&TypeSystemMask) != 0
}

// ArrayDimensions returns the number of array dimensions (0 to 3).
func ArrayDimensions(typeCode uint16) int {
	switch typeCode & TypeArrayMask {
	case TypeArray1D:
		return 1
	case TypeArray2D:
		return 2
	case TypeArray3D:
		return 3
	default:
		return 0
	}
}

// TemplateID extracts the template instance ID from a structure type
// code. Returns 0 if the type is not a structure.
func TemplateID(typeCode uint16) uint16 {
	if !IsStructure(typeCode) {
		return 0
	}
	return typeCode & 0x0FFF
}

// TypeSize returns the byte size of atomic types.
// Returns 0 for structures, strings, or unknown types.
func TypeSize(typeCode uint16) int {
	switch BaseType(typeCode) {
	case TypeBOOL, TypeSINT, TypeUSINT:
		return 1
	case TypeINT, TypeUINT:
		return 2
	case TypeDINT, TypeUDINT, TypeREAL:
		return 4
	case TypeLINT, TypeULINT, TypeLREAL:
		return 8
	default:
		return 0
	}
}

// TypeName returns a human-readable name for the data type.
// Structures without a resolved template render as a hex fallback.
func TypeName(typeCode uint16) string {
	if IsStructure(typeCode) {
		name := fmt.Sprintf("STRUCT_0x%04X", TemplateID(typeCode))
		if IsArray(typeCode) {
			return name + "[]"
		}
		return name
	}

	var name string
	switch BaseType(typeCode) {
	case TypeBOOL:
		name = "BOOL"
	case TypeSINT:
		name = "SINT"
	case TypeINT:
		name = "INT"
	case TypeDINT:
		name = "DINT"
	case TypeLINT:
		name = "LINT"
	case TypeUSINT:
		name = "USINT"
	case TypeUINT:
		name = "UINT"
	case TypeUDINT:
		name = "UDINT"
	case TypeULINT:
		name = "ULINT"
	case TypeREAL:
		name = "REAL"
	case TypeLREAL:
		name = "LREAL"
	case TypeSTRING:
		name = "STRING"
	case TypeShortSTRING:
		name = "SHORT_STRING"
	case TypeBitString32:
		name = "BIT_ARRAY"
	default:
		name = fmt.Sprintf("0x%04X", typeCode)
	}

	if IsArray(typeCode) {
		return name + "[]"
	}
	return name
}

// TypeCodeFromName returns the type code for a given atomic type name.
func TypeCodeFromName(name string) (uint16, bool) {
	switch strings.ToUpper(name) {
	case "BOOL":
		return TypeBOOL, true
	case "SINT":
		return TypeSINT, true
	case "INT":
		return TypeINT, true
	case "DINT":
		return TypeDINT, true
	case "LINT":
		return TypeLINT, true
	case "USINT":
		return TypeUSINT, true
	case "UINT":
		return TypeUINT, true
	case "UDINT":
		return TypeUDINT, true
	case "ULINT":
		return TypeULINT, true
	case "REAL":
		return TypeREAL, true
	case "LREAL":
		return TypeLREAL, true
	case "STRING":
		return TypeSTRING, true
	default:
		return 0, false
	}
}
