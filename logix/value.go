package logix

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// TagValue is the result of reading a tag, with type conversion
// helpers. It is a stateless result object.
type TagValue struct {
	Name     string // Tag name as requested
	DataType uint16 // CIP data type code
	Bytes    []byte // Raw tag value bytes (little-endian)
	Count    int    // Number of elements (0 or 1 for scalar, >1 for array)
	Error    error  // Per-tag error (nil if successful)
}

// Bool returns the tag value as a boolean.
func (v *TagValue) Bool() (bool, error) {
	if v.Error != nil {
		return false, v.Error
	}
	if BaseType(v.DataType) != TypeBOOL {
		return false, fmt.Errorf("type mismatch: expected BOOL, got %s", v.TypeName())
	}
	if len(v.Bytes) < 1 {
		return false, fmt.Errorf("insufficient data for BOOL")
	}
	return v.Bytes[0] != 0, nil
}

// Int returns the tag value as a signed 64-bit integer. Works for
// SINT, INT, DINT, and LINT.
func (v *TagValue) Int() (int64, error) {
	if v.Error != nil {
		return 0, v.Error
	}

	switch BaseType(v.DataType) {
	case TypeSINT:
		if len(v.Bytes) < 1 {
			return 0, fmt.Errorf("insufficient data for SINT")
		}
		return int64(int8(v.Bytes[0])), nil
	case TypeINT:
		if len(v.Bytes) < 2 {
			return 0, fmt.Errorf("insufficient data for INT")
		}
		return int64(int16(binary.LittleEndian.Uint16(v.Bytes))), nil
	case TypeDINT:
		if len(v.Bytes) < 4 {
			return 0, fmt.Errorf("insufficient data for DINT")
		}
		return int64(int32(binary.LittleEndian.Uint32(v.Bytes))), nil
	case TypeLINT:
		if len(v.Bytes) < 8 {
			return 0, fmt.Errorf("insufficient data for LINT")
		}
		return int64(binary.LittleEndian.Uint64(v.Bytes)), nil
	default:
		return 0, fmt.Errorf("type mismatch: expected signed integer, got %s", v.TypeName())
	}
}

// Uint returns the tag value as an unsigned 64-bit integer. Works for
// USINT, UINT, UDINT, and ULINT.
func (v *TagValue) Uint() (uint64, error) {
	if v.Error != nil {
		return 0, v.Error
	}

	switch BaseType(v.DataType) {
	case TypeUSINT:
		if len(v.Bytes) < 1 {
			return 0, fmt.Errorf("insufficient data for USINT")
		}
		return uint64(v.Bytes[0]), nil
	case TypeUINT:
		if len(v.Bytes) < 2 {
			return 0, fmt.Errorf("insufficient data for UINT")
		}
		return uint64(binary.LittleEndian.Uint16(v.Bytes)), nil
	case TypeUDINT:
		if len(v.Bytes) < 4 {
			return 0, fmt.Errorf("insufficient data for UDINT")
		}
		return uint64(binary.LittleEndian.Uint32(v.Bytes)), nil
	case TypeULINT:
		if len(v.Bytes) < 8 {
			return 0, fmt.Errorf("insufficient data for ULINT")
		}
		return binary.LittleEndian.Uint64(v.Bytes), nil
	default:
		return 0, fmt.Errorf("type mismatch: expected unsigned integer, got %s", v.TypeName())
	}
}

// Float returns the tag value as a 64-bit float. Works for REAL and
// LREAL.
func (v *TagValue) Float() (float64, error) {
	if v.Error != nil {
		return 0, v.Error
	}

	switch BaseType(v.DataType) {
	case TypeREAL:
		if len(v.Bytes) < 4 {
			return 0, fmt.Errorf("insufficient data for REAL")
		}
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(v.Bytes))), nil
	case TypeLREAL:
		if len(v.Bytes) < 8 {
			return 0, fmt.Errorf("insufficient data for LREAL")
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(v.Bytes)), nil
	default:
		return 0, fmt.Errorf("type mismatch: expected float, got %s", v.TypeName())
	}
}

// String returns the tag value as a string. Works for STRING and
// SHORT_STRING.
func (v *TagValue) String() (string, error) {
	if v.Error != nil {
		return "", v.Error
	}

	switch BaseType(v.DataType) {
	case TypeSTRING:
		// Logix STRING: 4-byte length prefix + character data.
		if len(v.Bytes) < 4 {
			return "", fmt.Errorf("insufficient data for STRING")
		}
		strLen := binary.LittleEndian.Uint32(v.Bytes[:4])
		if int(strLen) > len(v.Bytes)-4 {
			strLen = uint32(len(v.Bytes) - 4)
		}
		return string(v.Bytes[4 : 4+strLen]), nil
	case TypeShortSTRING:
		if len(v.Bytes) < 1 {
			return "", fmt.Errorf("insufficient data for SHORT_STRING")
		}
		strLen := int(v.Bytes[0])
		if strLen > len(v.Bytes)-1 {
			strLen = len(v.Bytes) - 1
		}
		return string(v.Bytes[1 : 1+strLen]), nil
	default:
		return "", fmt.Errorf("type mismatch: expected string, got %s", v.TypeName())
	}
}

// GoValue returns the tag value converted to an appropriate Go type:
//   - BOOL -> bool (or []bool)
//   - SINT, INT, DINT, LINT -> int64 (or []int64)
//   - USINT, UINT, UDINT, ULINT -> uint64 (or []uint64)
//   - REAL, LREAL -> float64 (or []float64)
//   - STRING, SHORT_STRING -> string (or []string)
//   - structures and unknown types -> []int (raw bytes)
//
// Returns nil if the value carries an error.
func (v *TagValue) GoValue() interface{} {
	if v.Error != nil {
		return nil
	}

	baseType := BaseType(v.DataType)

	isArray := IsArray(v.DataType) || v.Count > 1
	if !isArray {
		// Multiple elements without array flags still decode as an array.
		elemSize := TypeSize(baseType)
		if elemSize > 0 && len(v.Bytes) > elemSize {
			isArray = true
		}
	}

	if isArray {
		return v.parseArray(baseType)
	}
	return v.parseScalar(baseType)
}

// IsStructureType returns true if this value holds a structure/UDT.
func (v *TagValue) IsStructureType() bool {
	return IsStructure(v.DataType)
}

// parseScalar decodes a single value for the given base type.
func (v *TagValue) parseScalar(baseType uint16) interface{} {
	switch baseType {
	case TypeBOOL:
		if len(v.Bytes) >= 1 {
			return v.Bytes[0] != 0
		}
	case TypeSINT:
		if len(v.Bytes) >= 1 {
			return int64(int8(v.Bytes[0]))
		}
	case TypeINT:
		if len(v.Bytes) >= 2 {
			return int64(int16(binary.LittleEndian.Uint16(v.Bytes)))
		}
	case TypeDINT:
		if len(v.Bytes) >= 4 {
			return int64(int32(binary.LittleEndian.Uint32(v.Bytes)))
		}
	case TypeLINT:
		if len(v.Bytes) >= 8 {
			return int64(binary.LittleEndian.Uint64(v.Bytes))
		}
	case TypeUSINT:
		if len(v.Bytes) >= 1 {
			return uint64(v.Bytes[0])
		}
	case TypeUINT:
		if len(v.Bytes) >= 2 {
			return uint64(binary.LittleEndian.Uint16(v.Bytes))
		}
	case TypeUDINT:
		if len(v.Bytes) >= 4 {
			return uint64(binary.LittleEndian.Uint32(v.Bytes))
		}
	case TypeULINT:
		if len(v.Bytes) >= 8 {
			return binary.LittleEndian.Uint64(v.Bytes)
		}
	case TypeREAL:
		if len(v.Bytes) >= 4 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(v.Bytes)))
		}
	case TypeLREAL:
		if len(v.Bytes) >= 8 {
			return math.Float64frombits(binary.LittleEndian.Uint64(v.Bytes))
		}
	case TypeSTRING, TypeShortSTRING:
		if val, err := v.String(); err == nil {
			return val
		}
	}

	return v.bytesToIntArray()
}

// parseArray decodes the raw bytes as an array of the given base type.
func (v *TagValue) parseArray(baseType uint16) interface{} {
	switch baseType {
	case TypeBOOL:
		result := make([]bool, len(v.Bytes))
		for i, b := range v.Bytes {
			result[i] = b != 0
		}
		return result

	case TypeSINT:
		result := make([]int64, len(v.Bytes))
		for i, b := range v.Bytes {
			result[i] = int64(int8(b))
		}
		return result

	case TypeUSINT:
		result := make([]uint64, len(v.Bytes))
		for i, b := range v.Bytes {
			result[i] = uint64(b)
		}
		return result

	case TypeINT:
		count := len(v.Bytes) / 2
		result := make([]int64, count)
		for i := 0; i < count; i++ {
			result[i] = int64(int16(binary.LittleEndian.Uint16(v.Bytes[i*2:])))
		}
		return result

	case TypeUINT:
		count := len(v.Bytes) / 2
		result := make([]uint64, count)
		for i := 0; i < count; i++ {
			result[i] = uint64(binary.LittleEndian.Uint16(v.Bytes[i*2:]))
		}
		return result

	case TypeDINT:
		count := len(v.Bytes) / 4
		result := make([]int64, count)
		for i := 0; i < count; i++ {
			result[i] = int64(int32(binary.LittleEndian.Uint32(v.Bytes[i*4:])))
		}
		return result

	case TypeUDINT:
		count := len(v.Bytes) / 4
		result := make([]uint64, count)
		for i := 0; i < count; i++ {
			result[i] = uint64(binary.LittleEndian.Uint32(v.Bytes[i*4:]))
		}
		return result

	case TypeLINT:
		count := len(v.Bytes) / 8
		result := make([]int64, count)
		for i := 0; i < count; i++ {
			result[i] = int64(binary.LittleEndian.Uint64(v.Bytes[i*8:]))
		}
		return result

	case TypeULINT:
		count := len(v.Bytes) / 8
		result := make([]uint64, count)
		for i := 0; i < count; i++ {
			result[i] = binary.LittleEndian.Uint64(v.Bytes[i*8:])
		}
		return result

	case TypeREAL:
		count := len(v.Bytes) / 4
		result := make([]float64, count)
		for i := 0; i < count; i++ {
			result[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(v.Bytes[i*4:])))
		}
		return result

	case TypeLREAL:
		count := len(v.Bytes) / 8
		result := make([]float64, count)
		for i := 0; i < count; i++ {
			result[i] = math.Float64frombits(binary.LittleEndian.Uint64(v.Bytes[i*8:]))
		}
		return result

	case TypeShortSTRING:
		var result []string
		data := v.Bytes
		for len(data) > 0 {
			strLen := int(data[0])
			data = data[1:]
			if strLen > len(data) {
				strLen = len(data)
			}
			result = append(result, string(data[:strLen]))
			data = data[strLen:]
		}
		return result

	case TypeSTRING:
		var result []string
		data := v.Bytes
		for len(data) >= 4 {
			strLen := int(binary.LittleEndian.Uint32(data[:4]))
			data = data[4:]
			if strLen > len(data) {
				strLen = len(data)
			}
			result = append(result, string(data[:strLen]))
			data = data[strLen:]
		}
		return result

	default:
		return v.bytesToIntArray()
	}
}

// bytesToIntArray converts the raw bytes to []int for JSON-friendly
// output of undecodable types.
func (v *TagValue) bytesToIntArray() []int {
	out := make([]int, len(v.Bytes))
	for i, b := range v.Bytes {
		out[i] = int(b)
	}
	return out
}

// TypeName returns the human-readable type name for this tag.
func (v *TagValue) TypeName() string {
	return TypeName(v.DataType)
}

// EncodeValue encodes a Go value to the wire bytes for the given
// atomic type code. Accepts native Go numerics, bool, and strings
// (strings are also parsed into numeric types).
func EncodeValue(typeCode uint16, value interface{}) ([]byte, error) {
	baseType := BaseType(typeCode)

	switch baseType {
	case TypeBOOL:
		b, err := toBool(value)
		if err != nil {
			return nil, err
		}
		if b {
			return []byte{0xFF}, nil
		}
		return []byte{0x00}, nil

	case TypeSINT, TypeUSINT:
		n, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		return []byte{byte(n)}, nil

	case TypeINT, TypeUINT:
		n, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint16(nil, uint16(n)), nil

	case TypeDINT, TypeUDINT:
		n, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint32(nil, uint32(n)), nil

	case TypeLINT, TypeULINT:
		n, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint64(nil, uint64(n)), nil

	case TypeREAL:
		f, err := toFloat64(value)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint32(nil, math.Float32bits(float32(f))), nil

	case TypeLREAL:
		f, err := toFloat64(value)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint64(nil, math.Float64bits(f)), nil

	default:
		return nil, fmt.Errorf("EncodeValue: unsupported type %s", TypeName(typeCode))
	}
}

func toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		n, err := toInt64(value)
		if err != nil {
			return false, fmt.Errorf("cannot convert %T to BOOL", value)
		}
		return n != 0, nil
	}
}

func toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", value)
	}
}

func toFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		n, err := toInt64(value)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %T to float", value)
		}
		return float64(n), nil
	}
}
