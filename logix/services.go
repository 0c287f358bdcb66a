package logix

// CIP common services
const (
	// Get Attribute List - read selected attributes from an object instance
	SvcGetAttributeList byte = 0x03

	// Get Attribute Single - read one attribute from an object instance
	SvcGetAttributeSingle byte = 0x0E

	// Unconnected Send - routes an embedded request via the Connection Manager
	SvcUnconnectedSend byte = 0x52
)

// Logix-specific CIP services (Allen-Bradley extensions to CIP).
const (
	// Read Tag - reads tag data by symbolic name
	SvcReadTag byte = 0x4C

	// Write Tag - writes tag data by symbolic name
	SvcWriteTag byte = 0x4D

	// Read Tag Fragmented - chunked reads for large data
	SvcReadTagFragmented byte = 0x52

	// Write Tag Fragmented - chunked writes for large data
	SvcWriteTagFragmented byte = 0x53

	// Get Instance Attribute List - tag browsing on the Symbol Object
	SvcGetInstanceAttributeList byte = 0x55
)

// Well-known CIP class codes used by this package.
const (
	ClassIdentity          byte = 0x01
	ClassConnectionManager byte = 0x06
	ClassSymbolObject      byte = 0x6B
	ClassTemplateObject    byte = 0x6C
)

// CIP general status codes
const (
	StatusSuccess           byte = 0x00
	StatusPathSegmentError  byte = 0x04
	StatusPathUnknown       byte = 0x05
	StatusPartialTransfer   byte = 0x06 // More data available (pagination)
	StatusServiceNotSupport byte = 0x08
	StatusInvalidAttrValue  byte = 0x09
	StatusAttrNotSettable   byte = 0x0E
	StatusPrivilegeViolat   byte = 0x0F
	StatusDeviceStateConfl  byte = 0x10
	StatusReplyDataTooLarge byte = 0x11
	StatusNotEnoughData     byte = 0x13
	StatusAttrNotSupported  byte = 0x14
	StatusTooMuchData       byte = 0x15
	StatusObjectNotExist    byte = 0x16
	StatusGeneralError      byte = 0xFF
)

// Logix extended status codes (second status word)
const (
	ExtStatusIllegalType  uint16 = 0x2101 // Wrong data type for tag
	ExtStatusTagNotFound  uint16 = 0x2104 // Tag does not exist
	ExtStatusTagReadOnly  uint16 = 0x2105 // Cannot write to tag
	ExtStatusSizeTooSmall uint16 = 0x2107
	ExtStatusSizeTooLarge uint16 = 0x2108
	ExtStatusOffsetError  uint16 = 0x2109
)
