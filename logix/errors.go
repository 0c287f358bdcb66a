package logix

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// CipError carries a decoded CIP general/extended status pair.
type CipError struct {
	Status    byte
	ExtStatus uint16
}

func (e *CipError) Error() string {
	if e.ExtStatus != 0 {
		return fmt.Sprintf("CIP error: %s (0x%02X), extended: %s (0x%04X)",
			cipStatusName(e.Status), e.Status, cipExtStatusName(e.ExtStatus), e.ExtStatus)
	}
	return fmt.Sprintf("CIP error: %s (0x%02X)", cipStatusName(e.Status), e.Status)
}

// IsTagNotFound reports whether err is a CIP error indicating the
// addressed tag or path does not exist in the controller.
func IsTagNotFound(err error) bool {
	var ce *CipError
	if !errors.As(err, &ce) {
		return false
	}
	if ce.ExtStatus == ExtStatusTagNotFound {
		return true
	}
	return ce.Status == StatusPathSegmentError || ce.Status == StatusPathUnknown
}

// parseCipError constructs a CipError from response status bytes.
// addlData starts at the first additional status word.
func parseCipError(status byte, addlSize byte, addlData []byte) error {
	ce := &CipError{Status: status}
	if addlSize >= 1 && len(addlData) >= 2 {
		ce.ExtStatus = binary.LittleEndian.Uint16(addlData[:2])
	}
	return ce
}

func cipStatusName(status byte) string {
	switch status {
	case StatusSuccess:
		return "Success"
	case 0x01:
		return "Connection Failure"
	case 0x02:
		return "Resource Unavailable"
	case 0x03:
		return "Invalid Parameter"
	case StatusPathSegmentError:
		return "Path Segment Error"
	case StatusPathUnknown:
		return "Path Unknown"
	case StatusPartialTransfer:
		return "Partial Transfer"
	case 0x07:
		return "Connection Lost"
	case StatusServiceNotSupport:
		return "Service Not Supported"
	case StatusInvalidAttrValue:
		return "Invalid Attribute Value"
	case StatusObjectNotExist:
		return "Object Does Not Exist"
	case 0x0D:
		return "Object Already Exists"
	case StatusAttrNotSettable:
		return "Attribute Not Settable"
	case StatusPrivilegeViolat:
		return "Privilege Violation"
	case StatusDeviceStateConfl:
		return "Device State Conflict"
	case StatusReplyDataTooLarge:
		return "Reply Data Too Large"
	case StatusNotEnoughData:
		return "Not Enough Data"
	case StatusAttrNotSupported:
		return "Attribute Not Supported"
	case StatusTooMuchData:
		return "Too Much Data"
	case 0x1E:
		return "Invalid Symbolic"
	case 0x20:
		return "Invalid Parameter Type"
	case 0x26:
		return "Invalid Path"
	case StatusGeneralError:
		return "General Error"
	default:
		return fmt.Sprintf("Status 0x%02X", status)
	}
}

func cipExtStatusName(extStatus uint16) string {
	switch extStatus {
	case ExtStatusTagNotFound:
		return "Tag Not Found"
	case ExtStatusIllegalType:
		return "Illegal Data Type"
	case ExtStatusTagReadOnly:
		return "Tag Read Only"
	case ExtStatusSizeTooSmall:
		return "Size Too Small"
	case ExtStatusSizeTooLarge:
		return "Size Too Large"
	case ExtStatusOffsetError:
		return "Offset Out of Range"
	case 0x0100:
		return "Connection In Use"
	case 0x0107:
		return "Connection Not Found"
	case 0x0203:
		return "Connection Timed Out"
	case 0x0204:
		return "Unconnected Send Timed Out"
	case 0x0205:
		return "Parameter Error"
	default:
		return fmt.Sprintf("Extended Status 0x%04X", extStatus)
	}
}
