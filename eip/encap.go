package eip

import (
	"encoding/binary"
	"fmt"
)

// Encapsulation commands used by this client.
const (
	CmdNop               uint16 = 0x00
	CmdListIdentity      uint16 = 0x63
	CmdRegisterSession   uint16 = 0x65
	CmdUnRegisterSession uint16 = 0x66
	CmdSendRRData        uint16 = 0x6F
)

// Encap is the 24-byte EtherNet/IP encapsulation header plus payload.
// All fields are little-endian on the wire.
type Encap struct {
	Command       uint16
	Length        uint16
	SessionHandle uint32
	Status        uint32
	Context       [8]byte
	Options       uint32
	Data          []byte
}

// CommandData wraps a CPF packet for the SendRRData command:
// interface handle (4), timeout (2), then the packet bytes.
type CommandData struct {
	InterfaceHandle uint32
	Timeout         uint16
	Packet          []byte
}

// Bytes returns the little-endian wire encoding of the encapsulation frame.
func (m *Encap) Bytes() []byte {
	buf := make([]byte, 0, 24+len(m.Data))
	buf = binary.LittleEndian.AppendUint16(buf, m.Command)
	buf = binary.LittleEndian.AppendUint16(buf, m.Length)
	buf = binary.LittleEndian.AppendUint32(buf, m.SessionHandle)
	buf = binary.LittleEndian.AppendUint32(buf, m.Status)
	buf = append(buf, m.Context[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, m.Options)
	buf = append(buf, m.Data...)
	return buf
}

// Bytes returns the little-endian wire encoding of the command data wrapper.
func (r *CommandData) Bytes() []byte {
	raw := binary.LittleEndian.AppendUint32(nil, r.InterfaceHandle)
	raw = binary.LittleEndian.AppendUint16(raw, r.Timeout)
	raw = append(raw, r.Packet...)
	return raw
}

// ParseCommandData parses the SendRRData payload wrapper.
func ParseCommandData(raw []byte) (*CommandData, error) {
	if len(raw) < 6 {
		return nil, fmt.Errorf("ParseCommandData: raw bytes too short: minimum 6, got %d", len(raw))
	}

	return &CommandData{
		InterfaceHandle: binary.LittleEndian.Uint32(raw[:4]),
		Timeout:         binary.LittleEndian.Uint16(raw[4:6]),
		Packet:          raw[6:],
	}, nil
}
