package eip

// Common Packet Format framing per ODVA v1.4.

import (
	"encoding/binary"
	"fmt"
)

// CPF item type identifiers.
const (
	ItemNullAddress        uint16 = 0x00
	ItemListIdentityReply  uint16 = 0x0C
	ItemConnectedAddress   uint16 = 0xA1
	ItemConnectedData      uint16 = 0xB1
	ItemUnconnectedMessage uint16 = 0xB2
	ItemSockAddrInfoOtoT   uint16 = 0x8000
	ItemSockAddrInfoTtoO   uint16 = 0x8001
)

// CommonPacket is the item list carried inside SendRRData.
type CommonPacket struct {
	Items []Item
}

// Item is a single CPF address or data item.
type Item struct {
	TypeID uint16
	Data   []byte
}

// Bytes returns the little-endian wire encoding: item count then items.
func (p *CommonPacket) Bytes() []byte {
	raw := binary.LittleEndian.AppendUint16(nil, uint16(len(p.Items)))
	for i := range p.Items {
		raw = append(raw, p.Items[i].Bytes()...)
	}
	return raw
}

// Bytes returns the little-endian wire encoding of a single item.
func (item *Item) Bytes() []byte {
	raw := binary.LittleEndian.AppendUint16(nil, item.TypeID)
	raw = binary.LittleEndian.AppendUint16(raw, uint16(len(item.Data)))
	raw = append(raw, item.Data...)
	return raw
}

// UnconnectedRequest builds the two-item CPF packet used for unconnected
// messaging: a null address item followed by the CIP request data.
func UnconnectedRequest(cipRequest []byte) CommonPacket {
	return CommonPacket{
		Items: []Item{
			{TypeID: ItemNullAddress},
			{TypeID: ItemUnconnectedMessage, Data: cipRequest},
		},
	}
}

// ParseCommonPacket parses a CPF item list from a raw byte stream.
func ParseCommonPacket(raw []byte) (*CommonPacket, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("ParseCommonPacket: raw bytes too short: minimum 2, got %d", len(raw))
	}

	itemCount := binary.LittleEndian.Uint16(raw[:2])
	raw = raw[2:]

	if itemCount > 0 && len(raw) == 0 {
		return nil, fmt.Errorf("ParseCommonPacket: item count is nonzero but no bytes remain")
	}

	var items []Item
	for i := uint16(0); i < itemCount; i++ {
		if len(raw) < 4 {
			return nil, fmt.Errorf("ParseCommonPacket: truncated item header at item %d: have %d bytes", i, len(raw))
		}

		typeID := binary.LittleEndian.Uint16(raw[:2])
		length := binary.LittleEndian.Uint16(raw[2:4])

		need := int(4 + length)
		if len(raw) < need {
			return nil, fmt.Errorf("ParseCommonPacket: insufficient data for item %d: need %d bytes, have %d", i, need, len(raw))
		}

		items = append(items, Item{TypeID: typeID, Data: raw[4 : 4+length]})
		raw = raw[4+length:]
	}

	return &CommonPacket{Items: items}, nil
}
