package eip

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncapBytes(t *testing.T) {
	msg := Encap{
		Command:       CmdRegisterSession,
		Length:        4,
		SessionHandle: 0x11223344,
		Data:          []byte{1, 0, 0, 0},
	}

	raw := msg.Bytes()

	if len(raw) != 28 {
		t.Fatalf("expected 28 bytes (24 header + 4 data), got %d", len(raw))
	}
	if got := binary.LittleEndian.Uint16(raw[0:2]); got != CmdRegisterSession {
		t.Errorf("command = 0x%04X, want 0x%04X", got, CmdRegisterSession)
	}
	if got := binary.LittleEndian.Uint16(raw[2:4]); got != 4 {
		t.Errorf("length = %d, want 4", got)
	}
	if got := binary.LittleEndian.Uint32(raw[4:8]); got != 0x11223344 {
		t.Errorf("session = 0x%08X, want 0x11223344", got)
	}
	if !bytes.Equal(raw[24:], []byte{1, 0, 0, 0}) {
		t.Errorf("data = % X, want 01 00 00 00", raw[24:])
	}
}

func TestParseCommandData(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		raw := []byte{0, 0, 0, 0, 0, 0, 0xAA, 0xBB}
		cd, err := ParseCommandData(raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cd.InterfaceHandle != 0 || cd.Timeout != 0 {
			t.Errorf("header fields not zero: %+v", cd)
		}
		if !bytes.Equal(cd.Packet, []byte{0xAA, 0xBB}) {
			t.Errorf("packet = % X, want AA BB", cd.Packet)
		}
	})

	t.Run("too short", func(t *testing.T) {
		if _, err := ParseCommandData([]byte{0, 0, 0}); err == nil {
			t.Error("expected error for short input")
		}
	})
}

func TestCommonPacketRoundTrip(t *testing.T) {
	pkt := UnconnectedRequest([]byte{0x4C, 0x02, 0x91, 0x03, 'F', 'o', 'o', 0x00})

	raw := pkt.Bytes()
	parsed, err := ParseCommonPacket(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(parsed.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(parsed.Items))
	}
	if parsed.Items[0].TypeID != ItemNullAddress {
		t.Errorf("item 0 type = 0x%04X, want null address", parsed.Items[0].TypeID)
	}
	if len(parsed.Items[0].Data) != 0 {
		t.Errorf("null address item has %d data bytes", len(parsed.Items[0].Data))
	}
	if parsed.Items[1].TypeID != ItemUnconnectedMessage {
		t.Errorf("item 1 type = 0x%04X, want unconnected message", parsed.Items[1].TypeID)
	}
	if !bytes.Equal(parsed.Items[1].Data, pkt.Items[1].Data) {
		t.Errorf("item 1 data mismatch: % X", parsed.Items[1].Data)
	}
}

func TestParseCommonPacketErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"one byte", []byte{1}},
		{"count without items", []byte{2, 0}},
		{"truncated item header", []byte{1, 0, 0xB2, 0x00}},
		{"truncated item data", []byte{1, 0, 0xB2, 0x00, 0x10, 0x00, 0xAA}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseCommonPacket(tt.raw); err == nil {
				t.Errorf("expected error for %q", tt.name)
			}
		})
	}
}

func TestNewClientAddressParsing(t *testing.T) {
	tests := []struct {
		address  string
		wantAddr string
	}{
		{"192.168.1.10", "192.168.1.10:44818"},
		{"192.168.1.10:2222", "192.168.1.10:2222"},
		{"plc.example.com", "plc.example.com:44818"},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			c := NewClient(tt.address)
			if got := c.Addr(); got != tt.wantAddr {
				t.Errorf("Addr() = %q, want %q", got, tt.wantAddr)
			}
		})
	}
}

// buildIdentityItem assembles a ListIdentity identity item payload.
func buildIdentityItem(t *testing.T, productName string) []byte {
	t.Helper()

	item := make([]byte, 0, 34+len(productName))
	item = binary.LittleEndian.AppendUint16(item, 1) // encapsulation version

	sock := make([]byte, 16)
	binary.BigEndian.PutUint16(sock[2:4], 44818)
	copy(sock[4:8], []byte{192, 168, 1, 10})
	item = append(item, sock...)

	item = binary.LittleEndian.AppendUint16(item, 1)    // vendor: Rockwell
	item = binary.LittleEndian.AppendUint16(item, 0x0E) // device type: PLC
	item = binary.LittleEndian.AppendUint16(item, 0x97) // product code
	item = append(item, 32, 11)                         // revision 32.11
	item = binary.LittleEndian.AppendUint16(item, 0x30) // status
	item = binary.LittleEndian.AppendUint32(item, 0xDEADBEEF)
	item = append(item, byte(len(productName)))
	item = append(item, productName...)
	item = append(item, 0x03) // state

	payload := binary.LittleEndian.AppendUint16(nil, 1)
	payload = binary.LittleEndian.AppendUint16(payload, ItemListIdentityReply)
	payload = binary.LittleEndian.AppendUint16(payload, uint16(len(item)))
	payload = append(payload, item...)
	return payload
}

func TestParseIdentityPayload(t *testing.T) {
	payload := buildIdentityItem(t, "1756-L83E/B")

	idents, err := parseIdentityPayload(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idents) != 1 {
		t.Fatalf("expected 1 identity, got %d", len(idents))
	}

	id := idents[0]
	if id.VendorID != 1 {
		t.Errorf("vendor = %d, want 1", id.VendorID)
	}
	if id.ProductName != "1756-L83E/B" {
		t.Errorf("product name = %q", id.ProductName)
	}
	if id.Revision() != "32.11" {
		t.Errorf("revision = %q, want 32.11", id.Revision())
	}
	if id.SerialNumber != 0xDEADBEEF {
		t.Errorf("serial = 0x%08X", id.SerialNumber)
	}
	if id.IP.String() != "192.168.1.10" {
		t.Errorf("ip = %s", id.IP)
	}
	if id.Port != 44818 {
		t.Errorf("port = %d", id.Port)
	}
}

func TestParseIdentityPayloadTruncated(t *testing.T) {
	payload := buildIdentityItem(t, "1756-L83E/B")

	// Claim an item length longer than the remaining bytes.
	binary.LittleEndian.PutUint16(payload[4:6], uint16(len(payload)))

	if _, err := parseIdentityPayload(payload); err == nil {
		t.Error("expected error for truncated item")
	}
}
