package eip

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Identity is the parsed ListIdentity identity item.
type Identity struct {
	EncapsulationVersion uint16
	VendorID             uint16
	DeviceType           uint16
	ProductCode          uint16
	RevisionMajor        byte
	RevisionMinor        byte
	Status               uint16
	SerialNumber         uint32
	ProductName          string
	State                byte

	IP   net.IP
	Port uint16
}

// Revision returns the firmware revision as "major.minor".
func (id *Identity) Revision() string {
	return fmt.Sprintf("%d.%d", id.RevisionMajor, id.RevisionMinor)
}

// ListIdentity asks the connected target to identify itself using
// encapsulation command 0x63 over the established TCP connection.
// This is not broadcast discovery. Returns zero or more Identity
// records (usually exactly one).
func (e *Client) ListIdentity() ([]Identity, error) {
	if e == nil {
		return nil, fmt.Errorf("ListIdentity: nil client")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn == nil {
		return nil, fmt.Errorf("ListIdentity: not connected")
	}

	// ListIdentity conventionally uses session handle 0.
	req := Encap{Command: CmdListIdentity}

	if err := e.sendEncap(req); err != nil {
		return nil, fmt.Errorf("ListIdentity: send: %w", err)
	}
	resp, err := e.recvEncap()
	if err != nil {
		return nil, fmt.Errorf("ListIdentity: recv: %w", err)
	}
	if resp.Status != 0 {
		return nil, fmt.Errorf("ListIdentity: encapsulation status=0x%08x", resp.Status)
	}

	idents, err := parseIdentityPayload(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("ListIdentity: parse payload: %w", err)
	}

	return idents, nil
}

// parseIdentityPayload parses the CPF-style item list of a ListIdentity
// reply into Identity records.
func parseIdentityPayload(p []byte) ([]Identity, error) {
	if len(p) < 2 {
		return nil, fmt.Errorf("payload too short: %d", len(p))
	}

	count := int(binary.LittleEndian.Uint16(p[0:2]))
	off := 2

	idents := make([]Identity, 0, count)
	for i := 0; i < count; i++ {
		if off+4 > len(p) {
			return nil, fmt.Errorf("truncated item header at item %d", i)
		}
		itemType := binary.LittleEndian.Uint16(p[off : off+2])
		itemLen := int(binary.LittleEndian.Uint16(p[off+2 : off+4]))
		off += 4

		if off+itemLen > len(p) {
			return nil, fmt.Errorf("truncated item data at item %d", i)
		}
		itemData := p[off : off+itemLen]
		off += itemLen

		if itemType != ItemListIdentityReply {
			continue
		}

		id, err := parseIdentityItem(itemData)
		if err != nil {
			return nil, err
		}
		idents = append(idents, id)
	}

	return idents, nil
}

func parseIdentityItem(b []byte) (Identity, error) {
	// Fixed fields up to the product name length occupy 33 bytes.
	if len(b) < 33 {
		return Identity{}, fmt.Errorf("identity item too short: %d", len(b))
	}
	off := 0

	encapVer := binary.LittleEndian.Uint16(b[off : off+2])
	off += 2

	// Socket address (16 bytes): family(2), port(2), addr(4), zero(8).
	// Port and address are big-endian per the BSD sockaddr convention.
	sock := b[off : off+16]
	off += 16

	port := binary.BigEndian.Uint16(sock[2:4])
	ip := net.IPv4(sock[4], sock[5], sock[6], sock[7])

	vendor := binary.LittleEndian.Uint16(b[off : off+2])
	off += 2
	devType := binary.LittleEndian.Uint16(b[off : off+2])
	off += 2
	prodCode := binary.LittleEndian.Uint16(b[off : off+2])
	off += 2

	revMaj := b[off]
	revMin := b[off+1]
	off += 2

	status := binary.LittleEndian.Uint16(b[off : off+2])
	off += 2

	serial := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4

	nameLen := int(b[off])
	off++

	if off+nameLen > len(b) {
		return Identity{}, fmt.Errorf("product name truncated: need %d bytes, have %d", nameLen, len(b)-off)
	}
	name := string(b[off : off+nameLen])
	off += nameLen

	if off >= len(b) {
		return Identity{}, fmt.Errorf("missing state byte")
	}
	state := b[off]

	return Identity{
		EncapsulationVersion: encapVer,
		VendorID:             vendor,
		DeviceType:           devType,
		ProductCode:          prodCode,
		RevisionMajor:        revMaj,
		RevisionMinor:        revMin,
		Status:               status,
		SerialNumber:         serial,
		ProductName:          name,
		State:                state,
		IP:                   ip,
		Port:                 port,
	}, nil
}
