package logix

import (
	"encoding/binary"
	"fmt"
	"strings"

	"tagscan/cip"
	"tagscan/logging"
)

// Template represents a UDT/AOI structure definition fetched from the
// controller's Template Object.
type Template struct {
	ID          uint16           // Template instance ID
	Name        string           // Structure name (e.g. "MyUDT")
	Size        uint32           // Size in bytes of structure instances
	Members     []TemplateMember // Member definitions, in declaration order
	MemberMap   map[string]int   // Visible member name -> index in Members
	RawHandle   uint16           // Structure handle from the controller
	MemberCount uint16           // Number of members including hidden ones
}

// TemplateMember is a single member within a UDT.
type TemplateMember struct {
	Name      string // Member name
	Type      uint16 // Type code (0x8xxx for nested structures)
	Offset    uint32 // Byte offset within the structure
	ArrayDims []int  // Array dimensions (nil for scalar)
	Hidden    bool   // Internal member, not part of the user-visible shape
}

// IsStructure returns true if this member is a nested structure/UDT.
func (m *TemplateMember) IsStructure() bool {
	return IsStructure(m.Type)
}

// IsArray returns true if this member is an array.
func (m *TemplateMember) IsArray() bool {
	return len(m.ArrayDims) > 0
}

// ElementCount returns the total number of elements (1 for scalar).
func (m *TemplateMember) ElementCount() int {
	if len(m.ArrayDims) == 0 {
		return 1
	}
	count := 1
	for _, d := range m.ArrayDims {
		count *= d
	}
	return count
}

// GetMember returns a visible member by name, or nil.
func (t *Template) GetMember(name string) *TemplateMember {
	if t.MemberMap == nil {
		return nil
	}
	if idx, ok := t.MemberMap[name]; ok {
		return &t.Members[idx]
	}
	return nil
}

// templateAttributes holds the Template Object attributes needed to
// size and interpret the definition read.
type templateAttributes struct {
	ObjectDefinitionSize uint32 // Attribute 4: definition size in 32-bit words
	StructureSize        uint32 // Attribute 5: instance size in bytes
	MemberCount          uint16 // Attribute 2
	StructureHandle      uint16 // Attribute 1
}

// GetTemplate fetches and parses a UDT template. The templateID is the
// lower 12 bits of a structure type code.
//
// Three steps:
//  1. Get Attribute List (0x03) for sizes and member count
//  2. Read the raw definition via Read Tag (0x4C) with offset/length
//  3. Parse member entries and the name string table
func (p *PLC) GetTemplate(templateID uint16) (*Template, error) {
	if templateID == 0 {
		return nil, fmt.Errorf("invalid template ID 0")
	}

	logging.DebugLog("logix", "GetTemplate: fetching template 0x%04X", templateID)

	attrs, err := p.getTemplateAttributes(templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get template attributes: %w", err)
	}

	// Bytes to read: (definition words * 4) - 23, rounded up to a
	// 4-byte boundary.
	bytesToRead := (attrs.ObjectDefinitionSize * 4) - 23
	bytesToRead = ((bytesToRead + 3) / 4) * 4

	defData, err := p.readTemplateData(templateID, bytesToRead)
	if err != nil {
		return nil, fmt.Errorf("failed to read template definition: %w", err)
	}

	tmpl := &Template{
		ID:          templateID,
		Size:        attrs.StructureSize,
		MemberCount: attrs.MemberCount,
		RawHandle:   attrs.StructureHandle,
		MemberMap:   make(map[string]int),
	}

	if err := tmpl.parseDefinition(defData, int(attrs.MemberCount)); err != nil {
		return nil, fmt.Errorf("failed to parse template definition: %w", err)
	}

	logging.DebugLog("logix", "GetTemplate: parsed template %q with %d visible members",
		tmpl.Name, len(tmpl.MemberMap))
	return tmpl, nil
}

// templatePath builds the EPath for a Template Object instance.
func templatePath(templateID uint16) (cip.Path, error) {
	builder := cip.EPath().Class(ClassTemplateObject)
	if templateID <= 0xFF {
		builder = builder.Instance(byte(templateID))
	} else {
		builder = builder.Instance16(templateID)
	}
	return builder.Build()
}

// getTemplateAttributes fetches template attributes with Get Attribute
// List (0x03).
func (p *PLC) getTemplateAttributes(templateID uint16) (*templateAttributes, error) {
	path, err := templatePath(templateID)
	if err != nil {
		return nil, err
	}

	// Attribute 5 carries the instance size as a UDINT; attribute 3 is
	// a UINT fallback on firmware that doesn't report 5.
	attrData := []byte{
		0x05, 0x00, // Attribute count = 5
		0x05, 0x00, // Attribute 5: structure size (UDINT)
		0x04, 0x00, // Attribute 4: definition size (32-bit words)
		0x03, 0x00, // Attribute 3: member byte count (UINT, fallback)
		0x02, 0x00, // Attribute 2: member count
		0x01, 0x00, // Attribute 1: structure handle
	}

	reqData := make([]byte, 0, 2+len(path)+len(attrData))
	reqData = append(reqData, SvcGetAttributeList)
	reqData = append(reqData, path.WordLen())
	reqData = append(reqData, path...)
	reqData = append(reqData, attrData...)

	cipResp, err := p.sendCipRequest(reqData)
	if err != nil {
		return nil, err
	}

	if len(cipResp) < 4 {
		return nil, fmt.Errorf("response too short: %d bytes", len(cipResp))
	}

	replyService := cipResp[0]
	status := cipResp[2]
	addlStatusSize := cipResp[3]

	if replyService != (SvcGetAttributeList | 0x80) {
		return nil, fmt.Errorf("unexpected reply service: 0x%02X", replyService)
	}
	if status != StatusSuccess {
		return nil, parseCipError(status, addlStatusSize, cipResp[4:])
	}

	dataStart := 4 + int(addlStatusSize)*2
	if len(cipResp) < dataStart+2 {
		return nil, fmt.Errorf("response missing attribute data")
	}
	data := cipResp[dataStart:]

	// [attr_count:2] then [attr_id:2][status:2][value:n] per attribute.
	attrCount := binary.LittleEndian.Uint16(data[0:2])

	attrs := &templateAttributes{}
	offset := 2

	for i := 0; i < int(attrCount) && offset+4 <= len(data); i++ {
		attrID := binary.LittleEndian.Uint16(data[offset : offset+2])
		attrStatus := binary.LittleEndian.Uint16(data[offset+2 : offset+4])
		offset += 4

		// Value width depends on the attribute: 1-3 are UINT, 4-5 UDINT.
		width := 2
		if attrID == 4 || attrID == 5 {
			width = 4
		}
		if offset+width > len(data) {
			break
		}

		if attrStatus != 0 {
			offset += width
			continue
		}

		switch attrID {
		case 1:
			attrs.StructureHandle = binary.LittleEndian.Uint16(data[offset : offset+2])
		case 2:
			attrs.MemberCount = binary.LittleEndian.Uint16(data[offset : offset+2])
		case 3:
			if attrs.StructureSize == 0 {
				attrs.StructureSize = uint32(binary.LittleEndian.Uint16(data[offset : offset+2]))
			}
		case 4:
			attrs.ObjectDefinitionSize = binary.LittleEndian.Uint32(data[offset : offset+4])
		case 5:
			attrs.StructureSize = binary.LittleEndian.Uint32(data[offset : offset+4])
		}
		offset += width
	}

	if attrs.ObjectDefinitionSize == 0 {
		return nil, fmt.Errorf("failed to get object definition size")
	}

	return attrs, nil
}

// readTemplateData reads the raw template definition bytes with Read
// Tag (0x4C) requests carrying [offset:4][bytes:2] payloads.
func (p *PLC) readTemplateData(templateID uint16, totalBytes uint32) ([]byte, error) {
	path, err := templatePath(templateID)
	if err != nil {
		return nil, err
	}

	var allData []byte
	offset := uint32(0)

	for offset < totalBytes {
		chunkSize := totalBytes - offset
		if chunkSize > 4000 {
			chunkSize = 4000
		}

		reqPayload := make([]byte, 6)
		binary.LittleEndian.PutUint32(reqPayload[0:4], offset)
		binary.LittleEndian.PutUint16(reqPayload[4:6], uint16(chunkSize))

		reqData := make([]byte, 0, 2+len(path)+len(reqPayload))
		reqData = append(reqData, SvcReadTag)
		reqData = append(reqData, path.WordLen())
		reqData = append(reqData, path...)
		reqData = append(reqData, reqPayload...)

		cipResp, err := p.sendCipRequest(reqData)
		if err != nil {
			if len(allData) > 0 {
				break
			}
			return nil, err
		}

		if len(cipResp) < 4 {
			if len(allData) > 0 {
				break
			}
			return nil, fmt.Errorf("response too short: %d bytes", len(cipResp))
		}

		replyService := cipResp[0]
		status := cipResp[2]
		addlStatusSize := cipResp[3]

		if replyService != (SvcReadTag | 0x80) {
			return nil, fmt.Errorf("unexpected reply service: 0x%02X", replyService)
		}

		if status != StatusSuccess && status != StatusPartialTransfer {
			if len(allData) > 0 {
				break
			}
			return nil, parseCipError(status, addlStatusSize, cipResp[4:])
		}

		dataStart := 4 + int(addlStatusSize)*2
		if dataStart >= len(cipResp) {
			break
		}

		// Unlike a normal Read Tag reply, definition data has no type
		// code prefix; member entries start immediately.
		chunkData := cipResp[dataStart:]
		allData = append(allData, chunkData...)
		offset += uint32(len(chunkData))

		if status == StatusSuccess {
			break
		}
		if len(chunkData) == 0 {
			break
		}
	}

	if len(allData) == 0 {
		return nil, fmt.Errorf("no definition data received")
	}

	return allData, nil
}

// parseDefinition parses the raw template definition: memberCount
// 8-byte member entries followed by a null-terminated string table
// (template name first, then member names).
func (t *Template) parseDefinition(data []byte, memberCount int) error {
	if memberCount <= 0 {
		return fmt.Errorf("invalid member count: %d", memberCount)
	}

	const memberInfoSize = 8

	if len(data) < memberCount*memberInfoSize {
		// Trust the data over the reported count.
		memberCount = len(data) / memberInfoSize
		if memberCount == 0 {
			return fmt.Errorf("data too short: %d bytes", len(data))
		}
	}

	members := make([]TemplateMember, 0, memberCount)
	for i := 0; i < memberCount; i++ {
		entry := data[i*memberInfoSize : i*memberInfoSize+8]

		// Bytes 0-1: array element count (0 for scalar)
		// Bytes 2-3: type code with struct/array flags
		// Bytes 4-7: byte offset within the structure
		arraySize := binary.LittleEndian.Uint16(entry[0:2])
		typeVal := binary.LittleEndian.Uint16(entry[2:4])
		memberOffset := binary.LittleEndian.Uint32(entry[4:8])

		member := TemplateMember{
			Type:   typeVal,
			Offset: memberOffset,
		}

		if IsArray(typeVal) && arraySize > 0 {
			member.ArrayDims = []int{int(arraySize)}
		}

		// Type 0 marks a hidden/internal entry.
		if typeVal&0x0FFF == 0 {
			member.Hidden = true
		}

		members = append(members, member)
	}

	// String table: template name first, then one name per member.
	nameDataStart := len(members) * memberInfoSize
	if nameDataStart < len(data) {
		names := parseNullTerminatedStrings(data[nameDataStart:], len(members)+1)

		if len(names) > 0 {
			// The template name carries ";n" metadata after a semicolon.
			templateName := names[0]
			if idx := strings.Index(templateName, ";"); idx >= 0 {
				templateName = templateName[:idx]
			}
			t.Name = templateName
		}

		for i := 0; i < len(members) && i+1 < len(names); i++ {
			members[i].Name = names[i+1]
			// Double underscore and colon prefixes mark internal members.
			name := members[i].Name
			if strings.HasPrefix(name, "__") || strings.HasPrefix(name, ":") ||
				(len(name) > 0 && name[0] < 32) {
				members[i].Hidden = true
			}
		}
	}

	t.Members = members
	for i, m := range members {
		if m.Name != "" && !m.Hidden {
			t.MemberMap[m.Name] = i
		}
	}

	return nil
}

// parseNullTerminatedStrings extracts up to maxCount printable
// null-terminated strings from data.
func parseNullTerminatedStrings(data []byte, maxCount int) []string {
	var result []string
	var current []byte

	for _, b := range data {
		if b == 0 {
			if len(current) > 0 {
				result = append(result, string(current))
				current = nil
				if len(result) >= maxCount {
					break
				}
			}
		} else if b >= 32 && b < 127 {
			current = append(current, b)
		}
	}

	if len(current) > 0 && len(result) < maxCount {
		result = append(result, string(current))
	}

	return result
}

// String renders the template for debugging.
func (t *Template) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Template %q (ID: %d, Size: %d bytes)\n", t.Name, t.ID, t.Size))
	for _, m := range t.Members {
		if m.Hidden {
			continue
		}
		typeStr := TypeName(m.Type)
		if m.IsArray() {
			typeStr += fmt.Sprintf("[%d]", m.ArrayDims[0])
		}
		sb.WriteString(fmt.Sprintf("  +%04X: %s %s\n", m.Offset, m.Name, typeStr))
	}
	return sb.String()
}
