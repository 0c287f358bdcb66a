package logix

import (
	"encoding/binary"
	"fmt"
	"strings"

	"tagscan/cip"
)

// TagInfo contains metadata about a tag from the controller's symbol
// table.
type TagInfo struct {
	Name       string // Full tag name (e.g. "MyTag" or "Program:MainProgram.MyTag")
	TypeCode   uint16 // CIP data type code
	Instance   uint32 // Symbol instance ID (used for pagination)
	Dimensions []int  // Array dimension sizes (nil for scalar)
}

// IsProgram returns true if this tag represents a program entry rather
// than a program-scoped tag. Program entries look like
// "Program:MainProgram"; program-scoped tags carry a dot after the
// program name.
func (t TagInfo) IsProgram() bool {
	if !strings.HasPrefix(t.Name, "Program:") {
		return false
	}
	return !strings.Contains(t.Name[8:], ".")
}

// IsSystem returns true for system/internal entries (Map:, Task:, Cxn:).
func (t TagInfo) IsSystem() bool {
	return strings.HasPrefix(t.Name, "Map:") ||
		strings.HasPrefix(t.Name, "Cxn:") ||
		strings.HasPrefix(t.Name, "Task:")
}

// IsRoutine returns true if this is a routine entry, not a readable tag.
func (t TagInfo) IsRoutine() bool {
	return strings.Contains(t.Name, "Routine:")
}

// IsReadable returns true if this tag holds data that can be read or
// written.
func (t TagInfo) IsReadable() bool {
	return !t.IsProgram() && !t.IsRoutine() && !t.IsSystem()
}

// TypeName returns the human-readable type name.
func (t TagInfo) TypeName() string {
	return TypeName(t.TypeCode)
}

// ListTags returns all controller-scope tags and program entries.
// Use ListProgramTags for tags within a specific program.
func (p *PLC) ListTags() ([]TagInfo, error) {
	return p.listSymbols("", 0)
}

// ListPrograms returns the program entries from the controller, in the
// form "Program:MainProgram".
func (p *PLC) ListPrograms() ([]string, error) {
	tags, err := p.ListTags()
	if err != nil {
		return nil, err
	}

	var programs []string
	seen := make(map[string]bool)
	for _, t := range tags {
		if t.IsProgram() && !seen[t.Name] {
			seen[t.Name] = true
			programs = append(programs, t.Name)
		}
	}
	return programs, nil
}

// ListProgramTags returns all tags within one program. Accepts either
// "MainProgram" or the full "Program:MainProgram" form.
func (p *PLC) ListProgramTags(programName string) ([]TagInfo, error) {
	if !strings.HasPrefix(programName, "Program:") {
		programName = "Program:" + programName
	}
	tags, err := p.listSymbols(programName, 0)
	if err != nil {
		return nil, err
	}

	// Program-scoped listings come back with bare names.
	prefix := programName + "."
	for i := range tags {
		if !strings.HasPrefix(tags[i].Name, "Program:") {
			tags[i].Name = prefix + tags[i].Name
		}
	}
	return tags, nil
}

// ListAllTags returns controller-scope tags, program entries, and the
// tags inside every program. Programs that cannot be browsed are
// skipped.
func (p *PLC) ListAllTags() ([]TagInfo, error) {
	baseTags, err := p.ListTags()
	if err != nil {
		return nil, fmt.Errorf("ListAllTags: %w", err)
	}

	var programs []string
	seen := make(map[string]bool)
	for _, t := range baseTags {
		if t.IsProgram() && !seen[t.Name] {
			seen[t.Name] = true
			programs = append(programs, t.Name)
		}
	}

	allTags := make([]TagInfo, 0, len(baseTags))
	allTags = append(allTags, baseTags...)

	for _, prog := range programs {
		progTags, err := p.ListProgramTags(prog)
		if err != nil {
			continue
		}
		allTags = append(allTags, progTags...)
	}

	return allTags, nil
}

// ListDataTags returns only readable data tags, excluding programs,
// routines, and system entries.
func (p *PLC) ListDataTags() ([]TagInfo, error) {
	allTags, err := p.ListAllTags()
	if err != nil {
		return nil, err
	}

	var dataTags []TagInfo
	for _, t := range allTags {
		if t.IsReadable() {
			dataTags = append(dataTags, t)
		}
	}
	return dataTags, nil
}

// listSymbols queries the Symbol Object (class 0x6B) for tag metadata.
// scope is "" for controller scope or "Program:Name" for program scope.
func (p *PLC) listSymbols(scope string, startInstance uint32) ([]TagInfo, error) {
	if p == nil || p.Connection == nil {
		return nil, fmt.Errorf("listSymbols: nil plc or connection")
	}

	var allTags []TagInfo
	instance := startInstance

	// Pagination loop, bounded to prevent runaway requests.
	for page := 0; page < 1000; page++ {
		tags, lastInstance, hasMore, err := p.listSymbolsPage(scope, instance)
		if err != nil {
			return nil, err
		}

		allTags = append(allTags, tags...)

		if !hasMore || len(tags) == 0 {
			break
		}

		// Next page resumes after the last instance received.
		instance = lastInstance + 1
	}

	return allTags, nil
}

// listSymbolsPage fetches one page of symbols.
func (p *PLC) listSymbolsPage(scope string, startInstance uint32) (tags []TagInfo, lastInstance uint32, hasMore bool, err error) {
	path, err := p.buildSymbolPath(scope, startInstance)
	if err != nil {
		return nil, 0, false, fmt.Errorf("buildSymbolPath: %w", err)
	}

	// Request attributes: name (1), type (2), dimensions (8).
	attrData := []byte{
		0x03, 0x00, // Attribute count: 3
		0x01, 0x00, // Attribute 1: Symbol Name
		0x02, 0x00, // Attribute 2: Symbol Type
		0x08, 0x00, // Attribute 8: Array Dimensions
	}

	reqData := make([]byte, 0, 2+len(path)+len(attrData))
	reqData = append(reqData, SvcGetInstanceAttributeList)
	reqData = append(reqData, path.WordLen())
	reqData = append(reqData, path...)
	reqData = append(reqData, attrData...)

	cipResp, err := p.sendCipRequest(reqData)
	if err != nil {
		return nil, 0, false, err
	}

	if len(cipResp) < 4 {
		return nil, 0, false, fmt.Errorf("response too short: %d bytes", len(cipResp))
	}

	replyService := cipResp[0]
	status := cipResp[2]
	addlStatusSize := cipResp[3]

	if replyService != (SvcGetInstanceAttributeList | 0x80) {
		return nil, 0, false, fmt.Errorf("unexpected reply service: 0x%02X", replyService)
	}

	// Partial transfer means more pages are available.
	hasMore = status == StatusPartialTransfer
	if status != StatusSuccess && status != StatusPartialTransfer {
		return nil, 0, false, parseCipError(status, addlStatusSize, cipResp[4:])
	}

	dataStart := 4 + int(addlStatusSize)*2
	if dataStart > len(cipResp) {
		return nil, 0, hasMore, nil
	}

	tags, lastInstance = parseSymbolListResponse(cipResp[dataStart:])
	return tags, lastInstance, hasMore, nil
}

// buildSymbolPath builds the EPath for symbol listing, prefixed with
// the program scope when present.
func (p *PLC) buildSymbolPath(scope string, startInstance uint32) (cip.Path, error) {
	builder := cip.EPath()

	if scope != "" {
		builder = builder.Symbol(scope)
	}

	builder = builder.Class(ClassSymbolObject)

	if startInstance <= 0xFF {
		builder = builder.Instance(byte(startInstance))
	} else if startInstance <= 0xFFFF {
		builder = builder.Instance16(uint16(startInstance))
	} else {
		return nil, fmt.Errorf("instance %d exceeds 16-bit maximum", startInstance)
	}

	return builder.Build()
}

// parseSymbolListResponse parses the Get Instance Attribute List reply.
// Per-tag format:
//   - Instance ID (4 bytes)
//   - Name length (2 bytes) + name
//   - Symbol type (2 bytes)
//   - Array dimensions (3 x 4 bytes)
func parseSymbolListResponse(data []byte) (tags []TagInfo, lastInstance uint32) {
	i := 0

	for i < len(data) {
		// instance(4) + nameLen(2) + type(2) + dims(12) minimum
		if i+20 > len(data) {
			break
		}

		instance := binary.LittleEndian.Uint32(data[i : i+4])
		i += 4

		nameLen := int(binary.LittleEndian.Uint16(data[i : i+2]))
		i += 2

		if i+nameLen+14 > len(data) {
			break
		}

		name := string(data[i : i+nameLen])
		i += nameLen

		typeCode := binary.LittleEndian.Uint16(data[i : i+2])
		i += 2

		var rawDims [3]uint32
		for d := 0; d < 3; d++ {
			rawDims[d] = binary.LittleEndian.Uint32(data[i : i+4])
			i += 4
		}

		if name == "" || instance == 0 {
			continue
		}

		// The type flags say how many of the three dimension slots are
		// meaningful.
		var dims []int
		for d := 0; d < ArrayDimensions(typeCode); d++ {
			dims = append(dims, int(rawDims[d]))
		}

		tags = append(tags, TagInfo{
			Name:       name,
			TypeCode:   typeCode,
			Instance:   instance,
			Dimensions: dims,
		})

		lastInstance = instance
	}

	return tags, lastInstance
}
