package logix

import (
	"encoding/binary"
	"fmt"

	"tagscan/cip"
	"tagscan/eip"
	"tagscan/logging"
)

// PLC is a thin Logix-specific wrapper over the generic eip client.
// CIP/Logix request formats live here; eip stays transport + session +
// CPF framing.
type PLC struct {
	Address    string
	Connection *eip.Client

	// RoutePath controls how CIP requests are sent:
	// - nil or empty: send directly (CompactLogix, direct CPU connection)
	// - non-empty: route via the Connection Manager through this path
	RoutePath []byte
}

// Tag holds the raw data read from a controller tag. Decoding is
// deferred; the caller interprets Bytes according to DataType.
type Tag struct {
	Name     string // Tag name as requested
	DataType uint16 // CIP data type code
	Bytes    []byte // Raw tag value bytes (little-endian)
}

// NewPLC creates the PLC wrapper without connecting.
func NewPLC(address string) (*PLC, error) {
	if address == "" {
		return nil, fmt.Errorf("NewPLC: empty address")
	}
	return &PLC{Address: address, Connection: eip.NewClient(address)}, nil
}

// Connect dials and registers an EIP session.
func (p *PLC) Connect() error {
	if p == nil || p.Connection == nil {
		return fmt.Errorf("PLC.Connect: nil plc/client")
	}
	return p.Connection.Connect()
}

// Close disconnects best-effort.
func (p *PLC) Close() {
	if p == nil || p.Connection == nil {
		return
	}
	_ = p.Connection.Disconnect()
}

// SetRoutePath configures explicit routing for the PLC. Pass nil or an
// empty slice to disable routing for direct connections.
func (p *PLC) SetRoutePath(path []byte) {
	if p == nil {
		return
	}
	p.RoutePath = path
}

// SetSlotRouting configures routing through backplane port 1 to a
// specific slot. Use this for ControlLogix reached via an Ethernet
// module such as a 1756-EN2T.
func (p *PLC) SetSlotRouting(slot byte) {
	if p == nil {
		return
	}
	p.RoutePath = []byte{0x01, slot} // Port 1 (backplane), link address = slot
}

// ReadTag reads a single tag by symbolic name and returns raw bytes
// plus the data type. The element count defaults to 1.
func (p *PLC) ReadTag(tagName string) (*Tag, error) {
	return p.ReadTagCount(tagName, 1)
}

// ReadTagCount reads multiple elements of a tag. Arrays that exceed
// the packet size are read in chunks using array indexing.
func (p *PLC) ReadTagCount(tagName string, count uint16) (*Tag, error) {
	if p == nil || p.Connection == nil {
		return nil, fmt.Errorf("ReadTag: nil plc or connection")
	}
	if tagName == "" {
		return nil, fmt.Errorf("ReadTag: empty tag name")
	}

	tag, partial, err := p.readTagOnce(tagName, count)
	if err != nil {
		return nil, err
	}
	if !partial {
		return tag, nil
	}

	// Partial transfer. Continue with index-based chunked reads, which
	// work better for structure arrays than byte-offset fragments.
	return p.readTagChunked(tagName, count, tag)
}

// readTagOnce performs a single Read Tag request and reports whether
// the controller signalled a partial transfer.
func (p *PLC) readTagOnce(tagName string, count uint16) (*Tag, bool, error) {
	path, err := cip.EPath().Symbol(tagName).Build()
	if err != nil {
		return nil, false, fmt.Errorf("ReadTag: failed to build path: %w", err)
	}

	reqData := make([]byte, 0, 2+len(path)+2)
	reqData = append(reqData, SvcReadTag)
	reqData = append(reqData, path.WordLen())
	reqData = append(reqData, path...)
	reqData = binary.LittleEndian.AppendUint16(reqData, count)

	cipResp, err := p.sendCipRequest(reqData)
	if err != nil {
		return nil, false, fmt.Errorf("ReadTag: %w", err)
	}

	return parseReadTagResponse(cipResp, tagName, SvcReadTag)
}

// readTagChunked reads the remainder of a large array using array index
// syntax after an initial partial transfer.
func (p *PLC) readTagChunked(tagName string, totalCount uint16, initialTag *Tag) (*Tag, error) {
	if initialTag == nil || len(initialTag.Bytes) == 0 {
		return nil, fmt.Errorf("readTagChunked: no initial data to determine element size")
	}

	allBytes := append([]byte(nil), initialTag.Bytes...)

	// A single-element read pins down the element size.
	singleTag, _, err := p.readTagOnce(tagName+"[0]", 1)
	if err != nil || len(singleTag.Bytes) == 0 {
		return &Tag{Name: tagName, DataType: initialTag.DataType, Bytes: allBytes}, nil
	}
	elemSize := len(singleTag.Bytes)

	elementsRead := len(initialTag.Bytes) / elemSize

	// Conservative payload limit for unconnected messaging.
	elemsPerChunk := 480 / elemSize
	if elemsPerChunk < 1 {
		elemsPerChunk = 1
	}
	if elemsPerChunk > 100 {
		elemsPerChunk = 100
	}

	for elementsRead < int(totalCount) {
		remaining := int(totalCount) - elementsRead
		chunkSize := elemsPerChunk
		if chunkSize > remaining {
			chunkSize = remaining
		}

		chunkName := fmt.Sprintf("%s[%d]", tagName, elementsRead)
		chunkTag, _, err := p.readTagOnce(chunkName, uint16(chunkSize))
		if err != nil {
			break
		}

		got := len(chunkTag.Bytes) / elemSize
		if got == 0 {
			break // no progress, avoid looping forever
		}

		allBytes = append(allBytes, chunkTag.Bytes...)
		elementsRead += got
	}

	return &Tag{
		Name:     tagName,
		DataType: initialTag.DataType,
		Bytes:    allBytes,
	}, nil
}

// ReadTagFragmented reads a tag using the Read Tag Fragmented service
// (0x52), reassembling chunks by byte offset. Used for large
// structures that exceed the packet size.
func (p *PLC) ReadTagFragmented(tagName string, expectedSize uint32) (*Tag, error) {
	if p == nil || p.Connection == nil {
		return nil, fmt.Errorf("ReadTagFragmented: nil plc or connection")
	}

	path, err := cip.EPath().Symbol(tagName).Build()
	if err != nil {
		return nil, fmt.Errorf("ReadTagFragmented: failed to build path: %w", err)
	}

	var allBytes []byte
	var dataType uint16
	offset := uint32(0)

	for offset < expectedSize {
		// [Service 0x52] [PathSize] [Path] [ElementCount:2] [Offset:4]
		reqData := make([]byte, 0, 2+len(path)+6)
		reqData = append(reqData, SvcReadTagFragmented)
		reqData = append(reqData, path.WordLen())
		reqData = append(reqData, path...)
		reqData = binary.LittleEndian.AppendUint16(reqData, 1)
		reqData = binary.LittleEndian.AppendUint32(reqData, offset)

		cipResp, err := p.sendCipRequest(reqData)
		if err != nil {
			if len(allBytes) > 0 {
				break
			}
			return nil, fmt.Errorf("ReadTagFragmented: %w", err)
		}

		tag, partial, err := parseReadTagResponse(cipResp, tagName, SvcReadTagFragmented)
		if err != nil {
			if len(allBytes) > 0 {
				break
			}
			return nil, fmt.Errorf("ReadTagFragmented: %w", err)
		}

		if offset == 0 {
			dataType = tag.DataType
		}

		allBytes = append(allBytes, tag.Bytes...)
		offset += uint32(len(tag.Bytes))

		if !partial || len(tag.Bytes) == 0 {
			break
		}
	}

	return &Tag{
		Name:     tagName,
		DataType: dataType,
		Bytes:    allBytes,
	}, nil
}

// WriteTag writes raw bytes to a tag. The dataType must match the
// tag's type in the controller.
func (p *PLC) WriteTag(tagName string, dataType uint16, value []byte) error {
	return p.WriteTagCount(tagName, dataType, value, 1)
}

// WriteTagCount writes multiple elements to a tag.
func (p *PLC) WriteTagCount(tagName string, dataType uint16, value []byte, count uint16) error {
	if p == nil || p.Connection == nil {
		return fmt.Errorf("WriteTag: nil plc or connection")
	}
	if tagName == "" {
		return fmt.Errorf("WriteTag: empty tag name")
	}

	logging.DebugLog("logix", "WriteTagCount %s: dataType=0x%04X (%s), count=%d, data=%X",
		tagName, dataType, TypeName(dataType), count, value)

	path, err := cip.EPath().Symbol(tagName).Build()
	if err != nil {
		return fmt.Errorf("WriteTag: failed to build path: %w", err)
	}

	// [Service] [PathSize] [Path] [DataType:2] [Count:2] [Data]
	reqData := make([]byte, 0, 2+len(path)+4+len(value))
	reqData = append(reqData, SvcWriteTag)
	reqData = append(reqData, path.WordLen())
	reqData = append(reqData, path...)
	reqData = binary.LittleEndian.AppendUint16(reqData, dataType)
	reqData = binary.LittleEndian.AppendUint16(reqData, count)
	reqData = append(reqData, value...)

	cipResp, err := p.sendCipRequest(reqData)
	if err != nil {
		return fmt.Errorf("WriteTag: %w", err)
	}

	if err := parseWriteTagResponse(cipResp); err != nil {
		return fmt.Errorf("WriteTag: %w", err)
	}

	return nil
}

// buildRoutedRequest wraps a CIP request in an Unconnected_Send to the
// Connection Manager for routing to the target. The routePath tells
// the gateway how to reach it, e.g. {0x01, slot} for backplane port 1.
func buildRoutedRequest(cipRequest []byte, routePath []byte) []byte {
	// [Priority/Tick: 1] [Timeout Ticks: 1] [Message Size: 2] [Message]
	// [Pad: 1 if message size odd] [Route Path Words: 1] [Reserved: 1] [Route Path]
	ucmm := make([]byte, 0, 4+len(cipRequest)+1+2+len(routePath))
	ucmm = append(ucmm, 0x0A) // priority/time tick (160ms tick)
	ucmm = append(ucmm, 0x05) // timeout ticks (5 = 800ms)
	ucmm = binary.LittleEndian.AppendUint16(ucmm, uint16(len(cipRequest)))
	ucmm = append(ucmm, cipRequest...)
	if len(cipRequest)%2 != 0 {
		ucmm = append(ucmm, 0x00)
	}
	ucmm = append(ucmm, byte(len(routePath)/2))
	ucmm = append(ucmm, 0x00)
	ucmm = append(ucmm, routePath...)

	cmPath, _ := cip.EPath().Class(ClassConnectionManager).Instance(1).Build()
	fullReq := make([]byte, 0, 2+len(cmPath)+len(ucmm))
	fullReq = append(fullReq, SvcUnconnectedSend)
	fullReq = append(fullReq, cmPath.WordLen())
	fullReq = append(fullReq, cmPath...)
	fullReq = append(fullReq, ucmm...)

	return fullReq
}

// sendCipRequest sends a CIP request via unconnected messaging, routed
// through the Connection Manager when RoutePath is set.
func (p *PLC) sendCipRequest(reqData []byte) ([]byte, error) {
	routed := len(p.RoutePath) > 0
	if routed {
		reqData = buildRoutedRequest(reqData, p.RoutePath)
	}

	resp, err := p.Connection.SendRRData(eip.UnconnectedRequest(reqData))
	if err != nil {
		return nil, fmt.Errorf("SendRRData: %w", err)
	}

	if len(resp.Items) < 2 {
		return nil, fmt.Errorf("expected 2 CPF items, got %d", len(resp.Items))
	}

	cipResp := resp.Items[1].Data

	if routed {
		cipResp, err = unwrapUCMMResponse(cipResp)
		if err != nil {
			return nil, err
		}
	}

	return cipResp, nil
}

// unwrapUCMMResponse strips the Unconnected_Send reply wrapper to
// expose the embedded response.
// Format: [ReplyService 1] [Reserved 1] [Status 1] [AddlStatusSize 1] [AddlStatus n] [Embedded]
func unwrapUCMMResponse(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("UCMM response too short: %d bytes", len(data))
	}

	replyService := data[0]
	status := data[2]
	addlStatusSize := data[3] // size in words

	// Some targets answer routed requests with a direct reply.
	if replyService != (SvcUnconnectedSend | 0x80) {
		return data, nil
	}

	if status != StatusSuccess {
		return nil, parseCipError(status, addlStatusSize, data[4:])
	}

	embeddedStart := 4 + int(addlStatusSize)*2
	if embeddedStart >= len(data) {
		return nil, fmt.Errorf("UCMM response has no embedded data")
	}

	return data[embeddedStart:], nil
}

// parseReadTagResponse parses a Read Tag or Read Tag Fragmented reply
// and reports whether the controller signalled a partial transfer.
// Format: [ReplyService 1] [Reserved 1] [Status 1] [AddlStatusSize 1] [AddlStatus n] [DataType 2] [Data n]
func parseReadTagResponse(data []byte, tagName string, service byte) (*Tag, bool, error) {
	if len(data) < 4 {
		return nil, false, fmt.Errorf("response too short: %d bytes", len(data))
	}

	replyService := data[0]
	status := data[2]
	addlStatusSize := data[3] // size in words

	if replyService != (service | 0x80) {
		return nil, false, fmt.Errorf("unexpected reply service: 0x%02X", replyService)
	}

	// Partial transfer (0x06) is fine, the caller reads more.
	partial := status == StatusPartialTransfer
	if status != StatusSuccess && !partial {
		return nil, false, parseCipError(status, addlStatusSize, data[4:])
	}

	dataStart := 4 + int(addlStatusSize)*2
	if len(data) < dataStart+2 {
		return nil, false, fmt.Errorf("response missing data type field")
	}

	dataType := binary.LittleEndian.Uint16(data[dataStart : dataStart+2])

	return &Tag{
		Name:     tagName,
		DataType: dataType,
		Bytes:    data[dataStart+2:],
	}, partial, nil
}

// parseWriteTagResponse checks the status of a Write Tag reply.
func parseWriteTagResponse(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("response too short: %d bytes", len(data))
	}

	replyService := data[0]
	status := data[2]
	addlStatusSize := data[3]

	if replyService != (SvcWriteTag | 0x80) {
		return fmt.Errorf("unexpected reply service: 0x%02X", replyService)
	}

	if status != StatusSuccess {
		return parseCipError(status, addlStatusSize, data[4:])
	}

	return nil
}
