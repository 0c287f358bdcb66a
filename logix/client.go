package logix

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"tagscan/eip"
)

// Client is a high-level wrapper that manages connection lifecycle and
// caches template definitions across calls.
type Client struct {
	plc *PLC

	tmplMu    sync.Mutex
	templates map[uint16]*Template
}

// options holds configuration for Connect.
type options struct {
	slot      byte
	hasSlot   bool
	routePath []byte
	timeout   time.Duration
}

// Option is a functional option for Connect.
type Option func(*options)

// WithSlot configures backplane routing to the CPU in the given slot.
// Use this for ControlLogix reached via an Ethernet module.
func WithSlot(slot byte) Option {
	return func(o *options) {
		o.slot = slot
		o.hasSlot = true
		o.routePath = nil // slot routing overrides a custom route path
	}
}

// WithRoutePath configures explicit routing for the PLC, for targets
// behind gateways or communication modules.
func WithRoutePath(path []byte) Option {
	return func(o *options) {
		o.routePath = path
	}
}

// WithTimeout sets the per-transaction I/O timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// Connect establishes a connection to a Logix controller at the given
// address and registers an EIP session.
func Connect(address string, opts ...Option) (*Client, error) {
	cfg := &options{}
	for _, opt := range opts {
		opt(cfg)
	}

	plc, err := NewPLC(address)
	if err != nil {
		return nil, fmt.Errorf("Connect: %w", err)
	}

	if cfg.routePath != nil {
		plc.SetRoutePath(cfg.routePath)
	} else if cfg.hasSlot {
		plc.SetSlotRouting(cfg.slot)
	}
	if cfg.timeout > 0 {
		plc.Connection.SetTimeout(cfg.timeout)
	}

	if err := plc.Connect(); err != nil {
		return nil, fmt.Errorf("Connect: %w", err)
	}

	return &Client{
		plc:       plc,
		templates: make(map[uint16]*Template),
	}, nil
}

// Close releases the connection. Safe on a nil client.
func (c *Client) Close() {
	if c == nil || c.plc == nil {
		return
	}
	c.plc.Close()
}

// PLC exposes the underlying low-level PLC for advanced operations.
func (c *Client) PLC() *PLC {
	if c == nil {
		return nil
	}
	return c.plc
}

// IsConnected reports whether the transport session is open.
func (c *Client) IsConnected() bool {
	return c != nil && c.plc != nil && c.plc.Connection.IsConnected()
}

// Identity queries the connected device's identity over the existing
// TCP connection.
func (c *Client) Identity() (*DeviceInfo, error) {
	if c == nil || c.plc == nil || c.plc.Connection == nil {
		return nil, fmt.Errorf("Identity: not connected")
	}

	identities, err := c.plc.Connection.ListIdentity()
	if err != nil {
		return nil, fmt.Errorf("Identity: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("Identity: no identity returned")
	}

	device := identityToDeviceInfo(identities[0])

	// TCP identity replies often omit the IP; fall back to the address
	// we dialled.
	if device.IP == nil || device.IP.Equal(net.IPv4zero) {
		device.IP = net.ParseIP(c.plc.Address)
	}

	return &device, nil
}

// Programs returns the program names in the controller, without the
// "Program:" prefix.
func (c *Client) Programs() ([]string, error) {
	if c == nil || c.plc == nil {
		return nil, fmt.Errorf("Programs: nil client")
	}

	fullNames, err := c.plc.ListPrograms()
	if err != nil {
		return nil, fmt.Errorf("Programs: %w", err)
	}

	programs := make([]string, len(fullNames))
	for i, name := range fullNames {
		if len(name) > 8 && name[:8] == "Program:" {
			programs[i] = name[8:]
		} else {
			programs[i] = name
		}
	}

	return programs, nil
}

// ControllerTags returns readable controller-scope tags, excluding
// program entries and system tags.
func (c *Client) ControllerTags() ([]TagInfo, error) {
	if c == nil || c.plc == nil {
		return nil, fmt.Errorf("ControllerTags: nil client")
	}

	allTags, err := c.plc.ListTags()
	if err != nil {
		return nil, fmt.Errorf("ControllerTags: %w", err)
	}

	var dataTags []TagInfo
	for _, t := range allTags {
		if t.IsReadable() {
			dataTags = append(dataTags, t)
		}
	}

	return dataTags, nil
}

// ProgramTags returns readable tags within one program. Accepts either
// "MainProgram" or "Program:MainProgram".
func (c *Client) ProgramTags(program string) ([]TagInfo, error) {
	if c == nil || c.plc == nil {
		return nil, fmt.Errorf("ProgramTags: nil client")
	}

	tags, err := c.plc.ListProgramTags(program)
	if err != nil {
		return nil, fmt.Errorf("ProgramTags: %w", err)
	}

	var dataTags []TagInfo
	for _, t := range tags {
		if t.IsReadable() {
			dataTags = append(dataTags, t)
		}
	}

	return dataTags, nil
}

// AllTags returns all readable tags across controller and program
// scopes.
func (c *Client) AllTags() ([]TagInfo, error) {
	if c == nil || c.plc == nil {
		return nil, fmt.Errorf("AllTags: nil client")
	}

	tags, err := c.plc.ListDataTags()
	if err != nil {
		return nil, fmt.Errorf("AllTags: %w", err)
	}

	return tags, nil
}

// Template fetches the UDT definition for a structure type code,
// caching results for the lifetime of the client.
func (c *Client) Template(templateID uint16) (*Template, error) {
	if c == nil || c.plc == nil {
		return nil, fmt.Errorf("Template: nil client")
	}

	c.tmplMu.Lock()
	if tmpl, ok := c.templates[templateID]; ok {
		c.tmplMu.Unlock()
		return tmpl, nil
	}
	c.tmplMu.Unlock()

	tmpl, err := c.plc.GetTemplate(templateID)
	if err != nil {
		return nil, err
	}

	c.tmplMu.Lock()
	c.templates[templateID] = tmpl
	c.tmplMu.Unlock()

	return tmpl, nil
}

// Read reads one or more tags by name. Each result carries its own
// error; the method itself fails only on a nil client.
func (c *Client) Read(tagNames ...string) ([]*TagValue, error) {
	if c == nil || c.plc == nil {
		return nil, fmt.Errorf("Read: nil client")
	}
	if len(tagNames) == 0 {
		return nil, nil
	}

	results := make([]*TagValue, 0, len(tagNames))
	for _, name := range tagNames {
		tag, err := c.plc.ReadTag(name)
		if err != nil {
			results = append(results, &TagValue{Name: name, Error: err})
			continue
		}
		results = append(results, &TagValue{
			Name:     tag.Name,
			DataType: tag.DataType,
			Bytes:    tag.Bytes,
		})
	}

	return results, nil
}

// ReadOne reads a single tag and returns its value or an error.
func (c *Client) ReadOne(tagName string) (*TagValue, error) {
	if c == nil || c.plc == nil {
		return nil, fmt.Errorf("ReadOne: nil client")
	}

	tag, err := c.plc.ReadTag(tagName)
	if err != nil {
		return nil, err
	}

	return &TagValue{
		Name:     tag.Name,
		DataType: tag.DataType,
		Bytes:    tag.Bytes,
	}, nil
}

// Write writes a value to a tag, inferring the wire type from the Go
// type. Supported: bool, signed/unsigned integers, floats, string.
func (c *Client) Write(tagName string, value interface{}) error {
	if c == nil || c.plc == nil {
		return fmt.Errorf("Write: nil client")
	}

	var dataType uint16
	var data []byte

	switch v := value.(type) {
	case bool:
		dataType = TypeBOOL
		if v {
			data = []byte{1}
		} else {
			data = []byte{0}
		}
	case int8:
		dataType = TypeSINT
		data = []byte{byte(v)}
	case int16:
		dataType = TypeINT
		data = binary.LittleEndian.AppendUint16(nil, uint16(v))
	case int32:
		dataType = TypeDINT
		data = binary.LittleEndian.AppendUint32(nil, uint32(v))
	case int64:
		dataType = TypeLINT
		data = binary.LittleEndian.AppendUint64(nil, uint64(v))
	case int:
		// Plain int maps to DINT, the common Logix integer.
		dataType = TypeDINT
		data = binary.LittleEndian.AppendUint32(nil, uint32(v))
	case uint8:
		dataType = TypeUSINT
		data = []byte{v}
	case uint16:
		dataType = TypeUINT
		data = binary.LittleEndian.AppendUint16(nil, v)
	case uint32:
		dataType = TypeUDINT
		data = binary.LittleEndian.AppendUint32(nil, v)
	case uint64:
		dataType = TypeULINT
		data = binary.LittleEndian.AppendUint64(nil, v)
	case uint:
		dataType = TypeUDINT
		data = binary.LittleEndian.AppendUint32(nil, uint32(v))
	case float32:
		dataType = TypeREAL
		data = binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))
	case float64:
		dataType = TypeLREAL
		data = binary.LittleEndian.AppendUint64(nil, math.Float64bits(v))
	case string:
		// Logix STRING: 4-byte length prefix + data.
		dataType = TypeSTRING
		data = binary.LittleEndian.AppendUint32(nil, uint32(len(v)))
		data = append(data, []byte(v)...)
	default:
		return fmt.Errorf("Write: unsupported value type %T", value)
	}

	return c.plc.WriteTag(tagName, dataType, data)
}

// WriteTyped writes a value using an explicit atomic type code instead
// of inferring one from the Go type.
func (c *Client) WriteTyped(tagName string, typeCode uint16, value interface{}) error {
	if c == nil || c.plc == nil {
		return fmt.Errorf("WriteTyped: nil client")
	}

	data, err := EncodeValue(typeCode, value)
	if err != nil {
		return fmt.Errorf("WriteTyped: %w", err)
	}

	return c.plc.WriteTag(tagName, BaseType(typeCode), data)
}

// DeviceInfo holds identity information about a controller or other
// EtherNet/IP device.
type DeviceInfo struct {
	IP          net.IP
	Port        uint16
	VendorID    uint16
	DeviceType  uint16
	ProductCode uint16
	Revision    string // firmware revision, e.g. "32.11"
	Serial      uint32
	ProductName string // e.g. "1756-L83E/B"
	Status      uint16
}

// VendorName returns a human-readable vendor name for common vendors.
func (d *DeviceInfo) VendorName() string {
	switch d.VendorID {
	case 1:
		return "Rockwell Automation"
	case 2:
		return "Schneider Electric"
	case 5:
		return "Omron"
	case 88:
		return "Cognex"
	default:
		return fmt.Sprintf("Vendor %d", d.VendorID)
	}
}

// String returns a one-line device summary.
func (d *DeviceInfo) String() string {
	return fmt.Sprintf("%s at %s - %s v%s [SN: %d]",
		d.ProductName, d.IP, d.VendorName(), d.Revision, d.Serial)
}

// identityToDeviceInfo converts an eip.Identity to a DeviceInfo.
func identityToDeviceInfo(id eip.Identity) DeviceInfo {
	return DeviceInfo{
		IP:          id.IP,
		Port:        id.Port,
		VendorID:    id.VendorID,
		DeviceType:  id.DeviceType,
		ProductCode: id.ProductCode,
		Revision:    id.Revision(),
		Serial:      id.SerialNumber,
		ProductName: id.ProductName,
		Status:      id.Status,
	}
}
