package session

import (
	"context"
	"fmt"
	"time"

	"tagscan/logix"
	"tagscan/tagerr"
)

// LogixSession implements Session over the logix client. The zero
// value is not usable; construct with NewLogixSession.
type LogixSession struct {
	address string
	slot    byte
	timeout time.Duration
	client  *logix.Client
}

// NewLogixSession creates an unopened session for the controller at
// address. Slot selects the CPU position for backplane routing; pass 0
// for CompactLogix or a direct CPU connection.
func NewLogixSession(address string, slot byte) *LogixSession {
	return &LogixSession{
		address: address,
		slot:    slot,
		timeout: 5 * time.Second,
	}
}

// SetTimeout overrides the per-transaction I/O timeout. Takes effect
// on the next Open.
func (s *LogixSession) SetTimeout(d time.Duration) {
	if s == nil || d <= 0 {
		return
	}
	s.timeout = d
}

// Address returns the configured controller address.
func (s *LogixSession) Address() string {
	if s == nil {
		return ""
	}
	return s.address
}

// Slot returns the configured CPU slot.
func (s *LogixSession) Slot() byte {
	if s == nil {
		return 0
	}
	return s.slot
}

// Open dials the controller and registers an EIP session.
func (s *LogixSession) Open(ctx context.Context) error {
	if s == nil {
		return &tagerr.ConnectionError{Addr: "", Err: fmt.Errorf("nil session")}
	}
	if err := ctx.Err(); err != nil {
		return &tagerr.ConnectionError{Addr: s.address, Err: err}
	}

	opts := []logix.Option{logix.WithTimeout(s.timeout)}
	if s.slot > 0 {
		opts = append(opts, logix.WithSlot(s.slot))
	}

	client, err := logix.Connect(s.address, opts...)
	if err != nil {
		return &tagerr.ConnectionError{Addr: s.address, Err: err}
	}

	s.client = client
	return nil
}

// Info queries the controller identity.
func (s *LogixSession) Info(ctx context.Context) (*ControllerInfo, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	identity, err := s.client.Identity()
	if err != nil {
		return nil, &tagerr.ConnectionError{Addr: s.address, Err: err}
	}

	return &ControllerInfo{
		Address:     s.address,
		Slot:        s.slot,
		ProductName: identity.ProductName,
		Vendor:      identity.VendorName(),
		Revision:    identity.Revision,
		Serial:      fmt.Sprintf("%08X", identity.Serial),
	}, nil
}

// Programs lists program names without the "Program:" prefix.
func (s *LogixSession) Programs(ctx context.Context) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	programs, err := s.client.Programs()
	if err != nil {
		return nil, &tagerr.ScopeEnumerationError{Scope: "", Err: err}
	}
	return programs, nil
}

// ListTags enumerates readable symbols in one scope.
func (s *LogixSession) ListTags(ctx context.Context, scope string) ([]RawTag, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	var (
		tags []logix.TagInfo
		err  error
	)
	if scope == "" {
		tags, err = s.client.ControllerTags()
	} else {
		tags, err = s.client.ProgramTags(scope)
	}
	if err != nil {
		return nil, &tagerr.ScopeEnumerationError{Scope: scope, Err: err}
	}

	out := make([]RawTag, len(tags))
	for i, t := range tags {
		out[i] = RawTag{
			Name:       t.Name,
			TypeCode:   t.TypeCode,
			Instance:   t.Instance,
			Dimensions: t.Dimensions,
		}
	}
	return out, nil
}

// TagDefinition fetches the structure definition for a structured tag.
func (s *LogixSession) TagDefinition(ctx context.Context, tag RawTag) (*RawDefinition, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	// Atomic tags have no members to expand.
	if !logix.IsStructure(tag.TypeCode) {
		return &RawDefinition{Name: logix.TypeName(tag.TypeCode)}, nil
	}

	tmpl, err := s.client.Template(logix.TemplateID(tag.TypeCode))
	if err != nil {
		return nil, &tagerr.TagDefinitionError{Tag: tag.Name, Err: err}
	}

	def := &RawDefinition{
		ID:      tmpl.ID,
		Name:    tmpl.Name,
		Size:    tmpl.Size,
		Members: make([]RawMember, 0, len(tmpl.Members)),
	}
	for _, m := range tmpl.Members {
		def.Members = append(def.Members, RawMember{
			Name:       m.Name,
			TypeCode:   m.Type,
			Offset:     m.Offset,
			Dimensions: m.ArrayDims,
			Hidden:     m.Hidden,
		})
	}

	return def, nil
}

// Read reads one tag path and decodes the reply.
func (s *LogixSession) Read(ctx context.Context, path string) (*Value, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	tv, err := s.client.ReadOne(path)
	if err != nil {
		if logix.IsTagNotFound(err) {
			return nil, &tagerr.NotFoundError{Path: path}
		}
		return nil, &tagerr.ReadError{Path: path, Err: err}
	}

	return &Value{
		Path:     path,
		TypeCode: tv.DataType,
		TypeName: tv.TypeName(),
		Raw:      tv.Bytes,
		Go:       tv.GoValue(),
		Time:     time.Now(),
	}, nil
}

// Write writes a value to a tag path.
func (s *LogixSession) Write(ctx context.Context, path string, value interface{}) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if err := s.client.Write(path, value); err != nil {
		if logix.IsTagNotFound(err) {
			return &tagerr.NotFoundError{Path: path}
		}
		return &tagerr.ReadError{Path: path, Err: err}
	}
	return nil
}

// Close tears the session down. Safe to call repeatedly.
func (s *LogixSession) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	s.client.Close()
	s.client = nil
	return nil
}

// ready checks context cancellation and that Open succeeded.
func (s *LogixSession) ready(ctx context.Context) error {
	if s == nil || s.client == nil {
		return &tagerr.ConnectionError{Addr: s.Address(), Err: fmt.Errorf("session not open")}
	}
	if err := ctx.Err(); err != nil {
		return &tagerr.ConnectionError{Addr: s.address, Err: err}
	}
	return nil
}
