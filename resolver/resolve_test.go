package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"tagscan/session"
	"tagscan/tagerr"
)

// fakeSession serves canned scopes and definitions for resolver tests.
type fakeSession struct {
	programs    []string
	programsErr error
	scopes      map[string][]session.RawTag
	scopeErrs   map[string]error
	defs        map[uint16]*session.RawDefinition
	defErrs     map[uint16]error
	defCalls    map[uint16]int
}

func (f *fakeSession) Open(ctx context.Context) error { return nil }
func (f *fakeSession) Close() error                   { return nil }

func (f *fakeSession) Info(ctx context.Context) (*session.ControllerInfo, error) {
	return &session.ControllerInfo{Address: "10.0.0.1"}, nil
}

func (f *fakeSession) Programs(ctx context.Context) ([]string, error) {
	return f.programs, f.programsErr
}

func (f *fakeSession) ListTags(ctx context.Context, scope string) ([]session.RawTag, error) {
	if err := f.scopeErrs[scope]; err != nil {
		return nil, err
	}
	return f.scopes[scope], nil
}

func (f *fakeSession) TagDefinition(ctx context.Context, tag session.RawTag) (*session.RawDefinition, error) {
	id := tag.TypeCode & 0x0FFF
	if f.defCalls == nil {
		f.defCalls = make(map[uint16]int)
	}
	f.defCalls[id]++
	if err := f.defErrs[id]; err != nil {
		return nil, err
	}
	if def, ok := f.defs[id]; ok {
		return def, nil
	}
	return nil, fmt.Errorf("no template 0x%03X", id)
}

func (f *fakeSession) Read(ctx context.Context, path string) (*session.Value, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeSession) Write(ctx context.Context, path string, value interface{}) error {
	return fmt.Errorf("not implemented")
}

const (
	typeDINT  = 0x00C4
	typeREAL  = 0x00CA
	structUDT = 0x8000 | 0x123
	structSub = 0x8000 | 0x124
)

func motorDef() *session.RawDefinition {
	return &session.RawDefinition{
		ID:   0x123,
		Name: "MotorData",
		Members: []session.RawMember{
			{Name: "Speed", TypeCode: typeREAL},
			{Name: "Limits", TypeCode: structSub},
			{Name: "__internal", TypeCode: typeDINT},
		},
	}
}

func limitsDef() *session.RawDefinition {
	return &session.RawDefinition{
		ID:   0x124,
		Name: "Limits",
		Members: []session.RawMember{
			{Name: "High", TypeCode: typeREAL},
			{Name: "Low", TypeCode: typeREAL},
		},
	}
}

func TestResolveTree(t *testing.T) {
	sess := &fakeSession{
		programs: []string{"MainProgram"},
		scopes: map[string][]session.RawTag{
			"": {
				{Name: "Counter", TypeCode: typeDINT},
				{Name: "Motor", TypeCode: structUDT},
			},
			"MainProgram": {
				{Name: "Program:MainProgram.Rate", TypeCode: typeREAL},
			},
		},
		defs: map[uint16]*session.RawDefinition{
			0x123: motorDef(),
			0x124: limitsDef(),
		},
	}

	result, err := Resolve(context.Background(), sess, Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(result.FailedScopes) != 0 || len(result.FailedTags) != 0 {
		t.Fatalf("unexpected failures: %+v %+v", result.FailedScopes, result.FailedTags)
	}
	if len(result.Roots) != 3 {
		t.Fatalf("got %d roots, want 3", len(result.Roots))
	}

	counter := result.Roots[0]
	if !counter.IsLeaf() || counter.TypeName != "DINT" {
		t.Errorf("Counter = %+v", counter)
	}

	motor := result.Roots[1]
	if motor.TypeName != "MotorData" {
		t.Errorf("Motor.TypeName = %q, want MotorData", motor.TypeName)
	}
	if len(motor.Members) != 2 {
		t.Fatalf("Motor has %d members, want 2 (hidden filtered)", len(motor.Members))
	}
	if motor.Members[0].Path != "Motor.Speed" {
		t.Errorf("member path = %q, want Motor.Speed", motor.Members[0].Path)
	}

	limits := motor.Members[1]
	if limits.TypeName != "Limits" || len(limits.Members) != 2 {
		t.Errorf("Limits = %+v", limits)
	}
	if limits.Members[1].Path != "Motor.Limits.Low" {
		t.Errorf("nested path = %q", limits.Members[1].Path)
	}

	prog := result.Roots[2]
	if prog.Name != "Program:MainProgram.Rate" || !prog.IsLeaf() {
		t.Errorf("program root = %+v", prog)
	}
}

func TestResolveScopeFailureTolerated(t *testing.T) {
	sess := &fakeSession{
		programs: []string{"Good", "Bad"},
		scopes: map[string][]session.RawTag{
			"":     {{Name: "Counter", TypeCode: typeDINT}},
			"Good": {{Name: "Program:Good.X", TypeCode: typeDINT}},
		},
		scopeErrs: map[string]error{
			"Bad": &tagerr.ScopeEnumerationError{Scope: "Bad", Err: errors.New("timeout")},
		},
	}

	result, err := Resolve(context.Background(), sess, Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(result.Roots) != 2 {
		t.Errorf("got %d roots, want 2", len(result.Roots))
	}
	if len(result.FailedScopes) != 1 || result.FailedScopes[0].Scope != "Bad" {
		t.Errorf("FailedScopes = %+v", result.FailedScopes)
	}
}

func TestResolveFailsWhenNoTagsRetrieved(t *testing.T) {
	sess := &fakeSession{
		programs: []string{"Main"},
		scopeErrs: map[string]error{
			"":     &tagerr.ScopeEnumerationError{Scope: "", Err: errors.New("connection reset")},
			"Main": &tagerr.ScopeEnumerationError{Scope: "Main", Err: errors.New("connection reset")},
		},
	}

	result, err := Resolve(context.Background(), sess, Options{})
	if err == nil {
		t.Fatalf("expected error when every scope fails, got result %+v", result)
	}

	var scopeErr *tagerr.ScopeEnumerationError
	if !errors.As(err, &scopeErr) {
		t.Errorf("error should wrap a ScopeEnumerationError, got %v", err)
	}
}

func TestResolveEmptyControllerIsNotAnError(t *testing.T) {
	// No tags but no failures either: a genuinely empty controller.
	sess := &fakeSession{
		scopes: map[string][]session.RawTag{"": {}},
	}

	result, err := Resolve(context.Background(), sess, Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(result.Roots) != 0 {
		t.Errorf("Roots = %+v", result.Roots)
	}
}

func TestResolveDefinitionFailureDegradesToLeaf(t *testing.T) {
	sess := &fakeSession{
		scopes: map[string][]session.RawTag{
			"": {
				{Name: "Broken", TypeCode: structUDT},
				{Name: "Counter", TypeCode: typeDINT},
			},
		},
		defErrs: map[uint16]error{
			0x123: errors.New("template read failed"),
		},
	}

	result, err := Resolve(context.Background(), sess, Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(result.Roots) != 2 {
		t.Fatalf("got %d roots, want 2", len(result.Roots))
	}

	broken := result.Roots[0]
	if !broken.IsLeaf() {
		t.Error("failed struct should degrade to a leaf")
	}
	if broken.TypeName != "STRUCT_0x0123" {
		t.Errorf("TypeName = %q, want raw fallback", broken.TypeName)
	}
	if len(result.FailedTags) != 1 || result.FailedTags[0].Tag != "Broken" {
		t.Errorf("FailedTags = %+v", result.FailedTags)
	}
}

func TestResolveDefinitionCache(t *testing.T) {
	sess := &fakeSession{
		scopes: map[string][]session.RawTag{
			"": {
				{Name: "MotorA", TypeCode: structUDT},
				{Name: "MotorB", TypeCode: structUDT},
			},
		},
		defs: map[uint16]*session.RawDefinition{
			0x123: motorDef(),
			0x124: limitsDef(),
		},
	}

	if _, err := Resolve(context.Background(), sess, Options{}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if sess.defCalls[0x123] != 1 {
		t.Errorf("template 0x123 fetched %d times, want 1", sess.defCalls[0x123])
	}
}

func TestResolveReservedTopLevelSkipped(t *testing.T) {
	sess := &fakeSession{
		scopes: map[string][]session.RawTag{
			"": {
				{Name: "__MetaData", TypeCode: typeDINT},
				{Name: "Map:LocalENB", TypeCode: typeDINT},
				{Name: "Counter", TypeCode: typeDINT},
			},
		},
	}

	result, err := Resolve(context.Background(), sess, Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(result.Roots) != 1 || result.Roots[0].Name != "Counter" {
		t.Errorf("Roots = %+v", result.Roots)
	}
}

func TestBuildNodeCollapseAllFiltered(t *testing.T) {
	lookup := func(typeCode uint16) (*session.RawDefinition, error) {
		return &session.RawDefinition{
			Name: "Opaque",
			Members: []session.RawMember{
				{Name: "__a", TypeCode: typeDINT},
				{Name: "ZZZ", TypeCode: typeDINT, Hidden: true},
			},
		}, nil
	}

	node, failures := buildNode("Tag", "Tag", structUDT, nil, lookup, MaxDepth, 0)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if !node.IsLeaf() {
		t.Error("fully-filtered struct should collapse to a leaf")
	}
	if node.TypeName != "Opaque" {
		t.Errorf("TypeName = %q, want Opaque", node.TypeName)
	}
}

func TestBuildNodeDepthCap(t *testing.T) {
	// A self-referential definition would recurse forever without the
	// cap.
	lookup := func(typeCode uint16) (*session.RawDefinition, error) {
		return &session.RawDefinition{
			Name: "Cycle",
			Members: []session.RawMember{
				{Name: "Next", TypeCode: structUDT},
			},
		}, nil
	}

	node, failures := buildNode("Root", "Root", structUDT, nil, lookup, MaxDepth, 0)
	if node == nil {
		t.Fatal("nil node")
	}
	if len(failures) == 0 {
		t.Fatal("expected a depth failure")
	}

	depth := 0
	for n := node; len(n.Members) > 0; n = n.Members[0] {
		depth++
	}
	if depth != MaxDepth {
		t.Errorf("expanded depth = %d, want %d", depth, MaxDepth)
	}
}
