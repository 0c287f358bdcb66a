package logix

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func symbolEntry(instance uint32, name string, typeCode uint16, dims [3]uint32) []byte {
	out := binary.LittleEndian.AppendUint32(nil, instance)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(name)))
	out = append(out, name...)
	out = binary.LittleEndian.AppendUint16(out, typeCode)
	for _, d := range dims {
		out = binary.LittleEndian.AppendUint32(out, d)
	}
	return out
}

func TestParseSymbolListResponse(t *testing.T) {
	var data []byte
	data = append(data, symbolEntry(0x10, "Motor", TypeDINT, [3]uint32{})...)
	data = append(data, symbolEntry(0x25, "Data", TypeDINT|TypeArray1D, [3]uint32{100, 0, 0})...)
	data = append(data, symbolEntry(0x30, "Grid", TypeREAL|TypeArray2D, [3]uint32{4, 8, 0})...)

	tags, last := parseSymbolListResponse(data)

	if len(tags) != 3 {
		t.Fatalf("got %d tags, want 3", len(tags))
	}
	if last != 0x30 {
		t.Errorf("lastInstance = 0x%X, want 0x30", last)
	}

	if tags[0].Name != "Motor" || tags[0].TypeCode != TypeDINT || tags[0].Dimensions != nil {
		t.Errorf("tags[0] = %+v", tags[0])
	}
	if tags[1].Name != "Data" || len(tags[1].Dimensions) != 1 || tags[1].Dimensions[0] != 100 {
		t.Errorf("tags[1] = %+v", tags[1])
	}
	if len(tags[2].Dimensions) != 2 || tags[2].Dimensions[0] != 4 || tags[2].Dimensions[1] != 8 {
		t.Errorf("tags[2] = %+v", tags[2])
	}
}

func TestParseSymbolListResponseTruncated(t *testing.T) {
	entry := symbolEntry(0x10, "Motor", TypeDINT, [3]uint32{})
	tags, _ := parseSymbolListResponse(entry[:len(entry)-4])
	if len(tags) != 0 {
		t.Errorf("expected no tags from truncated data, got %d", len(tags))
	}
}

func TestTagInfoPredicates(t *testing.T) {
	tests := []struct {
		name     string
		tag      TagInfo
		program  bool
		system   bool
		routine  bool
		readable bool
	}{
		{"plain tag", TagInfo{Name: "Motor"}, false, false, false, true},
		{"program entry", TagInfo{Name: "Program:MainProgram"}, true, false, false, false},
		{"program tag", TagInfo{Name: "Program:MainProgram.Motor"}, false, false, false, true},
		{"map entry", TagInfo{Name: "Map:LocalENB"}, false, true, false, false},
		{"task entry", TagInfo{Name: "Task:MainTask"}, false, true, false, false},
		{"routine", TagInfo{Name: "Program:Main.Routine:Startup"}, false, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tag.IsProgram(); got != tt.program {
				t.Errorf("IsProgram() = %v, want %v", got, tt.program)
			}
			if got := tt.tag.IsSystem(); got != tt.system {
				t.Errorf("IsSystem() = %v, want %v", got, tt.system)
			}
			if got := tt.tag.IsRoutine(); got != tt.routine {
				t.Errorf("IsRoutine() = %v, want %v", got, tt.routine)
			}
			if got := tt.tag.IsReadable(); got != tt.readable {
				t.Errorf("IsReadable() = %v, want %v", got, tt.readable)
			}
		})
	}
}

func TestUnwrapUCMMResponse(t *testing.T) {
	embedded := []byte{0xCC, 0x00, 0x00, 0x00, 0xC4, 0x00, 0x01, 0x00, 0x00, 0x00}

	wrapped := append([]byte{0xD2, 0x00, 0x00, 0x00}, embedded...)
	got, err := unwrapUCMMResponse(wrapped)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, embedded) {
		t.Errorf("embedded = % X, want % X", got, embedded)
	}

	// A direct reply passes through untouched.
	direct, err := unwrapUCMMResponse(embedded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(direct, embedded) {
		t.Errorf("direct = % X, want % X", direct, embedded)
	}
}

func TestUnwrapUCMMResponseError(t *testing.T) {
	// Unconnected send timed out: status 0x01, ext status 0x0204.
	resp := []byte{0xD2, 0x00, 0x01, 0x01, 0x04, 0x02}
	_, err := unwrapUCMMResponse(resp)
	if err == nil {
		t.Fatal("expected error for failed UCMM status")
	}

	var ce *CipError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CipError, got %T", err)
	}
	if ce.Status != 0x01 || ce.ExtStatus != 0x0204 {
		t.Errorf("CipError = %+v", ce)
	}
}

func TestParseReadTagResponse(t *testing.T) {
	resp := []byte{0xCC, 0x00, 0x00, 0x00, 0xC4, 0x00, 0x39, 0x05, 0x00, 0x00}

	tag, partial, err := parseReadTagResponse(resp, "Counter", SvcReadTag)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if partial {
		t.Error("unexpected partial transfer")
	}
	if tag.DataType != TypeDINT {
		t.Errorf("DataType = 0x%04X, want 0x%04X", tag.DataType, TypeDINT)
	}

	v := TagValue{Name: tag.Name, DataType: tag.DataType, Bytes: tag.Bytes}
	n, err := v.Int()
	if err != nil {
		t.Fatalf("Int(): %v", err)
	}
	if n != 1337 {
		t.Errorf("value = %d, want 1337", n)
	}
}

func TestParseReadTagResponsePartial(t *testing.T) {
	resp := []byte{0xCC, 0x00, 0x06, 0x00, 0xC4, 0x00, 0x01, 0x00, 0x00, 0x00}

	_, partial, err := parseReadTagResponse(resp, "Big", SvcReadTag)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !partial {
		t.Error("expected partial transfer flag")
	}
}

func TestParseReadTagResponseNotFound(t *testing.T) {
	// Status 0x04 (path segment error) with ext status 0x2104.
	resp := []byte{0xCC, 0x00, 0x04, 0x01, 0x04, 0x21}

	_, _, err := parseReadTagResponse(resp, "Ghost", SvcReadTag)
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsTagNotFound(err) {
		t.Errorf("IsTagNotFound() = false for %v", err)
	}
}

func TestParseWriteTagResponse(t *testing.T) {
	if err := parseWriteTagResponse([]byte{0xCD, 0x00, 0x00, 0x00}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := parseWriteTagResponse([]byte{0xCD, 0x00, 0x05, 0x00})
	if err == nil {
		t.Error("expected error for status 0x05")
	}
}

func TestBuildRoutedRequest(t *testing.T) {
	cipReq := []byte{0x4C, 0x02, 0x91, 0x01, 'A', 0x00, 0x01, 0x00}
	routed := buildRoutedRequest(cipReq, []byte{0x01, 0x00})

	// Unconnected_Send to Connection Manager class 0x06 instance 1.
	wantPrefix := []byte{0x52, 0x02, 0x20, 0x06, 0x24, 0x01, 0x0A, 0x05}
	if !bytes.Equal(routed[:8], wantPrefix) {
		t.Errorf("prefix = % X, want % X", routed[:8], wantPrefix)
	}

	// Embedded message size.
	if size := binary.LittleEndian.Uint16(routed[8:10]); size != uint16(len(cipReq)) {
		t.Errorf("embedded size = %d, want %d", size, len(cipReq))
	}

	// Route path trails the message: [words][reserved][path].
	tail := routed[len(routed)-4:]
	want := []byte{0x01, 0x00, 0x01, 0x00}
	if !bytes.Equal(tail, want) {
		t.Errorf("route tail = % X, want % X", tail, want)
	}
}

func TestBuildRoutedRequestOddPad(t *testing.T) {
	cipReq := []byte{0x4C, 0x02, 0x91}
	routed := buildRoutedRequest(cipReq, []byte{0x01, 0x03})

	// Header(6) + tick/timeout(2) + size(2) + msg(3) + pad(1) + route hdr(2) + route(2)
	if len(routed) != 18 {
		t.Errorf("len = %d, want 18", len(routed))
	}
	if routed[13] != 0x00 {
		t.Errorf("expected pad byte after odd-length message")
	}
}

func templateDefinition(name string, members []TemplateMember, memberNames []string) []byte {
	var data []byte
	for _, m := range members {
		arraySize := uint16(0)
		if len(m.ArrayDims) > 0 {
			arraySize = uint16(m.ArrayDims[0])
		}
		data = binary.LittleEndian.AppendUint16(data, arraySize)
		data = binary.LittleEndian.AppendUint16(data, m.Type)
		data = binary.LittleEndian.AppendUint32(data, m.Offset)
	}
	data = append(data, name...)
	data = append(data, 0x00)
	for _, n := range memberNames {
		data = append(data, n...)
		data = append(data, 0x00)
	}
	return data
}

func TestParseDefinition(t *testing.T) {
	members := []TemplateMember{
		{Type: TypeDINT, Offset: 0},
		{Type: TypeREAL, Offset: 4},
		{Type: TypeBOOL, Offset: 8},
	}
	data := templateDefinition("MotorData;n", members, []string{"Speed", "Rate", "Running"})

	tmpl := &Template{ID: 0x123, MemberMap: make(map[string]int)}
	if err := tmpl.parseDefinition(data, 3); err != nil {
		t.Fatalf("parseDefinition: %v", err)
	}

	if tmpl.Name != "MotorData" {
		t.Errorf("Name = %q, want MotorData (semicolon suffix stripped)", tmpl.Name)
	}
	if len(tmpl.Members) != 3 {
		t.Fatalf("got %d members, want 3", len(tmpl.Members))
	}
	if m := tmpl.GetMember("Rate"); m == nil || m.Type != TypeREAL || m.Offset != 4 {
		t.Errorf("GetMember(Rate) = %+v", m)
	}
	if tmpl.GetMember("Missing") != nil {
		t.Error("GetMember(Missing) should be nil")
	}
}

func TestParseDefinitionHiddenMembers(t *testing.T) {
	members := []TemplateMember{
		{Type: TypeDINT, Offset: 0},
		{Type: 0x0000, Offset: 4}, // type 0 marks internal entries
		{Type: TypeDINT, Offset: 8},
	}
	data := templateDefinition("Padded;n", members, []string{"Value", "ZZZZZZZZZZ", "__hidden"})

	tmpl := &Template{MemberMap: make(map[string]int)}
	if err := tmpl.parseDefinition(data, 3); err != nil {
		t.Fatalf("parseDefinition: %v", err)
	}

	if !tmpl.Members[1].Hidden {
		t.Error("type 0 member should be hidden")
	}
	if !tmpl.Members[2].Hidden {
		t.Error("__ prefixed member should be hidden")
	}
	if len(tmpl.MemberMap) != 1 {
		t.Errorf("MemberMap has %d entries, want 1", len(tmpl.MemberMap))
	}
}

func TestParseDefinitionArrayMember(t *testing.T) {
	members := []TemplateMember{
		{Type: TypeINT | TypeArray1D, Offset: 0, ArrayDims: []int{16}},
	}
	data := templateDefinition("Buf;n", members, []string{"Samples"})

	tmpl := &Template{MemberMap: make(map[string]int)}
	if err := tmpl.parseDefinition(data, 1); err != nil {
		t.Fatalf("parseDefinition: %v", err)
	}

	m := tmpl.GetMember("Samples")
	if m == nil {
		t.Fatal("Samples member missing")
	}
	if !m.IsArray() || m.ElementCount() != 16 {
		t.Errorf("Samples = %+v", m)
	}
}

func TestTypeFlags(t *testing.T) {
	structArr := uint16(0x8000 | 0x2000 | 0x123)
	if !IsStructure(structArr) || !IsArray(structArr) {
		t.Error("flags not detected on 0xA123")
	}
	if TemplateID(structArr) != 0x123 {
		t.Errorf("TemplateID = 0x%X, want 0x123", TemplateID(structArr))
	}
	if IsSystemType(structArr) {
		t.Error("structure must not count as system type")
	}
	if !IsSystemType(0x1000 | TypeDINT) {
		t.Error("expected system type")
	}
	if ArrayDimensions(TypeDINT|TypeArray3D) != 3 {
		t.Error("expected 3 dimensions")
	}
}

func TestTypeName(t *testing.T) {
	tests := []struct {
		code uint16
		want string
	}{
		{TypeDINT, "DINT"},
		{TypeREAL | TypeArray1D, "REAL[]"},
		{0x8123, "STRUCT_0x0123"},
		{TypeSTRING, "STRING"},
	}
	for _, tt := range tests {
		if got := TypeName(tt.code); got != tt.want {
			t.Errorf("TypeName(0x%04X) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestTagValueConversions(t *testing.T) {
	t.Run("DINT", func(t *testing.T) {
		v := TagValue{DataType: TypeDINT, Bytes: binary.LittleEndian.AppendUint32(nil, 0xFFFFFFFF)}
		n, err := v.Int()
		if err != nil || n != -1 {
			t.Errorf("Int() = %d, %v; want -1", n, err)
		}
	})

	t.Run("REAL", func(t *testing.T) {
		v := TagValue{DataType: TypeREAL, Bytes: binary.LittleEndian.AppendUint32(nil, math.Float32bits(3.5))}
		f, err := v.Float()
		if err != nil || f != 3.5 {
			t.Errorf("Float() = %v, %v; want 3.5", f, err)
		}
	})

	t.Run("STRING", func(t *testing.T) {
		data := binary.LittleEndian.AppendUint32(nil, 5)
		data = append(data, "hello___"...)
		v := TagValue{DataType: TypeSTRING, Bytes: data}
		s, err := v.String()
		if err != nil || s != "hello" {
			t.Errorf("String() = %q, %v; want hello", s, err)
		}
	})

	t.Run("type mismatch", func(t *testing.T) {
		v := TagValue{DataType: TypeREAL, Bytes: []byte{0, 0, 0, 0}}
		if _, err := v.Int(); err == nil {
			t.Error("expected type mismatch error")
		}
	})
}

func TestTagValueGoValueArray(t *testing.T) {
	var data []byte
	for _, n := range []int32{10, -20, 30} {
		data = binary.LittleEndian.AppendUint32(data, uint32(n))
	}
	v := TagValue{DataType: TypeDINT, Bytes: data, Count: 3}

	got, ok := v.GoValue().([]int64)
	if !ok {
		t.Fatalf("GoValue() = %T, want []int64", v.GoValue())
	}
	want := []int64{10, -20, 30}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestEncodeValue(t *testing.T) {
	tests := []struct {
		name     string
		typeCode uint16
		value    interface{}
		want     []byte
	}{
		{"bool true", TypeBOOL, true, []byte{0xFF}},
		{"bool false", TypeBOOL, false, []byte{0x00}},
		{"dint", TypeDINT, 258, []byte{0x02, 0x01, 0x00, 0x00}},
		{"dint from string", TypeDINT, "7", []byte{0x07, 0x00, 0x00, 0x00}},
		{"int", TypeINT, -1, []byte{0xFF, 0xFF}},
		{"real", TypeREAL, 1.0, []byte{0x00, 0x00, 0x80, 0x3F}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeValue(tt.typeCode, tt.value)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeValue = % X, want % X", got, tt.want)
			}
		})
	}

	if _, err := EncodeValue(0x8123, 1); err == nil {
		t.Error("expected error for structure type")
	}
}
