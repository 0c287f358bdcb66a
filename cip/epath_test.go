package cip

import (
	"bytes"
	"testing"
)

func TestEPathClassInstance(t *testing.T) {
	path, err := EPath().Class(0x6B).Instance(0).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []byte{0x20, 0x6B, 0x24, 0x00}
	if !bytes.Equal(path, want) {
		t.Errorf("path = % X, want % X", []byte(path), want)
	}
	if path.WordLen() != 2 {
		t.Errorf("WordLen() = %d, want 2", path.WordLen())
	}
}

func TestEPathInstance16Padding(t *testing.T) {
	path, err := EPath().Class(0x6C).Instance16(0x01A2).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 16-bit instance in a padded path carries an internal pad byte.
	want := []byte{0x20, 0x6C, 0x25, 0x00, 0xA2, 0x01}
	if !bytes.Equal(path, want) {
		t.Errorf("path = % X, want % X", []byte(path), want)
	}
}

func TestEPathSymbol(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		want []byte
	}{
		{
			name: "simple tag",
			tag:  "Motor",
			// 0x91, len, "Motor", pad to even
			want: []byte{0x91, 0x05, 'M', 'o', 't', 'o', 'r', 0x00},
		},
		{
			name: "dotted path",
			tag:  "Motor.Speed",
			want: []byte{
				0x91, 0x05, 'M', 'o', 't', 'o', 'r', 0x00,
				0x91, 0x05, 'S', 'p', 'e', 'e', 'd', 0x00,
			},
		},
		{
			name: "program scope keeps colon",
			tag:  "Program:Main",
			want: []byte{0x91, 0x0C, 'P', 'r', 'o', 'g', 'r', 'a', 'm', ':', 'M', 'a', 'i', 'n'},
		},
		{
			name: "array index becomes member segment",
			tag:  "Data[3]",
			want: []byte{0x91, 0x04, 'D', 'a', 't', 'a', 0x28, 0x03},
		},
		{
			name: "large index uses 16-bit member segment",
			tag:  "Data[300]",
			want: []byte{0x91, 0x04, 'D', 'a', 't', 'a', 0x29, 0x00, 0x2C, 0x01},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := EPath().Symbol(tt.tag).Build()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(path, tt.want) {
				t.Errorf("path = % X, want % X", []byte(path), tt.want)
			}
		})
	}
}

func TestEPathEmptySymbolFails(t *testing.T) {
	if _, err := EPath().Symbol("").Build(); err == nil {
		t.Error("expected error for empty symbol")
	}
}

func TestEPathErrorSticks(t *testing.T) {
	// An error early in the chain must survive later valid segments.
	_, err := EPath().Symbol("").Class(0x6B).Build()
	if err == nil {
		t.Error("expected sticky error from builder")
	}
}

func TestSplitTagPath(t *testing.T) {
	parts := splitTagPath("Program:Main.Data[12].Value")

	want := []tagPart{
		{name: "Program:Main"},
		{name: "Data"},
		{index: 12, isIndex: true},
		{name: "Value"},
	}

	if len(parts) != len(want) {
		t.Fatalf("got %d parts, want %d: %+v", len(parts), len(want), parts)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Errorf("part %d = %+v, want %+v", i, parts[i], want[i])
		}
	}
}
