package trace

import (
	"bytes"
	"testing"
)

func TestHeaderBytesScenario(t *testing.T) {
	r, err := ParseRange("ram")
	if err != nil {
		t.Fatal(err)
	}
	got := encodeHeader(r)
	want := []byte{
		0x54, 0x4C, 0x4D, 0x54, 0x02, 0x00, 0x07, 0x00,
		0x00, 0x80, 0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00,
		0x00, 0x80, 0x00, 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("header = % X, want % X", got, want)
	}
}

func TestParseRange(t *testing.T) {
	cases := []struct {
		spec          string
		start, end    uint32
		wantErr       bool
	}{
		{spec: "0x8000-0xBFFF", start: 0x8000, end: 0xBFFF},
		{spec: "ram", start: 0x8000, end: 0xFFFF},
		{spec: "all", start: 0x0000, end: 0xFFFF},
		{spec: "B000-A000", wantErr: true},
	}
	for _, c := range cases {
		r, err := ParseRange(c.spec)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseRange(%q) should have failed", c.spec)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRange(%q): %v", c.spec, err)
			continue
		}
		if r.Start != c.start || r.End != c.end {
			t.Errorf("ParseRange(%q) = (%#x,%#x), want (%#x,%#x)", c.spec, r.Start, r.End, c.start, c.end)
		}
	}
}
