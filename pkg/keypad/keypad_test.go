package keypad

import "testing"

func TestLookupAliasesAndCase(t *testing.T) {
	enter, ok := Lookup("ENTER")
	if !ok {
		t.Fatal("ENTER should resolve")
	}
	ret, ok := Lookup("return")
	if !ok {
		t.Fatal("return should resolve via alias")
	}
	if ret != enter {
		t.Fatalf("RETURN alias = %+v, want the same Key as ENTER %+v", ret, enter)
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, ok := Lookup("NOSUCHKEY"); ok {
		t.Fatal("unknown key name should not resolve")
	}
}

func TestPressReleaseRoundTrip(t *testing.T) {
	var s State
	s.Reset()
	enter, _ := Lookup("ENTER")
	if s.IsDown(enter) {
		t.Fatal("ENTER should start up")
	}
	s.Press(enter)
	if !s.IsDown(enter) {
		t.Fatal("ENTER should be down after Press")
	}
	s.Release(enter)
	if s.IsDown(enter) {
		t.Fatal("ENTER should be up after Release")
	}
}

func TestRowMaskIsolatedPerGroup(t *testing.T) {
	var s State
	s.Reset()
	down, _ := Lookup("DOWN")  // group 0
	enter, _ := Lookup("ENTER") // group 1
	s.Press(down)
	s.Press(enter)
	if s.RowMask(down.Group) != 1<<down.Bit {
		t.Fatalf("group 0 mask = %#x, want only DOWN's bit set", s.RowMask(down.Group))
	}
	if s.RowMask(enter.Group) != 1<<enter.Bit {
		t.Fatalf("group 1 mask = %#x, want only ENTER's bit set", s.RowMask(enter.Group))
	}
}

func TestResetClearsGroupLatchAndKeys(t *testing.T) {
	var s State
	s.SetGroup(0x00)
	enter, _ := Lookup("ENTER")
	s.Press(enter)
	s.Reset()
	if s.Group() != 0xFF {
		t.Fatalf("Group() after Reset = %#x, want 0xFF", s.Group())
	}
	if s.IsDown(enter) {
		t.Fatal("keys should be released after Reset")
	}
}

func TestNamesCoversEveryCanonicalKey(t *testing.T) {
	names := Names()
	if len(names) == 0 {
		t.Fatal("Names() returned no keys")
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			t.Fatalf("duplicate canonical key name %q", n)
		}
		seen[n] = true
	}
}
