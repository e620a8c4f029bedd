package hardware

import "testing"

func TestModelByNameAliasesAndCase(t *testing.T) {
	for _, name := range []string{"TI83P", "ti83p", "TI-83+", "ti-83+"} {
		d, err := ModelByName(name)
		if err != nil {
			t.Fatalf("ModelByName(%q): %v", name, err)
		}
		if d.ModelID != "TI83P" {
			t.Fatalf("ModelByName(%q) = %q, want TI83P", name, d.ModelID)
		}
	}
}

func TestModelByNameUnknown(t *testing.T) {
	if _, err := ModelByName("TI-NOPE"); err == nil {
		t.Fatal("unknown model should return an error")
	}
}
