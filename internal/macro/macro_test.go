package macro

import (
	"strings"
	"testing"
)

// fakeDriver records every call a macro script makes, standing in for the
// EmulatorDriver the production engine provides.
type fakeDriver struct {
	pressed []string
	waits   []float64
}

func (f *fakeDriver) PressKey(name string) error {
	f.pressed = append(f.pressed, "press:"+strings.ToUpper(name))
	return nil
}

func (f *fakeDriver) ReleaseKey(name string) error {
	f.pressed = append(f.pressed, "release:"+strings.ToUpper(name))
	return nil
}

func (f *fakeDriver) AdvanceTime(seconds float64) {
	f.waits = append(f.waits, seconds)
}

func TestMacroKeyEnterDefaultHold(t *testing.T) {
	drv := &fakeDriver{}
	err := RunReader(strings.NewReader("key ENTER"), drv, DefaultSettings())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"press:ENTER", "release:ENTER"}
	if len(drv.pressed) != len(want) || drv.pressed[0] != want[0] || drv.pressed[1] != want[1] {
		t.Fatalf("key edges = %v, want %v", drv.pressed, want)
	}
	if len(drv.waits) != 1 || drv.waits[0] != 0.05 {
		t.Fatalf("wait sequence = %v, want exactly one 0.05s hold", drv.waits)
	}
}

func TestMacroSetMutatesSettings(t *testing.T) {
	drv := &fakeDriver{}
	script := "set key_hold 2\nkey ENTER"
	if err := RunReader(strings.NewReader(script), drv, DefaultSettings()); err != nil {
		t.Fatal(err)
	}
	if len(drv.waits) != 1 || drv.waits[0] != 2 {
		t.Fatalf("waits = %v, want a single 2s hold after set key_hold 2", drv.waits)
	}
}

func TestMacroTypeLettersUseAlphaCombo(t *testing.T) {
	drv := &fakeDriver{}
	if err := RunReader(strings.NewReader(`type "A"`), drv, DefaultSettings()); err != nil {
		t.Fatal(err)
	}
	want := []string{"press:ALPHA", "press:MATH", "release:MATH", "release:ALPHA"}
	if len(drv.pressed) != len(want) {
		t.Fatalf("key edges = %v, want %v", drv.pressed, want)
	}
	for i := range want {
		if drv.pressed[i] != want[i] {
			t.Fatalf("key edges = %v, want %v", drv.pressed, want)
		}
	}
}

func TestMacroCommentsAndBlankLinesIgnored(t *testing.T) {
	drv := &fakeDriver{}
	script := "# a comment\n\n// another comment\nkey ENTER # trailing comment"
	if err := RunReader(strings.NewReader(script), drv, DefaultSettings()); err != nil {
		t.Fatal(err)
	}
	if len(drv.pressed) != 2 {
		t.Fatalf("expected exactly one key press/release pair, got %v", drv.pressed)
	}
}

func TestMacroUnknownCommandAbortsWithLineNumber(t *testing.T) {
	drv := &fakeDriver{}
	script := "key ENTER\nbogus\nkey ENTER"
	err := RunReader(strings.NewReader(script), drv, DefaultSettings())
	if err == nil {
		t.Fatal("expected an error from the unknown command")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("error = %v, want it to name line 2", err)
	}
	if len(drv.pressed) != 2 {
		t.Fatalf("the line-3 key press must not run after line 2 aborts, got %v", drv.pressed)
	}
}

func TestMacroWaitUnits(t *testing.T) {
	drv := &fakeDriver{}
	script := "wait 1\nsleep 500 ms\npause 2s"
	if err := RunReader(strings.NewReader(script), drv, DefaultSettings()); err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 0.5, 2}
	if len(drv.waits) != len(want) {
		t.Fatalf("waits = %v, want %v", drv.waits, want)
	}
	for i := range want {
		if drv.waits[i] != want[i] {
			t.Fatalf("waits = %v, want %v", drv.waits, want)
		}
	}
}
