package z80

import (
	"testing"

	"github.com/ti83emu/ticore/internal/breakpoint"
	"github.com/ti83emu/ticore/internal/hardware"
)

func testDescriptor() hardware.Descriptor {
	return hardware.Descriptor{ModelID: "TEST", RomSize: 0x1000, RamSize: 0x1000, LCDMemSize: 0x300, ClockHz: 1000000}
}

func TestRunTimeAdvancesClockOverNOPs(t *testing.T) {
	rom := make([]byte, 0x1000)
	for i := range rom {
		rom[i] = 0x00 // NOP
	}
	calc, err := hardware.Load(testDescriptor(), rom, nil)
	if err != nil {
		t.Fatal(err)
	}
	bp := breakpoint.New()
	eng := New(calc, bp)

	remaining := eng.RunTime(1000)
	if remaining != 0 {
		t.Fatalf("RunTime should consume the whole budget on an infinite NOP stream, got %d usec left", remaining)
	}
	if eng.Clock() == 0 {
		t.Fatal("clock should have advanced")
	}
	if eng.PC() == 0 {
		t.Fatal("PC should have advanced past address 0 after executing NOPs")
	}
}

func TestRunTimeStopsOnHaltWithInterruptsDisabled(t *testing.T) {
	rom := make([]byte, 0x1000)
	rom[0] = 0xF3 // DI
	rom[1] = 0x76 // HALT
	calc, err := hardware.Load(testDescriptor(), rom, nil)
	if err != nil {
		t.Fatal(err)
	}
	bp := breakpoint.New()
	eng := New(calc, bp)

	eng.RunTime(1_000_000)
	if !eng.Halted() {
		t.Fatal("CPU should be halted")
	}
	if eng.IFF1() {
		t.Fatal("interrupts should be disabled after DI")
	}
}

func TestRunTimeHonorsExecuteBreakpoint(t *testing.T) {
	rom := make([]byte, 0x1000)
	for i := range rom {
		rom[i] = 0x00 // NOP
	}
	calc, err := hardware.Load(testDescriptor(), rom, nil)
	if err != nil {
		t.Fatal(err)
	}
	bp := breakpoint.New()
	eng := New(calc, bp)

	bp.Add(breakpoint.Logical, breakpoint.Execute, 0x0005, 0x0005, 0xFFFF, breakpoint.AlwaysFire{})

	eng.RunTime(1_000_000)
	if eng.PC() != 0x0005 {
		t.Fatalf("PC = %#x, want the engine to stop exactly at the breakpoint address 0x0005", eng.PC())
	}
}

func TestCancelStopsRunTimeEarly(t *testing.T) {
	rom := make([]byte, 0x1000)
	for i := range rom {
		rom[i] = 0x00 // NOP
	}
	calc, err := hardware.Load(testDescriptor(), rom, nil)
	if err != nil {
		t.Fatal(err)
	}
	bp := breakpoint.New()
	eng := New(calc, bp)
	eng.Cancel()

	remaining := eng.RunTime(1_000_000)
	if remaining == 0 {
		t.Fatal("a pre-cancelled engine should return unused budget immediately")
	}
}
