package hardware

import (
	"fmt"
	"os"
	"sync"

	"github.com/ti83emu/ticore/pkg/keypad"
)

// Tracer is the narrow interface CalcState mutations report through; the
// concrete implementation lives in internal/trace, kept decoupled here to
// avoid an import cycle (spec.md §9 "cyclic ownership"). Instr carries the
// full register snapshot spec.md §4.4's Instr record needs so the engine
// never has to reach back into the writer's encoding details.
type Tracer interface {
	Instr(pc uint16, opcode uint32, clock uint64, regs [15]uint16, iff1, iff2 bool, im, r7 byte, halted bool)
	MemWrite(addr uint16, value byte)
	KeyEvent(pressed bool, key byte, clock uint64, pc uint16)
}

// State is CalcState: the canonical, lockable calculator snapshot shared
// between the Z80 engine, the breakpoint table, the macro engine, and any
// debugger reading it.
type State struct {
	// Lock guards every field below. The Z80 engine holds it for the
	// duration of run_time; everyone else takes it for the duration of a
	// single read or mutation (spec.md §5).
	Lock sync.Mutex

	HW    Descriptor
	Mem   []byte
	Banks BankState

	Keys  keypad.State
	Clock uint64

	trace Tracer
}

// Load builds a CalcState for hw, with rom copied into the ROM region and
// any sav bytes copied into RAM (state-file semantics beyond the placeholder
// write are an external collaborator's contract, spec.md §6).
func Load(hw Descriptor, rom []byte, sav []byte) (*State, error) {
	if len(rom) == 0 {
		return nil, fmt.Errorf("no ROM data")
	}
	st := &State{
		HW:  hw,
		Mem: make([]byte, hw.RomSize+hw.RamSize+hw.LCDMemSize),
	}
	n := copy(st.Mem[:hw.RomSize], rom)
	_ = n
	if len(sav) > 0 {
		copy(st.Mem[hw.RomSize:hw.RomSize+hw.RamSize], sav)
	}
	st.Keys.Reset()
	return st, nil
}

// WriteStatePlaceholder writes the one-line "MODEL = NAME\n" marker next to
// romPath when no .sav file exists yet (spec.md §6).
func WriteStatePlaceholder(romPath, model string) error {
	path := romPath + ".sav"
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("MODEL = %s\n", model)), 0o644)
}

// Mapper returns a Mapper bound to this calculator's current bank state.
func (s *State) Mapper() *Mapper {
	return NewMapper(s.HW, &s.Banks, s.Mem)
}

// AttachTrace installs t as the active tracer, clearing any previous one
// first so the calc's slot is always cleared before a writer disposes
// (spec.md §9).
func (s *State) AttachTrace(t Tracer) {
	s.trace = t
}

// DetachTrace clears the calc's trace slot.
func (s *State) DetachTrace() {
	s.trace = nil
}

// Trace returns the currently attached tracer, or nil.
func (s *State) Trace() Tracer {
	return s.trace
}

// RAM returns the RAM view of the flat memory array.
func (s *State) RAM() []byte {
	return s.Mem[s.HW.RomSize : s.HW.RomSize+s.HW.RamSize]
}

// ROM returns the ROM view of the flat memory array.
func (s *State) ROM() []byte {
	return s.Mem[:s.HW.RomSize]
}

// LCD returns the LCD memory view of the flat memory array.
func (s *State) LCD() []byte {
	return s.Mem[s.HW.RomSize+s.HW.RamSize:]
}
