// Package z80 is the Z80 Engine of spec.md §4.2: it drives
// github.com/remogatto/z80 (the same full-instruction-coverage core the
// teacher wires in pkg/emulator/z80_remogatto.go) against a hardware.State,
// firing breakpoint and trace hooks on every fetch, memory write, and port
// access.
package z80

import (
	"github.com/remogatto/z80"

	"github.com/ti83emu/ticore/internal/breakpoint"
	"github.com/ti83emu/ticore/internal/hardware"
	"github.com/ti83emu/ticore/pkg/keypad"
)

// Registers is the fixed 15-register snapshot spec.md §4.4's Instr record
// carries, in on-the-wire order.
type Registers struct {
	AF, BC, DE, HL, IX, IY, SP, PC, IR, WZ, WZAlt, AFAlt, BCAlt, DEAlt, HLAlt uint16
}

// Engine wraps one remogatto/z80 CPU bound to a hardware.State's memory and
// keypad, dispatching through a breakpoint.Table and the calc's tracer.
type Engine struct {
	cpu  *z80.Z80
	bus  *bus
	calc *hardware.State
	bp   *breakpoint.Table

	ioRead  func(port uint16) byte
	ioWrite func(port uint16, value byte)

	haltRequested bool
	cancelled     bool

	lastInterruptClock uint64
}

// New builds an Engine for calc, ready to run once memory has been loaded.
func New(calc *hardware.State, bp *breakpoint.Table) *Engine {
	eng := &Engine{calc: calc, bp: bp}
	eng.bus = newBus(calc, bp, eng)
	eng.cpu = z80.NewZ80(eng.bus, eng.bus)
	eng.SetKeypadIO()
	return eng
}

// SetKeypadIO wires the default TI keypad row/group latch onto ports,
// matching the scan convention pkg/keypad documents: the ROM writes the
// active-low group select then reads the row bitmask back on the same port.
func (e *Engine) SetKeypadIO() {
	e.ioRead = func(port uint16) byte {
		if port&0xFF == groupSelectPort {
			return ^e.calc.Keys.RowMask(rowGroupFor(e.calc.Keys.Group()))
		}
		return 0xFF
	}
	e.ioWrite = func(port uint16, value byte) {}
}

// rowGroupFor maps the active-low group-select latch value onto one of the
// seven scanned key groups (the lowest clear bit selects the group, as is
// conventional for this style of column-select keypad).
func rowGroupFor(groupSelect byte) keypad.Group {
	for i := 0; i < 7; i++ {
		if groupSelect&(1<<i) == 0 {
			return keypad.Group(i)
		}
	}
	return 0
}

// SetIOHandlers overrides the default port handlers, e.g. to let a test
// harness observe OUT instructions directly.
func (e *Engine) SetIOHandlers(read func(uint16) byte, write func(uint16, byte)) {
	e.ioRead = read
	e.ioWrite = write
}

// Cancel requests that RunTime stop at the next instruction boundary
// (spec.md §5 "Cancellation").
func (e *Engine) Cancel() { e.cancelled = true }

func (e *Engine) requestHalt() { e.haltRequested = true }

// LoadAt copies data into the calculator's flat memory at a physical
// offset, for ROM/state-file loading before execution begins.
func (e *Engine) LoadAt(physAddr uint32, data []byte) {
	copy(e.calc.Mem[physAddr:], data)
}

// PC returns the current program counter.
func (e *Engine) PC() uint16 { return e.cpu.PC() }

// SetPC sets the program counter.
func (e *Engine) SetPC(pc uint16) { e.cpu.SetPC(pc) }

// SP returns the current stack pointer.
func (e *Engine) SP() uint16 { return e.cpu.SP() }

// Flags returns the F register.
func (e *Engine) Flags() byte { return e.cpu.F }

// Clock returns the virtual clock, in T-states.
func (e *Engine) Clock() uint64 { return e.calc.Clock }

// Halted reports whether the CPU is halted awaiting an interrupt.
func (e *Engine) Halted() bool { return e.cpu.Halted }

// ReadByteLogical performs a side-effect-free logical memory read, for
// debugger memory dumps.
func (e *Engine) ReadByteLogical(addr uint16) byte {
	return e.calc.Mapper().ReadByteLogical(addr)
}

// nextInstructionAddr is the engine's implementation of the spec.md §9
// disassembler hook, reading through the logical mapper.
func (e *Engine) nextInstructionAddr(pc uint16) uint16 {
	return breakpoint.DefaultNextInstructionAddr(e.calc.Mapper().ReadByteLogical)(pc)
}

func (e *Engine) currentCtx() breakpoint.CondCtx {
	pc := e.cpu.PC()
	m := e.calc.Mapper()
	var bytes [4]byte
	for i := range bytes {
		bytes[i] = m.ReadByteLogical(pc + uint16(i))
	}
	// Opcode encoding: unprefixed opcodes carry their byte value directly;
	// ED/CB-prefixed opcodes set the corresponding 0xED00/0xCB00 high byte;
	// DD- and FD-prefixed opcodes both encode as 0xDD00|byte, with bit
	// 0x2000 distinguishing FD from DD — this lets "op &^ 0x2000 == 0xDD76"
	// match a HALT-equivalent DD/FD 0x76 form from either prefix in one
	// comparison (spec.md §4.3's Step condition).
	opcode := uint16(bytes[0])
	switch bytes[0] {
	case 0xDD:
		opcode = 0xDD00 | uint16(bytes[1])
	case 0xFD:
		opcode = 0xDD00 | uint16(bytes[1]) | 0x2000
	case 0xED:
		opcode = 0xED00 | uint16(bytes[1])
	case 0xCB:
		opcode = 0xCB00 | uint16(bytes[1])
	}
	return breakpoint.CondCtx{
		PC:                pc,
		Opcode:            opcode,
		Bytes:             bytes,
		SP:                e.cpu.SP(),
		Flags:             e.cpu.F,
		InterruptsPending: false,
		IFF1:              e.cpu.IFF1 != 0,
	}
}

// asArray lays Registers out in the on-the-wire order the Instr record
// uses (matching the field order above).
func (r Registers) asArray() [15]uint16 {
	return [15]uint16{
		r.AF, r.BC, r.DE, r.HL, r.IX, r.IY, r.SP, r.PC,
		r.IR, r.WZ, r.WZAlt, r.AFAlt, r.BCAlt, r.DEAlt, r.HLAlt,
	}
}

// RegisterSnapshot reads the 15-register set for a trace Instr record. The
// CPU core does not expose the internal WZ register, so WZ and WZ' both
// carry the current PC.
func (e *Engine) RegisterSnapshot() Registers {
	af := uint16(e.cpu.A)<<8 | uint16(e.cpu.F)
	afAlt := uint16(e.cpu.A_)<<8 | uint16(e.cpu.F_)
	ir := uint16(e.cpu.I)<<8 | uint16(e.cpu.R)
	return Registers{
		AF: af, BC: e.cpu.BC(), DE: e.cpu.DE(), HL: e.cpu.HL(),
		IX: e.cpu.IX(), IY: e.cpu.IY(), SP: e.cpu.SP(), PC: e.cpu.PC(),
		IR: ir, WZ: e.cpu.PC(), WZAlt: e.cpu.PC(),
		AFAlt: afAlt,
		BCAlt: uint16(e.cpu.B_)<<8 | uint16(e.cpu.C_),
		DEAlt: uint16(e.cpu.D_)<<8 | uint16(e.cpu.E_),
		HLAlt: uint16(e.cpu.H_)<<8 | uint16(e.cpu.L_),
	}
}

// IFF1 reports the interrupt flip-flop that gates maskable interrupts.
func (e *Engine) IFF1() bool { return e.cpu.IFF1 != 0 }

// R7 returns the top bit of the memory-refresh register.
func (e *Engine) R7() byte { return e.cpu.R & 0x80 }

// IM returns the interrupt mode (0, 1, or 2).
func (e *Engine) IM() byte { return e.cpu.IM }

// RunTime executes whole instructions until the virtual clock has advanced
// by at least usecBudget microseconds (or a breakpoint halts the run, or
// Cancel is called), returning the unused microseconds (spec.md §4.2).
func (e *Engine) RunTime(usecBudget uint64) uint64 {
	hz := uint64(e.calc.HW.ClockHz)
	if hz == 0 {
		hz = 6000000
	}
	targetCycles := usecBudget * hz / 1000000
	var spent uint64

	e.haltRequested = false
	for spent < targetCycles {
		if e.cancelled {
			e.cancelled = false
			break
		}

		pc := e.cpu.PC()
		opcodeByte := e.bus.ReadByte(pc)
		ctx := e.currentCtx()
		clockAtStart := e.calc.Clock

		if t := e.calc.Trace(); t != nil {
			regs := e.RegisterSnapshot()
			t.Instr(pc, uint32(ctx.Opcode), clockAtStart, regs.asArray(), e.cpu.IFF1 != 0, e.cpu.IFF2 != 0, e.cpu.IM, e.cpu.R&0x80, e.cpu.Halted)
		}

		if e.bp.HasArmed(breakpoint.Opcode, breakpoint.Execute) || e.bp.HasArmed(breakpoint.Logical, breakpoint.Execute) {
			haltExec := e.bp.Dispatch(breakpoint.Event{Type: breakpoint.Logical, Mode: breakpoint.Execute, Addr: uint32(pc), Ctx: ctx}, e.nextInstructionAddr)
			haltOp := e.bp.Dispatch(breakpoint.Event{Type: breakpoint.Opcode, Mode: breakpoint.Execute, Addr: uint32(opcodeByte), Ctx: ctx}, e.nextInstructionAddr)
			if haltExec || haltOp {
				break
			}
		}

		before := e.cpu.Tstates
		e.cpu.DoOpcode()
		used := uint64(e.cpu.Tstates - before)
		if used == 0 {
			used = 4
		}
		e.calc.Clock = clockAtStart + used
		spent += used

		if e.haltRequested {
			e.haltRequested = false
			break
		}
		if e.cpu.Halted && e.cpu.IFF1 == 0 {
			// Halted with interrupts disabled: nothing will ever wake
			// this CPU again, so stop burning the budget spinning.
			break
		}
	}

	if spent >= targetCycles {
		return 0
	}
	remaining := targetCycles - spent
	return remaining * 1000000 / hz
}

// Reset reinitializes the CPU to power-on state.
func (e *Engine) Reset() { e.cpu.Reset() }
