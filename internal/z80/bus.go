package z80

import (
	"github.com/ti83emu/ticore/internal/breakpoint"
	"github.com/ti83emu/ticore/internal/hardware"
)

// bus implements github.com/remogatto/z80's MemoryAccessor and
// PortAccessor over a hardware.State, routing every store through Write
// breakpoints and the attached tracer the way the teacher's
// pkg/emulator/z80_remogatto.go Memory/Ports types route through an SMC
// tracker and a console-output port.
type bus struct {
	calc *hardware.State
	bp   *breakpoint.Table
	eng  *Engine
}

func newBus(calc *hardware.State, bp *breakpoint.Table, eng *Engine) *bus {
	return &bus{calc: calc, bp: bp, eng: eng}
}

// --- MemoryAccessor ---

func (b *bus) ReadByte(address uint16) byte {
	return b.calc.Mapper().ReadByteLogical(address)
}

func (b *bus) ReadByteInternal(address uint16) byte { return b.ReadByte(address) }

func (b *bus) WriteByte(address uint16, value byte) {
	b.writeLogical(address, value)
}

func (b *bus) WriteByteInternal(address uint16, value byte) { b.writeLogical(address, value) }

func (b *bus) writeLogical(address uint16, value byte) {
	phys := b.calc.Mapper().LogicalToPhysical(address)
	halt := b.bp.Dispatch(breakpoint.Event{
		Type: breakpoint.Logical, Mode: breakpoint.Write, Addr: uint32(address),
		Ctx: b.eng.currentCtx(),
	}, b.eng.nextInstructionAddr)
	if halt {
		b.eng.requestHalt()
	}
	if b.bp.Dispatch(breakpoint.Event{
		Type: breakpoint.Physical, Mode: breakpoint.Write, Addr: phys,
		Ctx: b.eng.currentCtx(),
	}, b.eng.nextInstructionAddr) {
		b.eng.requestHalt()
	}
	b.calc.Mapper().WriteByteLogical(address, value)
	if t := b.calc.Trace(); t != nil {
		t.MemWrite(address, value)
	}
}

func (b *bus) ContendRead(address uint16, time int)                     {}
func (b *bus) ContendReadNoMreq(address uint16, time int)                {}
func (b *bus) ContendReadNoMreq_loop(address uint16, time int, count uint) {}
func (b *bus) ContendWriteNoMreq(address uint16, time int)               {}
func (b *bus) ContendWriteNoMreq_loop(address uint16, time int, count uint) {}

func (b *bus) Read(address uint16) byte { return b.ReadByte(address) }

func (b *bus) Write(address uint16, value byte, protectROM bool) {
	if protectROM {
		phys := b.calc.Mapper().LogicalToPhysical(address)
		if phys < b.calc.HW.RomSize {
			return
		}
	}
	b.writeLogical(address, value)
}

func (b *bus) Data() []byte { return b.calc.Mem }

// --- PortAccessor ---

func (b *bus) ReadPort(address uint16) byte {
	halt := b.bp.Dispatch(breakpoint.Event{
		Type: breakpoint.Port, Mode: breakpoint.Read, Addr: uint32(address & 0xFF),
		Ctx: b.eng.currentCtx(),
	}, b.eng.nextInstructionAddr)
	if halt {
		b.eng.requestHalt()
	}
	if b.eng.ioRead != nil {
		return b.eng.ioRead(address)
	}
	return 0xFF
}

func (b *bus) WritePort(address uint16, value byte) {
	if address&0xFF == uint16(groupSelectPort) {
		b.calc.Keys.SetGroup(value)
	}
	halt := b.bp.Dispatch(breakpoint.Event{
		Type: breakpoint.Port, Mode: breakpoint.Write, Addr: uint32(address & 0xFF),
		Ctx: b.eng.currentCtx(),
	}, b.eng.nextInstructionAddr)
	if halt {
		b.eng.requestHalt()
	}
	if b.eng.ioWrite != nil {
		b.eng.ioWrite(address, value)
	}
}

func (b *bus) ReadPortInternal(address uint16, contend bool) byte { return b.ReadPort(address) }

func (b *bus) WritePortInternal(address uint16, value byte, contend bool) {
	b.WritePort(address, value)
}

func (b *bus) ContendPortPreio(address uint16)  {}
func (b *bus) ContendPortPostio(address uint16) {}

// groupSelectPort is the I/O port the keypad column-select latch is
// conventionally wired to; ROMs write the active-low group value here
// before reading the row state back on the same port.
const groupSelectPort = 0x01
