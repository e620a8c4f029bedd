package breakpoint

// CondCtx is the information the engine hands a Condition after fetching
// one instruction and before executing it (and, for write/port events,
// while that instruction performs the access).
type CondCtx struct {
	PC                uint16
	Opcode            uint16 // unprefixed: the opcode byte; prefixed: prefix in the high byte (0xCB/0xED/0xDD, FD encoded as 0xDD|0x20), following byte in the low byte
	Bytes             [4]byte
	SP                uint16
	Flags             byte
	InterruptsPending bool
	IFF1              bool
}

// Condition is the tagged variant from spec.md §9: a breakpoint's optional
// condition callback, modeled without heap-allocated closures so the engine
// can dispatch on a plain switch.
type Condition interface {
	// Evaluate runs once the guarded instruction has been fetched, before
	// it executes (or, for a plain Execute/Opcode match with no condition,
	// is never called — a nil Condition always fires). It returns whether
	// the engine should halt the run.
	Evaluate(ctx CondCtx, next NextInstructionAddrFn) bool
}

// NextInstructionAddrFn is the single disassembler hook the core needs
// (spec.md §9): given the current pc, return the address of the following
// instruction. It is an external collaborator in the full system; this
// module's own best-effort decoder (decode.go) implements it.
type NextInstructionAddrFn func(pc uint16) uint16

// AlwaysFire is the condition used by a plain, unconditional breakpoint.
type AlwaysFire struct{}

func (AlwaysFire) Evaluate(CondCtx, NextInstructionAddrFn) bool { return true }

// Step implements spec.md §4.3's single-step condition: halt unless the
// current opcode is a HALT with interrupts disabled. With SkipFirst set,
// the first evaluation (the instruction the step starts from) never halts,
// so that instruction is executed before the run stops.
type Step struct {
	SkipFirst bool
}

func (s *Step) Evaluate(ctx CondCtx, _ NextInstructionAddrFn) bool {
	if s.SkipFirst {
		s.SkipFirst = false
		return false
	}
	isHalt := ctx.Opcode == 0x76 || (ctx.Opcode&^uint16(0x2000)) == 0xDD76
	if ctx.InterruptsPending && ctx.IFF1 {
		return true
	}
	return !isHalt
}

// StepOver implements spec.md §4.3's step-over condition. NextAddr starts
// at the zero value; the first Evaluate call computes the real target from
// the opcode just fetched, mutates NextAddr, and returns false. From then on
// (Armed == true) it halts only once ctx.PC lands back on NextAddr — every
// instruction inside the stepped-over call must evaluate false first.
type StepOver struct {
	Armed   bool
	NextAddr uint16
}

func (s *StepOver) Evaluate(ctx CondCtx, next NextInstructionAddrFn) bool {
	if s.Armed {
		return ctx.PC == s.NextAddr
	}
	s.NextAddr = stepOverTarget(ctx, next)
	s.Armed = true
	return false
}

// Finish implements spec.md §4.3's finish condition: halt once the stack
// has unwound past the call that was active when finish started and the
// instruction just executed was a taken RET (or JP (HL)/RETN). Because the
// engine evaluates each instruction before executing it, Finish remembers
// whether the previously evaluated instruction was such a return and
// checks the stack pointer on the instruction that follows it.
type Finish struct {
	EntrySP uint16

	retPending bool
}

func (f *Finish) Evaluate(ctx CondCtx, _ NextInstructionAddrFn) bool {
	if f.retPending && ctx.SP > f.EntrySP {
		return true
	}
	f.retPending = isTakenReturn(ctx)
	return false
}

// isTakenReturn reports whether the instruction in ctx is an unconditional
// RET, JP (HL)/(IX)/(IY), RETN/RETI, or a RET cc whose condition holds.
func isTakenReturn(ctx CondCtx) bool {
	switch {
	case ctx.Opcode == 0xC9: // RET
		return true
	case ctx.Opcode == 0xE9: // JP (HL)
		return true
	case (ctx.Opcode&^uint16(0x2000)) == 0xDDE9: // JP (IX)/(IY)
		return true
	case ctx.Opcode == 0xED45 || ctx.Opcode == 0xED4D: // RETN / RETI
		return true
	case ctx.Opcode <= 0xFF && isConditionalRet(byte(ctx.Opcode)) && condRetTaken(byte(ctx.Opcode), ctx.Flags):
		return true
	}
	return false
}

// isConditionalRet reports whether op is one of the eight RET cc opcodes.
func isConditionalRet(op byte) bool {
	return op&0xC7 == 0xC0
}

// condRetTaken evaluates the Z80 condition-code predicate (bits 3-4 of a
// RET cc / CALL cc / JP cc opcode) against the flags register: NZ,Z,NC,C,
// PO,PE,P,M, testing the Z, C, P/V and S bits per standard encoding.
func condRetTaken(op byte, flags byte) bool {
	const (
		flagC = 1 << 0
		flagPV = 1 << 2
		flagZ = 1 << 6
		flagS = 1 << 7
	)
	switch (op >> 3) & 0x07 {
	case 0: // NZ
		return flags&flagZ == 0
	case 1: // Z
		return flags&flagZ != 0
	case 2: // NC
		return flags&flagC == 0
	case 3: // C
		return flags&flagC != 0
	case 4: // PO
		return flags&flagPV == 0
	case 5: // PE
		return flags&flagPV != 0
	case 6: // P (sign clear)
		return flags&flagS == 0
	case 7: // M (sign set)
		return flags&flagS != 0
	}
	return false
}

// stepOverTarget picks the transient breakpoint address for step-over,
// per spec.md §4.3: subroutine calls (CALL/CALL cc/RST) break at the
// post-instruction (return) address; RET/RET cc and indirect jumps through
// HL/IX/IY are treated conservatively as branches whose target is unknown
// before execution, falling back to pc+1 (spec.md §9, Open Question b)
// rather than an address computed as <= pc; everything else uses the
// next-instruction-address hook directly.
func stepOverTarget(ctx CondCtx, next NextInstructionAddrFn) uint16 {
	op := byte(ctx.Opcode)
	switch {
	case (ctx.Opcode&^uint16(0x2000)) == 0xDDE9: // JP (IX)/(IY)
		return fallbackOrNext(ctx.PC, next)
	case ctx.Opcode > 0xFF: // other prefixed forms are neither calls nor returns
		return next(ctx.PC)
	case op == 0xCD: // CALL nn
		return ctx.PC + 3
	case op&0xC7 == 0xC4: // CALL cc,nn
		return ctx.PC + 3
	case op&0xC7 == 0xC7: // RST n
		return ctx.PC + 1
	case op == 0xC9, op&0xC7 == 0xC0: // RET / RET cc
		return fallbackOrNext(ctx.PC, next)
	case op == 0xE9: // JP (HL)
		return fallbackOrNext(ctx.PC, next)
	default:
		return next(ctx.PC)
	}
}

func fallbackOrNext(pc uint16, next NextInstructionAddrFn) uint16 {
	addr := next(pc)
	if addr <= pc {
		return pc + 1
	}
	return addr
}
