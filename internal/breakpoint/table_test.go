package breakpoint

import "testing"

func TestIdempotentToggle(t *testing.T) {
	tbl := New()
	id := tbl.Add(Logical, Execute, 0x9000, 0x9000, 0xFFFF, nil)

	tbl.SetDisabled(id, true)
	tbl.SetDisabled(id, false)

	if !tbl.HasArmed(Logical, Execute) {
		t.Fatal("breakpoint should be armed after toggling disabled on then off")
	}
}

func TestDispatchUnconditional(t *testing.T) {
	tbl := New()
	tbl.Add(Logical, Execute, 0x9000, 0x9000, 0xFFFF, nil)

	halt := tbl.Dispatch(Event{Type: Logical, Mode: Execute, Addr: 0x9000}, nil)
	if !halt {
		t.Fatal("unconditional breakpoint at matching address should halt")
	}

	halt = tbl.Dispatch(Event{Type: Logical, Mode: Execute, Addr: 0x9001}, nil)
	if halt {
		t.Fatal("breakpoint must not fire outside its range")
	}
}

func TestDispatchDisabledDoesNotFire(t *testing.T) {
	tbl := New()
	id := tbl.Add(Logical, Execute, 0x9000, 0x9000, 0xFFFF, nil)
	tbl.SetDisabled(id, true)

	if tbl.HasArmed(Logical, Execute) {
		t.Fatal("HasArmed must not report a disabled entry")
	}
	if tbl.Dispatch(Event{Type: Logical, Mode: Execute, Addr: 0x9000}, nil) {
		t.Fatal("a disabled breakpoint must never halt")
	}
}

func TestStepOverCallTarget(t *testing.T) {
	// scenario 3: CALL nn at logical 0x9000, a 3-byte instruction. The
	// transient breakpoint spans the whole address space, so Evaluate runs
	// on every instruction the called routine executes, not just the call
	// site and the return address.
	next := func(pc uint16) uint16 { return pc + 3 }

	cond := &StepOver{}
	if cond.Evaluate(CondCtx{PC: 0x9000, Opcode: 0xCD}, next) {
		t.Fatal("first Evaluate call must arm, not halt")
	}
	if cond.NextAddr != 0x9003 {
		t.Fatalf("step-over target = %#x, want 0x9003", cond.NextAddr)
	}

	// Instructions inside the called routine must not halt the run.
	if cond.Evaluate(CondCtx{PC: 0x8500, Opcode: 0x00}, next) {
		t.Fatal("step-over must not halt on an instruction inside the called routine")
	}
	if cond.Evaluate(CondCtx{PC: 0x8503, Opcode: 0xC9}, next) {
		t.Fatal("step-over must not halt on the called routine's own RET")
	}

	// Only landing back on the call's return address halts the run.
	if !cond.Evaluate(CondCtx{PC: 0x9003, Opcode: 0x00}, next) {
		t.Fatal("step-over must halt once execution reaches the return address")
	}
}

func TestStepDoesNotHaltOnHaltWithInterruptsDisabled(t *testing.T) {
	cond := Step{}
	haltCtx := CondCtx{Opcode: 0x76, IFF1: false}
	if cond.Evaluate(haltCtx, nil) {
		t.Fatal("Step must not halt on HALT with interrupts disabled")
	}

	normal := CondCtx{Opcode: 0x00}
	if !cond.Evaluate(normal, nil) {
		t.Fatal("Step must halt after any non-HALT instruction")
	}
}

func TestFinishHaltsOnReturnPastEntry(t *testing.T) {
	f := Finish{EntrySP: 0x8000}
	belowEntry := CondCtx{SP: 0x7FFE, Opcode: 0xC9}
	if f.Evaluate(belowEntry, nil) {
		t.Fatal("finish must not fire while still inside the call")
	}

	pastEntry := CondCtx{SP: 0x8002, Opcode: 0xC9}
	if !f.Evaluate(pastEntry, nil) {
		t.Fatal("finish must fire once a RET has unwound the stack past entry")
	}
}

func TestBreakpointModeValidation(t *testing.T) {
	if _, err := NewBreakpoint(Opcode, Write, 0, 0xFFFF, 0xFFFF); err == nil {
		t.Fatal("opcode breakpoints must reject non-Execute modes")
	}
	if _, err := NewBreakpoint(Port, Execute, 0, 0xFF, 0xFF); err == nil {
		t.Fatal("port breakpoints must reject Execute")
	}
	if _, err := NewBreakpoint(Logical, Execute, 0xB000, 0xA000, 0xFFFF); err == nil {
		t.Fatal("start > end after masking must be rejected")
	}
}

func TestBreakpointSetUnsetRoundTrip(t *testing.T) {
	tbl := New()
	b, err := NewBreakpoint(Logical, Read|Write, 0x8000, 0x8000, 0xFFFF)
	if err != nil {
		t.Fatal(err)
	}
	b.Set(tbl, AlwaysFire{})
	if !tbl.HasArmed(Logical, Read) || !tbl.HasArmed(Logical, Write) {
		t.Fatal("Set must register one entry per armed mode bit")
	}
	b.Unset()
	if tbl.HasArmed(Logical, Read) || tbl.HasArmed(Logical, Write) {
		t.Fatal("Unset must release every registered mode bit")
	}
}
