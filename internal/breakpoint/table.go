// Package breakpoint implements the BreakpointTable of spec.md §4.3: fast
// registration and dispatch of execute/read/write/port/opcode breakpoints,
// and the transient-breakpoint conditions that back step/step-over/finish.
package breakpoint

import "sync"

// Type is the kind of address a breakpoint matches against.
type Type int

const (
	Logical Type = iota
	Physical
	Port
	Opcode
)

// Mode is the access bitset a breakpoint arms (spec.md §3).
type Mode uint8

const (
	Execute Mode = 1
	Write   Mode = 2
	Read    Mode = 4
)

// entry is one engine-level registration — one per armed Mode bit of a
// Breakpoint (spec.md §3: "ids[3] engine handles for each enabled mode").
type entry struct {
	id       int
	typ      Type
	mode     Mode
	start    uint32
	end      uint32
	mask     uint32
	disabled bool
	cond     Condition // nil means AlwaysFire
}

// Table is the BreakpointTable: registration, lookup, and dispatch.
type Table struct {
	mu      sync.Mutex
	entries map[int]*entry
	nextID  int
}

// New creates an empty breakpoint table.
func New() *Table {
	return &Table{entries: make(map[int]*entry)}
}

// Add registers a single engine-level breakpoint for one mode bit and
// returns its id. Adding while the engine is running requires the caller
// to hold CalcState's lock (spec.md §4.3).
func (t *Table) Add(typ Type, mode Mode, start, end, mask uint32, cond Condition) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	t.entries[id] = &entry{id: id, typ: typ, mode: mode, start: start, end: end, mask: mask, cond: cond}
	return id
}

// Remove releases a previously registered breakpoint. Removing an unknown
// id is a no-op, matching the idempotent-toggle invariant (spec.md §8).
func (t *Table) Remove(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// SetDisabled toggles whether an entry participates in dispatch without
// unregistering it.
func (t *Table) SetDisabled(id int, disabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok {
		e.disabled = disabled
	}
}

// Event describes one breakpoint-checkable occurrence the engine dispatches.
type Event struct {
	Type Type
	Mode Mode
	Addr uint32
	Ctx  CondCtx
}

// Dispatch walks every armed entry matching Type and Mode, tests the masked
// address, and evaluates each match's condition. Every matching entry runs
// (spec.md §4.3 "multiple breakpoints at the same address all run"); the
// call halts if any condition returns true.
func (t *Table) Dispatch(ev Event, next NextInstructionAddrFn) bool {
	t.mu.Lock()
	matches := make([]*entry, 0, 4)
	for _, e := range t.entries {
		if e.disabled || e.typ != ev.Type || e.mode != ev.Mode {
			continue
		}
		masked := ev.Addr & e.mask
		if masked < e.start || masked > e.end {
			continue
		}
		matches = append(matches, e)
	}
	t.mu.Unlock()

	halt := false
	for _, e := range matches {
		if e.cond == nil {
			halt = true
			continue
		}
		if e.cond.Evaluate(ev.Ctx, next) {
			halt = true
		}
	}
	return halt
}

// HasArmed reports whether any non-disabled entry matches Type and Mode,
// letting the engine skip Dispatch's per-instruction address-masking work
// when no breakpoints of that kind are registered.
func (t *Table) HasArmed(typ Type, mode Mode) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if !e.disabled && e.typ == typ && e.mode == mode {
			return true
		}
	}
	return false
}
