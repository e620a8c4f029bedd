package breakpoint

import "testing"

func TestDefaultNextInstructionAddrCallNN(t *testing.T) {
	mem := map[uint16]byte{0x9000: 0xCD, 0x9001: 0x00, 0x9002: 0x90}
	read := func(addr uint16) byte { return mem[addr] }
	next := DefaultNextInstructionAddr(read)
	if got := next(0x9000); got != 0x9003 {
		t.Fatalf("CALL nn length = %#x, want 0x9003", got)
	}
}

func TestDefaultNextInstructionAddrDDPrefixedDisplacement(t *testing.T) {
	// DD 35 d: DEC (IX+d) — prefix + base opcode (1) + displacement.
	mem := map[uint16]byte{0x8000: 0xDD, 0x8001: 0x35, 0x8002: 0x05}
	read := func(addr uint16) byte { return mem[addr] }
	next := DefaultNextInstructionAddr(read)
	if got := next(0x8000); got != 0x8003 {
		t.Fatalf("DD 35 d length = %#x, want 0x8003", got)
	}
}

func TestDefaultNextInstructionAddrUnprefixed(t *testing.T) {
	mem := map[uint16]byte{0x8000: 0x00} // NOP
	read := func(addr uint16) byte { return mem[addr] }
	next := DefaultNextInstructionAddr(read)
	if got := next(0x8000); got != 0x8001 {
		t.Fatalf("NOP length = %#x, want 0x8001", got)
	}
}
