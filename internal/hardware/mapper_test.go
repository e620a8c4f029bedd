package hardware

import "testing"

func testDescriptor() Descriptor {
	return Descriptor{ModelID: "TEST", RomSize: 0x20000, RamSize: 0x8000, RamPageMask: 0x01, ClockHz: 6000000}
}

func TestMappingBijectionOnRAM(t *testing.T) {
	hw := testDescriptor()
	banks := BankState{Page2IsRAM: true, Page2: 1}
	for logical := uint32(0xC000); logical <= 0xFFFF; logical++ {
		phys := hw.LogicalToPhysical(banks, uint16(logical))
		if phys < hw.RomSize || phys >= hw.RomSize+hw.RamSize {
			t.Fatalf("logical %#x maps to %#x, outside RAM window [%#x,%#x)", logical, phys, hw.RomSize, hw.RomSize+hw.RamSize)
		}
	}
}

func TestLogicalToPhysicalFixedPages(t *testing.T) {
	hw := testDescriptor()
	banks := BankState{Page1: 2}

	if got := hw.LogicalToPhysical(banks, 0x0000); got != 0 {
		t.Fatalf("page 0 base should map to physical 0, got %#x", got)
	}
	if got := hw.LogicalToPhysical(banks, 0x4000); got != 0x8000 {
		t.Fatalf("page 1 bank 2 base should map to 0x8000, got %#x", got)
	}
}

func TestMapperReadWriteLogicalRoundTrip(t *testing.T) {
	hw := testDescriptor()
	mem := make([]byte, hw.RomSize+hw.RamSize)
	banks := BankState{Page2IsRAM: true, Page2: 0}
	m := NewMapper(hw, &banks, mem)

	m.WriteByteLogical(0xC000, 0x42)
	if got := m.ReadByteLogical(0xC000); got != 0x42 {
		t.Fatalf("read back %#x, want 0x42", got)
	}
}

func TestWriteByteLogicalDropsROMWrites(t *testing.T) {
	hw := testDescriptor()
	mem := make([]byte, hw.RomSize+hw.RamSize)
	mem[0] = 0xAA
	banks := BankState{}
	m := NewMapper(hw, &banks, mem)

	m.WriteByteLogical(0x0000, 0xFF)
	if mem[0] != 0xAA {
		t.Fatal("writes into the ROM region must be silently dropped")
	}
}

func TestReadWordLogicalLittleEndian(t *testing.T) {
	hw := testDescriptor()
	mem := make([]byte, hw.RomSize+hw.RamSize)
	banks := BankState{Page2IsRAM: true}
	m := NewMapper(hw, &banks, mem)

	m.WriteByteLogical(0xC000, 0x34)
	m.WriteByteLogical(0xC001, 0x12)
	if got := m.ReadWordLogical(0xC000); got != 0x1234 {
		t.Fatalf("word = %#x, want 0x1234", got)
	}
}
