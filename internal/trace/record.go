package trace

import "encoding/binary"

// Record type tags (spec.md §4.4).
const (
	TagInstr    byte = 0x01
	TagMemWrite byte = 0x02
	TagKeyEvent byte = 0x03
)

// recordLen gives the fixed, tag-included length of every record type —
// the same table both the linear writer's limit check and the ring
// buffer's front-eviction logic consult (spec.md §4.4).
var recordLen = map[byte]int{
	TagInstr:    64,
	TagMemWrite: 6,
	TagKeyEvent: 9,
}

// InstrRecord is the payload of a 0x01 record.
type InstrRecord struct {
	PC, Opcode, Clock      uint32
	Regs                   [15]uint16
	IFF1, IFF2, IM, R7     byte
	Halted                 byte
}

// Encode serialises an Instr record to its fixed 64-byte wire form: 48
// bytes of real fields, zero-padded to the record's declared fixed size
// (spec.md §4.4's per-type byte column) so ring eviction can always skip
// exactly recordLen[tag] bytes without decoding the payload.
func (r InstrRecord) Encode() []byte {
	buf := make([]byte, recordLen[TagInstr])
	buf[0] = TagInstr
	binary.LittleEndian.PutUint32(buf[1:5], r.PC)
	binary.LittleEndian.PutUint32(buf[5:9], r.Opcode)
	binary.LittleEndian.PutUint32(buf[9:13], r.Clock)
	off := 13
	for _, v := range r.Regs {
		binary.LittleEndian.PutUint16(buf[off:off+2], v)
		off += 2
	}
	buf[off] = r.IFF1
	buf[off+1] = r.IFF2
	buf[off+2] = r.IM
	buf[off+3] = r.R7
	buf[off+4] = r.Halted
	return buf
}

// DecodeInstr parses a 64-byte Instr record. buf starts with the tag byte,
// which the caller must already have verified; it is not checked here.
func DecodeInstr(buf []byte) InstrRecord {
	var r InstrRecord
	r.PC = binary.LittleEndian.Uint32(buf[1:5])
	r.Opcode = binary.LittleEndian.Uint32(buf[5:9])
	r.Clock = binary.LittleEndian.Uint32(buf[9:13])
	off := 13
	for i := range r.Regs {
		r.Regs[i] = binary.LittleEndian.Uint16(buf[off : off+2])
		off += 2
	}
	r.IFF1, r.IFF2, r.IM, r.R7, r.Halted = buf[off], buf[off+1], buf[off+2], buf[off+3], buf[off+4]
	return r
}

// MemWriteRecord is the payload of a 0x02 record.
type MemWriteRecord struct {
	Addr  uint32
	Value byte
}

func (r MemWriteRecord) Encode() []byte {
	buf := make([]byte, recordLen[TagMemWrite])
	buf[0] = TagMemWrite
	binary.LittleEndian.PutUint32(buf[1:5], r.Addr)
	buf[5] = r.Value
	return buf
}

func DecodeMemWrite(buf []byte) MemWriteRecord {
	return MemWriteRecord{Addr: binary.LittleEndian.Uint32(buf[1:5]), Value: buf[5]}
}

// KeyEventRecord is the payload of a 0x03 record.
type KeyEventRecord struct {
	Pressed byte
	Key     byte
	Clock   uint32
	PC      uint16
}

func (r KeyEventRecord) Encode() []byte {
	buf := make([]byte, recordLen[TagKeyEvent])
	buf[0] = TagKeyEvent
	buf[1] = r.Pressed
	buf[2] = r.Key
	binary.LittleEndian.PutUint32(buf[3:7], r.Clock)
	binary.LittleEndian.PutUint16(buf[7:9], r.PC)
	return buf
}

func DecodeKeyEvent(buf []byte) KeyEventRecord {
	return KeyEventRecord{
		Pressed: buf[1], Key: buf[2],
		Clock: binary.LittleEndian.Uint32(buf[3:7]),
		PC:    binary.LittleEndian.Uint16(buf[7:9]),
	}
}

// RecordLenForTag returns the fixed wire length for a record type tag, or
// 0 if the tag is unrecognised (a corrupt-tag signal for the ring writer).
func RecordLenForTag(tag byte) int {
	return recordLen[tag]
}
