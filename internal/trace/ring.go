package trace

import (
	"fmt"
	"io"
	"os"

	"github.com/ti83emu/ticore/internal/hardware"
)

// defaultBacktraceLimitBytes is the ring-mode default from spec.md §6.
const defaultBacktraceLimitBytes = 1 * 1024 * 1024 * 1024

// Ring is the fixed-size circular-buffer ("backtrace") trace writer
// (spec.md §4.4). It keeps only the most recent N bytes of records, and
// keeps an in-memory pre-image of the traced range patched as MemWrite
// records fall off the front, so the snapshot plus whatever records
// remain always reconstruct the current memory image of the range.
type Ring struct {
	path string
	diag io.Writer
	calc *hardware.State // borrowed; lets resync rebuild the snapshot live (spec.md §4.4, §9)

	header   []byte
	snapshot []byte
	rangeR   Range

	ring    []byte
	start   int
	used    int
	wrapped bool
}

// InitRing allocates a ring of limitBytes, snapshots calc's traced range
// into an in-memory pre-image, and attaches itself to calc as the active
// tracer.
func InitRing(calc *hardware.State, path string, rangeSpec string, limitBytes uint64, diag io.Writer) (*Ring, error) {
	r, err := ParseRange(rangeSpec)
	if err != nil {
		return nil, err
	}
	if limitBytes == 0 {
		limitBytes = defaultBacktraceLimitBytes
	}
	if diag == nil {
		diag = os.Stderr
	}
	rg := &Ring{
		path:     path,
		diag:     diag,
		calc:     calc,
		header:   encodeHeader(r),
		snapshot: snapshotRange(calc, r),
		rangeR:   r,
		ring:     make([]byte, limitBytes),
	}
	calc.AttachTrace(rg)
	return rg, nil
}

// Instr implements hardware.Tracer.
func (rg *Ring) Instr(pc uint16, opcode uint32, clock uint64, regs [15]uint16, iff1, iff2 bool, im, r7 byte, halted bool) {
	var iff1b, iff2b, haltedb byte
	if iff1 {
		iff1b = 1
	}
	if iff2 {
		iff2b = 1
	}
	if halted {
		haltedb = 1
	}
	rec := InstrRecord{
		PC: uint32(pc), Opcode: opcode, Clock: uint32(clock), Regs: regs,
		IFF1: iff1b, IFF2: iff2b, IM: im, R7: r7, Halted: haltedb,
	}
	rg.push(rec.Encode())
}

// MemWrite implements hardware.Tracer. A write outside the traced range
// is dropped, same as Linear.
func (rg *Ring) MemWrite(addr uint16, value byte) {
	a := uint32(addr)
	if a < rg.rangeR.Start || a > rg.rangeR.End {
		return
	}
	rec := MemWriteRecord{Addr: a, Value: value}
	rg.push(rec.Encode())
}

// KeyEvent implements hardware.Tracer.
func (rg *Ring) KeyEvent(pressed bool, key byte, clock uint64, pc uint16) {
	var p byte
	if pressed {
		p = 1
	}
	rec := KeyEventRecord{Pressed: p, Key: key, Clock: uint32(clock), PC: pc}
	rg.push(rec.Encode())
}

// push appends buf to the ring, evicting whole records from the front
// until it fits (spec.md §4.4 "Ring mode (backtrace)").
func (rg *Ring) push(buf []byte) {
	n := len(rg.ring)
	if len(buf) > n {
		// A single record larger than the whole ring can't ever fit;
		// drop it rather than evicting everything for nothing.
		return
	}
	for rg.used+len(buf) > n {
		if !rg.evictOne() {
			rg.resync()
			break
		}
	}
	pos := (rg.start + rg.used) % n
	for _, b := range buf {
		rg.ring[pos] = b
		pos = (pos + 1) % n
		if pos == rg.start && rg.used > 0 {
			rg.wrapped = true
		}
	}
	rg.used += len(buf)
}

// evictOne drops the single oldest record, patching the header snapshot
// first if it was a MemWrite. Reports false on a corrupt/unrecognised
// leading tag so push can resynchronise instead of looping forever.
func (rg *Ring) evictOne() bool {
	if rg.used == 0 {
		return false
	}
	n := len(rg.ring)
	tag := rg.ring[rg.start]
	length := RecordLenForTag(tag)
	if length == 0 || length > rg.used {
		return false
	}
	rec := rg.readAt(rg.start, length)
	if tag == TagMemWrite {
		mw := DecodeMemWrite(rec)
		rg.patchSnapshot(mw.Addr, mw.Value)
	}
	rg.start = (rg.start + length) % n
	rg.used -= length
	return true
}

// resync rebuilds the header snapshot live from CalcState and clears the
// ring, matching spec.md §4.4's response to a corrupt leading tag: rather
// than trusting the (possibly stale) in-memory pre-image patched so far,
// it re-reads the traced range directly, so header ⊕ replay(ring) is exact
// again even though every record retained up to this point is discarded.
func (rg *Ring) resync() {
	fmt.Fprintf(rg.diag, "trace ring resynchronised after corrupt record tag\n")
	rg.snapshot = snapshotRange(rg.calc, rg.rangeR)
	rg.start, rg.used, rg.wrapped = 0, 0, false
}

// patchSnapshot applies an evicted MemWrite to the in-memory pre-image at
// header_len_fixed + (addr - range_start), keeping header ⊕ replay(ring)
// equal to the current memory image of the traced range (spec.md §4.4).
func (rg *Ring) patchSnapshot(addr uint32, value byte) {
	if addr < rg.rangeR.Start || addr > rg.rangeR.End {
		return
	}
	off := addr - rg.rangeR.Start
	if int(off) < len(rg.snapshot) {
		rg.snapshot[off] = value
	}
}

// readAt copies length bytes starting at a ring index, following the wrap.
func (rg *Ring) readAt(at, length int) []byte {
	n := len(rg.ring)
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = rg.ring[(at+i)%n]
	}
	return out
}

// Close flushes header, snapshot, then the retained ring bytes in logical
// order ([start..end) followed by [0..start), limited to used) to path.
func (rg *Ring) Close() error {
	fp, err := os.Create(rg.path)
	if err != nil {
		return fmt.Errorf("open backtrace file: %w", err)
	}
	defer fp.Close()

	if _, err := fp.Write(rg.header); err != nil {
		return fmt.Errorf("write backtrace header: %w", err)
	}
	if _, err := fp.Write(rg.snapshot); err != nil {
		return fmt.Errorf("write backtrace snapshot: %w", err)
	}
	if rg.used > 0 {
		if _, err := fp.Write(rg.readAt(rg.start, rg.used)); err != nil {
			return fmt.Errorf("write backtrace records: %w", err)
		}
	}
	return nil
}
