package trace

import (
	"fmt"
	"io"
	"os"

	"github.com/ti83emu/ticore/internal/hardware"
)

// defaultLimitBytes is the linear mode default from spec.md §4.4 and §6.
const defaultLimitBytes = 500 * 1024 * 1024 * 1024

// Linear is the unbounded (byte-limited) trace writer. It appends records
// to an open file and disables itself — rather than propagating an error
// to the engine — the first time a write would exceed the limit or fail
// outright (spec.md §4.4, §7).
type Linear struct {
	fp           *os.File
	bytesWritten uint64
	limitBytes   uint64
	rangeStart   uint32
	rangeEnd     uint32
	enabled      bool
	warned       bool
	diag         io.Writer
}

// InitLinear opens path, writes the 20-byte header plus the range
// snapshot read through calc's mapper, and attaches itself to calc as the
// active tracer (spec.md §4.4 "Installs itself as calc.trace").
func InitLinear(calc *hardware.State, path string, rangeSpec string, limitBytes uint64, diag io.Writer) (*Linear, error) {
	r, err := ParseRange(rangeSpec)
	if err != nil {
		return nil, err
	}
	if limitBytes == 0 {
		limitBytes = defaultLimitBytes
	}
	if diag == nil {
		diag = os.Stderr
	}
	fp, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	l := &Linear{fp: fp, limitBytes: limitBytes, rangeStart: r.Start, rangeEnd: r.End, enabled: true, diag: diag}

	header := encodeHeader(r)
	snapshot := snapshotRange(calc, r)
	if _, err := fp.Write(header); err != nil {
		fp.Close()
		return nil, fmt.Errorf("write trace header: %w", err)
	}
	if _, err := fp.Write(snapshot); err != nil {
		fp.Close()
		return nil, fmt.Errorf("write trace snapshot: %w", err)
	}
	l.bytesWritten = uint64(len(header) + len(snapshot))
	calc.AttachTrace(l)
	return l, nil
}

func snapshotRange(calc *hardware.State, r Range) []byte {
	m := calc.Mapper()
	out := make([]byte, r.InitSize())
	for i := range out {
		out[i] = m.ReadByteLogical(uint16(r.Start) + uint16(i))
	}
	return out
}

// Instr implements hardware.Tracer.
func (l *Linear) Instr(pc uint16, opcode uint32, clock uint64, regs [15]uint16, iff1, iff2 bool, im, r7 byte, halted bool) {
	if !l.enabled {
		return
	}
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
	l.append(rec.Encode())
}

// MemWrite implements hardware.Tracer. A write outside the traced range is
// dropped (spec.md §4.4).
func (l *Linear) MemWrite(addr uint16, value byte) {
	if !l.enabled {
		return
	}
	a := uint32(addr)
	if a < l.rangeStart || a > l.rangeEnd {
		return
	}
	rec := MemWriteRecord{Addr: a, Value: value}
	l.append(rec.Encode())
}

// KeyEvent implements hardware.Tracer.
func (l *Linear) KeyEvent(pressed bool, key byte, clock uint64, pc uint16) {
	if !l.enabled {
		return
	}
	var p byte
	if pressed {
		p = 1
	}
	rec := KeyEventRecord{Pressed: p, Key: key, Clock: uint32(clock), PC: pc}
	l.append(rec.Encode())
}

// append enforces the byte limit with the Open-Question-(a) semantics:
// bytes_written only advances on a fully successful write, never on a
// short or failed one.
func (l *Linear) append(buf []byte) {
	if !l.enabled {
		return
	}
	if l.bytesWritten+uint64(len(buf)) > l.limitBytes {
		l.disable("Trace limit reached")
		return
	}
	n, err := l.fp.Write(buf)
	if err != nil || n != len(buf) {
		l.disable(fmt.Sprintf("trace write failed: %v", err))
		return
	}
	l.bytesWritten += uint64(n)
}

func (l *Linear) disable(reason string) {
	l.enabled = false
	if !l.warned {
		l.warned = true
		fmt.Fprintf(l.diag, "%s\n", reason)
	}
}

// Close flushes and closes the underlying file.
func (l *Linear) Close() error {
	return l.fp.Close()
}
