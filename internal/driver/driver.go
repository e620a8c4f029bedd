// Package driver implements the EmulatorDriver of spec.md §4.6: it runs
// the Z80 Engine either free-running (real time) or full-speed, and
// exposes the key/time/capture operations the macro engine and the
// headless CLI drive it through.
package driver

import (
	"fmt"
	"os"
	"time"

	"github.com/ti83emu/ticore/internal/hardware"
	"github.com/ti83emu/ticore/internal/z80"
	"github.com/ti83emu/ticore/pkg/keypad"
)

// frameDuration is the real-time frame the free-running loop sleeps
// between, matching wall time to virtual time a frame at a time
// (spec.md §4.6).
const frameDuration = 30 * time.Millisecond

// frameMicros is how much virtual time one frame advances.
const frameMicros = uint64(frameDuration / time.Microsecond)

// MemRegion names a memdump source (spec.md §4.6).
type MemRegion string

const (
	RegionROM        MemRegion = "rom"
	RegionRAM        MemRegion = "ram"
	RegionLCD        MemRegion = "lcd"
	RegionAll        MemRegion = "all"
	RegionRAMLogical MemRegion = "ram-logical"
)

// EmulatorDriver coordinates a hardware.State and its Z80 Engine, owning
// CalcState's lock for the duration of every run_time call (spec.md §5).
type EmulatorDriver struct {
	Calc   *hardware.State
	Engine *z80.Engine

	// FullSpeed disables the real-time frame sleep.
	FullSpeed bool
}

// New builds a driver bound to calc and eng.
func New(calc *hardware.State, eng *z80.Engine) *EmulatorDriver {
	return &EmulatorDriver{Calc: calc, Engine: eng}
}

// AdvanceTime runs the engine for seconds of virtual time, in frame-sized
// run_time chunks, sleeping between chunks in real-time mode (spec.md
// §4.6, §5 "advance_time ... MAY drive run_time in chunks").
func (d *EmulatorDriver) AdvanceTime(seconds float64) {
	remainingUsec := uint64(seconds * 1e6)
	for remainingUsec > 0 {
		chunk := frameMicros
		if chunk > remainingUsec {
			chunk = remainingUsec
		}
		start := time.Now()

		d.Calc.Lock.Lock()
		leftover := d.Engine.RunTime(chunk)
		d.Calc.Lock.Unlock()

		spent := chunk - leftover
		remainingUsec -= spent
		if spent == 0 || (d.Engine.Halted() && !d.Engine.IFF1()) {
			// The CPU halted with interrupts disabled; nothing further
			// will advance the clock, so stop spinning on empty chunks.
			break
		}
		if !d.FullSpeed {
			if elapsed := time.Since(start); elapsed < frameDuration {
				time.Sleep(frameDuration - elapsed)
			}
		}
	}
}

// PressKey presses a named key and lets the Z80 observe the edge by
// running a small fixed quantum (spec.md §4.5 "advances the Z80 by a
// small fixed quantum to let the ROM observe the edge").
func (d *EmulatorDriver) PressKey(name string) error {
	k, ok := keypad.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown key %q", name)
	}
	d.Calc.Lock.Lock()
	d.Calc.Keys.Press(k)
	d.emitKeyEvent(true, k)
	d.Calc.Lock.Unlock()
	d.settleEdge()
	return nil
}

// ReleaseKey releases a named key, settling the edge the same way.
func (d *EmulatorDriver) ReleaseKey(name string) error {
	k, ok := keypad.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown key %q", name)
	}
	d.Calc.Lock.Lock()
	d.Calc.Keys.Release(k)
	d.emitKeyEvent(false, k)
	d.Calc.Lock.Unlock()
	d.settleEdge()
	return nil
}

// emitKeyEvent reports a key edge to the attached tracer, if any (spec.md
// §4.4's KeyEvent record: pressed, key code, clock, pc). Called with
// Calc.Lock held, matching where the edge itself is applied.
func (d *EmulatorDriver) emitKeyEvent(pressed bool, k keypad.Key) {
	if t := d.Calc.Trace(); t != nil {
		t.KeyEvent(pressed, k.Code, d.Calc.Clock, d.Engine.PC())
	}
}

// keyEdgeQuantumUsec is the small fixed run_time slice given to the
// engine after every key edge so scan-loop ROM code observes the change.
const keyEdgeQuantumUsec = 2000

func (d *EmulatorDriver) settleEdge() {
	d.Calc.Lock.Lock()
	d.Engine.RunTime(keyEdgeQuantumUsec)
	d.Calc.Lock.Unlock()
}

// Screenshot writes the raw LCD memory region to path: the core treats
// pixel rendering as an opaque sink (spec.md §1 Non-goals), so the file
// is the undecoded LCD controller memory, not an image.
func (d *EmulatorDriver) Screenshot(path string) error {
	d.Calc.Lock.Lock()
	buf := append([]byte(nil), d.Calc.LCD()...)
	d.Calc.Lock.Unlock()
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	return nil
}

// Memdump writes region to path. "ram-logical" reads every address of
// the RAM range through the mapper (so it reflects the current bank
// mapping); every other region copies its contiguous physical bytes
// directly (spec.md §4.6).
func (d *EmulatorDriver) Memdump(path string, region MemRegion) error {
	d.Calc.Lock.Lock()
	defer d.Calc.Lock.Unlock()

	var buf []byte
	switch region {
	case RegionROM:
		buf = d.Calc.ROM()
	case RegionRAM:
		buf = d.Calc.RAM()
	case RegionLCD:
		buf = d.Calc.LCD()
	case RegionAll:
		buf = d.Calc.Mem
	case RegionRAMLogical:
		m := d.Calc.Mapper()
		buf = make([]byte, 0x10000-0x8000)
		for i := range buf {
			buf[i] = m.ReadByteLogical(uint16(0x8000 + i))
		}
	default:
		return fmt.Errorf("unknown memdump region %q", region)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write memdump: %w", err)
	}
	return nil
}
