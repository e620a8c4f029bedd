// Package debugger is the interactive front end for internal/breakpoint
// and internal/z80: a REPL that sets breakpoints, single-steps, and
// inspects CalcState, in the spirit of the emulator's own debugger
// console (spec.md §4.2 "used both by an interactive debugger and for
// step/step-over/finish control").
package debugger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/ti83emu/ticore/internal/breakpoint"
	"github.com/ti83emu/ticore/internal/driver"
	"github.com/ti83emu/ticore/internal/z80"
)

// Config holds debugger I/O configuration, mirroring the emulator's own
// debugger.Config{Input,Output} shape.
type Config struct {
	Input  io.Reader
	Output io.Writer
}

// Debugger drives one Engine/Table pair from an interactive console.
type Debugger struct {
	eng *z80.Engine
	bp  *breakpoint.Table
	drv *driver.EmulatorDriver

	input   *bufio.Scanner
	output  io.Writer
	rawTerm *os.File // non-nil once Run puts this fd into raw mode (nil for piped/non-terminal input)

	instrCount uint64
}

// New builds a Debugger bound to eng/bp/drv.
func New(eng *z80.Engine, bp *breakpoint.Table, drv *driver.EmulatorDriver, cfg *Config) *Debugger {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Input == nil {
		cfg.Input = os.Stdin
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	d := &Debugger{
		eng: eng, bp: bp, drv: drv,
		input:  bufio.NewScanner(cfg.Input),
		output: cfg.Output,
	}
	if f, ok := cfg.Input.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		d.rawTerm = f
	}
	return d
}

// errQuit is handle's sentinel for the "quit" command, letting Run return
// through its normal path so the deferred terminal restore below still runs.
var errQuit = fmt.Errorf("quit")

// Run starts the REPL; it blocks until the user quits. When Input is a
// terminal it is switched to raw mode for the duration of the session
// (mirroring the teacher's own REPL raw-mode toggle around blocking reads)
// so a Ctrl-C during a blocked read reaches the debugger as a plain byte
// instead of killing the process; it is always restored before returning.
func (d *Debugger) Run() error {
	if d.rawTerm != nil {
		old, err := term.MakeRaw(int(d.rawTerm.Fd()))
		if err != nil {
			d.rawTerm = nil
		} else {
			defer term.Restore(int(d.rawTerm.Fd()), old)
		}
	}

	fmt.Fprintln(d.output, "🔧 ticore debugger — type 'help' for commands")
	d.displayRegisters()

	for {
		fmt.Fprint(d.output, "dbg> ")
		cmd, ok := d.readLine()
		if !ok {
			return nil
		}
		if cmd == "" {
			cmd = "s"
		}
		if err := d.handle(cmd); err != nil {
			if err == errQuit {
				fmt.Fprintln(d.output, "goodbye")
				return nil
			}
			fmt.Fprintf(d.output, "error: %v\n", err)
		}
	}
}

// readLine reads one command line. In raw mode the terminal driver no
// longer echoes keystrokes or handles backspace itself, so this reads byte
// by byte, echoing input back and erasing on backspace/DEL; otherwise it
// reads a line through the buffered scanner exactly as before.
func (d *Debugger) readLine() (string, bool) {
	if d.rawTerm == nil {
		if !d.input.Scan() {
			return "", false
		}
		return strings.TrimSpace(d.input.Text()), true
	}

	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := d.rawTerm.Read(buf)
		if n == 0 || err != nil {
			return "", false
		}
		switch b := buf[0]; b {
		case '\r', '\n':
			fmt.Fprint(d.output, "\r\n")
			return strings.TrimSpace(string(line)), true
		case 0x03: // Ctrl-C
			fmt.Fprint(d.output, "^C\r\n")
			return "", false
		case 0x7F, 0x08: // DEL / Backspace
			if len(line) > 0 {
				line = line[:len(line)-1]
				fmt.Fprint(d.output, "\b \b")
			}
		default:
			line = append(line, b)
			d.output.Write(buf)
		}
	}
}

func (d *Debugger) handle(cmd string) error {
	parts := strings.Fields(cmd)
	switch parts[0] {
	case "h", "help", "?":
		d.printHelp()

	case "s", "step":
		d.runFor(1)
		d.displayRegisters()

	case "n", "next":
		d.stepWith(&breakpoint.StepOver{})
		d.displayRegisters()

	case "fin", "finish":
		d.stepWith(&breakpoint.Finish{EntrySP: d.eng.SP()})
		d.displayRegisters()

	case "c", "continue", "run":
		if len(parts) > 1 {
			usec, err := strconv.ParseUint(parts[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid usec budget %q", parts[1])
			}
			d.eng.RunTime(usec)
		} else {
			d.eng.RunTime(1_000_000_000)
		}
		d.displayRegisters()

	case "b", "break":
		if len(parts) < 2 {
			return fmt.Errorf("usage: break ADDR")
		}
		addr, err := parseAddr(parts[1])
		if err != nil {
			return err
		}
		d.bp.Add(breakpoint.Logical, breakpoint.Execute, uint32(addr), uint32(addr), 0xFFFF, nil)
		fmt.Fprintf(d.output, "breakpoint set at $%04X\n", addr)

	case "r", "regs", "registers":
		d.displayRegisters()

	case "m", "mem":
		if len(parts) < 2 {
			return fmt.Errorf("usage: mem ADDR")
		}
		addr, err := parseAddr(parts[1])
		if err != nil {
			return err
		}
		d.displayMemory(addr)

	case "q", "quit", "exit":
		return errQuit

	default:
		fmt.Fprintf(d.output, "unknown command %q (type 'help')\n", parts[0])
	}
	return nil
}

// stepWith arms a transient whole-range breakpoint carrying cond,
// runs an effectively unbounded budget so it fires at the next matching
// instruction, then tears the transient registration back down.
func (d *Debugger) stepWith(cond breakpoint.Condition) {
	id := d.bp.Add(breakpoint.Logical, breakpoint.Execute, 0, 0xFFFF, 0xFFFF, cond)
	d.eng.RunTime(1_000_000_000)
	d.bp.Remove(id)
}

func (d *Debugger) runFor(n int) {
	for i := 0; i < n; i++ {
		d.stepWith(&breakpoint.Step{SkipFirst: true})
		d.instrCount++
	}
}

func (d *Debugger) displayRegisters() {
	regs := d.eng.RegisterSnapshot()
	fmt.Fprintln(d.output, "┌──────────────────────────────────────────────┐")
	fmt.Fprintf(d.output, "│ PC:%04X SP:%04X AF:%04X BC:%04X          │\n", d.eng.PC(), d.eng.SP(), regs.AF, regs.BC)
	fmt.Fprintf(d.output, "│ DE:%04X HL:%04X IX:%04X IY:%04X          │\n", regs.DE, regs.HL, regs.IX, regs.IY)
	fmt.Fprintln(d.output, "└──────────────────────────────────────────────┘")
}

func (d *Debugger) displayMemory(addr uint16) {
	fmt.Fprintf(d.output, "%04X: ", addr)
	for i := uint16(0); i < 16; i++ {
		fmt.Fprintf(d.output, "%02X ", d.eng.ReadByteLogical(addr+i))
	}
	fmt.Fprintln(d.output)
}

func (d *Debugger) printHelp() {
	fmt.Fprintln(d.output, `commands:
  s, step          execute one instruction
  n, next          step over a call
  fin, finish      run until the current function returns
  c, continue [US] run (optionally bounded to US microseconds)
  b, break ADDR    set an execute breakpoint at logical ADDR
  r, regs          show registers
  m, mem ADDR      dump 16 bytes at logical ADDR
  q, quit          exit`)
}

func parseAddr(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "$")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return uint16(v), nil
}
