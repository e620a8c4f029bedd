// Command ticore is the headless runner of spec.md §6: it loads a ROM
// onto a modeled calculator, optionally drives it through a macro
// script and/or a binary instruction trace, and exits 0 on success or 1
// on any setup/IO/macro error (spec.md §7).
package main

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ti83emu/ticore/internal/breakpoint"
	"github.com/ti83emu/ticore/internal/debugger"
	"github.com/ti83emu/ticore/internal/driver"
	"github.com/ti83emu/ticore/internal/hardware"
	"github.com/ti83emu/ticore/internal/macro"
	"github.com/ti83emu/ticore/internal/trace"
	"github.com/ti83emu/ticore/internal/z80"
)

var (
	romPath     string
	modelName   string
	stateFile   string
	resetState  bool
	fullSpeed   bool
	headDelay   float64
	screenshot  string
	recordGIF   string
	macroFile   string
	traceFile   string
	traceRange  string
	traceLimit  uint64
	backtrace   string
	backLimit   uint64
	listModels  bool
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "ticore",
	Short: "ticore — headless TI calculator emulation core",
	Long: `ticore — headless Z80 calculator emulation core
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
Loads a ROM onto a modeled TI-73/76/81/82/83/83+/84+ calculator, runs it
headlessly (optionally driven by a macro script), and can emit a binary
instruction/memory/key-event trace in either linear or ring mode.

EXAMPLES:
  ticore --rom ti83p.rom --model TI83P --headless-screenshot out.bin
  ticore --rom ti83p.rom --macro boot.mac --trace out.tlmt --trace-range ram
  ticore --list-models`,
	RunE: runHeadless,
}

func init() {
	rootCmd.Flags().StringVar(&romPath, "rom", "", "ROM file to load (required)")
	rootCmd.Flags().StringVar(&modelName, "model", "TI83P", "calculator model")
	rootCmd.Flags().StringVar(&stateFile, "state-file", "", "state (.sav) file; defaults to ROM path + .sav")
	rootCmd.Flags().BoolVar(&resetState, "reset", false, "ignore any existing state file")
	rootCmd.Flags().BoolVar(&fullSpeed, "full-speed", false, "run full-speed (no real-time frame sleep)")
	rootCmd.Flags().Bool("normal-speed", true, "run in real time (the default; --full-speed takes precedence if both are given)")
	rootCmd.Flags().Float64Var(&headDelay, "headless-delay", 0, "advance this many virtual seconds before capture")
	rootCmd.Flags().StringVar(&screenshot, "headless-screenshot", "", "dump raw LCD memory to this path before exit")
	rootCmd.Flags().StringVar(&recordGIF, "headless-record", "", "path (must end .gif) for an animation sink; the core treats encoding as opaque and dumps raw LCD memory")
	rootCmd.Flags().StringVar(&macroFile, "macro", "", "macro script to run")
	rootCmd.Flags().StringVar(&traceFile, "trace", "", "linear trace output file")
	rootCmd.Flags().StringVar(&traceRange, "trace-range", "ram", "trace range: ram, all, or START-END")
	rootCmd.Flags().Uint64Var(&traceLimit, "trace-limit", 0, "linear trace byte limit (default 500 GiB)")
	rootCmd.Flags().StringVar(&backtrace, "trace-backtrace", "", "ring-mode trace output file; a .gz suffix gzip-compresses it after close")
	rootCmd.Flags().Uint64Var(&backLimit, "trace-backtrace-limit", 0, "ring size in bytes (default 1 GiB)")
	rootCmd.Flags().BoolVar(&listModels, "list-models", false, "print supported model names and exit")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose setup info")

	rootCmd.AddCommand(debugCmd)
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "load a ROM and drop into the interactive debugger",
	RunE:  runDebug,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setup resolves flags into a loaded CalcState, Engine, and breakpoint
// table, shared by both the headless runner and the debug subcommand.
func setup() (*hardware.State, *z80.Engine, *breakpoint.Table, error) {
	if listModels {
		fmt.Println(strings.Join(hardware.Models(), "\n"))
		os.Exit(0)
	}
	if romPath == "" {
		return nil, nil, nil, fmt.Errorf("--rom is required")
	}
	if traceFile != "" && backtrace != "" {
		return nil, nil, nil, fmt.Errorf("--trace and --trace-backtrace are mutually exclusive")
	}

	hw, err := hardware.ModelByName(modelName)
	if err != nil {
		return nil, nil, nil, err
	}
	if verbose {
		fmt.Printf("🎮 ticore — model %s (rom %d KiB, ram %d KiB)\n", hw.ModelID, hw.RomSize/1024, hw.RamSize/1024)
	}

	rom, err := os.ReadFile(romPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open ROM: %w", err)
	}

	savPath := stateFile
	if savPath == "" {
		savPath = romPath + ".sav"
	}
	var sav []byte
	if !resetState {
		if b, err := os.ReadFile(savPath); err == nil {
			sav = b
		}
	}
	if err := hardware.WriteStatePlaceholder(romPath, hw.ModelID); err != nil {
		return nil, nil, nil, fmt.Errorf("write state placeholder: %w", err)
	}

	calc, err := hardware.Load(hw, rom, sav)
	if err != nil {
		return nil, nil, nil, err
	}

	bp := breakpoint.New()
	eng := z80.New(calc, bp)
	return calc, eng, bp, nil
}

func runHeadless(cmd *cobra.Command, args []string) error {
	calc, eng, bp, err := setup()
	if err != nil {
		return err
	}
	_ = bp

	var closers []func() error
	defer func() {
		for _, c := range closers {
			if err := c(); err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}
		}
	}()

	if traceFile != "" {
		w, err := trace.InitLinear(calc, traceFile, traceRange, traceLimit, os.Stderr)
		if err != nil {
			return fmt.Errorf("init trace: %w", err)
		}
		closers = append(closers, w.Close)
	}
	if backtrace != "" {
		// A ".gz" suffix asks for the same opt-in compression the teacher's
		// TAS format offers as a third save option: the ring writer still
		// flushes a plain file, which is then gzip-compressed in place.
		rawPath := strings.TrimSuffix(backtrace, ".gz")
		compress := rawPath != backtrace
		if compress {
			rawPath += ".tmp"
		}
		w, err := trace.InitRing(calc, rawPath, traceRange, backLimit, os.Stderr)
		if err != nil {
			return fmt.Errorf("init backtrace: %w", err)
		}
		closers = append(closers, w.Close)
		if compress {
			closers = append(closers, func() error { return gzipAndRemove(rawPath, backtrace) })
		}
	}

	drv := driver.New(calc, eng)
	drv.FullSpeed = fullSpeed

	if macroFile != "" {
		if err := macro.Run(macroFile, drv, macro.DefaultSettings()); err != nil {
			return fmt.Errorf("macro: %w", err)
		}
	}
	if headDelay > 0 {
		drv.AdvanceTime(headDelay)
	}
	if screenshot != "" {
		if err := drv.Screenshot(screenshot); err != nil {
			return err
		}
	}
	if recordGIF != "" {
		if !strings.HasSuffix(recordGIF, ".gif") {
			return fmt.Errorf("--headless-record path must end in .gif")
		}
		if err := drv.Screenshot(recordGIF); err != nil {
			return err
		}
	}
	if verbose {
		fmt.Println("✅ run complete")
	}
	return nil
}

// gzipAndRemove compresses the ring writer's flushed plain file at rawPath
// into dstPath and removes rawPath, giving --trace-backtrace a ".gz" option
// alongside the default uncompressed format.
func gzipAndRemove(rawPath, dstPath string) error {
	src, err := os.Open(rawPath)
	if err != nil {
		return fmt.Errorf("open backtrace for compression: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create compressed backtrace: %w", err)
	}
	gw := gzip.NewWriter(dst)
	if _, err := io.Copy(gw, src); err != nil {
		gw.Close()
		dst.Close()
		return fmt.Errorf("compress backtrace: %w", err)
	}
	if err := gw.Close(); err != nil {
		dst.Close()
		return fmt.Errorf("compress backtrace: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("compress backtrace: %w", err)
	}
	return os.Remove(rawPath)
}

func runDebug(cmd *cobra.Command, args []string) error {
	calc, eng, bp, err := setup()
	if err != nil {
		return err
	}
	drv := driver.New(calc, eng)
	dbg := debugger.New(eng, bp, drv, nil)
	return dbg.Run()
}
