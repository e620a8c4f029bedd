// Package macro implements the MacroEngine of spec.md §4.5: a small
// line-oriented scripting language that drives a calculator through its
// virtual keypad with deterministic hold/delay timing.
package macro

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Driver is the subset of internal/driver.EmulatorDriver the macro
// engine needs: press/release a named key, and advance virtual time.
// Kept narrow here (rather than importing internal/driver directly) so
// the macro engine does not depend on the driver package and tests can
// substitute a recording fake.
type Driver interface {
	PressKey(name string) error
	ReleaseKey(name string) error
	AdvanceTime(seconds float64)
}

// Settings holds the two script-mutable timing knobs (spec.md §4.5
// "set key_hold T" / "set key_delay T").
type Settings struct {
	KeyHold  float64
	KeyDelay float64
}

// DefaultSettings matches what a freshly-started macro run begins with
// absent any "set" command (spec.md §8 scenario 5: default hold 0.05s).
func DefaultSettings() Settings {
	return Settings{KeyHold: 0.05, KeyDelay: 0.05}
}

// Run opens path and executes it line by line against drv.
func Run(path string, drv Driver, settings Settings) error {
	fp, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open macro: %w", err)
	}
	defer fp.Close()
	return RunReader(fp, drv, settings)
}

// RunReader executes a macro script read from r. Execution is
// line-by-line; the first failing line aborts with a line-number-tagged
// error (spec.md §4.5).
func RunReader(r io.Reader, drv Driver, settings Settings) error {
	sc := bufio.NewScanner(r)
	s := settings
	lineNo := 0
	for sc.Scan() {
		lineNo++
		toks, err := tokenize(stripComment(sc.Text()))
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if len(toks) == 0 {
			continue
		}
		if err := execLine(toks, drv, &s); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read macro: %w", err)
	}
	return nil
}

// stripComment cuts a line at the first unquoted "#" or "//".
func stripComment(line string) string {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '"':
			inQuote = !inQuote
		case !inQuote && line[i] == '#':
			return line[:i]
		case !inQuote && line[i] == '/' && i+1 < len(line) && line[i+1] == '/':
			return line[:i]
		}
	}
	return line
}

// tokenize splits a line on whitespace, treating a "…" run as one token
// with the quotes stripped (spec.md §4.5 "literal string for type").
func tokenize(line string) ([]string, error) {
	var toks []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case !inQuote && (c == ' ' || c == '\t'):
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quoted string")
	}
	flush()
	return toks, nil
}

var durationRe = regexp.MustCompile(`^([0-9]*\.?[0-9]+)(ms|s)?$`)

// parseDuration reads a duration starting at toks[0], which may be "N",
// "Nms"/"Ns", or "N" followed by a separate "s"/"ms" token, and reports
// how many tokens it consumed.
func parseDuration(toks []string) (seconds float64, consumed int, err error) {
	if len(toks) == 0 {
		return 0, 0, fmt.Errorf("missing duration")
	}
	m := durationRe.FindStringSubmatch(toks[0])
	if m == nil {
		return 0, 0, fmt.Errorf("invalid duration %q", toks[0])
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid duration %q", toks[0])
	}
	unit := m[2]
	consumed = 1
	if unit == "" && len(toks) > 1 {
		switch strings.ToLower(toks[1]) {
		case "s", "sec", "secs", "second", "seconds":
			unit, consumed = "s", 2
		case "ms", "msec", "msecs", "millisecond", "milliseconds":
			unit, consumed = "ms", 2
		}
	}
	if unit == "ms" {
		v /= 1000
	}
	return v, consumed, nil
}

func execLine(toks []string, drv Driver, s *Settings) error {
	cmd := strings.ToLower(toks[0])
	args := toks[1:]
	switch cmd {
	case "wait", "sleep", "pause":
		v, _, err := parseDuration(args)
		if err != nil {
			return err
		}
		drv.AdvanceTime(v)
		return nil

	case "set":
		if len(args) < 2 {
			return fmt.Errorf("set requires a name and value")
		}
		v, _, err := parseDuration(args[1:])
		if err != nil {
			return err
		}
		switch strings.ToLower(args[0]) {
		case "key_hold":
			s.KeyHold = v
		case "key_delay":
			s.KeyDelay = v
		default:
			return fmt.Errorf("unknown setting %q", args[0])
		}
		return nil

	case "key":
		if len(args) < 1 {
			return fmt.Errorf("key requires a name")
		}
		hold := s.KeyHold
		if len(args) >= 3 && strings.ToLower(args[1]) == "hold" {
			v, _, err := parseDuration(args[2:])
			if err != nil {
				return err
			}
			hold = v
		}
		if err := drv.PressKey(args[0]); err != nil {
			return err
		}
		drv.AdvanceTime(hold)
		return drv.ReleaseKey(args[0])

	case "press":
		if len(args) < 1 {
			return fmt.Errorf("press requires a name")
		}
		return drv.PressKey(args[0])

	case "release":
		if len(args) < 1 {
			return fmt.Errorf("release requires a name")
		}
		return drv.ReleaseKey(args[0])

	case "type":
		if len(args) < 1 {
			return fmt.Errorf("type requires text")
		}
		return typeText(strings.Join(args, " "), drv, s)

	default:
		return fmt.Errorf("unknown command %q", toks[0])
	}
}
