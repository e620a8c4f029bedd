// Package keypad models the calculator's virtual keyboard matrix: a
// column-select latch written by the ROM and seven row-readback groups.
package keypad

import "strings"

// Group identifies one of the seven key groups a calculator scans.
type Group uint8

const numGroups = 7

// Key names a single key position, stable across the emulator and the
// macro scripting language (spec.md §4.5).
type Key struct {
	Name  string
	Group Group
	Bit   uint8 // row bit within the group, active-low when latched
	Code  uint8 // 1-based scan-order key code, as carried by a KeyEvent trace record (spec.md §4.4/§8)
}

// State is the keypad half of CalcState: the active-low column output
// latch and the row bitmask observed for each group.
type State struct {
	group    uint8
	keysDown [numGroups]uint8
}

// Reset clears every latch and all key state.
func (s *State) Reset() {
	s.group = 0xFF
	for i := range s.keysDown {
		s.keysDown[i] = 0
	}
}

// SetGroup latches the active-low column select value the ROM writes.
func (s *State) SetGroup(v uint8) { s.group = v }

// Group returns the currently latched column select value.
func (s *State) Group() uint8 { return s.group }

// RowMask returns the row bitmask currently held for a group (1 = key down).
func (s *State) RowMask(g Group) uint8 { return s.keysDown[g] }

// Press marks a key as held.
func (s *State) Press(k Key) { s.keysDown[k.Group] |= 1 << k.Bit }

// Release marks a key as released.
func (s *State) Release(k Key) { s.keysDown[k.Group] &^= 1 << k.Bit }

// IsDown reports whether a key is currently held.
func (s *State) IsDown(k Key) bool { return s.keysDown[k.Group]&(1<<k.Bit) != 0 }

func key(name string, g Group, bit uint8) Key { return Key{Name: name, Group: g, Bit: bit} }

// table is the canonical key layout, one entry per key (50 keys across
// the seven groups); an entry's position fixes its Code.
var table = []Key{
	key("DOWN", 0, 0), key("LEFT", 0, 1), key("RIGHT", 0, 2), key("UP", 0, 3),

	key("ENTER", 1, 0), key("PLUS", 1, 1), key("MINUS", 1, 2), key("MUL", 1, 3),
	key("DIV", 1, 4), key("POWER", 1, 5), key("CLEAR", 1, 6),

	key("CHS", 2, 0), key("3", 2, 1), key("6", 2, 2), key("9", 2, 3),
	key("RPAREN", 2, 4), key("TAN", 2, 5), key("VARS", 2, 6),

	key("DECIMAL", 3, 0), key("2", 3, 1), key("5", 3, 2), key("8", 3, 3),
	key("LPAREN", 3, 4), key("COS", 3, 5), key("PRGM", 3, 6), key("STAT", 3, 7),

	key("0", 4, 0), key("1", 4, 1), key("4", 4, 2), key("7", 4, 3),
	key("COMMA", 4, 4), key("SIN", 4, 5), key("MATRIX", 4, 6), key("ANS", 4, 7),

	key("STO", 5, 0), key("LN", 5, 1), key("LOG", 5, 2), key("SQUARE", 5, 3),
	key("RECIP", 5, 4), key("MATH", 5, 5), key("ALPHA", 5, 6), key("GRAPH", 5, 7),

	key("2ND", 6, 0), key("MODE", 6, 1), key("DEL", 6, 2), key("YEQU", 6, 3),
	key("WINDOW", 6, 4), key("ZOOM", 6, 5), key("TRACE", 6, 6), key("ON", 6, 7),
}

func init() {
	// Code is the key's 1-based position in table: ENTER is the 5th entry,
	// giving it key code 0x05 (spec.md §8 scenario 5).
	for i := range table {
		table[i].Code = uint8(i + 1)
	}
}

// aliases maps alternate spellings onto a canonical name in table.
var aliases = map[string]string{
	"RETURN":  "ENTER",
	"ADD":     "PLUS",
	"SUB":      "MINUS",
	"SUBTRACT": "MINUS",
	"MULTIPLY": "MUL",
	"TIMES":   "MUL",
	"DIVIDE":  "DIV",
	"SECOND":  "2ND",
	"Y=":      "YEQU",
	"Y_EQUALS": "YEQU",
	"QUIT":    "MODE",
	"NEGATE":  "CHS",
	"DOT":     "DECIMAL",
	"PERIOD":  "DECIMAL",
}

// Lookup resolves a key name (case-insensitive, alias-aware) to its Key.
func Lookup(name string) (Key, bool) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if canon, ok := aliases[n]; ok {
		n = canon
	}
	for _, k := range table {
		if k.Name == n {
			return k, true
		}
	}
	return Key{}, false
}

// Names returns every canonical key name, for --list-models-style help text.
func Names() []string {
	names := make([]string, 0, len(table))
	for _, k := range table {
		names = append(names, k.Name)
	}
	return names
}
