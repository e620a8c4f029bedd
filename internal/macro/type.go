package macro

import "fmt"

// letterKey is the letter-to-key table of spec.md §4.5, stable and part
// of the macro contract: matches the calculator's printed ALPHA legends.
var letterKey = map[byte]string{
	'A': "MATH", 'B': "MATRIX", 'C': "PRGM", 'D': "VARS", 'E': "POWER",
	'F': "RECIP", 'G': "SIN", 'H': "COS", 'I': "TAN", 'J': "SQUARE",
	'K': "COMMA", 'L': "LPAREN", 'M': "RPAREN", 'N': "DIV", 'O': "LOG",
	'P': "7", 'Q': "8", 'R': "9", 'S': "MUL", 'T': "LN",
	'U': "4", 'V': "5", 'W': "6", 'X': "SUB", 'Y': "1", 'Z': "2",
}

// punctKey maps arithmetic operators and punctuation onto their obvious
// calculator keys (spec.md §4.5).
var punctKey = map[byte]string{
	'+': "PLUS", '-': "MINUS", '*': "MUL", '/': "DIV",
	'.': "DECIMAL", ',': "COMMA", '(': "LPAREN", ')': "RPAREN",
}

// typeText sends text key-by-key: letters as an ALPHA-modified press,
// digits and punctuation as a direct press, newline as ENTER, advancing
// key_delay between characters (spec.md §4.5).
func typeText(text string, drv Driver, s *Settings) error {
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\n':
			if err := tapKey(drv, "ENTER"); err != nil {
				return err
			}
		case c >= '0' && c <= '9':
			if err := tapKey(drv, string(c)); err != nil {
				return err
			}
		case c >= 'a' && c <= 'z':
			if err := tapAlpha(drv, letterKey[c-'a'+'A']); err != nil {
				return err
			}
		case c >= 'A' && c <= 'Z':
			if err := tapAlpha(drv, letterKey[c]); err != nil {
				return err
			}
		default:
			key, ok := punctKey[c]
			if !ok {
				return fmt.Errorf("no key mapping for character %q", string(c))
			}
			if err := tapKey(drv, key); err != nil {
				return err
			}
		}
		if i < len(text)-1 {
			drv.AdvanceTime(s.KeyDelay)
		}
	}
	return nil
}

// tapKey presses and immediately releases a single key.
func tapKey(drv Driver, name string) error {
	if err := drv.PressKey(name); err != nil {
		return err
	}
	return drv.ReleaseKey(name)
}

// tapAlpha presses ALPHA, taps the letter key underneath it, then
// releases ALPHA (spec.md §4.5 "letters map to (ALPHA, letter-key) pairs").
func tapAlpha(drv Driver, name string) error {
	if err := drv.PressKey("ALPHA"); err != nil {
		return err
	}
	if err := tapKey(drv, name); err != nil {
		return err
	}
	return drv.ReleaseKey("ALPHA")
}
