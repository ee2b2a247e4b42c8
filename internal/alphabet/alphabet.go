// Package alphabet defines the set of fingerspelled letters the translator recognizes.
package alphabet

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

// StaticASL holds the ASL fingerspelling letters that are a single held hand shape.
// J and Z are traced in the air and cannot be recognized from one frame.
const StaticASL = "ABCDEFGHIKLMNOPQRSTUVWXY"

// Alphabet is an ordered set of letters.
type Alphabet struct {
	order   []rune
	letters map[rune]struct{}
}

// New creates an Alphabet from the letters in s. Duplicates are ignored.
func New(s string) *Alphabet {
	a := &Alphabet{
		letters: make(map[rune]struct{}),
	}
	for _, r := range s {
		if _, ok := a.letters[r]; ok {
			continue
		}
		a.letters[r] = struct{}{}
		a.order = append(a.order, r)
	}
	return a
}

// Default returns the static ASL alphabet.
func Default() *Alphabet {
	return New(StaticASL)
}

// Contains reports whether r is a letter of the alphabet.
func (a *Alphabet) Contains(r rune) bool {
	if a == nil {
		return false
	}
	_, ok := a.letters[r]
	return ok
}

// Letters returns the letters in their declared order.
func (a *Alphabet) Letters() []rune {
	out := make([]rune, len(a.order))
	copy(out, a.order)
	return out
}

// Len returns the number of letters.
func (a *Alphabet) Len() int {
	return len(a.order)
}

// String returns the letters as a string.
func (a *Alphabet) String() string {
	return string(a.order)
}

// Normalize converts a classifier label into a letter of the alphabet.
// Surrounding space is trimmed, full-width forms are folded and the label is
// upper-cased. Labels that are not exactly one letter of the alphabet are rejected.
func (a *Alphabet) Normalize(label string) (rune, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, false
	}

	folded := width.Narrow.String(label)
	folded = cases.Upper(language.Und).String(folded)

	if utf8.RuneCountInString(folded) != 1 {
		return 0, false
	}

	r, _ := utf8.DecodeRuneInString(folded)
	if !a.Contains(r) {
		return 0, false
	}
	return r, true
}
