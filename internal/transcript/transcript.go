// Package transcript holds the translated text built from committed letters.
package transcript

import (
	"strings"
	"sync"

	"github.com/ayusman/fingerspell/internal/stabilizer"
)

// Buffer is the text accumulated during a translation session.
// Commits only ever append; Clear and Replace are user actions.
type Buffer struct {
	mu   sync.RWMutex
	text strings.Builder
}

// New creates an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// Apply appends a committed letter and its delimiter.
func (b *Buffer) Apply(c stabilizer.Commit) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text.WriteRune(c.Letter)
	b.text.WriteString(c.Delimiter)
}

// Clear erases the text, starting a new translation.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text.Reset()
}

// Replace overwrites the text with an edited version.
func (b *Buffer) Replace(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text.Reset()
	b.text.WriteString(text)
}

// String returns the current text.
func (b *Buffer) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text.String()
}

// Len returns the length of the text in bytes.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text.Len()
}
