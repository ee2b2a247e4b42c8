// Package tray provides a macOS system tray interface for the fingerspell translator.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// maxTextRunes bounds the transcript shown in the menu.
const maxTextRunes = 32

// Tray represents the macOS system tray application.
type Tray struct {
	onToggle         func(enabled bool)
	onNewTranslation func()
	onSettings       func()
	onQuit           func()
	enabled          bool
	mu               sync.RWMutex

	// Menu items stored for later updates
	menuToggle     *systray.MenuItem
	menuLastLetter *systray.MenuItem
	menuText       *systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnNewTranslation sets the callback for "Start New Translation".
func (t *Tray) OnNewTranslation(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onNewTranslation = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Fingerspell")
	systray.SetTooltip("Fingerspell ASL Translator")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle translation")
	systray.AddSeparator()

	t.menuLastLetter = systray.AddMenuItem("Last: none", "Last committed letter")
	t.menuLastLetter.Disable()
	t.menuText = systray.AddMenuItem("Text: ", "Current translation")
	t.menuText.Disable()
	t.mu.Unlock()

	menuNew := systray.AddMenuItem("Start New Translation", "Clear the text and start over")
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Fingerspell")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuNew.ClickedCh:
				t.handleNewTranslation()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Translating"
	}
	return "○ Paused"
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	t.menuToggle.SetTitle(toggleTitle(enabled))
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleNewTranslation() {
	t.mu.RLock()
	callback := t.onNewTranslation
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetLastLetter updates the last committed letter in the menu.
func (t *Tray) SetLastLetter(letter string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastLetter != nil {
		if letter == "" {
			t.menuLastLetter.SetTitle("Last: none")
		} else {
			t.menuLastLetter.SetTitle("Last: " + letter)
		}
	}
}

// SetText shows the end of the current transcript in the menu.
func (t *Tray) SetText(text string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuText != nil {
		t.menuText.SetTitle("Text: " + Tail(text, maxTextRunes))
	}
}

// Tail returns the last n runes of s, prefixed with an ellipsis when cut.
func Tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n:])
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
