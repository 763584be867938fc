// Package touch routes touch panel input of the hand controller: touches
// on the menu bar switch screens, other touches go to the current screen.
package touch

// Screen identifies a page of the hand controller.
type Screen int

// Screens.
const (
	Home Screen = iota
	Guide
	Focuser
	Goto
	More
	Settings
	Align
	XStatus
	ODrive
	Catalog
	Planets
	CustomCatalog
)

var screenNames = [...]string{
	"home", "guide", "focuser", "goto", "more", "settings",
	"align", "xstatus", "odrive", "catalog", "planets", "custom-catalog",
}

func (s Screen) String() string {
	if s >= 0 && int(s) < len(screenNames) {
		return screenNames[s]
	}
	return "unknown"
}

// HasMenu reports whether the screen shows the menu bar. Catalog pages
// use the whole display for their own buttons.
func (s Screen) HasMenu() bool {
	switch s {
	case Catalog, Planets, CustomCatalog:
		return false
	}
	return true
}

// Page is the touch surface of one screen.
type Page interface {
	// TouchPoll handles a touch at x, y and reports whether a button
	// changed.
	TouchPoll(x, y int) bool
	// UpdateButtons redraws the buttons after a change.
	UpdateButtons()
	// Draw draws the whole screen.
	Draw()
}
