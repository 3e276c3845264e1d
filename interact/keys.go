package interact

import (
	"regexp"
	"strings"
)

// Agent-facing key aliases (pyautogui style and friends) mapped to
// canonical key names. Canonical names are case-sensitive.
var keyAliases = map[string]string{
	// Modifiers
	"ctrl":    "Control",
	"control": "Control",
	"cmd":     "Meta",
	"command": "Meta",
	"meta":    "Meta",
	"win":     "Meta",
	"windows": "Meta",
	"alt":     "Alt",
	"option":  "Alt",
	"shift":   "Shift",
	// Common keys
	"esc":       "Escape",
	"escape":    "Escape",
	"enter":     "Enter",
	"return":    "Enter",
	"tab":       "Tab",
	"space":     "Space",
	"spacebar":  "Space",
	"backspace": "Backspace",
	"bksp":      "Backspace",
	"delete":    "Delete",
	"del":       "Delete",
	"insert":    "Insert",
	"ins":       "Insert",
	"home":      "Home",
	"end":       "End",
	"pageup":    "PageUp",
	"pgup":      "PageUp",
	"pagedown":  "PageDown",
	"pgdn":      "PageDown",
	// Arrows, both short and explicit forms
	"left":       "ArrowLeft",
	"right":      "ArrowRight",
	"up":         "ArrowUp",
	"down":       "ArrowDown",
	"arrowleft":  "ArrowLeft",
	"arrowright": "ArrowRight",
	"arrowup":    "ArrowUp",
	"arrowdown":  "ArrowDown",
}

var (
	nonAlnumPattern = regexp.MustCompile(`[^a-z0-9]`)
	fnKeyPattern    = regexp.MustCompile(`^f\d{1,2}$`)
)

// NormalizeKey maps commonly used agent key names (e.g. "ctrl",
// "arrow_left", "f5") onto canonical key names so the engine never sees an
// alias it cannot dispatch. Unrecognized keys pass through unchanged; the
// engine decides whether they are valid.
func NormalizeKey(key string) string {
	raw := strings.TrimSpace(key)
	if raw == "" {
		return raw
	}

	lowered := strings.ToLower(raw)
	if canonical, ok := keyAliases[lowered]; ok {
		return canonical
	}

	// Accept "arrow_left", "page-down", and similar punctuated forms.
	compact := nonAlnumPattern.ReplaceAllString(lowered, "")
	if canonical, ok := keyAliases[compact]; ok {
		return canonical
	}

	if fnKeyPattern.MatchString(lowered) {
		return strings.ToUpper(lowered)
	}

	return raw
}
