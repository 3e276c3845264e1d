package cdp

import (
	"unicode"

	"github.com/chromedp/cdproto/input"

	"github.com/BaSui01/blockbench/types"
)

// keyDef describes how a canonical key name is dispatched over the
// DevTools protocol.
type keyDef struct {
	Key      string
	Code     string
	KeyCode  int64
	Text     string
	Modifier input.Modifier
}

var namedKeys = map[string]keyDef{
	"Control":    {Key: "Control", Code: "ControlLeft", KeyCode: 17, Modifier: input.ModifierCtrl},
	"Alt":        {Key: "Alt", Code: "AltLeft", KeyCode: 18, Modifier: input.ModifierAlt},
	"Shift":      {Key: "Shift", Code: "ShiftLeft", KeyCode: 16, Modifier: input.ModifierShift},
	"Meta":       {Key: "Meta", Code: "MetaLeft", KeyCode: 91, Modifier: input.ModifierMeta},
	"Enter":      {Key: "Enter", Code: "Enter", KeyCode: 13, Text: "\r"},
	"Escape":     {Key: "Escape", Code: "Escape", KeyCode: 27},
	"Tab":        {Key: "Tab", Code: "Tab", KeyCode: 9, Text: "\t"},
	"Space":      {Key: " ", Code: "Space", KeyCode: 32, Text: " "},
	"Backspace":  {Key: "Backspace", Code: "Backspace", KeyCode: 8},
	"Delete":     {Key: "Delete", Code: "Delete", KeyCode: 46},
	"Insert":     {Key: "Insert", Code: "Insert", KeyCode: 45},
	"Home":       {Key: "Home", Code: "Home", KeyCode: 36},
	"End":        {Key: "End", Code: "End", KeyCode: 35},
	"PageUp":     {Key: "PageUp", Code: "PageUp", KeyCode: 33},
	"PageDown":   {Key: "PageDown", Code: "PageDown", KeyCode: 34},
	"ArrowLeft":  {Key: "ArrowLeft", Code: "ArrowLeft", KeyCode: 37},
	"ArrowUp":    {Key: "ArrowUp", Code: "ArrowUp", KeyCode: 38},
	"ArrowRight": {Key: "ArrowRight", Code: "ArrowRight", KeyCode: 39},
	"ArrowDown":  {Key: "ArrowDown", Code: "ArrowDown", KeyCode: 40},
}

func init() {
	fKeys := []string{
		"F1", "F2", "F3", "F4", "F5", "F6", "F7", "F8", "F9", "F10", "F11", "F12",
		"F13", "F14", "F15", "F16", "F17", "F18", "F19", "F20", "F21", "F22", "F23", "F24",
	}
	for i, name := range fKeys {
		namedKeys[name] = keyDef{Key: name, Code: name, KeyCode: int64(112 + i)}
	}
}

// lookupKey resolves a canonical key name to its dispatch definition.
// Single printable characters are synthesized as character keys; anything
// else must appear in the named table.
func lookupKey(key string) (keyDef, error) {
	if def, ok := namedKeys[key]; ok {
		return def, nil
	}
	runes := []rune(key)
	if len(runes) == 1 && unicode.IsPrint(runes[0]) {
		r := runes[0]
		return keyDef{
			Key:     string(r),
			Text:    string(r),
			KeyCode: int64(unicode.ToUpper(r)),
		}, nil
	}
	return keyDef{}, types.NewErrorf(types.ErrInvalidArg, "unknown key: %q", key)
}
