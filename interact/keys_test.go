package interact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ctrl", "Control"},
		{"CTRL", "Control"},
		{"cmd", "Meta"},
		{"command", "Meta"},
		{"win", "Meta"},
		{"option", "Alt"},
		{"esc", "Escape"},
		{"return", "Enter"},
		{"spacebar", "Space"},
		{"left", "ArrowLeft"},
		{"arrow_left", "ArrowLeft"},
		{"page-down", "PageDown"},
		{"pgup", "PageUp"},
		{"f5", "F5"},
		{"f12", "F12"},
		{"a", "a"},
		{"A", "A"},
		{"Enter", "Enter"},
		{"  tab  ", "Tab"},
		{"", ""},
		{"NoSuchKey", "NoSuchKey"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.in))
		})
	}
}
