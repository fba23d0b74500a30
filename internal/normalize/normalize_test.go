package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Sunset", "sunset"},
		{"collapses whitespace", "  Sunset   Photos ", "sunset photos"},
		{"full width", "ＣＡＴＳ", "cats"},
		{"case folding beyond ascii", "STRASSE", "strasse"},
		{"composed and decomposed agree", "café", "café"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TagName(tt.input))
		})
	}
}

func TestTagName_Collisions(t *testing.T) {
	assert.Equal(t, TagName("Dogs"), TagName("dogs"))
	assert.NotEqual(t, TagName("dogs"), TagName("dog"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Sunset Photos", DisplayName("  Sunset \t Photos "))
}
