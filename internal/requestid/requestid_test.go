package requestid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest_Deterministic(t *testing.T) {
	a := FromRequest("A cat playing piano", "Cinematic", "16:9")
	b := FromRequest("A cat playing piano", "Cinematic", "16:9")

	assert.Equal(t, a, b)
	assert.Len(t, a, 12)
}

func TestFromRequest_DistinguishesInputs(t *testing.T) {
	base := FromRequest("A cat playing piano", "Cinematic", "16:9")

	assert.NotEqual(t, base, FromRequest("A dog playing piano", "Cinematic", "16:9"))
	assert.NotEqual(t, base, FromRequest("A cat playing piano", "Anime", "16:9"))
	assert.NotEqual(t, base, FromRequest("A cat playing piano", "Cinematic", "9:16"))
}

func TestSanitizePrompt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"collapses whitespace", "a   cat\n\tplaying  piano", "a cat playing piano"},
		{"trims edges", "  sunset over hills  ", "sunset over hills"},
		{"keeps punctuation", "wait... what?! (really)", "wait... what?! (really)"},
		{"strips unsafe characters", "cat <script>#$%", "cat script"},
		{"keeps CJK text", "一只猫在弹钢琴", "一只猫在弹钢琴"},
		{"keeps accented text", "un château à Paris, la nuit", "un château à Paris, la nuit"},
		{"mixed scripts with unsafe runes", "夕日 <b>sunset</b>☂", "夕日 bsunsetb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizePrompt(tt.in))
		})
	}
}
