package stt

import (
	"strings"

	"github.com/soundscribe/soundscribe/pkg/types"
)

// NormalizeWordSpacing ensures every word after the first carries a leading
// space in its text, so that raw concatenation of word texts reproduces the
// original transcript spacing. Backends that report bare words (OpenAI
// verbose_json) need this; backends that keep whisper token spacing already
// satisfy it and pass through unchanged. The input slice is modified in place
// and returned.
func NormalizeWordSpacing(words []types.Word) []types.Word {
	for i := range words {
		if i == 0 {
			continue
		}
		if words[i].Text == "" || strings.HasPrefix(words[i].Text, " ") {
			continue
		}
		if strings.HasSuffix(words[i-1].Text, " ") {
			continue
		}
		words[i].Text = " " + words[i].Text
	}
	return words
}
