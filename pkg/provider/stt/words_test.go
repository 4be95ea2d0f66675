package stt

import (
	"strings"
	"testing"

	"github.com/soundscribe/soundscribe/pkg/types"
)

func wordsOf(texts ...string) []types.Word {
	words := make([]types.Word, len(texts))
	for i, t := range texts {
		words[i] = types.Word{Text: t}
	}
	return words
}

func concat(words []types.Word) string {
	var b strings.Builder
	for _, w := range words {
		b.WriteString(w.Text)
	}
	return b.String()
}

func TestNormalizeWordSpacing(t *testing.T) {
	t.Run("bare words gain leading spaces", func(t *testing.T) {
		got := concat(NormalizeWordSpacing(wordsOf("Hello", "world", "here")))
		if got != "Hello world here" {
			t.Errorf("concat = %q, want %q", got, "Hello world here")
		}
	})

	t.Run("whisper token spacing passes through", func(t *testing.T) {
		got := concat(NormalizeWordSpacing(wordsOf(" Hello", " world", " here")))
		if got != " Hello world here" {
			t.Errorf("concat = %q, want %q", got, " Hello world here")
		}
	})

	t.Run("trailing space on predecessor suppresses insertion", func(t *testing.T) {
		got := concat(NormalizeWordSpacing(wordsOf("Hello ", "world")))
		if got != "Hello world" {
			t.Errorf("concat = %q, want %q", got, "Hello world")
		}
	})

	t.Run("empty words are left alone", func(t *testing.T) {
		got := concat(NormalizeWordSpacing(wordsOf("Hello", "", "world")))
		if got != "Hello world" {
			t.Errorf("concat = %q, want %q", got, "Hello world")
		}
	})

	t.Run("nil and single-word inputs", func(t *testing.T) {
		if out := NormalizeWordSpacing(nil); out != nil {
			t.Errorf("NormalizeWordSpacing(nil) = %v, want nil", out)
		}
		got := NormalizeWordSpacing(wordsOf("Hello"))
		if got[0].Text != "Hello" {
			t.Errorf("single word changed to %q", got[0].Text)
		}
	})
}
