package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitMessage_ShortTextIsOneChunk(t *testing.T) {
	got := splitMessage("hello", 10)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("unexpected chunks %q", got)
	}
}

func TestSplitMessage_PrefersSentenceBoundary(t *testing.T) {
	got := splitMessage("One two. Three four five", 15)
	if got[0] != "One two." {
		t.Fatalf("expected sentence split, got %q", got)
	}
	if strings.Join(got, " ") != "One two. Three four five" {
		t.Fatalf("content lost: %q", got)
	}
}

func TestSplitMessage_NeverBreaksRunes(t *testing.T) {
	text := strings.Repeat("🎲", 50)
	got := splitMessage(text, 10)
	for _, c := range got {
		if len(c) > 10 || !utf8.ValidString(c) {
			t.Fatalf("bad chunk %q", c)
		}
	}
	if strings.Join(got, "") != text {
		t.Fatalf("content lost")
	}
}
