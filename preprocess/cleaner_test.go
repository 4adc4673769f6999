package preprocess

import (
	"strings"
	"testing"
)

func TestCleanBasic(t *testing.T) {
	in := "방송  심의\t기준\n\n\n\n조항"
	out := CleanBasic(in)
	if out != "방송 심의 기준\n\n조항" {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestCleanBasicEmpty(t *testing.T) {
	if CleanBasic("") != "" {
		t.Errorf("expected empty output for empty input")
	}
}

func TestHTMLToText(t *testing.T) {
	html := "<h2>제1조</h2><p>광고는 진실하여야 한다.</p><ul><li>허위 금지</li></ul>"
	out, err := HTMLToText(html)
	if err != nil {
		t.Fatalf("HTMLToText failed: %v", err)
	}
	if !strings.Contains(out, "제1조") {
		t.Errorf("missing heading text: %q", out)
	}
	if !strings.Contains(out, "광고는 진실하여야 한다.") {
		t.Errorf("missing paragraph text: %q", out)
	}
	if !strings.Contains(out, "- 허위 금지") {
		t.Errorf("missing list item: %q", out)
	}
}

func TestPassageText(t *testing.T) {
	plain := PassageText("  최저가  보장  ")
	if plain != "최저가 보장" {
		t.Errorf("plain text not cleaned: %q", plain)
	}

	html := PassageText("<p>과장 광고 금지</p>")
	if html != "과장 광고 금지" {
		t.Errorf("html not flattened: %q", html)
	}
}
