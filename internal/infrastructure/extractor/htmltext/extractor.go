package htmltext

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/mvolkov/firmscope/internal/core/domain"
)

// boilerplateSelectors are stripped before any text is collected.
const boilerplateSelectors = "script, style, noscript, template, iframe, svg, nav, header, footer, aside, form"

// Extractor turns rendered HTML into normalized plain text. Pages below
// MinTextLength meaningful runes are skipped with a (nil, nil) return.
type Extractor struct {
	MinTextLength int
}

func New(minTextLength int) *Extractor {
	if minTextLength <= 0 {
		minTextLength = 200
	}
	return &Extractor{MinTextLength: minTextLength}
}

func (e *Extractor) Extract(page domain.RawPage) (*domain.Document, error) {
	reader, err := charset.NewReader(strings.NewReader(page.Body), "text/html")
	if err != nil {
		return nil, fmt.Errorf("detect charset for %s: %w", page.URL, err)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("parse html for %s: %w", page.URL, err)
	}

	doc.Find(boilerplateSelectors).Remove()

	root := doc.Find("main")
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	text := normalize(root.Text())
	if len([]rune(text)) < e.MinTextLength {
		return nil, nil
	}

	return &domain.Document{
		SourceID:    page.SourceID,
		URL:         page.URL,
		Text:        text,
		ExtractedAt: time.Now().UTC(),
	}, nil
}

// normalize collapses runs of whitespace within lines and blank-line runs
// between them, keeping paragraph boundaries for the chunker.
func normalize(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	blank := true
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
