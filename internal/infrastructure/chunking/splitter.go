package chunking

import (
	"regexp"
	"strings"
)

var paragraphBreak = regexp.MustCompile(`\n{2,}`)

// Splitter produces chunks of at most ChunkSize runes. Consecutive chunks
// share the last Overlap runes of the previous chunk so text spanning a
// boundary stays retrievable.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// Fresh content per chunk leaves room for the overlap prefix and the
	// joining space, keeping every chunk within ChunkSize.
	body := s.ChunkSize - s.Overlap - 1
	if body <= 0 {
		body = s.ChunkSize
	}

	bodies := pack(segments(text, body), body)
	if len(bodies) == 0 {
		return nil
	}

	out := make([]string, 0, len(bodies))
	out = append(out, bodies[0])
	for i := 1; i < len(bodies); i++ {
		tail := tailRunes(out[i-1], s.Overlap)
		if tail == "" {
			out = append(out, bodies[i])
			continue
		}
		out = append(out, tail+" "+bodies[i])
	}
	return out
}

// segments splits on paragraph breaks first, then sentences, then raw rune
// windows, so no segment exceeds max.
func segments(text string, max int) []string {
	var out []string
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(collapseSpace(para))
		if para == "" {
			continue
		}
		if len([]rune(para)) <= max {
			out = append(out, para)
			continue
		}
		for _, sentence := range splitSentences(para) {
			if len([]rune(sentence)) <= max {
				out = append(out, sentence)
				continue
			}
			out = append(out, windows(sentence, max)...)
		}
	}
	return out
}

// pack merges adjacent segments into bodies of at most max runes.
func pack(segs []string, max int) []string {
	var out []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, seg := range segs {
		segLen := len([]rune(seg))
		if curLen > 0 && curLen+1+segLen > max {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(seg)
		curLen += segLen
	}
	flush()
	return out
}

func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 < len(runes) && runes[i+1] != ' ' {
				continue
			}
			sentence := strings.TrimSpace(string(runes[start : i+1]))
			if sentence != "" {
				out = append(out, sentence)
			}
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}

func windows(text string, max int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += max {
		end := start + max
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

func collapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func tailRunes(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}
