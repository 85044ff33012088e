package extraction

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agenthands/uidn/internal/core/model"
	"github.com/agenthands/uidn/internal/inference"
)

type TextProcessor struct {
	base
}

func NewTextProcessor(client inference.Client, prompt string) *TextProcessor {
	p := &TextProcessor{}
	p.base = base{modality: model.ModalityText, client: client, prompt: prompt, strategy: textStrategy{}}
	return p
}

type textStrategy struct{}

func (textStrategy) payload(seg model.Segment) (inference.Payload, error) {
	if seg.Text == nil {
		return inference.Payload{}, errors.New("text segment carries media instead of text")
	}
	if strings.TrimSpace(*seg.Text) == "" {
		return inference.Payload{}, errors.New("text segment is blank")
	}
	return inference.Payload{Text: *seg.Text}, nil
}

func (textStrategy) locator(seg model.Segment, _ inference.RawOutput) spanLocator {
	text := *seg.Text
	folded := strings.ToLower(text)
	bounds := sentenceStarts(text)

	return func(row model.ExtractedEntity) *model.SourceSpan {
		span := &model.SourceSpan{Kind: model.SpanOffset}
		located := false
		if row.Start != nil && row.End != nil && *row.End > *row.Start && *row.Start >= 0 {
			span.Start, span.End = *row.Start, *row.End
			located = true
		} else if value := strings.ToLower(strings.TrimSpace(row.Value)); value != "" && len(folded) == len(text) {
			if i := strings.Index(folded, value); i >= 0 {
				span.Start, span.End = float64(i), float64(i+len(value))
				located = true
			}
		}

		if located {
			span.Unit = fmt.Sprintf("sentence-%d", sentenceIndex(bounds, int(span.Start)))
		} else {
			span.Unit = unitLabel("sentence", row.Unit)
		}
		if !located && span.Unit == "" {
			return nil
		}
		return span
	}
}

var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "st": true, "jr": true, "sr": true, "prof": true, "no": true,
}

// sentenceStarts returns the byte offset where each sentence begins. A period
// after a single letter or a known abbreviation does not end a sentence.
func sentenceStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		next := i + size
		switch {
		case r == '\n':
			if j := skipSpace(text, next); j < len(text) {
				starts = appendStart(starts, j)
			}
		case r == '.' || r == '!' || r == '?':
			if next < len(text) {
				nr, _ := utf8.DecodeRuneInString(text[next:])
				if unicode.IsSpace(nr) && !(r == '.' && isAbbreviation(text[:i])) {
					if j := skipSpace(text, next); j < len(text) {
						starts = appendStart(starts, j)
					}
				}
			}
		}
		i = next
	}
	return starts
}

func appendStart(starts []int, j int) []int {
	if starts[len(starts)-1] == j {
		return starts
	}
	return append(starts, j)
}

func skipSpace(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}

func isAbbreviation(before string) bool {
	fields := strings.Fields(before)
	if len(fields) == 0 {
		return false
	}
	word := strings.ToLower(fields[len(fields)-1])
	return utf8.RuneCountInString(word) == 1 || abbreviations[word]
}

// sentenceIndex returns the 1-based sentence containing offset.
func sentenceIndex(starts []int, offset int) int {
	n := 1
	for i, s := range starts {
		if offset >= s {
			n = i + 1
		}
	}
	return n
}
