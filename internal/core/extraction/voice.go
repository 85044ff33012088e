package extraction

import (
	"bufio"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agenthands/uidn/internal/core/model"
	"github.com/agenthands/uidn/internal/inference"
)

type VoiceProcessor struct {
	base
}

func NewVoiceProcessor(client inference.Client, prompt string) *VoiceProcessor {
	p := &VoiceProcessor{}
	p.base = base{modality: model.ModalityVoice, client: client, prompt: prompt, strategy: voiceStrategy{}}
	return p
}

type voiceStrategy struct{}

func (voiceStrategy) payload(seg model.Segment) (inference.Payload, error) {
	if seg.Media.Empty() {
		return inference.Payload{}, errors.New("voice segment has no recording")
	}
	return inference.Payload{Media: seg.Media}, nil
}

type utterance struct {
	index      int
	start, end float64
	timed      bool
	text       string
}

var utteranceRe = regexp.MustCompile(`^\[(\d+)\s+([0-9.]+)-([0-9.]+)\]\s*(.*)$`)

// parseTranscript reads "[N start-end] text" lines. Lines without the prefix
// are numbered in order and carry no timing.
func parseTranscript(transcript string) []utterance {
	var out []utterance
	sc := bufio.NewScanner(strings.NewReader(transcript))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		u := utterance{index: len(out) + 1, text: line}
		if m := utteranceRe.FindStringSubmatch(line); m != nil {
			idx, _ := strconv.Atoi(m[1])
			start, err1 := strconv.ParseFloat(m[2], 64)
			end, err2 := strconv.ParseFloat(m[3], 64)
			if idx > 0 && err1 == nil && err2 == nil {
				u = utterance{index: idx, start: start, end: end, timed: true, text: m[4]}
			}
		}
		out = append(out, u)
	}
	return out
}

func (voiceStrategy) locator(_ model.Segment, out inference.RawOutput) spanLocator {
	utterances := parseTranscript(out.Transcript)
	byIndex := make(map[int]utterance, len(utterances))
	for _, u := range utterances {
		byIndex[u.index] = u
	}

	find := func(value string) (utterance, bool) {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			return utterance{}, false
		}
		for _, u := range utterances {
			if strings.Contains(strings.ToLower(u.text), value) {
				return u, true
			}
		}
		return utterance{}, false
	}

	return func(row model.ExtractedEntity) *model.SourceSpan {
		span := &model.SourceSpan{Kind: model.SpanTime}

		var u utterance
		found := false
		if label := unitLabel("utterance", row.Unit); label != "" {
			span.Unit = label
			n, _ := strconv.Atoi(strings.TrimPrefix(label, "utterance-"))
			u, found = byIndex[n]
		} else if u, found = find(row.Value); found {
			span.Unit = fmt.Sprintf("utterance-%d", u.index)
		}

		switch {
		case row.Start != nil && row.End != nil && *row.End >= *row.Start:
			span.Start, span.End = *row.Start, *row.End
		case found && u.timed:
			span.Start, span.End = u.start, u.end
		case span.Unit == "":
			return nil
		}
		return span
	}
}
