package fusion

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/agenthands/uidn/internal/config"
	"github.com/agenthands/uidn/internal/core/common"
	"github.com/agenthands/uidn/internal/core/model"
)

// Scorer rates how likely two same-type candidates denote the same entity.
type Scorer interface {
	Score(a, b model.CandidateEntity) float64
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(a, b model.CandidateEntity) float64

func (f ScorerFunc) Score(a, b model.CandidateEntity) float64 {
	return f(a, b)
}

// Similarity is the default scorer: value similarity plus a span proximity
// bonus, scaled by a modality-pair prior.
type Similarity struct {
	ProximityBonus float64
	Priors         map[string]float64
}

func NewSimilarity(cfg config.FusionConfig) *Similarity {
	priors := cfg.ModalityPriors
	if priors == nil {
		priors = config.DefaultModalityPriors()
	}
	return &Similarity{ProximityBonus: cfg.ProximityBonus, Priors: priors}
}

func (s *Similarity) Score(a, b model.CandidateEntity) float64 {
	score := ValueSimilarity(a.Value, b.Value)
	score += s.ProximityBonus * Proximity(a.Span, b.Span)
	score *= s.prior(a.Modality, b.Modality)
	return math.Min(score, 1)
}

func (s *Similarity) prior(a, b model.Modality) float64 {
	if p, ok := s.Priors[PriorKey(a, b)]; ok {
		return p
	}
	return 1
}

// PriorKey orders a modality pair by priority, e.g. "TEXT|IMAGE".
func PriorKey(a, b model.Modality) string {
	if b.Priority() < a.Priority() {
		a, b = b, a
	}
	return string(a) + "|" + string(b)
}

// ValueSimilarity compares two surface values in [0,1]. Multi-word values on
// both sides are compared token by token; otherwise the better of the
// character and token measures wins.
func ValueSimilarity(a, b string) float64 {
	fa, fb := common.FoldValue(a), common.FoldValue(b)
	if fa == "" || fb == "" {
		return 0
	}
	if fa == fb {
		return 1
	}
	ta, tb := tokens(fa), tokens(fb)
	tok := tokenSimilarity(ta, tb)
	if len(ta) > 1 && len(tb) > 1 {
		return tok
	}
	return math.Max(charSimilarity(fa, fb), tok)
}

// charSimilarity blends the matching-block ratio, the Levenshtein ratio and
// the Jaccard index of the character sets.
func charSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	return 0.5*blockRatio(ra, rb) + 0.3*levenshteinRatio(ra, rb) + 0.2*charJaccard(ra, rb)
}

func blockRatio(a, b []rune) float64 {
	return difflib.NewMatcher(runeStrings(a), runeStrings(b)).Ratio()
}

func runeStrings(rs []rune) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

func levenshteinRatio(a, b []rune) float64 {
	longest := max(len(a), len(b))
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func charJaccard(a, b []rune) float64 {
	set := make(map[rune]uint8)
	for _, r := range a {
		set[r] |= 1
	}
	for _, r := range b {
		set[r] |= 2
	}
	inter := 0
	for _, v := range set {
		if v == 3 {
			inter++
		}
	}
	return float64(inter) / float64(len(set))
}

func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// tokenScore treats a single-letter token as an initial of a longer token.
func tokenScore(a, b string) float64 {
	switch {
	case a == b:
		return 1
	case utf8.RuneCountInString(a) == 1 && strings.HasPrefix(b, a),
		utf8.RuneCountInString(b) == 1 && strings.HasPrefix(a, b):
		return 0.9
	}
	return charSimilarity(a, b)
}

// tokenSimilarity greedily aligns the best-scoring token pairs and returns
// their Dice coefficient.
func tokenSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	type pair struct {
		i, j  int
		score float64
	}
	pairs := make([]pair, 0, len(a)*len(b))
	for i, x := range a {
		for j, y := range b {
			pairs = append(pairs, pair{i, j, tokenScore(x, y)})
		}
	}
	sort.SliceStable(pairs, func(x, y int) bool {
		return pairs[x].score > pairs[y].score
	})

	usedA := make([]bool, len(a))
	usedB := make([]bool, len(b))
	total := 0.0
	for _, p := range pairs {
		if usedA[p.i] || usedB[p.j] {
			continue
		}
		usedA[p.i], usedB[p.j] = true, true
		total += p.score
	}
	return 2 * total / float64(len(a)+len(b))
}

// Proximity is the overlap of two spans of the same kind: interval IoU for
// offsets and times, box IoU for image regions.
func Proximity(a, b *model.SourceSpan) float64 {
	if a == nil || b == nil || a.Kind != b.Kind {
		return 0
	}
	if a.Kind == model.SpanBBox {
		if a.BBox == nil || b.BBox == nil {
			return 0
		}
		return boxIoU(*a.BBox, *b.BBox)
	}
	return intervalIoU(a.Start, a.End, b.Start, b.End)
}

func intervalIoU(s1, e1, s2, e2 float64) float64 {
	inter := math.Min(e1, e2) - math.Max(s1, s2)
	union := math.Max(e1, e2) - math.Min(s1, s2)
	if inter <= 0 || union <= 0 {
		return 0
	}
	return inter / union
}

func boxIoU(a, b model.BBox) float64 {
	w := math.Min(a.X+a.Width, b.X+b.Width) - math.Max(a.X, b.X)
	h := math.Min(a.Y+a.Height, b.Y+b.Height) - math.Max(a.Y, b.Y)
	if w <= 0 || h <= 0 {
		return 0
	}
	inter := w * h
	union := a.Width*a.Height + b.Width*b.Height - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
