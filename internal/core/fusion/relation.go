package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"

	"github.com/agenthands/uidn/internal/core/common"
	"github.com/agenthands/uidn/internal/core/model"
	"github.com/agenthands/uidn/internal/llm"
)

// Endpoint is one side of a co-occurring pair: the candidate and the node it
// resolved to.
type Endpoint struct {
	Candidate model.CandidateEntity
	Node      *model.FusedNode
}

// Relation is a directed relation between two nodes.
type Relation struct {
	Source string
	Target string
	Type   string
}

// RelationPolicy decides whether two co-occurring entities are related.
type RelationPolicy interface {
	Relate(ctx context.Context, unit string, a, b Endpoint) (Relation, bool)
}

type typePair struct {
	from, to model.EntityType
}

var cooccurrenceTable = map[typePair]string{
	{model.EntityPerson, model.EntityLocation}: "LOCATED_AT",
	{model.EntityPerson, model.EntityOrg}:      "AFFILIATED_WITH",
	{model.EntityPerson, model.EntityTime}:     "ACTIVE_AT",
	{model.EntityPerson, model.EntityOther}:    "INVOLVED_WITH",
	{model.EntityOrg, model.EntityLocation}:    "BASED_IN",
	{model.EntityOrg, model.EntityTime}:        "OCCURRED_AT",
	{model.EntityLocation, model.EntityTime}:   "OCCURRED_AT",
}

const associatedWith = "ASSOCIATED_WITH"

// CooccurrencePolicy relates compatible type pairs with a fixed relation
// table. PERSON–PERSON pairs are symmetric and point from the lower UIDN.
type CooccurrencePolicy struct{}

func (CooccurrencePolicy) Relate(_ context.Context, _ string, a, b Endpoint) (Relation, bool) {
	return heuristic(a, b)
}

func heuristic(a, b Endpoint) (Relation, bool) {
	ta, tb := a.Node.Type, b.Node.Type
	if ta == model.EntityPerson && tb == model.EntityPerson {
		src, tgt := a.Node.UIDN, b.Node.UIDN
		if tgt < src {
			src, tgt = tgt, src
		}
		return Relation{Source: src, Target: tgt, Type: associatedWith}, true
	}
	if rel, ok := cooccurrenceTable[typePair{ta, tb}]; ok {
		return Relation{Source: a.Node.UIDN, Target: b.Node.UIDN, Type: rel}, true
	}
	if rel, ok := cooccurrenceTable[typePair{tb, ta}]; ok {
		return Relation{Source: b.Node.UIDN, Target: a.Node.UIDN, Type: rel}, true
	}
	return Relation{}, false
}

// ModelPolicy asks the language model to name the relation of a compatible
// pair. Answers are cached per node pair; on any failure it falls back to the
// heuristic table.
type ModelPolicy struct {
	LLM    llm.LLMClient
	Prompt string

	mu    sync.Mutex
	cache map[[2]string]cached
}

type cached struct {
	rel Relation
	ok  bool
}

func NewModelPolicy(client llm.LLMClient, prompt string) *ModelPolicy {
	return &ModelPolicy{LLM: client, Prompt: prompt, cache: make(map[[2]string]cached)}
}

func (p *ModelPolicy) Relate(ctx context.Context, unit string, a, b Endpoint) (Relation, bool) {
	base, ok := heuristic(a, b)
	if !ok {
		return Relation{}, false
	}

	key := [2]string{base.Source, base.Target}
	p.mu.Lock()
	if c, hit := p.cache[key]; hit {
		p.mu.Unlock()
		return c.rel, c.ok
	}
	p.mu.Unlock()

	src, tgt := a, b
	if base.Source != a.Node.UIDN {
		src, tgt = b, a
	}
	prompt := fmt.Sprintf(p.Prompt, unit,
		src.Node.Type, src.Node.CanonicalValue,
		tgt.Node.Type, tgt.Node.CanonicalValue)

	rel, ok := base, true
	resp, err := p.LLM.Generate(ctx, prompt)
	if err == nil {
		var parsed model.ExtractedRelation
		parsed, err = common.ParseJSON[model.ExtractedRelation](resp)
		if err == nil {
			switch name := relationName(parsed.RelationType); name {
			case "":
				err = fmt.Errorf("empty relation type")
			case "NONE":
				ok = false
			default:
				rel.Type = name
			}
		}
	}
	if err != nil {
		slog.Warn("fusion: relation model failed, using heuristic", "source", base.Source, "target", base.Target, "error", err)
		rel, ok = base, true
	}

	p.mu.Lock()
	p.cache[key] = cached{rel: rel, ok: ok}
	p.mu.Unlock()
	return rel, ok
}

// relationName upper-snake-cases a model answer, e.g. "works for" -> "WORKS_FOR".
func relationName(s string) string {
	var sb strings.Builder
	underscore := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if underscore && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			underscore = false
			sb.WriteRune(unicode.ToUpper(r))
			continue
		}
		underscore = true
	}
	return sb.String()
}
