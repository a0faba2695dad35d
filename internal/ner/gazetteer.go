package ner

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/goccy/go-json"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/samcharles93/nerloop/internal/corpus"
	"github.com/samcharles93/nerloop/internal/logger"
)

const (
	defaultMaxTokens    = 6
	defaultMinPrecision = 0.5
)

// Gazetteer is a dictionary model: it remembers the surface forms of every
// training entity and tags them by greedy longest match on word boundaries.
type Gazetteer struct {
	meta         Meta
	maxTokens    int
	minPrecision float64
	// entries maps a lower-cased phrase to its per-label entity counts.
	entries map[string]map[string]int
	// seen counts every occurrence of a known phrase in training text,
	// labelled or not.
	seen map[string]int
}

// GazetteerTrainer builds Gazetteer models.
type GazetteerTrainer struct {
	// MaxTokens bounds the phrase length in words. Zero means 6.
	MaxTokens int
	// MinPrecision is the share of labelled occurrences a phrase needs to be
	// predicted. Zero means 0.5.
	MinPrecision float64
	Log          logger.Logger
}

func (t GazetteerTrainer) Train(ctx context.Context, base Model, data []corpus.Sentence, labels corpus.LabelSet, iterations int) (Model, error) {
	if iterations < 1 {
		iterations = 1
	}
	log := t.Log
	if log == nil {
		log = logger.FromContext(ctx)
	}

	g := &Gazetteer{
		maxTokens:    t.MaxTokens,
		minPrecision: t.MinPrecision,
		entries:      make(map[string]map[string]int),
		seen:         make(map[string]int),
	}
	if g.maxTokens <= 0 {
		g.maxTokens = defaultMaxTokens
	}
	if g.minPrecision <= 0 {
		g.minPrecision = defaultMinPrecision
	}
	if base != nil {
		bg, ok := base.(*Gazetteer)
		if !ok {
			return nil, fmt.Errorf("ner: cannot fine-tune %T as a gazetteer", base)
		}
		g.maxTokens = max(g.maxTokens, bg.maxTokens)
		for phrase, counts := range bg.entries {
			g.entries[phrase] = maps.Clone(counts)
		}
		maps.Copy(g.seen, bg.seen)
		log.Info("fine-tuning gazetteer", "base_run", bg.meta.RunID, "phrases", len(bg.entries))
	}
	g.meta = newMeta(KindGazetteer, base)
	g.meta.Iterations = iterations
	g.meta.Sentences = len(data)
	if base != nil {
		g.meta.Sentences += base.Meta().Sentences
	}

	added := 0
	for i, s := range data {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("training sentence %d: %w", i+1, err)
		}
		for _, ent := range s.Entities {
			if labels.Len() > 0 && !labels.Has(ent.Label) {
				continue
			}
			phrase := normalize(s.Surface(ent))
			if phrase == "" || len(strings.Fields(phrase)) > g.maxTokens {
				continue
			}
			counts := g.entries[phrase]
			if counts == nil {
				counts = make(map[string]int)
				g.entries[phrase] = counts
			}
			counts[ent.Label]++
			added++
		}
	}
	for _, s := range data {
		toks := tokenize(s.Text)
		for i := range toks {
			for n := 1; n <= g.maxTokens && i+n <= len(toks); n++ {
				phrase := joinTokens(toks[i : i+n])
				if _, ok := g.entries[phrase]; ok {
					g.seen[phrase]++
				}
			}
		}
	}

	g.meta.Labels = g.Labels()
	log.Info("trained gazetteer",
		"run", g.meta.RunID,
		"sentences", len(data),
		"entities", added,
		"phrases", len(g.entries),
		"labels", len(g.meta.Labels),
		"iterations", iterations,
	)
	return g, nil
}

func (g *Gazetteer) Meta() Meta {
	return g.meta
}

// Labels returns every label the model can emit, sorted.
func (g *Gazetteer) Labels() []string {
	set := make(map[string]struct{})
	for _, counts := range g.entries {
		for l := range counts {
			set[l] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Predict tags the longest known phrase at each position, left to right.
func (g *Gazetteer) Predict(ctx context.Context, text string) ([]corpus.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	toks := tokenize(text)
	out := []corpus.Entity{}
	for i := 0; i < len(toks); {
		matched := 0
		for n := min(g.maxTokens, len(toks)-i); n >= 1; n-- {
			label, ok := g.lookup(joinTokens(toks[i : i+n]))
			if !ok {
				continue
			}
			out = append(out, corpus.Entity{Start: toks[i].start, End: toks[i+n-1].end, Label: label})
			matched = n
			break
		}
		if matched == 0 {
			matched = 1
		}
		i += matched
	}
	return out, nil
}

func (g *Gazetteer) lookup(phrase string) (string, bool) {
	counts, ok := g.entries[phrase]
	if !ok {
		return "", false
	}
	best, total := "", 0
	for l, n := range counts {
		total += n
		if n > counts[best] || (n == counts[best] && l < best) {
			best = l
		}
	}
	seen := max(g.seen[phrase], total)
	if float64(total)/float64(seen) < g.minPrecision {
		return "", false
	}
	return best, true
}

type gazetteerPayload struct {
	MaxTokens    int                       `json:"max_tokens"`
	MinPrecision float64                   `json:"min_precision"`
	Entries      map[string]map[string]int `json:"entries"`
	Seen         map[string]int            `json:"seen"`
}

// Save writes meta.yaml and model.json into dir, creating it if needed.
func (g *Gazetteer) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.Marshal(gazetteerPayload{
		MaxTokens:    g.maxTokens,
		MinPrecision: g.minPrecision,
		Entries:      g.entries,
		Seen:         g.seen,
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", modelFile, err)
	}
	if err := os.WriteFile(filepath.Join(dir, modelFile), b, 0o644); err != nil {
		return err
	}
	return writeMeta(dir, g.meta)
}

func loadGazetteer(dir string, m Meta) (*Gazetteer, error) {
	b, err := os.ReadFile(filepath.Join(dir, modelFile))
	if err != nil {
		return nil, err
	}
	var p gazetteerPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Join(dir, modelFile), err)
	}
	g := &Gazetteer{
		meta:         m,
		maxTokens:    p.MaxTokens,
		minPrecision: p.MinPrecision,
		entries:      p.Entries,
		seen:         p.Seen,
	}
	if g.entries == nil {
		g.entries = make(map[string]map[string]int)
	}
	if g.seen == nil {
		g.seen = make(map[string]int)
	}
	if g.maxTokens <= 0 {
		g.maxTokens = defaultMaxTokens
	}
	if g.minPrecision <= 0 {
		g.minPrecision = defaultMinPrecision
	}
	return g, nil
}

type token struct {
	text       string
	start, end int
}

// tokenize splits text on whitespace, keeping byte offsets.
func tokenize(text string) []token {
	var toks []token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				toks = append(toks, token{text: text[start:i], start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		toks = append(toks, token{text: text[start:], start: start, end: len(text)})
	}
	return toks
}

func joinTokens(toks []token) string {
	parts := make([]string, len(toks))
	for i, t := range toks {
		parts[i] = t.text
	}
	return foldKey(strings.Join(parts, " "))
}

func normalize(s string) string {
	return foldKey(strings.Join(strings.Fields(s), " "))
}

// foldKey maps a phrase to its lookup key: NFC composed, then case folded,
// so "Beyoncé" typed with a combining accent matches the precomposed form.
// Casers hold state, so each call gets its own.
func foldKey(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
