// Package risk classifies token descriptions into per-window risk tiers
// with a small entropy decision tree trained on a fixed curated corpus.
package risk

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// ErrNotTrained is returned by Predict before the model has been trained.
var ErrNotTrained = errors.New("risk model not trained")

// Tier is the per-window risk classification.
type Tier int

const (
	Safe Tier = iota
	Caution
	Danger
)

func (t Tier) String() string {
	switch t {
	case Safe:
		return "SAFE"
	case Caution:
		return "CAUTION"
	case Danger:
		return "DANGER"
	default:
		return "UNKNOWN"
	}
}

// DefaultMaxDepth bounds the trained tree.
const DefaultMaxDepth = 6

const numTiers = 3

// Model is a bag-of-tokens vectoriser feeding a decision tree that splits
// on token presence. Feature ties break toward the earliest vocabulary
// token and leaf ties toward the lowest tier, so training is deterministic.
type Model struct {
	MaxDepth int

	vocab map[string]int
	terms []string
	root  *node
}

type node struct {
	feature int
	absent  *node
	present *node
	tier    Tier
	leaf    bool
}

// NewModel returns an untrained model with the default depth.
func NewModel() *Model {
	return &Model{MaxDepth: DefaultMaxDepth}
}

// NewTrainedModel returns a model trained on the built-in corpus.
func NewTrainedModel() (*Model, error) {
	m := NewModel()
	docs, labels := Corpus()
	if err := m.Train(docs, labels); err != nil {
		return nil, err
	}
	return m, nil
}

// Trained reports whether Train has succeeded.
func (m *Model) Trained() bool { return m.root != nil }

// Vocabulary returns the learned terms in feature order.
func (m *Model) Vocabulary() []string { return append([]string(nil), m.terms...) }

// Train fits the vocabulary and tree to docs.
func (m *Model) Train(docs []string, labels []Tier) error {
	if len(docs) == 0 {
		return fmt.Errorf("train: empty corpus")
	}
	if len(docs) != len(labels) {
		return fmt.Errorf("train: %d documents but %d labels", len(docs), len(labels))
	}
	for i, l := range labels {
		if l < Safe || l > Danger {
			return fmt.Errorf("train: label %d out of range at %d", l, i)
		}
	}

	seen := map[string]bool{}
	var terms []string
	for _, d := range docs {
		for _, tok := range analyze(d) {
			if !seen[tok] {
				seen[tok] = true
				terms = append(terms, tok)
			}
		}
	}
	sort.Strings(terms)
	m.terms = terms
	m.vocab = make(map[string]int, len(terms))
	for i, t := range terms {
		m.vocab[t] = i
	}

	rows := make([][]bool, len(docs))
	for i, d := range docs {
		rows[i] = m.vectorize(d)
	}
	idx := make([]int, len(docs))
	for i := range idx {
		idx[i] = i
	}
	depth := m.MaxDepth
	if depth <= 0 {
		depth = DefaultMaxDepth
	}
	m.root = build(rows, labels, idx, depth)
	return nil
}

// Predict returns one tier per description.
func (m *Model) Predict(descs []string) ([]Tier, error) {
	if !m.Trained() {
		return nil, ErrNotTrained
	}
	if len(descs) == 0 {
		return nil, fmt.Errorf("predict: empty descriptions")
	}
	out := make([]Tier, len(descs))
	for i, d := range descs {
		x := m.vectorize(d)
		n := m.root
		for !n.leaf {
			if x[n.feature] {
				n = n.present
			} else {
				n = n.absent
			}
		}
		out[i] = n.tier
	}
	return out, nil
}

// analyze lowercases and splits on whitespace. Tokens are single words so
// this matches a word-level count vectoriser.
func analyze(doc string) []string {
	return strings.Fields(strings.ToLower(doc))
}

func (m *Model) vectorize(doc string) []bool {
	x := make([]bool, len(m.terms))
	for _, tok := range analyze(doc) {
		if i, ok := m.vocab[tok]; ok {
			x[i] = true
		}
	}
	return x
}

func counts(labels []Tier, idx []int) []float64 {
	c := make([]float64, numTiers)
	for _, i := range idx {
		c[labels[i]]++
	}
	return c
}

func entropy(c []float64) float64 {
	total := 0.0
	for _, v := range c {
		total += v
	}
	if total == 0 {
		return 0
	}
	p := make([]float64, len(c))
	for i, v := range c {
		p[i] = v / total
	}
	return stat.Entropy(p)
}

func majority(c []float64) Tier {
	best := 0
	for i := 1; i < len(c); i++ {
		if c[i] > c[best] {
			best = i
		}
	}
	return Tier(best)
}

const minGain = 1e-12

func build(rows [][]bool, labels []Tier, idx []int, depth int) *node {
	c := counts(labels, idx)
	h := entropy(c)
	leaf := &node{leaf: true, tier: majority(c)}
	if depth == 0 || h == 0 || len(idx) < 2 {
		return leaf
	}

	n := float64(len(idx))
	bestFeature, bestGain := -1, minGain
	var bestAbsent, bestPresent []int
	for f := range rows[idx[0]] {
		var absent, present []int
		for _, i := range idx {
			if rows[i][f] {
				present = append(present, i)
			} else {
				absent = append(absent, i)
			}
		}
		if len(absent) == 0 || len(present) == 0 {
			continue
		}
		child := float64(len(absent))/n*entropy(counts(labels, absent)) +
			float64(len(present))/n*entropy(counts(labels, present))
		if gain := h - child; gain > bestGain {
			bestFeature, bestGain = f, gain
			bestAbsent, bestPresent = absent, present
		}
	}
	if bestFeature < 0 {
		return leaf
	}
	return &node{
		feature: bestFeature,
		absent:  build(rows, labels, bestAbsent, depth-1),
		present: build(rows, labels, bestPresent, depth-1),
	}
}
