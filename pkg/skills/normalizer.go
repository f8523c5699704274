// Package skills normalizes free-text skill mentions into canonical labels and
// ranks them by frequency.
package skills

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dan-solli/skillgap/pkg/cluster"
)

// Defaults used when a caller does not care about tuning.
const (
	DefaultTopN                = 30
	DefaultSimilarityThreshold = 0.85
	DefaultMinClusterSize      = 2
)

// Embedder turns labels into vectors, one per input and in the same order.
// embeddings.EmbeddingClient satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Options tunes a single NormalizeAndRank call.
type Options struct {
	TopN                int     // Maximum number of skills returned, >= 1
	SimilarityThreshold float64 // Cosine similarity needed to link two labels, in (0, 1]
	MinClusterSize      int     // Smallest reported cluster, >= 2
}

// DefaultOptions returns the settings the career pipeline has always used.
func DefaultOptions() Options {
	return Options{
		TopN:                DefaultTopN,
		SimilarityThreshold: DefaultSimilarityThreshold,
		MinClusterSize:      DefaultMinClusterSize,
	}
}

// Validate checks every field and returns an *InvalidParameterError for the first bad one.
func (o Options) Validate() error {
	if o.TopN < 1 {
		return &InvalidParameterError{Param: "TopN", Value: o.TopN, Reason: "must be at least 1"}
	}
	if math.IsNaN(o.SimilarityThreshold) || o.SimilarityThreshold <= 0 || o.SimilarityThreshold > 1 {
		return &InvalidParameterError{Param: "SimilarityThreshold", Value: o.SimilarityThreshold, Reason: "must be in (0, 1]"}
	}
	if o.MinClusterSize < 2 {
		return &InvalidParameterError{Param: "MinClusterSize", Value: o.MinClusterSize, Reason: "must be at least 2"}
	}
	return nil
}

// RankedSkill is a canonical label and how often it occurred after canonicalization.
type RankedSkill struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Result is the full outcome of NormalizeAndRank.
type Result struct {
	// Skills holds the top labels, the shape callers of the pipeline consume.
	Skills []string `json:"skills"`
	// Ranking holds the same labels with their frequencies.
	Ranking []RankedSkill `json:"ranking"`
	// Mapping sends every unique normalized label to its canonical label.
	Mapping map[string]string `json:"mapping"`
	// Clusters lists the detected near-duplicate groups as labels.
	Clusters [][]string `json:"clusters"`
	// UniqueLabels is the number of distinct normalized labels that were embedded.
	UniqueLabels int `json:"uniqueLabels"`
}

func emptyResult() *Result {
	return &Result{
		Skills:   []string{},
		Ranking:  []RankedSkill{},
		Mapping:  map[string]string{},
		Clusters: [][]string{},
	}
}

// NormalizeLabel trims surrounding whitespace and lower-cases a skill label.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// Normalizer clusters near-duplicate skill labels and ranks canonical labels by frequency.
// A Normalizer holds no per-call state and is safe for concurrent use when its
// Embedder is.
type Normalizer struct {
	Embedder Embedder
	Detector cluster.Detector
	Logger   *slog.Logger
}

// NewNormalizer creates a normalizer using the greedy community detector.
func NewNormalizer(embedder Embedder) *Normalizer {
	return &Normalizer{
		Embedder: embedder,
		Detector: cluster.NewCommunityDetector(),
	}
}

// NormalizeAndRank is the labels-only form of (*Normalizer).NormalizeAndRank.
func NormalizeAndRank(ctx context.Context, corpus []string, embedder Embedder, opts Options) ([]string, error) {
	result, err := NewNormalizer(embedder).NormalizeAndRank(ctx, corpus, opts)
	if err != nil {
		return nil, err
	}
	return result.Skills, nil
}

// NormalizeAndRank normalizes every label in corpus, clusters the unique labels
// by embedding similarity, maps each cluster to its shortest member and returns
// the opts.TopN most frequent canonical labels.
//
// Frequencies are counted over the original corpus, duplicates included.
// Equal frequencies are ordered alphabetically. An empty corpus yields an
// empty result without calling the embedder.
func (n *Normalizer) NormalizeAndRank(ctx context.Context, corpus []string, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	normalized := make([]string, 0, len(corpus))
	seen := make(map[string]struct{}, len(corpus))
	for _, raw := range corpus {
		label := NormalizeLabel(raw)
		if label == "" {
			continue
		}
		normalized = append(normalized, label)
		seen[label] = struct{}{}
	}

	if len(seen) == 0 {
		return emptyResult(), nil
	}

	unique := make([]string, 0, len(seen))
	for label := range seen {
		unique = append(unique, label)
	}
	sort.Strings(unique)

	vectors, err := n.embed(ctx, unique)
	if err != nil {
		return nil, err
	}

	detector := n.Detector
	if detector == nil {
		detector = cluster.NewCommunityDetector()
	}
	clusters := detector.Detect(vectors, opts.MinClusterSize, opts.SimilarityThreshold)

	mapping, clusterLabels := canonicalize(unique, clusters)

	counts := make(map[string]int, len(mapping))
	for _, label := range normalized {
		counts[mapping[label]]++
	}

	ranking := rank(counts)
	if len(ranking) > opts.TopN {
		ranking = ranking[:opts.TopN]
	}

	top := make([]string, len(ranking))
	for i, r := range ranking {
		top[i] = r.Label
	}

	if n.Logger != nil {
		n.Logger.Debug("skills normalized",
			slog.Int("labels", len(normalized)),
			slog.Int("unique", len(unique)),
			slog.Int("clusters", len(clusterLabels)),
			slog.Int("returned", len(top)),
		)
	}

	return &Result{
		Skills:       top,
		Ranking:      ranking,
		Mapping:      mapping,
		Clusters:     clusterLabels,
		UniqueLabels: len(unique),
	}, nil
}

// embed calls the embedder once for all labels and checks the shape of the answer.
func (n *Normalizer) embed(ctx context.Context, labels []string) ([][]float32, error) {
	if n.Embedder == nil {
		return nil, &EmbeddingError{Reason: "no embedder configured", Expected: len(labels)}
	}

	vectors, err := n.Embedder.Embed(ctx, labels)
	if err != nil {
		return nil, &EmbeddingError{Cause: err, Expected: len(labels)}
	}
	if len(vectors) != len(labels) {
		return nil, &EmbeddingError{Reason: "vector count mismatch", Expected: len(labels), Got: len(vectors)}
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, &EmbeddingError{Reason: "empty vector", Expected: 1, Got: 0}
	}
	for _, v := range vectors[1:] {
		if len(v) != dim {
			return nil, &EmbeddingError{Reason: "vector dimension mismatch", Expected: dim, Got: len(v)}
		}
	}

	return vectors, nil
}

// canonicalize builds the label mapping. Each cluster maps to its shortest
// member (fewest runes, then lexicographically smallest). If clusters overlap,
// the first cluster to claim a label keeps it, and a cluster left with a single
// unclaimed member is dropped.
func canonicalize(unique []string, clusters [][]int) (map[string]string, [][]string) {
	mapping := make(map[string]string, len(unique))
	clusterLabels := make([][]string, 0, len(clusters))

	for _, c := range clusters {
		var members []string
		for _, idx := range c {
			if idx < 0 || idx >= len(unique) {
				continue
			}
			label := unique[idx]
			if _, claimed := mapping[label]; claimed {
				continue
			}
			members = append(members, label)
		}
		if len(members) < 2 {
			continue
		}

		canonical := members[0]
		for _, m := range members[1:] {
			if shorter(m, canonical) {
				canonical = m
			}
		}
		for _, m := range members {
			mapping[m] = canonical
		}

		sorted := append([]string(nil), members...)
		sort.Strings(sorted)
		clusterLabels = append(clusterLabels, sorted)
	}

	for _, label := range unique {
		if _, ok := mapping[label]; !ok {
			mapping[label] = label
		}
	}

	return mapping, clusterLabels
}

func shorter(a, b string) bool {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

// rank orders labels by descending count, then alphabetically.
func rank(counts map[string]int) []RankedSkill {
	ranking := make([]RankedSkill, 0, len(counts))
	for label, count := range counts {
		ranking = append(ranking, RankedSkill{Label: label, Count: count})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Count != ranking[j].Count {
			return ranking[i].Count > ranking[j].Count
		}
		return ranking[i].Label < ranking[j].Label
	})
	return ranking
}
