package skillgap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dan-solli/skillgap/pkg/extraction"
	"github.com/dan-solli/skillgap/pkg/metrics"
	"github.com/dan-solli/skillgap/pkg/skills"
)

// Operation names used in metrics, traces and logs.
const (
	OpTopSkills           = "top_skills"
	OpTopSkillsByCategory = "top_skills_by_category"
	OpRankCategories      = "rank_categories"
	OpAnalyzeJob          = "analyze_job"
)

// Posting is one job posting with the skills already extracted from it.
type Posting struct {
	Category        string   `json:"category"`
	TechnicalSkills []string `json:"technical_skills"`
	SoftSkills      []string `json:"soft_skills"`
}

// JobAnalysis is the outcome of AnalyzeJob.
type JobAnalysis struct {
	// Extracted holds the skills exactly as the LLM reported them, cleaned.
	Extracted *extraction.SkillSet `json:"extracted"`
	// Skills holds the normalized, deduplicated job skills.
	Skills *skills.Result `json:"skills"`
	// Gaps lists job skills the user does not have, sorted.
	Gaps []string `json:"gaps"`
}

// operation tracks one public call for metrics, tracing and logging.
type operation struct {
	g     *SkillGap
	name  string
	start time.Time
	trace *OperationTrace
}

func (g *SkillGap) begin(name string) *operation {
	op := &operation{g: g, name: name, start: time.Now()}
	if g.config.TraceEnabled || g.traceExporter != nil {
		op.trace = newTrace(uuid.NewString(), name)
	}
	return op
}

// stage runs fn as a named span and records its duration.
func (op *operation) stage(ctx context.Context, name string, fn func() (map[string]int64, error)) error {
	timer := newSpanTimer(name, op.trace, op.trace != nil)
	start := time.Now()

	counters, err := fn()

	timer.finish(err == nil, err, counters)
	op.g.metrics.RecordStage(ctx, op.name, name, time.Since(start).Milliseconds())
	return err
}

// end records the outcome of the operation.
func (op *operation) end(ctx context.Context, err error) {
	g := op.g
	durationMs := time.Since(op.start).Milliseconds()
	status := statusOf(err)

	g.metrics.RecordOperation(ctx, op.name, status, durationMs)
	if err != nil {
		g.metrics.RecordError(ctx, op.name, ClassifyError(err))
	}

	if op.trace != nil {
		if g.config.TraceEnabled {
			g.mu.Lock()
			g.lastTrace = op.trace
			g.mu.Unlock()
		}
		if g.traceExporter != nil {
			if exportErr := g.traceExporter.Export(ctx, op.trace.record(op.start, durationMs, err)); exportErr != nil && g.logger != nil {
				g.logger.Warn("trace export failed",
					slog.String("operation", op.name),
					slog.String("error", exportErr.Error()),
				)
			}
		}
	}

	if g.logger == nil {
		return
	}
	if err != nil {
		g.logger.Error("operation failed",
			slog.String("operation", op.name),
			slog.Int64("duration_ms", durationMs),
			slog.String("error_type", ClassifyError(err)),
			slog.String("error", err.Error()),
		)
		return
	}
	g.logger.Info("operation completed",
		slog.String("operation", op.name),
		slog.Int64("duration_ms", durationMs),
	)
}

// TopSkills normalizes the corpus and returns the most frequent canonical skills.
func (g *SkillGap) TopSkills(ctx context.Context, corpus []string) (*skills.Result, error) {
	op := g.begin(OpTopSkills)
	result, err := g.normalize(ctx, op, corpus)
	op.end(ctx, err)
	return result, err
}

// TopSkillsByCategory ranks the skills of all postings whose category contains
// category, ignoring case. Technical skills are counted before soft skills.
// No matching posting yields an empty result.
func (g *SkillGap) TopSkillsByCategory(ctx context.Context, postings []Posting, category string) (*skills.Result, error) {
	op := g.begin(OpTopSkillsByCategory)

	var corpus []string
	_ = op.stage(ctx, "filter", func() (map[string]int64, error) {
		var matched int
		corpus, matched = corpusForCategory(postings, category)
		return map[string]int64{"postings": int64(matched), "labels": int64(len(corpus))}, nil
	})

	result, err := g.normalize(ctx, op, corpus)
	op.end(ctx, err)
	return result, err
}

// RankCategories runs TopSkillsByCategory for every category concurrently,
// bounded by Config.MaxConcurrency. The first failure cancels the rest.
func (g *SkillGap) RankCategories(ctx context.Context, postings []Posting, categories []string) (map[string]*skills.Result, error) {
	op := g.begin(OpRankCategories)

	results := make(map[string]*skills.Result, len(categories))
	spans := make([]Span, len(categories))
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.config.MaxConcurrency)

	for i, category := range categories {
		eg.Go(func() error {
			start := time.Now()
			corpus, matched := corpusForCategory(postings, category)
			result, err := g.normalizer.NormalizeAndRank(egCtx, corpus, g.config.options())

			span := Span{
				Name:       "normalize",
				DurationMs: time.Since(start).Milliseconds(),
				OK:         err == nil,
				Counters:   map[string]int64{"postings": int64(matched), "labels": int64(len(corpus))},
			}
			if err != nil {
				span.Error = err.Error()
				span.errorType = ClassifyError(err)
				spans[i] = span
				return fmt.Errorf("category %q: %w", category, err)
			}
			span.Counters["unique"] = int64(result.UniqueLabels)
			span.Counters["ranked"] = int64(len(result.Ranking))
			spans[i] = span

			mu.Lock()
			results[category] = result
			mu.Unlock()
			return nil
		})
	}

	err := eg.Wait()
	if op.trace != nil {
		for _, span := range spans {
			if span.Name != "" {
				op.trace.addSpan(span)
			}
		}
	}
	op.end(ctx, err)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// AnalyzeJob extracts the skills of a job description, normalizes them and
// lists the ones missing from userSkills.
func (g *SkillGap) AnalyzeJob(ctx context.Context, jobDescription string, userSkills []string) (*JobAnalysis, error) {
	op := g.begin(OpAnalyzeJob)
	analysis, err := g.analyzeJob(ctx, op, jobDescription, userSkills)
	op.end(ctx, err)
	return analysis, err
}

func (g *SkillGap) analyzeJob(ctx context.Context, op *operation, jobDescription string, userSkills []string) (*JobAnalysis, error) {
	if g.extractor == nil {
		return nil, fmt.Errorf("skill extraction requires an LLM client")
	}

	var extracted *extraction.SkillSet
	err := op.stage(ctx, "extract", func() (map[string]int64, error) {
		var err error
		extracted, err = g.extractor.Extract(ctx, jobDescription)
		if err != nil {
			return nil, err
		}
		return map[string]int64{
			"technical": int64(len(extracted.TechnicalSkills)),
			"soft":      int64(len(extracted.SoftSkills)),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	// Every job skill matters for the gap list, so nothing is cut off.
	corpus := extracted.All()
	opts := g.config.options()
	if len(corpus) > opts.TopN {
		opts.TopN = len(corpus)
	}

	var normalized *skills.Result
	err = op.stage(ctx, "normalize", func() (map[string]int64, error) {
		var err error
		normalized, err = g.normalizer.NormalizeAndRank(ctx, corpus, opts)
		if err != nil {
			return nil, err
		}
		return normalizeCounters(len(corpus), normalized), nil
	})
	if err != nil {
		return nil, err
	}

	var gaps []string
	_ = op.stage(ctx, "gaps", func() (map[string]int64, error) {
		gaps = skills.FindGaps(normalized.Skills, canonicalUserSkills(userSkills, normalized.Mapping))
		return map[string]int64{"gaps": int64(len(gaps))}, nil
	})

	return &JobAnalysis{
		Extracted: extracted,
		Skills:    normalized,
		Gaps:      gaps,
	}, nil
}

// canonicalUserSkills renames user skills that share a cluster with a job
// skill to that cluster's canonical label. Other skills pass through.
func canonicalUserSkills(userSkills []string, mapping map[string]string) []string {
	out := make([]string, 0, len(userSkills))
	for _, s := range userSkills {
		label := skills.NormalizeLabel(s)
		if canonical, ok := mapping[label]; ok {
			label = canonical
		}
		out = append(out, label)
	}
	return out
}

// normalize runs the normalizer as the "normalize" stage of op.
func (g *SkillGap) normalize(ctx context.Context, op *operation, corpus []string) (*skills.Result, error) {
	var result *skills.Result
	err := op.stage(ctx, "normalize", func() (map[string]int64, error) {
		var err error
		result, err = g.normalizer.NormalizeAndRank(ctx, corpus, g.config.options())
		if err != nil {
			return nil, err
		}
		return normalizeCounters(len(corpus), result), nil
	})
	if err != nil {
		return nil, err
	}

	g.metrics.SetSkillsCount(ctx, metrics.KindUnique, int64(result.UniqueLabels))
	g.metrics.SetSkillsCount(ctx, metrics.KindClusters, int64(len(result.Clusters)))
	g.metrics.SetSkillsCount(ctx, metrics.KindRanked, int64(len(result.Ranking)))

	return result, nil
}

func normalizeCounters(labels int, result *skills.Result) map[string]int64 {
	return map[string]int64{
		"labels":   int64(labels),
		"unique":   int64(result.UniqueLabels),
		"clusters": int64(len(result.Clusters)),
		"ranked":   int64(len(result.Ranking)),
	}
}

// corpusForCategory returns the technical then soft skills of every posting
// whose category contains category, ignoring case, and the number of matches.
func corpusForCategory(postings []Posting, category string) ([]string, int) {
	needle := strings.ToLower(category)

	var technical, soft []string
	matched := 0
	for _, p := range postings {
		if !strings.Contains(strings.ToLower(p.Category), needle) {
			continue
		}
		matched++
		technical = append(technical, p.TechnicalSkills...)
		soft = append(soft, p.SoftSkills...)
	}

	return append(technical, soft...), matched
}
