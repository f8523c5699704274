// Package extraction provides skill extraction from job descriptions
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dan-solli/skillgap/pkg/llm"
)

// SkillSet holds the skills extracted from a job description
type SkillSet struct {
	TechnicalSkills []string `json:"technical_skills"`
	SoftSkills      []string `json:"soft_skills"`
}

// All returns technical skills followed by soft skills.
func (s *SkillSet) All() []string {
	out := make([]string, 0, len(s.TechnicalSkills)+len(s.SoftSkills))
	out = append(out, s.TechnicalSkills...)
	return append(out, s.SoftSkills...)
}

// skillExtractionPrompt is the prompt template for skill extraction
const skillExtractionPrompt = `You are an expert assistant specialized in tech recruitment and HR analytics.
Analyze the following job description and extract all relevant technical and soft skills.

Follow these rules precisely:
1. Extract, do not infer: only list skills that are explicitly mentioned or very strongly implied in the text.
2. Be specific: avoid generic terms. Prefer "AWS S3" over "Cloud Storage".
3. Normalize skills: use the canonical name for technologies ("Python" not "python programming", "PyTorch" not "Pytorch framework").
4. Format: return ONLY a valid JSON object, with no introductory text, explanations or markdown.

- technical_skills: specific technical skills, e.g. "Python", "PyTorch", "AWS S3", "SQL", "Git"
- soft_skills: soft or behavioral skills, e.g. "Teamwork", "Agile Methodologies", "Problem-solving", "Communication"

Job description:
---
%s
---

Return ONLY valid JSON:
{"technical_skills": ["..."], "soft_skills": ["..."]}`

// SkillExtractor extracts skills from job descriptions using an LLM
type SkillExtractor struct {
	LLM    llm.LLMClient
	Logger *slog.Logger
}

// NewSkillExtractor creates a new skill extractor
func NewSkillExtractor(llmClient llm.LLMClient) *SkillExtractor {
	return &SkillExtractor{
		LLM: llmClient,
	}
}

// Extract extracts technical and soft skills from the given job description.
// Blank entries are dropped and duplicates removed case-insensitively, keeping the
// first spelling seen.
func (e *SkillExtractor) Extract(ctx context.Context, jobDescription string) (*SkillSet, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return &SkillSet{TechnicalSkills: []string{}, SoftSkills: []string{}}, nil
	}

	prompt := fmt.Sprintf(skillExtractionPrompt, jobDescription)

	var raw SkillSet
	if err := e.LLM.CompleteWithSchema(ctx, prompt, &raw); err != nil {
		return nil, fmt.Errorf("failed to extract skills: %w", err)
	}

	set := &SkillSet{
		TechnicalSkills: cleanSkills(raw.TechnicalSkills),
		SoftSkills:      cleanSkills(raw.SoftSkills),
	}

	if e.Logger != nil {
		e.Logger.Debug("skills extracted",
			slog.Int("technical", len(set.TechnicalSkills)),
			slog.Int("soft", len(set.SoftSkills)),
		)
	}

	return set, nil
}

func cleanSkills(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
