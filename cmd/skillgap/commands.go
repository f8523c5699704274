package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dan-solli/skillgap/pkg/skillgap"
	"github.com/dan-solli/skillgap/pkg/skills"
)

func newTopCmd(a *app) *cobra.Command {
	var labelsFile string

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Rank skill labels read one per line",
		Long: `Rank skill labels read one per line from --labels, or from stdin when
--labels is "-" or omitted.

Example:
  skillgap top --labels skills.txt --top 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			corpus, err := readLines(cmd, labelsFile)
			if err != nil {
				return err
			}

			g, closer, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := closer(); closeErr != nil && err == nil {
					err = closeErr
				}
			}()

			result, err := g.TopSkills(cmd.Context(), corpus)
			if err != nil {
				return err
			}
			return a.printResult(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&labelsFile, "labels", "-", "File with one skill label per line")
	return cmd
}

func newRankCmd(a *app) *cobra.Command {
	var (
		postingsFile string
		categories   []string
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank the skills of job postings by category",
		Long: `Rank the skills of job postings whose category contains --category
(case-insensitive). The postings file is a JSON array of
{"category": "...", "technical_skills": [...], "soft_skills": [...]}.

Example:
  skillgap rank --postings postings.json --category "Data Science" --top 30
  skillgap rank --postings postings.json --category data --category web`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(categories) == 0 {
				return fmt.Errorf("at least one --category is required")
			}

			postings, err := readPostings(postingsFile)
			if err != nil {
				return err
			}

			g, closer, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := closer(); closeErr != nil && err == nil {
					err = closeErr
				}
			}()

			if len(categories) == 1 {
				result, err := g.TopSkillsByCategory(cmd.Context(), postings, categories[0])
				if err != nil {
					return err
				}
				return a.printResult(cmd.OutOrStdout(), result)
			}

			results, err := g.RankCategories(cmd.Context(), postings, categories)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), results)
			}

			names := make([]string, 0, len(results))
			for name := range results {
				names = append(names, name)
			}
			sort.Strings(names)
			for i, name := range names {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				fmt.Fprintf(cmd.OutOrStdout(), "== %s ==\n", name)
				if err := a.printResult(cmd.OutOrStdout(), results[name]); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&postingsFile, "postings", "", "JSON file with job postings")
	cmd.Flags().StringArrayVar(&categories, "category", nil, "Category substring to rank (repeatable)")
	_ = cmd.MarkFlagRequired("postings")
	return cmd
}

func newGapsCmd(a *app) *cobra.Command {
	var (
		jobFile    string
		userSkills []string
	)

	cmd := &cobra.Command{
		Use:   "gaps",
		Short: "Extract the skills of a job description and list the ones you lack",
		Long: `Extract technical and soft skills from a job description with an LLM,
merge near-duplicates and list the skills missing from --skills.

Example:
  skillgap gaps --job jd.txt --skills "go,sql,docker"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			text, err := os.ReadFile(jobFile)
			if err != nil {
				return fmt.Errorf("failed to read job description: %w", err)
			}

			g, closer, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := closer(); closeErr != nil && err == nil {
					err = closeErr
				}
			}()

			analysis, err := g.AnalyzeJob(cmd.Context(), string(text), userSkills)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), analysis)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Job skills:")
			for _, s := range analysis.Skills.Skills {
				fmt.Fprintf(out, "  - %s\n", s)
			}
			fmt.Fprintln(out, "Missing:")
			if len(analysis.Gaps) == 0 {
				fmt.Fprintln(out, "  (none)")
			}
			for _, s := range analysis.Gaps {
				fmt.Fprintf(out, "  - %s\n", s)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&jobFile, "job", "", "Text file with the job description")
	cmd.Flags().StringSliceVar(&userSkills, "skills", nil, "Comma-separated skills you already have")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func (a *app) printResult(w io.Writer, result *skills.Result) error {
	if a.jsonOutput {
		return writeJSON(w, result)
	}
	if len(result.Ranking) == 0 {
		fmt.Fprintln(w, "no skills found")
		return nil
	}
	for i, r := range result.Ranking {
		fmt.Fprintf(w, "%3d. %s (%d)\n", i+1, r.Label, r.Count)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readPostings(path string) ([]skillgap.Posting, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read postings: %w", err)
	}
	var postings []skillgap.Posting
	if err := json.Unmarshal(data, &postings); err != nil {
		return nil, fmt.Errorf("failed to parse postings %s: %w", path, err)
	}
	return postings, nil
}

func readLines(cmd *cobra.Command, path string) ([]string, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open labels: %w", err)
		}
		defer f.Close()
		r = f
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return lines, nil
}
