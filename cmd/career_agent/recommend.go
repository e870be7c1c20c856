package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ujjwalparashar30/github-assisstance/internal/github"
)

var (
	recommendLevel    string
	recommendKeywords []string
	recommendDryRun   bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Search GitHub issues for a skill level and keywords",
	Long: `Runs the same issue search as the final analysis step.
Example:
  career_agent recommend --level Beginner --keyword go --keyword cli`,
	Args: cobra.NoArgs,
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().StringVar(&recommendLevel, "level", github.SkillBeginner, "Skill level: Beginner, Intermediate or Advanced")
	recommendCmd.Flags().StringSliceVarP(&recommendKeywords, "keyword", "k", nil, "Search keyword (repeatable)")
	recommendCmd.Flags().BoolVar(&recommendDryRun, "dry-run", false, "Print the search query without calling GitHub")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, _ []string) error {
	query := github.BuildQuery(recommendKeywords, github.LabelsForSkillLevel(recommendLevel))
	out := cmd.OutOrStdout()
	if recommendDryRun {
		_, err := fmt.Fprintln(out, query)
		return err
	}

	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.GitHub.Timeout)
	defer cancel()

	issues, err := newGitHubClient(cfg.GitHub, log).Search(ctx, query)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "TITLE\tLABELS\tURL\n")
	for _, issue := range issues {
		labels := make([]string, 0, len(issue.Labels))
		for _, l := range issue.Labels {
			labels = append(labels, l.Name)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", issue.Title, strings.Join(labels, ","), issue.HTMLURL)
	}
	return tw.Flush()
}
