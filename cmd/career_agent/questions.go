package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ujjwalparashar30/github-assisstance/internal/questionnaire"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Print the intake questionnaire as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(questionnaire.ListQuestions()); err != nil {
			return fmt.Errorf("failed to encode questions: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(questionsCmd)
}
