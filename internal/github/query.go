// Package github recommends open-source issues from the GitHub search API.
package github

import (
	"strconv"
	"strings"
)

// MinStars is the repository popularity threshold applied to every search.
const MinStars = 100

// Skill tiers understood by LabelsForSkillLevel.
const (
	SkillBeginner     = "Beginner"
	SkillIntermediate = "Intermediate"
	SkillAdvanced     = "Advanced"
)

// LabelsForSkillLevel maps a skill tier to the issue labels searched for it.
// Unknown tiers map to an empty set.
func LabelsForSkillLevel(level string) []string {
	switch level {
	case SkillBeginner:
		return []string{"good first issue", "beginner"}
	case SkillIntermediate:
		return []string{"help wanted"}
	case SkillAdvanced:
		return []string{"advanced", "discussion"}
	default:
		return []string{}
	}
}

// BuildQuery combines keywords and labels into one search expression. Every
// keyword and label must match; only open issues in repositories above
// MinStars are returned.
func BuildQuery(keywords, labels []string) string {
	parts := []string{"is:issue", "is:open"}
	for _, kw := range keywords {
		if term := quoteTerm(kw); term != "" {
			parts = append(parts, term)
		}
	}
	for _, label := range labels {
		if term := quoteTerm(label); term != "" {
			parts = append(parts, "label:"+term)
		}
	}
	parts = append(parts, "stars:>"+strconv.Itoa(MinStars))
	return strings.Join(parts, " ")
}

// quoteTerm trims a term and quotes it when it contains whitespace.
func quoteTerm(term string) string {
	term = strings.TrimSpace(strings.ReplaceAll(term, `"`, ""))
	if term == "" {
		return ""
	}
	if strings.ContainsAny(term, " \t") {
		return `"` + term + `"`
	}
	return term
}
