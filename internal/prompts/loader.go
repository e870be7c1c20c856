// Package prompts provides the prompt templates sent to the analysis model.
// Templates live in embedded JSON files keyed by prompt name.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Assessment is the file holding the assessment prompts.
const Assessment = "assessment.json"

// Prompt keys in Assessment.
const (
	KeyFollowupQuestions = "followup_questions"
	KeyFinalAnalysis     = "final_analysis"
)

//go:embed *.json
var promptFiles embed.FS

var placeholder = regexp.MustCompile(`\{\{\.[A-Za-z0-9_]+\}\}`)

// loadAll parses every embedded file once.
var loadAll = sync.OnceValues(func() (map[string]map[string]string, error) {
	names, err := fs.Glob(promptFiles, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list prompt files: %w", err)
	}

	all := make(map[string]map[string]string, len(names))
	for _, name := range names {
		data, err := promptFiles.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt file %s: %w", name, err)
		}
		var entries map[string]string
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %s: %w", name, err)
		}
		all[name] = entries
	}
	return all, nil
})

// Get returns the template stored under key in filename.
func Get(filename, key string) (string, error) {
	all, err := loadAll()
	if err != nil {
		return "", err
	}
	entries, ok := all[filename]
	if !ok {
		return "", fmt.Errorf("prompt file %s not found", filename)
	}
	prompt, ok := entries[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return prompt, nil
}

// MustGet is Get for prompts required at startup. It panics on error.
func MustGet(filename, key string) string {
	prompt, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return prompt
}

// Format replaces {{.Key}} placeholders with values from data.
func Format(template string, data map[string]string) string {
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		key := strings.TrimSuffix(strings.TrimPrefix(m, "{{."), "}}")
		if v, ok := data[key]; ok {
			return v
		}
		return m
	})
}

// Render loads a template and fills it, failing if any placeholder is left unset.
func Render(filename, key string, data map[string]string) (string, error) {
	template, err := Get(filename, key)
	if err != nil {
		return "", err
	}
	out := Format(template, data)
	if missing := placeholder.FindAllString(out, -1); len(missing) > 0 {
		return "", fmt.Errorf("prompt %s/%s has unset placeholders: %s", filename, key, strings.Join(missing, ", "))
	}
	return out, nil
}

// List returns the sorted prompt keys in filename.
func List(filename string) ([]string, error) {
	all, err := loadAll()
	if err != nil {
		return nil, err
	}
	entries, ok := all[filename]
	if !ok {
		return nil, fmt.Errorf("prompt file %s not found", filename)
	}
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
