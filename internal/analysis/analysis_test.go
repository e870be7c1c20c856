package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujjwalparashar30/github-assisstance/internal/llm"
	"github.com/ujjwalparashar30/github-assisstance/internal/questionnaire"
)

// fakeClient records prompts and replays a canned response.
type fakeClient struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
	tiers    []llm.ModelTier
	delay    time.Duration
	active   atomic.Int32
	peak     atomic.Int32
}

func (f *fakeClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.tiers = append(f.tiers, tier)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.response, f.err
}

func (f *fakeClient) Model(llm.ModelTier) string { return "fake-model" }
func (f *fakeClient) Close() error               { return nil }

func TestGenerateFollowups(t *testing.T) {
	client := &fakeClient{response: `{"questions": [
		{"id": "dq1", "question": "Which Go concurrency primitive do you use most?", "type": "radio", "options": ["channels", "mutexes"]},
		{"question": "Describe a project you shipped."}
	]}`}
	svc := NewService(client, Options{})

	sub := questionnaire.Submit(questionnaire.ListQuestions(), map[string]any{"track": "startup"}, time.Now())
	resume := strings.Repeat("r", ResumeExcerptLimit+500)

	result, err := svc.GenerateFollowups(context.Background(), FollowupRequest{ResumeText: resume, Phase1Answers: sub})
	require.NoError(t, err)
	require.Len(t, result.Questions, 2)
	assert.Equal(t, "dq1", result.Questions[0].ID)
	assert.Equal(t, []string{"channels", "mutexes"}, result.Questions[0].Options)
	assert.Equal(t, "dq2", result.Questions[1].ID)
	assert.Equal(t, questionnaire.TypeFreeText, result.Questions[1].Type)

	require.Len(t, client.prompts, 1)
	prompt := client.prompts[0]
	assert.Equal(t, llm.TierStandard, client.tiers[0])
	assert.Contains(t, prompt, "generate 10 personalized follow-up questions")
	assert.Contains(t, prompt, "Startup/Project Track")
	assert.Contains(t, prompt, strings.Repeat("r", ResumeExcerptLimit))
	assert.NotContains(t, prompt, strings.Repeat("r", ResumeExcerptLimit+1))
}

func TestGenerateFollowups_NilAnswers(t *testing.T) {
	client := &fakeClient{response: `{"questions": [{"question": "Why Go?"}]}`}
	svc := NewService(client, Options{})

	_, err := svc.GenerateFollowups(context.Background(), FollowupRequest{ResumeText: "resume"})
	require.NoError(t, err)
	assert.Contains(t, client.prompts[0], `"phase1Answers": null`)
}

func TestFinalAssess(t *testing.T) {
	client := &fakeClient{response: `{
		"skillLevel": "Intermediate",
		"skills": [{"name": "Go", "level": "strong"}],
		"recommendations": ["contribute to CLIs"],
		"keywords": ["go", "cli"]
	}`}
	svc := NewService(client, Options{})

	result, err := svc.FinalAssess(context.Background(), FinalRequest{
		ResumeText:     "Go developer",
		Phase1Answers:  questionnaire.Submit(questionnaire.ListQuestions(), nil, time.Now()),
		DynamicAnswers: map[string]any{"dq1": "channels"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Intermediate", result.SkillLevel)
	assert.Equal(t, []string{"go", "cli"}, result.Keywords)
	assert.JSONEq(t, `[{"name": "Go", "level": "strong"}]`, string(result.Skills))
	assert.JSONEq(t, `["contribute to CLIs"]`, string(result.Recommendations))

	require.Len(t, client.prompts, 1)
	prompt := client.prompts[0]
	assert.Equal(t, llm.TierAdvanced, client.tiers[0])
	assert.Contains(t, prompt, "Go developer")
	assert.Contains(t, prompt, `"dq1": "channels"`)
}

func TestAnalysisFailures(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{name: "client error", err: errors.New("quota exceeded")},
		{name: "not json", response: "I cannot help with that"},
		{name: "missing keywords", response: `{"skillLevel": "Beginner"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&fakeClient{response: tt.response, err: tt.err}, Options{})
			_, err := svc.FinalAssess(context.Background(), FinalRequest{ResumeText: "x"})
			assert.ErrorIs(t, err, ErrAnalysisFailed)
			if tt.err != nil {
				assert.ErrorContains(t, err, "quota exceeded")
			}
		})
	}
}

func TestAnalysis_TimeoutIsDetectable(t *testing.T) {
	svc := NewService(&fakeClient{delay: time.Second}, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := svc.GenerateFollowups(ctx, FollowupRequest{ResumeText: "x"})
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAnalysis_BoundsConcurrency(t *testing.T) {
	client := &fakeClient{response: `{"questions": [{"question": "q"}]}`, delay: 20 * time.Millisecond}
	svc := NewService(client, Options{MaxConcurrent: 2})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GenerateFollowups(context.Background(), FollowupRequest{ResumeText: "x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, client.peak.Load(), int32(2))
}
