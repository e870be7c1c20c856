// Package analysis asks a generative model for follow-up questions and the
// final skill assessment.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ujjwalparashar30/github-assisstance/internal/ingestion"
	"github.com/ujjwalparashar30/github-assisstance/internal/llm"
	"github.com/ujjwalparashar30/github-assisstance/internal/logger"
	"github.com/ujjwalparashar30/github-assisstance/internal/metrics"
	"github.com/ujjwalparashar30/github-assisstance/internal/prompts"
	"github.com/ujjwalparashar30/github-assisstance/internal/questionnaire"
	"github.com/ujjwalparashar30/github-assisstance/internal/schemas"
)

// ErrAnalysisFailed wraps every failure of the analysis model.
var ErrAnalysisFailed = errors.New("analysis failed")

const (
	// ResumeExcerptLimit bounds the résumé text sent to the model, in runes.
	ResumeExcerptLimit = 2000
	// FollowupCount is how many follow-up questions are requested.
	FollowupCount = 10
)

// FollowupRequest is the context for follow-up generation.
type FollowupRequest struct {
	ResumeText    string                    `json:"resumeText"`
	Phase1Answers *questionnaire.Submission `json:"phase1Answers"`
}

// FollowupResult holds the generated questions.
type FollowupResult struct {
	Questions []questionnaire.FollowupQuestion `json:"questions"`
}

// FinalRequest is the context for the final assessment.
type FinalRequest struct {
	ResumeText     string                    `json:"resumeText"`
	Phase1Answers  *questionnaire.Submission `json:"phase1Answers"`
	DynamicAnswers map[string]any            `json:"dynamicAnswers"`
}

// FinalAnalysis is the model's assessment. Only SkillLevel and Keywords are
// interpreted; Skills and Recommendations are passed through as returned.
type FinalAnalysis struct {
	SkillLevel      string          `json:"skillLevel"`
	Skills          json.RawMessage `json:"skills,omitempty"`
	Recommendations json.RawMessage `json:"recommendations,omitempty"`
	Keywords        []string        `json:"keywords"`
}

// Options tunes a Service.
type Options struct {
	// MaxConcurrent bounds simultaneous model calls. Zero means 4.
	MaxConcurrent int64
	Logger        *zap.Logger
}

// Service implements follow-up generation and final assessment on an llm.Client.
type Service struct {
	client llm.Client
	sem    *semaphore.Weighted
	logger *zap.Logger
}

// NewService returns a Service backed by client.
func NewService(client llm.Client, opts Options) *Service {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	return &Service{
		client: client,
		sem:    semaphore.NewWeighted(opts.MaxConcurrent),
		logger: logger.OrNop(opts.Logger),
	}
}

// GenerateFollowups asks the model for personalised follow-up questions.
func (s *Service) GenerateFollowups(ctx context.Context, req FollowupRequest) (*FollowupResult, error) {
	req.ResumeText = ingestion.Excerpt(req.ResumeText, ResumeExcerptLimit)
	payload, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode context: %w", ErrAnalysisFailed, err)
	}

	prompt, err := prompts.Render(prompts.Assessment, prompts.KeyFollowupQuestions, map[string]string{
		"Count":        strconv.Itoa(FollowupCount),
		"AnalysisData": string(payload),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	var result FollowupResult
	if err := s.generate(ctx, "followups", prompt, llm.TierStandard, schemas.Followups, &result); err != nil {
		return nil, err
	}

	for i := range result.Questions {
		q := &result.Questions[i]
		if q.ID == "" {
			q.ID = "dq" + strconv.Itoa(i+1)
		}
		if q.Type == "" {
			q.Type = questionnaire.TypeFreeText
		}
	}
	return &result, nil
}

// FinalAssess asks the model for the final skill assessment.
func (s *Service) FinalAssess(ctx context.Context, req FinalRequest) (*FinalAnalysis, error) {
	phase1, err := json.MarshalIndent(req.Phase1Answers, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode answers: %w", ErrAnalysisFailed, err)
	}
	dynamic, err := json.MarshalIndent(req.DynamicAnswers, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode answers: %w", ErrAnalysisFailed, err)
	}

	prompt, err := prompts.Render(prompts.Assessment, prompts.KeyFinalAnalysis, map[string]string{
		"Resume":         ingestion.Excerpt(req.ResumeText, ResumeExcerptLimit),
		"Phase1Answers":  string(phase1),
		"DynamicAnswers": string(dynamic),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	var result FinalAnalysis
	if err := s.generate(ctx, "final", prompt, llm.TierAdvanced, schemas.FinalAnalysis, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// generate runs one bounded model call, validates the answer against schema
// and decodes it into out.
func (s *Service) generate(ctx context.Context, op, prompt string, tier llm.ModelTier, schema schemas.Name, out any) (err error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
	defer s.sem.Release(1)

	metrics.AnalysisInFlight.Inc()
	defer metrics.AnalysisInFlight.Dec()

	start := time.Now()
	defer func() { metrics.ObserveUpstream("analysis", op, start, err) }()

	log := s.logger.With(zap.String("operation", op), zap.String(logger.FieldModel, s.client.Model(tier)))

	raw, err := s.client.GenerateJSON(ctx, prompt, tier)
	if err != nil {
		log.Warn("analysis model call failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	if err := schemas.Validate(schema, []byte(raw)); err != nil {
		log.Warn("analysis response rejected",
			zap.Error(err),
			zap.String("response", logger.TruncateForLog(raw, 300)))
		return fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", ErrAnalysisFailed, err)
	}

	log.Debug("analysis completed", zap.Duration("duration", time.Since(start)))
	return nil
}
