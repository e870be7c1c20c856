// Package assessment runs the phase-gated career assessment workflow.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ujjwalparashar30/github-assisstance/internal/analysis"
	"github.com/ujjwalparashar30/github-assisstance/internal/github"
	"github.com/ujjwalparashar30/github-assisstance/internal/ingestion"
	"github.com/ujjwalparashar30/github-assisstance/internal/logger"
	"github.com/ujjwalparashar30/github-assisstance/internal/metrics"
	"github.com/ujjwalparashar30/github-assisstance/internal/questionnaire"
	"github.com/ujjwalparashar30/github-assisstance/internal/session"
)

// Operation names used in errors, logs and metrics.
const (
	OpEnsureSession = "ensure_session"
	OpGetSession    = "get_session"
	OpSubmitAnswers = "submit_answers"
	OpUploadResume  = "upload_resume"
	OpGenerate      = "generate_questions"
	OpFinalize      = "final_analysis"
)

// DefaultCallTimeout bounds each extraction, analysis and recommendation call.
const DefaultCallTimeout = 60 * time.Second

// Extractor stages uploads and extracts their text.
type Extractor interface {
	Save(ctx context.Context, u ingestion.Upload) (*ingestion.TempFile, error)
	ExtractText(ctx context.Context, f *ingestion.TempFile) (string, error)
	// Cleanup releases a staged file and never fails.
	Cleanup(f *ingestion.TempFile)
}

// Analyzer produces follow-up questions and the final assessment.
type Analyzer interface {
	GenerateFollowups(ctx context.Context, req analysis.FollowupRequest) (*analysis.FollowupResult, error)
	FinalAssess(ctx context.Context, req analysis.FinalRequest) (*analysis.FinalAnalysis, error)
}

// Recommender finds open-source issues for a skill tier.
type Recommender interface {
	Recommend(ctx context.Context, keywords []string, skillLevel string) ([]github.Issue, error)
}

// Options tunes an Orchestrator.
type Options struct {
	// Catalog defaults to questionnaire.ListQuestions().
	Catalog        []questionnaire.Question
	MaxUploadBytes int64
	CallTimeout    time.Duration
	Now            func() time.Time
	Logger         *zap.Logger
}

// Orchestrator enforces phase ordering and is the only writer of sessions.
type Orchestrator struct {
	store       session.Store
	extractor   Extractor
	analyzer    Analyzer
	recommender Recommender

	catalog        []questionnaire.Question
	maxUploadBytes int64
	callTimeout    time.Duration
	now            func() time.Time
	logger         *zap.Logger
}

// New wires an Orchestrator.
func New(store session.Store, extractor Extractor, analyzer Analyzer, recommender Recommender, opts Options) *Orchestrator {
	if opts.Catalog == nil {
		opts.Catalog = questionnaire.ListQuestions()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = ingestion.MaxUploadBytes
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		store:          store,
		extractor:      extractor,
		analyzer:       analyzer,
		recommender:    recommender,
		catalog:        opts.Catalog,
		maxUploadBytes: opts.MaxUploadBytes,
		callTimeout:    opts.CallTimeout,
		now:            opts.Now,
		logger:         logger.OrNop(opts.Logger),
	}
}

// UploadResult describes a stored résumé.
type UploadResult struct {
	Metadata   *ingestion.Metadata `json:"metadata"`
	UploadedAt time.Time           `json:"uploadedAt"`
}

// FinalResult is the outcome of Finalize. It is not persisted.
type FinalResult struct {
	FinalAnalysis   *analysis.FinalAnalysis `json:"finalAnalysis"`
	Recommendations []github.Issue          `json:"recommendations"`
}

// ListQuestions returns the intake questionnaire.
func (o *Orchestrator) ListQuestions() []questionnaire.Question {
	out := make([]questionnaire.Question, len(o.catalog))
	copy(out, o.catalog)
	return out
}

// EnsureSession returns the session for id, creating a new one when id is
// empty or unknown. created reports whether a new session was issued.
func (o *Orchestrator) EnsureSession(ctx context.Context, id string) (s *session.Session, created bool, err error) {
	if id != "" {
		existing, err := o.store.Get(ctx, id)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return nil, false, o.fail(OpEnsureSession, id, internalError(OpEnsureSession, "failed to load session", err))
		}
	}

	s = session.New(o.now())
	if err := o.store.Create(ctx, s); err != nil {
		return nil, false, o.fail(OpEnsureSession, s.ID, internalError(OpEnsureSession, "failed to create session", err))
	}

	metrics.SessionsCreated.Inc()
	o.logger.Info("session issued", zap.String(logger.FieldSessionID, s.ID))
	return s, true, nil
}

// Session returns the current record for id without modifying it.
func (o *Orchestrator) Session(ctx context.Context, id string) (*session.Session, error) {
	s, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, o.fail(OpGetSession, id, o.storeError(OpGetSession, err))
	}
	return s, nil
}

// SubmitAnswers formats raw against the catalog and stores it as the
// session's phase-1 answers. Resubmission overwrites the previous answers.
func (o *Orchestrator) SubmitAnswers(ctx context.Context, id string, raw map[string]any) (*questionnaire.Submission, error) {
	sub := questionnaire.Submit(o.catalog, raw, o.now())

	_, err := session.Update(ctx, o.store, id, func(s *session.Session) error {
		s.Phase1Answers = sub
		s.Progress.Phase1Complete = true
		s.Advance(session.Phase1Complete)
		s.UpdatedAt = o.now().UTC()
		return nil
	})
	if err != nil {
		return nil, o.fail(OpSubmitAnswers, id, o.storeError(OpSubmitAnswers, err))
	}

	metrics.PhaseTransitions.WithLabelValues(string(session.Phase1Complete)).Inc()
	return sub, nil
}

// UploadResume validates and extracts an uploaded résumé and stores its text.
// The staged file is removed before UploadResume returns, on every path.
func (o *Orchestrator) UploadResume(ctx context.Context, id string, u ingestion.Upload) (*UploadResult, error) {
	if _, err := o.store.Get(ctx, id); err != nil {
		return nil, o.fail(OpUploadResume, id, o.storeError(OpUploadResume, err))
	}

	format, err := ingestion.Validate(u, o.maxUploadBytes)
	if err != nil {
		return nil, o.fail(OpUploadResume, id, uploadError(err))
	}

	staged, err := o.extractor.Save(ctx, u)
	if err != nil {
		if isUploadClientError(err) {
			return nil, o.fail(OpUploadResume, id, uploadError(err))
		}
		return nil, o.fail(OpUploadResume, id, internalError(OpUploadResume, "failed to stage upload", err))
	}
	defer o.extractor.Cleanup(staged)

	text, err := o.extract(ctx, staged)
	if err != nil {
		return nil, o.fail(OpUploadResume, id, upstreamError(OpUploadResume, CodeExtractionFailed, "failed to extract resume text", err))
	}

	uploadedAt := o.now().UTC()
	_, err = session.Update(ctx, o.store, id, func(s *session.Session) error {
		s.ResumeText = text
		s.UploadedAt = &uploadedAt
		s.UpdatedAt = uploadedAt
		return nil
	})
	if err != nil {
		return nil, o.fail(OpUploadResume, id, o.storeError(OpUploadResume, err))
	}

	o.logger.Info("resume stored",
		zap.String(logger.FieldSessionID, id),
		zap.String("format", string(format)),
		zap.Int64("bytes", staged.Size))
	return &UploadResult{Metadata: ingestion.NewMetadata(text, format, uploadedAt), UploadedAt: uploadedAt}, nil
}

func (o *Orchestrator) extract(ctx context.Context, f *ingestion.TempFile) (text string, err error) {
	ctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	start := time.Now()
	defer func() { metrics.ObserveUpstream("extractor", "extract_text", start, err) }()

	text, err = o.extractor.ExtractText(ctx, f)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: document contains no extractable text", ingestion.ErrExtractionFailed)
	}
	return text, nil
}

// GenerateFollowups asks the analyzer for follow-up questions and stores
// them on the session. It requires résumé text; phase-1 answers are optional.
func (o *Orchestrator) GenerateFollowups(ctx context.Context, id string) (*analysis.FollowupResult, error) {
	s, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, o.fail(OpGenerate, id, o.storeError(OpGenerate, err))
	}
	if !s.HasResume() {
		return nil, o.fail(OpGenerate, id, clientError(OpGenerate, CodeResumeRequired, "please upload your resume first"))
	}

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	result, err := o.analyzer.GenerateFollowups(callCtx, analysis.FollowupRequest{
		ResumeText:    s.ResumeText,
		Phase1Answers: s.Phase1Answers,
	})
	if err != nil {
		return nil, o.fail(OpGenerate, id, upstreamError(OpGenerate, CodeAnalysisFailed, "failed to generate follow-up questions", err))
	}

	_, err = session.Update(ctx, o.store, id, func(s *session.Session) error {
		s.DynamicQuestions = result.Questions
		s.Progress.Phase2Complete = true
		s.Advance(session.Phase2Complete)
		s.UpdatedAt = o.now().UTC()
		return nil
	})
	if err != nil {
		return nil, o.fail(OpGenerate, id, o.storeError(OpGenerate, err))
	}

	metrics.PhaseTransitions.WithLabelValues(string(session.Phase2Complete)).Inc()
	return result, nil
}

// Finalize runs the final assessment and fetches matching issues. It requires
// résumé text and phase-1 answers; follow-up answers may be empty.
func (o *Orchestrator) Finalize(ctx context.Context, id string, dynamicAnswers map[string]any) (*FinalResult, error) {
	s, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, o.fail(OpFinalize, id, o.storeError(OpFinalize, err))
	}
	if !s.HasResume() {
		return nil, o.fail(OpFinalize, id, clientError(OpFinalize, CodeResumeRequired, "please upload your resume first"))
	}
	if !s.HasAnswers() {
		return nil, o.fail(OpFinalize, id, clientError(OpFinalize, CodeAnswersRequired, "please complete the initial questionnaire first"))
	}
	if dynamicAnswers == nil {
		dynamicAnswers = map[string]any{}
	}

	assessCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	final, err := o.analyzer.FinalAssess(assessCtx, analysis.FinalRequest{
		ResumeText:     s.ResumeText,
		Phase1Answers:  s.Phase1Answers,
		DynamicAnswers: dynamicAnswers,
	})
	if err != nil {
		return nil, o.fail(OpFinalize, id, upstreamError(OpFinalize, CodeAnalysisFailed, "failed to generate final analysis", err))
	}

	searchCtx, cancelSearch := context.WithTimeout(ctx, o.callTimeout)
	defer cancelSearch()
	issues, err := o.recommender.Recommend(searchCtx, final.Keywords, final.SkillLevel)
	if err != nil {
		return nil, o.fail(OpFinalize, id, upstreamError(OpFinalize, CodeLookupFailed, "failed to fetch recommendations", err))
	}

	_, err = session.Update(ctx, o.store, id, func(s *session.Session) error {
		s.Progress.Phase3Complete = true
		s.Advance(session.Phase3Complete)
		s.UpdatedAt = o.now().UTC()
		return nil
	})
	if err != nil {
		return nil, o.fail(OpFinalize, id, o.storeError(OpFinalize, err))
	}

	metrics.PhaseTransitions.WithLabelValues(string(session.Phase3Complete)).Inc()
	o.logger.Info("assessment finalized",
		zap.String(logger.FieldSessionID, id),
		zap.String("skill_level", final.SkillLevel),
		zap.Int("recommendations", len(issues)))
	return &FinalResult{FinalAnalysis: final, Recommendations: issues}, nil
}

// storeError classifies a session store failure.
func (o *Orchestrator) storeError(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, session.ErrNotFound) {
		return clientError(op, CodeSessionNotFound, "session not found")
	}
	return internalError(op, "session store failed", err)
}

// fail records e and returns it.
func (o *Orchestrator) fail(op, id string, e *Error) error {
	metrics.OperationFailures.WithLabelValues(op, e.Kind.String(), e.Code).Inc()

	fields := []zap.Field{
		zap.String(logger.FieldSessionID, id),
		zap.String("operation", op),
		zap.String("code", e.Code),
	}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
	}
	if e.Kind == KindClient {
		o.logger.Debug(e.Message, fields...)
	} else {
		o.logger.Error(e.Message, fields...)
	}
	return e
}

func isUploadClientError(err error) bool {
	return errors.Is(err, ingestion.ErrNoFile) ||
		errors.Is(err, ingestion.ErrUnsupportedFormat) ||
		errors.Is(err, ingestion.ErrFileTooLarge)
}

// uploadError maps an ingestion validation failure to a client error.
func uploadError(err error) *Error {
	e := clientError(OpUploadResume, CodeInvalidRequest, err.Error())
	switch {
	case errors.Is(err, ingestion.ErrNoFile):
		e.Code, e.Message = CodeNoFile, "no file uploaded"
	case errors.Is(err, ingestion.ErrUnsupportedFormat):
		e.Code = CodeUnsupportedFormat
	case errors.Is(err, ingestion.ErrFileTooLarge):
		e.Code = CodeFileTooLarge
	}
	e.Err = err
	return e
}
