package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ujjwalparashar30/github-assisstance/internal/assessment"
	"github.com/ujjwalparashar30/github-assisstance/internal/ingestion"
	"github.com/ujjwalparashar30/github-assisstance/internal/logger"
	"github.com/ujjwalparashar30/github-assisstance/internal/server/middleware"
	"github.com/ujjwalparashar30/github-assisstance/internal/types"
)

const (
	resumeField = "resume"
	// multipartOverhead is allowed on top of the file limit for form framing.
	multipartOverhead = 64 << 10
	// maxJSONBody bounds JSON request bodies.
	maxJSONBody = 1 << 20
)

// handleListQuestions returns the intake questionnaire
func (s *Server) handleListQuestions(w http.ResponseWriter, _ *http.Request) {
	s.successResponse(w, s.orchestrator.ListQuestions(), "Questions fetched successfully", "")
}

// handleSubmitAnswers stores phase-1 answers on the caller's session
func (s *Server) handleSubmitAnswers(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	// A missing body submits no answers.
	answers := map[string]any{}
	if err := decodeJSON(w, r, &answers); err != nil && !errors.Is(err, errEmptyBody) {
		s.errorResponse(w, r, err)
		return
	}

	submission, err := s.orchestrator.SubmitAnswers(r.Context(), sessionID, answers)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	s.successResponse(w, submission, "Answers submitted successfully", "Please upload your resume for analysis")
}

// handleUploadResume accepts a multipart résumé in the "resume" field
func (s *Server) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.errorResponse(w, r, &assessment.Error{
				Kind:    assessment.KindClient,
				Code:    assessment.CodeFileTooLarge,
				Op:      assessment.OpUploadResume,
				Message: "file exceeds the upload size limit",
				Err:     err,
			})
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			s.errorResponse(w, r, &ErrValidation{Field: resumeField, Message: "invalid multipart form: " + err.Error()})
			return
		}
	}
	if r.MultipartForm != nil {
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				s.logger.Warn("failed to remove multipart files", zap.Error(err))
			}
		}()
	}

	upload := ingestion.Upload{}
	file, header, err := r.FormFile(resumeField)
	switch {
	case err == nil:
		defer func() { _ = file.Close() }()
		upload = ingestion.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		// Body stays nil and the orchestrator reports no_file.
	default:
		s.errorResponse(w, r, &ErrValidation{Field: resumeField, Message: err.Error()})
		return
	}

	result, err := s.orchestrator.UploadResume(r.Context(), sessionID, upload)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	s.successResponse(w, types.UploadResponse{
		Filename:   upload.Filename,
		Format:     string(result.Metadata.Format),
		Characters: result.Metadata.Characters,
		Words:      result.Metadata.Words,
		Hash:       result.Metadata.Hash,
		UploadedAt: result.UploadedAt,
	}, "Resume uploaded and processed successfully", "Generate follow-up questions")
}

// handleGenerateQuestions asks the analysis service for follow-up questions
func (s *Server) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	result, err := s.orchestrator.GenerateFollowups(r.Context(), sessionID)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	s.successResponse(w, result, "Follow-up questions generated successfully", "Answer the follow-up questions")
}

// handleFinalAnalysis runs the final assessment and issue recommendations
func (s *Server) handleFinalAnalysis(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	var req types.FinalizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, r, &ErrValidation{Field: "dynamicAnswers", Message: "dynamicAnswers is required"})
		return
	}

	result, err := s.orchestrator.Finalize(r.Context(), sessionID, req.DynamicAnswers)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	s.successResponse(w, result, "Final analysis completed successfully", "")
}

// handleSession returns a read-only view of the caller's session
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := s.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := s.orchestrator.Session(r.Context(), sessionID)
	if err != nil {
		s.errorResponse(w, r, err)
		return
	}

	s.successResponse(w, types.NewSessionView(sess), "Session fetched successfully", "")
}

// sessionID reads the id resolved by the session middleware.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := middleware.GetSessionID(r)
	if err != nil {
		s.errorResponse(w, r, err)
		return "", false
	}
	s.logger.Debug("session resolved",
		zap.String(logger.FieldSessionID, id),
		zap.String("path", r.URL.Path))
	return id, true
}

var errEmptyBody = errors.New("request body is required")

// decodeJSON decodes a bounded JSON body into dst. An empty body yields an
// ErrValidation wrapping errEmptyBody.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &ErrValidation{Message: errEmptyBody.Error(), Err: errEmptyBody}
		}
		return &ErrValidation{Message: "invalid request body: " + err.Error()}
	}
	return nil
}
