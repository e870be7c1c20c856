// Package types holds the request and response shapes of the profile API.
package types

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ujjwalparashar30/github-assisstance/internal/session"
)

// Response is the envelope of every API response.
type Response struct {
	Success  bool   `json:"success"`
	Data     any    `json:"data,omitempty"`
	Message  string `json:"message,omitempty"`
	NextStep string `json:"nextStep,omitempty"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
	// Detail carries the underlying cause of an upstream failure.
	Detail string `json:"detail,omitempty"`
}

// FinalizeRequest carries the answers to the generated follow-up questions.
type FinalizeRequest struct {
	DynamicAnswers map[string]any `json:"dynamicAnswers" validate:"required"`
}

// Validate validates the FinalizeRequest using the validator.
func (r *FinalizeRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// UploadResponse describes a stored résumé.
type UploadResponse struct {
	Filename   string    `json:"filename"`
	Format     string    `json:"format"`
	Characters int       `json:"characters"`
	Words      int       `json:"words"`
	Hash       string    `json:"hash"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// SessionView is the read-only view of a session returned to clients.
type SessionView struct {
	SessionID          string           `json:"sessionId"`
	IsGuest            bool             `json:"isGuest"`
	Phase              session.Phase    `json:"phase"`
	AssessmentProgress session.Progress `json:"assessmentProgress"`
	HasResume          bool             `json:"hasResume"`
	HasAnswers         bool             `json:"hasAnswers"`
	FollowupQuestions  int              `json:"followupQuestions"`
	CreatedAt          time.Time        `json:"createdAt"`
	UploadedAt         *time.Time       `json:"uploadedAt,omitempty"`
}

// NewSessionView projects s for clients. Résumé text and answers are not exposed.
func NewSessionView(s *session.Session) *SessionView {
	return &SessionView{
		SessionID:          s.ID,
		IsGuest:            s.IsGuest,
		Phase:              s.Phase,
		AssessmentProgress: s.Progress,
		HasResume:          s.HasResume(),
		HasAnswers:         s.HasAnswers(),
		FollowupQuestions:  len(s.DynamicQuestions),
		CreatedAt:          s.CreatedAt,
		UploadedAt:         s.UploadedAt,
	}
}
