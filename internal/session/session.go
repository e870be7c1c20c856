// Package session defines the assessment session record and the stores that persist it.
package session

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ujjwalparashar30/github-assisstance/internal/questionnaire"
)

// Phase is the position of a session in the assessment workflow.
type Phase string

// Phase values in workflow order.
const (
	PhaseCreated   Phase = "created"
	Phase1Complete Phase = "phase1_complete"
	Phase2Complete Phase = "phase2_complete"
	Phase3Complete Phase = "phase3_complete"
)

var phaseRank = map[Phase]int{
	PhaseCreated:   0,
	Phase1Complete: 1,
	Phase2Complete: 2,
	Phase3Complete: 3,
}

// Rank orders phases; unknown phases rank below PhaseCreated.
func (p Phase) Rank() int {
	if r, ok := phaseRank[p]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether p is at or beyond other.
func (p Phase) AtLeast(other Phase) bool {
	return p.Rank() >= other.Rank()
}

// Progress records which assessment steps have completed.
type Progress struct {
	Phase1Complete bool `json:"phase1Complete"`
	Phase2Complete bool `json:"phase2Complete"`
	Phase3Complete bool `json:"phase3Complete"`
}

// Session is one candidate's assessment workflow.
type Session struct {
	ID               string                           `json:"id"`
	IsGuest          bool                             `json:"isGuest"`
	Phase            Phase                            `json:"phase"`
	Progress         Progress                         `json:"assessmentProgress"`
	ResumeText       string                           `json:"resumeText,omitempty"`
	Phase1Answers    *questionnaire.Submission        `json:"phase1Answers,omitempty"`
	DynamicQuestions []questionnaire.FollowupQuestion `json:"dynamicQuestions,omitempty"`
	CreatedAt        time.Time                        `json:"createdAt"`
	UploadedAt       *time.Time                       `json:"uploadedAt,omitempty"`
	UpdatedAt        time.Time                        `json:"updatedAt"`
	// Version increments on every successful save.
	Version int64 `json:"version"`
}

// New returns a fresh guest session in PhaseCreated.
func New(now time.Time) *Session {
	now = now.UTC()
	return &Session{
		ID:        NewID(now),
		IsGuest:   true,
		Phase:     PhaseCreated,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// NewID returns "<unix millis>-<9 random base-36 chars>".
func NewID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + randomSuffix(9)
}

func randomSuffix(n int) string {
	var sb strings.Builder
	for sb.Len() < n {
		id := uuid.New()
		for _, b := range id[:] {
			sb.WriteByte(base36[int(b)%len(base36)])
			if sb.Len() == n {
				break
			}
		}
	}
	return sb.String()
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// Advance moves the session forward to p. It never moves backwards.
func (s *Session) Advance(p Phase) {
	if p.Rank() > s.Phase.Rank() {
		s.Phase = p
	}
}

// HasResume reports whether extracted résumé text is stored.
func (s *Session) HasResume() bool {
	return strings.TrimSpace(s.ResumeText) != ""
}

// HasAnswers reports whether phase-1 answers are stored.
func (s *Session) HasAnswers() bool {
	return s.Phase1Answers != nil
}
