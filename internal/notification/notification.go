// Package notification defines the notification domain model: the stored
// notification record, its polymorphic schedule descriptor, and the survey
// attachment in both its request and response shapes.
//
// A notification is addressed to teams, players, and coaches and fires either
// on a recurrence pattern (periodic) or relative to an external trigger event.
package notification

import (
	"time"

	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Schedule descriptor
// --------------------------------------------------------------------------

// Kind discriminates the two schedule variants.
type Kind string

const (
	KindPeriodic Kind = "periodic"
	KindTrigger  Kind = "trigger"
)

// Schedule is the tagged-variant schedule descriptor. Exactly one variant is
// populated: PeriodicType for KindPeriodic, TriggerID for KindTrigger.
// BringDatetime is the recurrence anchor for periodic schedules and the
// earliest permitted fire instant for trigger schedules.
type Schedule struct {
	Kind          Kind
	BringDatetime time.Time
	PeriodicType  string // periodic only
	TriggerID     string // trigger only
}

// --------------------------------------------------------------------------
// Survey
// --------------------------------------------------------------------------

// QuestionType discriminates survey question kinds.
type QuestionType string

const (
	// QuestionSelectively is a choice question answered from Options.
	QuestionSelectively QuestionType = "selectively"
	// QuestionArbitrary is a free-text question; Options must be empty.
	QuestionArbitrary QuestionType = "arbitrary"
)

// SurveyQuestion is a single question inside a survey.
type SurveyQuestion struct {
	Type    QuestionType `json:"type"`
	Text    string       `json:"text"`
	Options []string     `json:"options,omitempty"`
}

// Survey is the stored (response) survey shape. ID is assigned once at first
// persistence and stable across full-replace updates.
type Survey struct {
	ID        string           `json:"id"`
	Text      string           `json:"text"`
	Questions []SurveyQuestion `json:"questions"`
}

// SurveyRequest is the inbound survey shape. It never carries an id; the
// store assigns one on first persistence.
type SurveyRequest struct {
	Text      string           `json:"text"`
	Questions []SurveyQuestion `json:"questions"`
}

// --------------------------------------------------------------------------
// Notification
// --------------------------------------------------------------------------

// Notification is the stored notification record.
type Notification struct {
	ID         string
	Name       string
	IsReminder bool
	TeamIDs    []string
	PlayerIDs  []string
	CoachIDs   []string
	Survey     *Survey
	Schedule   Schedule
}

// materialize builds the stored survey for an inbound request, preserving the
// previous survey id when one exists so the id stays stable across updates.
func materialize(req *SurveyRequest, prev *Survey) *Survey {
	if req == nil {
		return nil
	}
	id := uuid.NewString()
	if prev != nil {
		id = prev.ID
	}
	return &Survey{
		ID:        id,
		Text:      req.Text,
		Questions: req.Questions,
	}
}
