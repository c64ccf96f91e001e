package notification

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by stores when no notification exists for an id.
var ErrNotFound = errors.New("notification not found")

// ValidationError collects every problem found in a request body. It maps to
// a 422 at the API boundary.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid notification: " + strings.Join(e.Problems, "; ")
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate checks a request body against the contract. unitKnown reports
// whether a periodicType value belongs to the configured recurrence unit set.
func (r Request) Validate(unitKnown func(string) bool) error {
	var problems []string

	switch r.Type {
	case KindPeriodic, KindTrigger:
	default:
		problems = append(problems, fmt.Sprintf("type must be %q or %q", KindPeriodic, KindTrigger))
	}

	if r.Details.BringDatetime == nil {
		problems = append(problems, "details.bringDatetime is required")
	}

	hasPeriodic := r.Details.PeriodicType != ""
	hasTrigger := r.Details.TriggerID != ""
	switch {
	case hasPeriodic && hasTrigger:
		problems = append(problems, "details must carry periodicType or triggerId, not both")
	case !hasPeriodic && !hasTrigger:
		problems = append(problems, "details must carry periodicType or triggerId")
	case hasPeriodic && r.Type == KindTrigger:
		problems = append(problems, "trigger notification cannot carry periodicType")
	case hasTrigger && r.Type == KindPeriodic:
		problems = append(problems, "periodic notification cannot carry triggerId")
	}

	if hasPeriodic && unitKnown != nil && !unitKnown(r.Details.PeriodicType) {
		problems = append(problems, fmt.Sprintf("unknown periodicType %q", r.Details.PeriodicType))
	}

	if len(r.TeamIDs) == 0 && len(r.PlayerIDs) == 0 && len(r.CoachIDs) == 0 {
		problems = append(problems, "at least one of teamIds, playerIds, coachIds must be non-empty")
	}

	if r.Survey != nil {
		problems = append(problems, validateSurvey(r.Survey)...)
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func validateSurvey(s *SurveyRequest) []string {
	var problems []string
	if s.Text == "" {
		problems = append(problems, "survey.text is required")
	}
	if len(s.Questions) == 0 {
		problems = append(problems, "survey.questions must be non-empty")
	}
	for i, q := range s.Questions {
		switch q.Type {
		case QuestionSelectively:
			if len(q.Options) == 0 {
				problems = append(problems, fmt.Sprintf("survey.questions[%d]: selectively requires options", i))
			}
		case QuestionArbitrary:
			if len(q.Options) > 0 {
				problems = append(problems, fmt.Sprintf("survey.questions[%d]: arbitrary must not carry options", i))
			}
		default:
			problems = append(problems, fmt.Sprintf("survey.questions[%d]: unknown type %q", i, q.Type))
		}
		if q.Text == "" {
			problems = append(problems, fmt.Sprintf("survey.questions[%d]: text is required", i))
		}
	}
	return problems
}
