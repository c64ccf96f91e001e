package notification_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clubsync/notifier/internal/notification"
)

func anyUnit(string) bool { return true }

func validRequest() notification.Request {
	bring := time.Date(2025, 10, 22, 12, 0, 0, 0, time.UTC)
	return notification.Request{
		Name:    "weigh-in reminder",
		Type:    notification.KindPeriodic,
		TeamIDs: []string{"team-a"},
		Details: notification.Details{
			BringDatetime: &bring,
			PeriodicType:  "daily",
		},
	}
}

func TestRequestValidate(t *testing.T) {
	t.Run("ValidPeriodic", func(t *testing.T) {
		require.NoError(t, validRequest().Validate(anyUnit))
	})

	t.Run("ValidTrigger", func(t *testing.T) {
		req := validRequest()
		req.Type = notification.KindTrigger
		req.Details.PeriodicType = ""
		req.Details.TriggerID = "match-start"
		require.NoError(t, req.Validate(anyUnit))
	})

	t.Run("BothVariantsRejected", func(t *testing.T) {
		req := validRequest()
		req.Details.TriggerID = "match-start"
		err := req.Validate(anyUnit)
		require.Error(t, err)
		require.True(t, notification.IsValidation(err))
		require.Contains(t, err.Error(), "not both")
	})

	t.Run("NeitherVariantRejected", func(t *testing.T) {
		req := validRequest()
		req.Details.PeriodicType = ""
		err := req.Validate(anyUnit)
		require.Error(t, err)
		require.True(t, notification.IsValidation(err))
	})

	t.Run("VariantMustMatchType", func(t *testing.T) {
		req := validRequest()
		req.Type = notification.KindTrigger
		err := req.Validate(anyUnit)
		require.Error(t, err)
		require.Contains(t, err.Error(), "cannot carry periodicType")
	})

	t.Run("MissingBringDatetime", func(t *testing.T) {
		req := validRequest()
		req.Details.BringDatetime = nil
		require.Error(t, req.Validate(anyUnit))
	})

	t.Run("UnknownPeriodicType", func(t *testing.T) {
		req := validRequest()
		err := req.Validate(func(string) bool { return false })
		require.Error(t, err)
		require.Contains(t, err.Error(), "unknown periodicType")
	})

	t.Run("EmptyAudienceRejected", func(t *testing.T) {
		req := validRequest()
		req.TeamIDs = nil
		err := req.Validate(anyUnit)
		require.Error(t, err)
		require.Contains(t, err.Error(), "teamIds")
	})

	t.Run("ExplicitPlayersWithoutTeamsAccepted", func(t *testing.T) {
		req := validRequest()
		req.TeamIDs = nil
		req.PlayerIDs = []string{"p1"}
		require.NoError(t, req.Validate(anyUnit))
	})
}

func TestSurveyValidate(t *testing.T) {
	t.Run("SelectivelyRequiresOptions", func(t *testing.T) {
		req := validRequest()
		req.Survey = &notification.SurveyRequest{
			Text: "availability",
			Questions: []notification.SurveyQuestion{
				{Type: notification.QuestionSelectively, Text: "coming?"},
			},
		}
		err := req.Validate(anyUnit)
		require.Error(t, err)
		require.Contains(t, err.Error(), "requires options")
	})

	t.Run("ArbitraryRejectsOptions", func(t *testing.T) {
		req := validRequest()
		req.Survey = &notification.SurveyRequest{
			Text: "availability",
			Questions: []notification.SurveyQuestion{
				{Type: notification.QuestionArbitrary, Text: "why?", Options: []string{"a"}},
			},
		}
		err := req.Validate(anyUnit)
		require.Error(t, err)
		require.Contains(t, err.Error(), "must not carry options")
	})

	t.Run("ValidSurvey", func(t *testing.T) {
		req := validRequest()
		req.Survey = &notification.SurveyRequest{
			Text: "availability",
			Questions: []notification.SurveyQuestion{
				{Type: notification.QuestionSelectively, Text: "coming?", Options: []string{"yes", "no"}},
				{Type: notification.QuestionArbitrary, Text: "notes"},
			},
		}
		require.NoError(t, req.Validate(anyUnit))
	})
}

func TestSurveyIDStability(t *testing.T) {
	req := validRequest()
	req.Survey = &notification.SurveyRequest{
		Text: "availability",
		Questions: []notification.SurveyQuestion{
			{Type: notification.QuestionArbitrary, Text: "notes"},
		},
	}

	first := req.ToNotification("n-1", nil)
	require.NotNil(t, first.Survey)
	require.NotEmpty(t, first.Survey.ID)

	// Full-replace update keeps the generated survey id.
	req.Survey.Text = "availability v2"
	second := req.ToNotification("n-1", &first)
	require.Equal(t, first.Survey.ID, second.Survey.ID)
	require.Equal(t, "availability v2", second.Survey.Text)

	// Dropping the survey and re-adding it later generates a fresh id.
	noSurvey := validRequest().ToNotification("n-1", &second)
	require.Nil(t, noSurvey.Survey)
	third := req.ToNotification("n-1", &noSurvey)
	require.NotEqual(t, second.Survey.ID, third.Survey.ID)
}

func TestWireRoundTrip(t *testing.T) {
	req := validRequest()
	n := req.ToNotification("n-9", nil)
	resp := n.ToResponse()

	require.Equal(t, "n-9", resp.ID)
	require.Equal(t, notification.KindPeriodic, resp.Type)
	require.Equal(t, req.TeamIDs, resp.TeamIDs)
	require.NotNil(t, resp.Details.BringDatetime)
	require.Equal(t, req.Details.BringDatetime.UTC(), resp.Details.BringDatetime.UTC())
	require.Equal(t, "daily", resp.Details.PeriodicType)
	require.Empty(t, resp.Details.TriggerID)
}
