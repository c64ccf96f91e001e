package notification

import (
	"time"
)

// --------------------------------------------------------------------------
// Wire types — request and response bodies for /notifications/{id}
// --------------------------------------------------------------------------

// Details is the polymorphic schedule payload on the wire. One of
// PeriodicType / TriggerID is set, matching the notification type.
type Details struct {
	BringDatetime *time.Time `json:"bringDatetime"`
	PeriodicType  string     `json:"periodicType,omitempty"`
	TriggerID     string     `json:"triggerId,omitempty"`
}

// Request is the PUT /notifications/{id} body. Updates are full-replace:
// the whole record is swapped for this payload.
type Request struct {
	Name       string         `json:"name,omitempty"`
	Type       Kind           `json:"type"`
	IsReminder bool           `json:"isReminder"`
	TeamIDs    []string       `json:"teamIds"`
	PlayerIDs  []string       `json:"playerIds,omitempty"`
	CoachIDs   []string       `json:"coachIds,omitempty"`
	Survey     *SurveyRequest `json:"survey,omitempty"`
	Details    Details        `json:"details"`
}

// Response is the GET /notifications/{id} body. It mirrors Request except
// that the survey carries its generated id.
type Response struct {
	ID         string   `json:"id"`
	Name       string   `json:"name,omitempty"`
	Type       Kind     `json:"type"`
	IsReminder bool     `json:"isReminder"`
	TeamIDs    []string `json:"teamIds"`
	PlayerIDs  []string `json:"playerIds,omitempty"`
	CoachIDs   []string `json:"coachIds,omitempty"`
	Survey     *Survey  `json:"survey,omitempty"`
	Details    Details  `json:"details"`
}

// ToNotification converts a validated request into a stored record. prev is
// the previously stored record (nil on first write); its survey id is kept
// so the id stays stable across full-replace updates.
func (r Request) ToNotification(id string, prev *Notification) Notification {
	var bring time.Time
	if r.Details.BringDatetime != nil {
		bring = r.Details.BringDatetime.UTC()
	}
	var prevSurvey *Survey
	if prev != nil {
		prevSurvey = prev.Survey
	}
	return Notification{
		ID:         id,
		Name:       r.Name,
		IsReminder: r.IsReminder,
		TeamIDs:    r.TeamIDs,
		PlayerIDs:  r.PlayerIDs,
		CoachIDs:   r.CoachIDs,
		Survey:     materialize(r.Survey, prevSurvey),
		Schedule: Schedule{
			Kind:          r.Type,
			BringDatetime: bring,
			PeriodicType:  r.Details.PeriodicType,
			TriggerID:     r.Details.TriggerID,
		},
	}
}

// ToResponse converts a stored record into its wire shape.
func (n Notification) ToResponse() Response {
	bring := n.Schedule.BringDatetime
	return Response{
		ID:         n.ID,
		Name:       n.Name,
		Type:       n.Schedule.Kind,
		IsReminder: n.IsReminder,
		TeamIDs:    n.TeamIDs,
		PlayerIDs:  n.PlayerIDs,
		CoachIDs:   n.CoachIDs,
		Survey:     n.Survey,
		Details: Details{
			BringDatetime: &bring,
			PeriodicType:  n.Schedule.PeriodicType,
			TriggerID:     n.Schedule.TriggerID,
		},
	}
}
