// Package tracker decodes Linear webhook payloads and posts results back to
// tickets.
package tracker

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// ErrMalformedPayload is returned when a webhook body cannot be decoded.
var ErrMalformedPayload = errors.New("tracker: malformed webhook payload")

const typeIssue = "Issue"

// Payload is the envelope of every Linear webhook delivery.
type Payload struct {
	Action           string       `json:"action"`
	Type             string       `json:"type"`
	URL              string       `json:"url"`
	CreatedAt        time.Time    `json:"createdAt"`
	WebhookTimestamp int64        `json:"webhookTimestamp"`
	Data             IssueData    `json:"data"`
	UpdatedFrom      *UpdatedFrom `json:"updatedFrom,omitempty"`
}

// IssueData is the subset of an issue the service reads.
type IssueData struct {
	ID          string       `json:"id"`
	Identifier  string       `json:"identifier"`
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	URL         string       `json:"url"`
	State       *namedValue  `json:"state"`
	Labels      []namedValue `json:"labels"`
}

type namedValue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UpdatedFrom carries the previous values of changed fields.
type UpdatedFrom struct {
	StateID  *string  `json:"stateId,omitempty"`
	LabelIDs []string `json:"labelIds,omitempty"`
}

// Event is an issue change the service may act on.
type Event struct {
	Action       string
	TicketID     string
	Identifier   string
	Title        string
	Description  *string
	State        string
	Labels       []string
	URL          string
	StateChanged bool
	LabelChanged bool
}

// ParsePayload decodes a raw webhook body.
func ParsePayload(body []byte) (*Payload, error) {
	var p Payload
	if err := sonic.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &p, nil
}

// Timestamp returns the delivery time Linear signs into the payload.
func (p *Payload) Timestamp() time.Time {
	return time.UnixMilli(p.WebhookTimestamp)
}

// IssueEvent converts an Issue payload into an Event. ok is false for other
// entity types and for payloads without an issue id.
func (p *Payload) IssueEvent() (Event, bool) {
	if p.Type != typeIssue || p.Data.ID == "" {
		return Event{}, false
	}

	ev := Event{
		Action:      p.Action,
		TicketID:    p.Data.ID,
		Identifier:  p.Data.Identifier,
		Title:       p.Data.Title,
		Description: p.Data.Description,
		URL:         p.Data.URL,
	}
	if ev.URL == "" {
		ev.URL = p.URL
	}
	if p.Data.State != nil {
		ev.State = p.Data.State.Name
	}
	for _, l := range p.Data.Labels {
		ev.Labels = append(ev.Labels, l.Name)
	}
	if p.UpdatedFrom != nil {
		ev.StateChanged = p.UpdatedFrom.StateID != nil
		ev.LabelChanged = p.UpdatedFrom.LabelIDs != nil
	}
	return ev, true
}

// DisplayID returns the human identifier when present, otherwise the id.
func (e Event) DisplayID() string {
	if e.Identifier != "" {
		return e.Identifier
	}
	return e.TicketID
}

// Trigger decides which issue events start a verification run.
type Trigger struct {
	States []string
	Labels []string
}

// Matches reports whether ev should start a run. Creations match on state or
// label; updates only when the state or labels actually changed into a
// matching value.
func (t Trigger) Matches(ev Event) bool {
	stateHit := containsFold(t.States, ev.State)
	labelHit := false
	for _, l := range ev.Labels {
		if containsFold(t.Labels, l) {
			labelHit = true
			break
		}
	}

	switch ev.Action {
	case "create":
		return stateHit || labelHit
	case "update":
		return (stateHit && ev.StateChanged) || (labelHit && ev.LabelChanged)
	default:
		return false
	}
}

func containsFold(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), v) {
			return true
		}
	}
	return false
}
