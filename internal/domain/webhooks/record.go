package webhooks

import (
	"encoding/json"
	"math"
	"time"
)

// EventType is the closed set of event shapes the receiver stores.
type EventType string

const (
	EventTypePush        EventType = "push"
	EventTypePullRequest EventType = "pull_request"
)

// UnknownRepository is stored when a payload does not name its repository.
const UnknownRepository = "unknown"

func (t EventType) Valid() bool {
	return t == EventTypePush || t == EventTypePullRequest
}

// EventRecord is the canonical, immutable form of a received webhook.
// Exactly one of Push or PullRequest is set, matching Type.
type EventRecord struct {
	ID          string
	Type        EventType
	Repository  string
	ReceivedAt  time.Time
	Push        *PushDetails
	PullRequest *PullRequestDetails
}

type PushDetails struct {
	Author        string `json:"author" validate:"required,nonul"`
	Branch        string `json:"branch" validate:"required,nonul"`
	CommitID      string `json:"commit_id" validate:"required,nonul"`
	CommitMessage string `json:"commit_message,omitempty" validate:"nonul"`
}

// MaxPRNumber is the largest pull request number the store column holds.
const MaxPRNumber = math.MaxInt32

type PullRequestDetails struct {
	Author     string `json:"author" validate:"required,nonul"`
	Action     string `json:"action,omitempty" validate:"nonul"`
	FromBranch string `json:"from_branch" validate:"required,nonul"`
	ToBranch   string `json:"to_branch" validate:"required,nonul"`
	Number     int    `json:"pr_number" validate:"required,min=1,max=2147483647"`
	State      string `json:"pr_state,omitempty" validate:"nonul"`
}

type eventJSON struct {
	ID            string    `json:"_id"`
	Type          EventType `json:"type"`
	Repository    string    `json:"repository"`
	Timestamp     time.Time `json:"timestamp"`
	Author        string    `json:"author,omitempty"`
	Branch        string    `json:"branch,omitempty"`
	CommitID      string    `json:"commit_id,omitempty"`
	CommitMessage string    `json:"commit_message,omitempty"`
	Action        string    `json:"action,omitempty"`
	FromBranch    string    `json:"from_branch,omitempty"`
	ToBranch      string    `json:"to_branch,omitempty"`
	PRNumber      *int      `json:"pr_number,omitempty"`
	PRState       string    `json:"pr_state,omitempty"`
}

// MarshalJSON flattens the record into the document shape served by the API.
func (r EventRecord) MarshalJSON() ([]byte, error) {
	doc := eventJSON{
		ID:         r.ID,
		Type:       r.Type,
		Repository: r.Repository,
		Timestamp:  r.ReceivedAt.UTC(),
	}
	switch {
	case r.Push != nil:
		doc.Author = r.Push.Author
		doc.Branch = r.Push.Branch
		doc.CommitID = r.Push.CommitID
		doc.CommitMessage = r.Push.CommitMessage
	case r.PullRequest != nil:
		number := r.PullRequest.Number
		doc.Author = r.PullRequest.Author
		doc.Action = r.PullRequest.Action
		doc.FromBranch = r.PullRequest.FromBranch
		doc.ToBranch = r.PullRequest.ToBranch
		doc.PRNumber = &number
		doc.PRState = r.PullRequest.State
	}
	return json.Marshal(doc)
}

// Author returns the actor of the event regardless of its type.
func (r EventRecord) Author() string {
	switch {
	case r.Push != nil:
		return r.Push.Author
	case r.PullRequest != nil:
		return r.PullRequest.Author
	}
	return ""
}
