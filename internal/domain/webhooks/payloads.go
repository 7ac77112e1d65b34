package webhooks

import "encoding/json"

// pushPayload holds the fields of a push delivery the receiver keeps.
type pushPayload struct {
	Ref        string        `json:"ref"`
	Pusher     actor         `json:"pusher"`
	HeadCommit *commit       `json:"head_commit"`
	Repository repositoryRef `json:"repository"`
}

type pullRequestPayload struct {
	Action      string        `json:"action"`
	PullRequest *pullRequest  `json:"pull_request"`
	Repository  repositoryRef `json:"repository"`
}

type pullRequest struct {
	Number int     `json:"number"`
	State  string  `json:"state"`
	User   account `json:"user"`
	Head   gitRef  `json:"head"`
	Base   gitRef  `json:"base"`
}

type actor struct {
	Name string `json:"name"`
}

type account struct {
	Login string `json:"login"`
}

type commit struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type gitRef struct {
	Ref string `json:"ref"`
}

// repositoryRef tolerates any JSON value; only an object with a string name
// contributes a repository name.
type repositoryRef struct {
	Name string
}

func (r *repositoryRef) UnmarshalJSON(data []byte) error {
	var aux struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return nil
	}
	r.Name = aux.Name
	return nil
}
