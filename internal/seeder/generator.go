// Package seeder generates signed fake GitHub deliveries and posts them to a
// running receiver.
package seeder

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// Payload is one generated delivery.
type Payload struct {
	Event string // X-GitHub-Event
	Body  []byte
}

// Generator builds realistic push and pull_request bodies. It is not safe
// for concurrent use.
type Generator struct {
	faker *gofakeit.Faker
	repos []string
}

func NewGenerator(seed int64) *Generator {
	faker := gofakeit.New(seed)
	repos := make([]string, 5)
	for i := range repos {
		repos[i] = fmt.Sprintf("%s-%s", faker.Word(), faker.Word())
	}
	return &Generator{faker: faker, repos: repos}
}

type ghAccount struct {
	Name  string `json:"name,omitempty"`
	Login string `json:"login,omitempty"`
	Email string `json:"email,omitempty"`
}

type ghCommit struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Author    ghAccount `json:"author"`
}

type ghRepository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

type ghPush struct {
	Ref        string       `json:"ref"`
	Before     string       `json:"before"`
	After      string       `json:"after"`
	Commits    []ghCommit   `json:"commits"`
	HeadCommit ghCommit     `json:"head_commit"`
	Pusher     ghAccount    `json:"pusher"`
	Repository ghRepository `json:"repository"`
}

type ghRef struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type ghPullRequest struct {
	Number int       `json:"number"`
	State  string    `json:"state"`
	Title  string    `json:"title"`
	User   ghAccount `json:"user"`
	Head   ghRef     `json:"head"`
	Base   ghRef     `json:"base"`
}

type ghPullRequestEvent struct {
	Action      string        `json:"action"`
	Number      int           `json:"number"`
	PullRequest ghPullRequest `json:"pull_request"`
	Repository  ghRepository  `json:"repository"`
	Sender      ghAccount     `json:"sender"`
}

// Push returns a push delivery with one to three commits.
func (g *Generator) Push() (Payload, error) {
	f := g.faker
	author := ghAccount{Name: f.Username(), Email: f.Email()}
	repo := g.repository()

	commits := make([]ghCommit, f.IntRange(1, 3))
	for i := range commits {
		commits[i] = ghCommit{
			ID:        g.sha(),
			Message:   f.HackerPhrase(),
			Timestamp: f.DateRange(time.Now().Add(-72*time.Hour), time.Now()).UTC().Truncate(time.Second),
			Author:    author,
		}
	}
	head := commits[len(commits)-1]

	body, err := json.Marshal(ghPush{
		Ref:        "refs/heads/" + g.branch(),
		Before:     g.sha(),
		After:      head.ID,
		Commits:    commits,
		HeadCommit: head,
		Pusher:     author,
		Repository: repo,
	})
	if err != nil {
		return Payload{}, fmt.Errorf("encode push: %w", err)
	}
	return Payload{Event: "push", Body: body}, nil
}

// PullRequest returns a pull_request delivery.
func (g *Generator) PullRequest() (Payload, error) {
	f := g.faker
	user := ghAccount{Login: f.Username()}
	number := f.IntRange(1, 5000)
	action := f.RandomString([]string{"opened", "synchronize", "closed", "reopened"})
	state := "open"
	if action == "closed" {
		state = "closed"
	}

	body, err := json.Marshal(ghPullRequestEvent{
		Action: action,
		Number: number,
		PullRequest: ghPullRequest{
			Number: number,
			State:  state,
			Title:  f.HackerPhrase(),
			User:   user,
			Head:   ghRef{Ref: g.branch(), SHA: g.sha()},
			Base:   ghRef{Ref: "main", SHA: g.sha()},
		},
		Repository: g.repository(),
		Sender:     user,
	})
	if err != nil {
		return Payload{}, fmt.Errorf("encode pull_request: %w", err)
	}
	return Payload{Event: "pull_request", Body: body}, nil
}

// Next returns a pull_request with probability prRatio, otherwise a push.
func (g *Generator) Next(prRatio float64) (Payload, error) {
	if g.faker.Float64() < prRatio {
		return g.PullRequest()
	}
	return g.Push()
}

func (g *Generator) repository() ghRepository {
	name := g.faker.RandomString(g.repos)
	return ghRepository{Name: name, FullName: "togather/" + name}
}

func (g *Generator) branch() string {
	prefix := g.faker.RandomString([]string{"feature", "fix", "chore"})
	return prefix + "-" + g.faker.Word()
}

func (g *Generator) sha() string {
	return g.faker.Regex("[0-9a-f]{40}")
}
