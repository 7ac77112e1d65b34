package webhooks

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testReceivedAt = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

func normalizeBody(t *testing.T, body string) (EventRecord, error) {
	t.Helper()
	return NewNormalizer(fixedClock{testReceivedAt}).Normalize(Classify(mustParse(t, body)))
}

func TestNormalizePush(t *testing.T) {
	record, err := normalizeBody(t, `{
		"ref": "refs/heads/main",
		"commits": [{"id": "abc123"}],
		"head_commit": {"id": "abc123", "message": "Fix bug"},
		"pusher": {"name": "alice"},
		"repository": {"name": "demo"}
	}`)
	require.NoError(t, err)

	require.Empty(t, record.ID)
	require.Equal(t, EventTypePush, record.Type)
	require.Equal(t, "demo", record.Repository)
	require.Equal(t, testReceivedAt, record.ReceivedAt)
	require.Nil(t, record.PullRequest)
	require.Equal(t, &PushDetails{
		Author:        "alice",
		Branch:        "main",
		CommitID:      "abc123",
		CommitMessage: "Fix bug",
	}, record.Push)
}

func TestNormalizePullRequest(t *testing.T) {
	record, err := normalizeBody(t, `{
		"action": "opened",
		"pull_request": {
			"number": 7,
			"state": "open",
			"user": {"login": "bob"},
			"head": {"ref": "feature-x"},
			"base": {"ref": "main"}
		},
		"repository": {"name": "demo"}
	}`)
	require.NoError(t, err)

	require.Equal(t, EventTypePullRequest, record.Type)
	require.Equal(t, "demo", record.Repository)
	require.Nil(t, record.Push)
	require.Equal(t, &PullRequestDetails{
		Author:     "bob",
		Action:     "opened",
		FromBranch: "feature-x",
		ToBranch:   "main",
		Number:     7,
		State:      "open",
	}, record.PullRequest)
}

func TestNormalizePushBranchFromRef(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{ref: "refs/heads/main", want: "main"},
		{ref: "refs/heads/feature/login", want: "login"},
		{ref: "refs/tags/v1.2.0", want: "v1.2.0"},
		{ref: "develop", want: "develop"},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			record, err := normalizeBody(t, `{"ref": "`+tt.ref+`", "commits": [], "head_commit": {"id": "c1"}, "pusher": {"name": "alice"}}`)
			require.NoError(t, err)
			require.Equal(t, tt.want, record.Push.Branch)
		})
	}
}

func TestNormalizeRepositoryDefaultsToUnknown(t *testing.T) {
	tests := []struct {
		name       string
		repository string
	}{
		{name: "absent", repository: ""},
		{name: "null", repository: `, "repository": null`},
		{name: "string", repository: `, "repository": "demo"`},
		{name: "no name", repository: `, "repository": {"id": 1}`},
		{name: "numeric name", repository: `, "repository": {"name": 5}`},
		{name: "blank name", repository: `, "repository": {"name": "  "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := normalizeBody(t, `{"ref": "refs/heads/main", "commits": [], "head_commit": {"id": "c1"}, "pusher": {"name": "alice"}`+tt.repository+`}`)
			require.NoError(t, err)
			require.Equal(t, UnknownRepository, record.Repository)
		})
	}
}

func TestNormalizeMalformedPush(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "missing pusher",
			body:  `{"ref": "refs/heads/main", "commits": [], "head_commit": {"id": "c1"}}`,
			field: "author",
		},
		{
			name:  "missing ref",
			body:  `{"commits": [], "head_commit": {"id": "c1"}, "pusher": {"name": "alice"}}`,
			field: "branch",
		},
		{
			name:  "ref with trailing slash",
			body:  `{"ref": "refs/heads/", "commits": [], "head_commit": {"id": "c1"}, "pusher": {"name": "alice"}}`,
			field: "branch",
		},
		{
			name:  "missing head commit",
			body:  `{"ref": "refs/heads/main", "commits": [], "pusher": {"name": "alice"}}`,
			field: "commit_id",
		},
		{
			name:  "null head commit",
			body:  `{"ref": "refs/heads/main", "commits": [], "head_commit": null, "pusher": {"name": "alice"}}`,
			field: "commit_id",
		},
		{
			name:  "ref of wrong type",
			body:  `{"ref": 5, "commits": [], "head_commit": {"id": "c1"}, "pusher": {"name": "alice"}}`,
			field: "ref",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalizeBody(t, tt.body)
			require.ErrorIs(t, err, ErrMalformedEvent)

			var malformed MalformedEventError
			require.ErrorAs(t, err, &malformed)
			require.Equal(t, EventTypePush, malformed.Type)
			require.Equal(t, tt.field, malformed.Field)
		})
	}
}

func TestNormalizeMalformedPullRequest(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "null pull request",
			body:  `{"pull_request": null}`,
			field: "pull_request",
		},
		{
			name:  "missing user",
			body:  `{"pull_request": {"number": 1, "head": {"ref": "a"}, "base": {"ref": "b"}}}`,
			field: "author",
		},
		{
			name:  "missing head",
			body:  `{"pull_request": {"number": 1, "user": {"login": "bob"}, "base": {"ref": "b"}}}`,
			field: "from_branch",
		},
		{
			name:  "missing base",
			body:  `{"pull_request": {"number": 1, "user": {"login": "bob"}, "head": {"ref": "a"}}}`,
			field: "to_branch",
		},
		{
			name:  "missing number",
			body:  `{"pull_request": {"user": {"login": "bob"}, "head": {"ref": "a"}, "base": {"ref": "b"}}}`,
			field: "pr_number",
		},
		{
			name:  "number beyond 32 bits",
			body:  `{"pull_request": {"number": 4294967301, "user": {"login": "bob"}, "head": {"ref": "a"}, "base": {"ref": "b"}}}`,
			field: "pr_number",
		},
		{
			name:  "number just past the column range",
			body:  `{"pull_request": {"number": 2147483648, "user": {"login": "bob"}, "head": {"ref": "a"}, "base": {"ref": "b"}}}`,
			field: "pr_number",
		},
		{
			name:  "NUL in author",
			body:  `{"pull_request": {"number": 1, "user": {"login": "b\u0000ob"}, "head": {"ref": "a"}, "base": {"ref": "b"}}}`,
			field: "author",
		},
		{
			name:  "NUL in state",
			body:  `{"pull_request": {"number": 1, "state": "op\u0000en", "user": {"login": "bob"}, "head": {"ref": "a"}, "base": {"ref": "b"}}}`,
			field: "pr_state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalizeBody(t, tt.body)
			require.ErrorIs(t, err, ErrMalformedEvent)

			var malformed MalformedEventError
			require.ErrorAs(t, err, &malformed)
			require.Equal(t, EventTypePullRequest, malformed.Type)
			require.Equal(t, tt.field, malformed.Field)
		})
	}
}

func TestNormalizePullRequestLargestNumber(t *testing.T) {
	record, err := normalizeBody(t, `{"pull_request": {"number": 2147483647, "user": {"login": "bob"}, "head": {"ref": "a"}, "base": {"ref": "b"}}}`)
	require.NoError(t, err)
	require.Equal(t, MaxPRNumber, record.PullRequest.Number)
}

func TestNormalizeRejectsNULBytes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "pusher name",
			body:  `{"ref": "refs/heads/main", "commits": [], "head_commit": {"id": "abc"}, "pusher": {"name": "a\u0000b"}}`,
			field: "author",
		},
		{
			name:  "commit message",
			body:  `{"ref": "refs/heads/main", "commits": [], "head_commit": {"id": "abc", "message": "fix\u0000"}, "pusher": {"name": "alice"}}`,
			field: "commit_message",
		},
		{
			name:  "branch",
			body:  `{"ref": "refs/heads/ma\u0000in", "commits": [], "head_commit": {"id": "abc"}, "pusher": {"name": "alice"}}`,
			field: "branch",
		},
		{
			name:  "repository",
			body:  `{"ref": "refs/heads/main", "commits": [], "head_commit": {"id": "abc"}, "pusher": {"name": "alice"}, "repository": {"name": "de\u0000mo"}}`,
			field: "repository",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalizeBody(t, tt.body)
			require.ErrorIs(t, err, ErrMalformedEvent)

			var malformed MalformedEventError
			require.ErrorAs(t, err, &malformed)
			require.Equal(t, EventTypePush, malformed.Type)
			require.Equal(t, tt.field, malformed.Field)
		})
	}
}

func TestNormalizePullRequestNumberOfWrongType(t *testing.T) {
	_, err := normalizeBody(t, `{"pull_request": {"number": "7", "user": {"login": "bob"}, "head": {"ref": "a"}, "base": {"ref": "b"}}}`)
	require.ErrorIs(t, err, ErrMalformedEvent)

	var malformed MalformedEventError
	require.ErrorAs(t, err, &malformed)
	require.Contains(t, malformed.Field, "number")
}

func TestNormalizeUnsupported(t *testing.T) {
	_, err := NewNormalizer(nil).Normalize(Unsupported{})
	require.ErrorIs(t, err, ErrUnsupportedEvent)
}

func TestMonotonicClockStrictlyIncreases(t *testing.T) {
	frozen := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.FixedZone("CEST", 2*60*60))
	clock := &MonotonicClock{now: func() time.Time { return frozen }}

	first := clock.Now()
	second := clock.Now()

	require.Equal(t, time.UTC, first.Location())
	require.Equal(t, 0, first.Nanosecond()%1000)
	require.True(t, second.After(first))
	require.Equal(t, time.Microsecond, second.Sub(first))
}

func TestMonotonicClockConcurrentCallersGetDistinctInstants(t *testing.T) {
	clock := NewMonotonicClock()

	const callers = 50
	results := make(chan time.Time, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- clock.Now()
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[time.Time]struct{}, callers)
	for ts := range results {
		_, dup := seen[ts]
		require.False(t, dup, "duplicate timestamp %s", ts)
		seen[ts] = struct{}{}
	}
}
