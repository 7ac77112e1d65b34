package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Togather-Foundation/webhook-receiver/internal/domain/ids"
	"github.com/Togather-Foundation/webhook-receiver/internal/domain/webhooks"
	"github.com/Togather-Foundation/webhook-receiver/internal/metrics"
)

var _ webhooks.Store = (*EventRepository)(nil)

// EventRepository stores event records in the webhook_events table.
type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) (*EventRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	return &EventRepository{pool: pool}, nil
}

type eventRow struct {
	ID            string
	Type          string
	Repository    string
	Author        string
	ReceivedAt    pgtype.Timestamptz
	Branch        *string
	CommitID      *string
	CommitMessage *string
	Action        *string
	FromBranch    *string
	ToBranch      *string
	PRNumber      *int32
	PRState       *string
}

func (r *EventRepository) Insert(ctx context.Context, record webhooks.EventRecord) (_ string, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("insert_event", start, err) }()

	if !record.Type.Valid() {
		return "", fmt.Errorf("insert event: unknown type %q", record.Type)
	}

	id, err := ids.NewULIDAt(record.ReceivedAt)
	if err != nil {
		return "", unavailable("generate id", err)
	}

	row := eventRow{
		ID:         id,
		Type:       string(record.Type),
		Repository: record.Repository,
		Author:     record.Author(),
		ReceivedAt: pgtype.Timestamptz{Time: record.ReceivedAt.UTC(), Valid: true},
	}
	if row.Repository == "" {
		row.Repository = webhooks.UnknownRepository
	}
	switch {
	case record.Push != nil:
		row.Branch = &record.Push.Branch
		row.CommitID = &record.Push.CommitID
		row.CommitMessage = nullIfEmpty(record.Push.CommitMessage)
	case record.PullRequest != nil:
		if record.PullRequest.Number < 1 || record.PullRequest.Number > webhooks.MaxPRNumber {
			return "", fmt.Errorf("insert event: pr_number %d outside 1..%d", record.PullRequest.Number, webhooks.MaxPRNumber)
		}
		number := int32(record.PullRequest.Number)
		row.Action = nullIfEmpty(record.PullRequest.Action)
		row.FromBranch = &record.PullRequest.FromBranch
		row.ToBranch = &record.PullRequest.ToBranch
		row.PRNumber = &number
		row.PRState = nullIfEmpty(record.PullRequest.State)
	}

	var stored string
	err = r.pool.QueryRow(ctx, `
INSERT INTO webhook_events (
  id, type, repository, author, received_at,
  branch, commit_id, commit_message,
  action, from_branch, to_branch, pr_number, pr_state
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING id
`,
		row.ID, row.Type, row.Repository, row.Author, row.ReceivedAt,
		row.Branch, row.CommitID, row.CommitMessage,
		row.Action, row.FromBranch, row.ToBranch, row.PRNumber, row.PRState,
	).Scan(&stored)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return "", fmt.Errorf("insert event: %s violates %s: %w", record.Type, pgErr.ConstraintName, err)
		}
		return "", unavailable("insert event", err)
	}
	return stored, nil
}

// Query reads the count and the page inside one snapshot so total and
// records agree under concurrent inserts.
func (r *EventRepository) Query(ctx context.Context, skip int64, limit int) (_ []webhooks.EventRecord, _ int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("list_events", start, err) }()

	if skip < 0 {
		skip = 0
	}

	var (
		records []webhooks.EventRecord
		total   int64
	)
	err = r.snapshot(ctx, func(q queryer) error {
		if err := q.QueryRow(ctx, `SELECT count(*) FROM webhook_events`).Scan(&total); err != nil {
			return unavailable("count events", err)
		}
		if limit <= 0 || skip >= total {
			return nil
		}

		rows, err := q.Query(ctx, `
SELECT id, type, repository, author, received_at,
       branch, commit_id, commit_message,
       action, from_branch, to_branch, pr_number, pr_state
  FROM webhook_events
 ORDER BY received_at DESC, seq DESC
OFFSET $1
 LIMIT $2
`, skip, limit)
		if err != nil {
			return unavailable("list events", err)
		}
		defer rows.Close()

		records = make([]webhooks.EventRecord, 0, limit)
		for rows.Next() {
			var row eventRow
			if err := rows.Scan(
				&row.ID,
				&row.Type,
				&row.Repository,
				&row.Author,
				&row.ReceivedAt,
				&row.Branch,
				&row.CommitID,
				&row.CommitMessage,
				&row.Action,
				&row.FromBranch,
				&row.ToBranch,
				&row.PRNumber,
				&row.PRState,
			); err != nil {
				return unavailable("scan event", err)
			}
			if err := ids.ValidateULID(row.ID); err != nil {
				return unavailable("scan event", fmt.Errorf("row %q: %w", row.ID, err))
			}
			records = append(records, row.toRecord())
		}
		if err := rows.Err(); err != nil {
			return unavailable("iterate events", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	if records == nil {
		records = []webhooks.EventRecord{}
	}
	return records, total, nil
}

func (r *EventRepository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (r *EventRepository) snapshot(ctx context.Context, fn func(queryer) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return unavailable("begin snapshot", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return unavailable("commit snapshot", err)
	}
	return nil
}

func (row eventRow) toRecord() webhooks.EventRecord {
	record := webhooks.EventRecord{
		ID:         row.ID,
		Type:       webhooks.EventType(row.Type),
		Repository: row.Repository,
		ReceivedAt: row.ReceivedAt.Time.UTC(),
	}
	switch record.Type {
	case webhooks.EventTypePush:
		record.Push = &webhooks.PushDetails{
			Author:        row.Author,
			Branch:        derefString(row.Branch),
			CommitID:      derefString(row.CommitID),
			CommitMessage: derefString(row.CommitMessage),
		}
	case webhooks.EventTypePullRequest:
		var number int
		if row.PRNumber != nil {
			number = int(*row.PRNumber)
		}
		record.PullRequest = &webhooks.PullRequestDetails{
			Author:     row.Author,
			Action:     derefString(row.Action),
			FromBranch: derefString(row.FromBranch),
			ToBranch:   derefString(row.ToBranch),
			Number:     number,
			State:      derefString(row.PRState),
		}
	}
	return record
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", webhooks.ErrStoreUnavailable, op, err)
}
