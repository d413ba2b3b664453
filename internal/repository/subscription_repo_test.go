package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// scriptRow runs a canned scan function.
type scriptRow struct {
	scan func(dest ...any) error
}

func (r scriptRow) Scan(dest ...any) error { return r.scan(dest...) }

// scriptTx satisfies pgx.Tx and hands out queued rows, one per QueryRow
// call, so a repo method's query sequence can be exercised without a
// database.
type scriptTx struct {
	rows []scriptRow
}

func (t *scriptTx) QueryRow(context.Context, string, ...any) pgx.Row {
	if len(t.rows) == 0 {
		return scriptRow{scan: func(...any) error { return pgx.ErrNoRows }}
	}
	row := t.rows[0]
	t.rows = t.rows[1:]
	return row
}

func (t *scriptTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *scriptTx) Commit(context.Context) error          { return nil }
func (t *scriptTx) Rollback(context.Context) error        { return nil }
func (t *scriptTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *scriptTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (t *scriptTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *scriptTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (t *scriptTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (t *scriptTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *scriptTx) Conn() *pgx.Conn { return nil }

func TestSubscribeTx_ConflictReturnsExistingMembership(t *testing.T) {
	taskID := uuid.New()
	agentID := uuid.New()
	existingID := uuid.New()
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tx := &scriptTx{rows: []scriptRow{
		// Insert hits the unique index; drivers may wrap the no-rows error.
		{scan: func(...any) error {
			return fmt.Errorf("scan returning row: %w", pgx.ErrNoRows)
		}},
		// Follow-up select finds the existing membership.
		{scan: func(dest ...any) error {
			*dest[0].(*uuid.UUID) = existingID
			*dest[1].(*uuid.UUID) = taskID
			*dest[2].(*uuid.UUID) = agentID
			*dest[3].(*time.Time) = createdAt
			return nil
		}},
	}}

	repo := NewSubscriptionRepo(nil)
	sub, created, err := repo.SubscribeTx(context.Background(), tx, taskID, agentID)
	if err != nil {
		t.Fatalf("SubscribeTx: %v", err)
	}
	if created {
		t.Error("conflict path must report created=false")
	}
	if sub.ID != existingID || sub.TaskID != taskID || sub.AgentID != agentID {
		t.Errorf("unexpected membership: %+v", sub)
	}
	if !sub.CreatedAt.Equal(createdAt) {
		t.Errorf("created_at = %s, want %s", sub.CreatedAt, createdAt)
	}
}

func TestSubscribeTx_FirstInsertCreates(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tx := &scriptTx{rows: []scriptRow{
		{scan: func(dest ...any) error {
			*dest[0].(*time.Time) = createdAt
			return nil
		}},
	}}

	repo := NewSubscriptionRepo(nil)
	sub, created, err := repo.SubscribeTx(context.Background(), tx, uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("SubscribeTx: %v", err)
	}
	if !created {
		t.Error("fresh insert must report created=true")
	}
	if !sub.CreatedAt.Equal(createdAt) {
		t.Errorf("created_at = %s, want %s", sub.CreatedAt, createdAt)
	}
}
