package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx shared by the pool and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Transactor runs a function inside a single unit of work. Nested calls join the
// outer unit.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type pgTransactor struct {
	pool *pgxpool.Pool
}

// NewTransactor returns a Transactor backed by pgx transactions.
func NewTransactor(pool *pgxpool.Pool) Transactor {
	return &pgTransactor{pool: pool}
}

func (t *pgTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// querier returns the transaction carried by ctx, or the pool.
func querier(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// InTx reports whether ctx carries a pgx transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(pgx.Tx)
	return ok
}

const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Repositories bundles every repository over one backend.
type Repositories struct {
	Transactor    Transactor
	Workflows     WorkflowRepository
	Tickets       TicketRepository
	Timeline      TimelineRepository
	Engineers     EngineerRepository
	VisitBookings VisitBookingRepository
	Teams         TeamRepository
	AssignmentLog AssignmentLogRepository
	SLAPolicies   SLAPolicyRepository
}

// NewRepositories returns the Postgres-backed repositories.
func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Transactor:    NewTransactor(pool),
		Workflows:     NewWorkflowRepository(pool),
		Tickets:       NewTicketRepository(pool),
		Timeline:      NewTimelineRepository(pool),
		Engineers:     NewEngineerRepository(pool),
		VisitBookings: NewVisitBookingRepository(pool),
		Teams:         NewTeamRepository(pool),
		AssignmentLog: NewAssignmentLogRepository(pool),
		SLAPolicies:   NewSLAPolicyRepository(pool),
	}
}
