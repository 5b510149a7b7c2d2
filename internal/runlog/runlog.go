// Package runlog keeps an audit trail of every synchronization pass in a sql database.
package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"catalogsync/internal/assert"
	"catalogsync/internal/components/chrono"
	"catalogsync/internal/components/telemetry"
	"catalogsync/internal/mutator"
	"catalogsync/internal/reconcile"
	"catalogsync/internal/runlog/db"

	"github.com/google/uuid"
	"github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

const (
	report_runlog_begin  = "runlog.begin-run"
	report_runlog_record = "runlog.record-outcomes"
	report_runlog_finish = "runlog.finish-run"
)

var ErrUnknownRun = errors.New("unknown run")

type Config struct {
	// File is a local sqlite database, ":memory:" is accepted.
	File string `json:"file"`
	// Url is a remote libsql database, it takes precedence over File.
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func (c Config) Enabled() bool {
	return c.File != "" || c.Url != ""
}

func (c Config) OpenDB() (*sql.DB, error) {
	if c.Url != "" {
		var opts []libsql.Option
		if c.AuthToken != "" {
			opts = append(opts, libsql.WithAuthToken(c.AuthToken))
		}
		connector, err := libsql.NewConnector(c.Url, opts...)
		if err != nil {
			return nil, err
		}
		return sql.OpenDB(connector), nil
	}
	if c.File == "" {
		return nil, fmt.Errorf("neither a database file nor a url was specified")
	}

	database, err := sql.Open("sqlite", c.File)
	if err != nil {
		return nil, err
	}
	// sqlite does not handle concurrent writers, a single connection also keeps
	// ":memory:" databases from being split across connections
	database.SetMaxOpenConns(1)
	return database, nil
}

// Run is a single pass of a pipeline stage.
type Run struct {
	ID         string
	Stage      string
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    reconcile.Summary
	// Failed is the amount of recorded outcomes that failed.
	Failed int
	// Error is the error the stage ended with, empty if it succeeded.
	Error string
}

func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Outcome is a recorded mutation.
type Outcome struct {
	Position int
	Kind     string
	SKU      string
	Price    string
	RemoteID int64
	Error    string
}

type Store struct {
	db    *sql.DB
	qry   *db.Queries
	clock chrono.API
	tel   telemetry.API
}

// NewStore creates the schema if it does not exist yet.
func NewStore(ctx context.Context, database *sql.DB, clock chrono.API, tel telemetry.API) (Store, error) {
	assert.NotNil(clock, "clock")
	_, err := database.ExecContext(ctx, db.Schema)
	if err != nil {
		return Store{}, fmt.Errorf("create schema: %w", err)
	}
	return Store{
		db:    database,
		qry:   db.New(database),
		clock: clock,
		tel:   telemetry.NewScopedAPI("runlog", tel),
	}, nil
}

func (s Store) BeginRun(ctx context.Context, stage string) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		Stage:     stage,
		StartedAt: s.clock.Now(),
	}
	err := s.qry.CreateRun(ctx, db.CreateRunParams{
		ID:        run.ID,
		Stage:     run.Stage,
		Startedat: run.StartedAt.UnixMilli(),
	})
	if err != nil {
		s.tel.ReportBroken(report_runlog_begin, err, stage)
		return Run{}, err
	}
	return run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// RecordOutcomes appends outcomes to a run, positions continue from the ones already recorded.
func (s Store) RecordOutcomes(ctx context.Context, runId string, outcomes []mutator.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.tel.ReportBroken(report_runlog_record, err, runId)
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	_, err = txqry.GetRun(ctx, runId)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runId)
	}
	if err != nil {
		s.tel.ReportBroken(report_runlog_record, err, runId)
		return err
	}

	offset, err := txqry.CountRunOutcomes(ctx, runId)
	if err != nil {
		s.tel.ReportBroken(report_runlog_record, err, runId)
		return err
	}

	for i, o := range outcomes {
		var errText string
		if o.Err != nil {
			errText = o.Err.Error()
		}
		err = txqry.CreateOutcome(ctx, db.CreateOutcomeParams{
			Runid:    runId,
			Position: offset + int64(i),
			Kind:     o.Action.Kind.String(),
			Sku:      o.Action.SKU,
			Price:    o.Action.Price.String(),
			Remoteid: o.RemoteID,
			Error:    nullString(errText),
		})
		if err != nil {
			s.tel.ReportBroken(report_runlog_record, err, runId, o.Action.SKU)
			return err
		}
	}

	return tx.Commit()
}

// FinishRun marks a run as done, runErr is the error the stage ended with if any.
func (s Store) FinishRun(ctx context.Context, runId string, summary reconcile.Summary, runErr error) error {
	var errText string
	if runErr != nil {
		errText = runErr.Error()
	}

	res, err := s.qry.FinishRun(ctx, db.FinishRunParams{
		ID:         runId,
		Finishedat: sql.NullInt64{Int64: s.clock.Now().UnixMilli(), Valid: true},
		Updates:    int64(summary.Updates),
		Creates:    int64(summary.Creates),
		Deletes:    int64(summary.Deletes),
		Unchanged:  int64(summary.Unchanged),
		Error:      nullString(errText),
	})
	if err != nil {
		s.tel.ReportBroken(report_runlog_finish, err, runId)
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		s.tel.ReportBroken(report_runlog_finish, err, runId)
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runId)
	}
	return nil
}

func (s Store) runFromRow(row db.Run) Run {
	run := Run{
		ID:        row.ID,
		Stage:     row.Stage,
		StartedAt: time.UnixMilli(row.Startedat).In(s.clock.Location()),
		Summary: reconcile.Summary{
			Updates:   int(row.Updates),
			Creates:   int(row.Creates),
			Deletes:   int(row.Deletes),
			Unchanged: int(row.Unchanged),
		},
		Failed: int(row.Failed),
		Error:  row.Error.String,
	}
	if row.Finishedat.Valid {
		run.FinishedAt = time.UnixMilli(row.Finishedat.Int64).In(s.clock.Location())
	}
	return run
}

func (s Store) GetRun(ctx context.Context, runId string) (Run, error) {
	row, err := s.qry.GetRun(ctx, runId)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrUnknownRun, runId)
	}
	if err != nil {
		return Run{}, err
	}
	return s.runFromRow(row), nil
}

// ListRuns returns the latest runs, newest first.
func (s Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.qry.ListRuns(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	runs := make([]Run, len(rows))
	for i, row := range rows {
		runs[i] = s.runFromRow(row)
	}
	return runs, nil
}

func (s Store) RunOutcomes(ctx context.Context, runId string) ([]Outcome, error) {
	rows, err := s.qry.GetRunOutcomes(ctx, runId)
	if err != nil {
		return nil, err
	}
	outcomes := make([]Outcome, len(rows))
	for i, row := range rows {
		outcomes[i] = Outcome{
			Position: int(row.Position),
			Kind:     row.Kind,
			SKU:      row.Sku,
			Price:    row.Price,
			RemoteID: row.Remoteid,
			Error:    row.Error.String,
		}
	}
	return outcomes, nil
}
