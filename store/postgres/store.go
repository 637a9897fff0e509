package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/deadletter"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/route"
	"github.com/xraph/conduit/run"
	conduitstore "github.com/xraph/conduit/store"
)

// compile-time interface check
var _ conduitstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("conduit/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("conduit/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Route Store ====================

func (s *Store) CreateRoute(ctx context.Context, r *route.Route) error {
	m, err := toRouteModel(r)
	if err != nil {
		return err
	}
	_, err = s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetRoute(ctx context.Context, routeID id.ID) (*route.Route, error) {
	m := new(routeModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", routeID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, conduit.ErrRouteNotFound
		}
		return nil, err
	}
	return fromRouteModel(m)
}

func (s *Store) UpdateRoute(ctx context.Context, r *route.Route) error {
	m, err := toRouteModel(r)
	if err != nil {
		return err
	}
	res, err := s.pg.NewUpdate(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res, conduit.ErrRouteNotFound)
}

func (s *Store) DeleteRoute(ctx context.Context, routeID id.ID) error {
	res, err := s.pg.NewDelete((*routeModel)(nil)).
		Where("id = $1", routeID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res, conduit.ErrRouteNotFound)
}

func (s *Store) ListRoutes(ctx context.Context, opts route.ListOpts) ([]*route.Route, error) {
	var models []routeModel
	q := s.pg.NewSelect(&models)

	if opts.Enabled != nil {
		q = q.Where("enabled = $1", *opts.Enabled)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*route.Route, len(models))
	for i := range models {
		r, err := fromRouteModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

// ==================== Run Store ====================

// CreateRun inserts a run. A second run with the same route and idempotency
// key is rejected with ErrDuplicateIdempotencyKey.
func (s *Store) CreateRun(ctx context.Context, r *run.Run) error {
	m, err := toRunModel(r)
	if err != nil {
		return err
	}

	if r.IdempotencyKey != "" {
		res, err := s.pg.NewInsert(m).
			OnConflict("(route_id, idempotency_key) WHERE idempotency_key != '' DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return conduit.ErrDuplicateIdempotencyKey
		}
		return nil
	}

	_, err = s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) UpdateRun(ctx context.Context, r *run.Run) error {
	m, err := toRunModel(r)
	if err != nil {
		return err
	}
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res, conduit.ErrRunNotFound)
}

func (s *Store) GetRun(ctx context.Context, runID id.ID) (*run.Run, error) {
	m := new(runModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", runID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, conduit.ErrRunNotFound
		}
		return nil, err
	}
	return fromRunModel(m)
}

func (s *Store) ListRuns(ctx context.Context, opts run.ListOpts) ([]*run.Run, error) {
	var models []runModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.RouteID != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("route_id = $%d", argIdx), opts.RouteID.String())
	}
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("started_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*run.Run, len(models))
	for i := range models {
		r, err := fromRunModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) CountRuns(ctx context.Context, status run.Status) (int64, error) {
	q := s.pg.NewSelect((*runModel)(nil))
	if status != "" {
		q = q.Where("status = $1", string(status))
	}
	return q.Count(ctx)
}

func (s *Store) GetRunByIdempotencyKey(ctx context.Context, routeID id.ID, key string) (*run.Run, error) {
	m := new(runModel)
	err := s.pg.NewSelect(m).
		Where("route_id = $1", routeID.String()).
		Where("idempotency_key = $2", key).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, conduit.ErrRunNotFound
		}
		return nil, err
	}
	return fromRunModel(m)
}

// ==================== Dead Letter Store ====================

func (s *Store) PushDeadLetter(ctx context.Context, e *deadletter.Entry) error {
	m, err := toDeadLetterModel(e)
	if err != nil {
		return err
	}
	_, err = s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetDeadLetter(ctx context.Context, entryID id.ID) (*deadletter.Entry, error) {
	m := new(deadLetterModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", entryID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, conduit.ErrDeadLetterNotFound
		}
		return nil, err
	}
	return fromDeadLetterModel(m)
}

func (s *Store) UpdateDeadLetter(ctx context.Context, e *deadletter.Entry) error {
	m, err := toDeadLetterModel(e)
	if err != nil {
		return err
	}
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res, conduit.ErrDeadLetterNotFound)
}

func (s *Store) ListDeadLetters(ctx context.Context, opts deadletter.ListOpts) ([]*deadletter.Entry, error) {
	var models []deadLetterModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.RouteID != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("route_id = $%d", argIdx), opts.RouteID.String())
	}
	if opts.From != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("created_at >= $%d", argIdx), *opts.From)
	}
	if opts.To != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("created_at < $%d", argIdx), *opts.To)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*deadletter.Entry, len(models))
	for i := range models {
		e, err := fromDeadLetterModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) CountDeadLetters(ctx context.Context, status deadletter.Status) (int64, error) {
	q := s.pg.NewSelect((*deadLetterModel)(nil))
	if status != "" {
		q = q.Where("status = $1", string(status))
	}
	return q.Count(ctx)
}

func (s *Store) PurgeDeadLetters(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pg.NewDelete((*deadLetterModel)(nil)).
		Where("status = $1", string(deadletter.StatusReplayed)).
		Where("created_at < $2", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// rowsAffecter is the part of an exec result requireRow needs.
type rowsAffecter interface {
	RowsAffected() (int64, error)
}

// requireRow returns notFound when res touched no rows.
func requireRow(res rowsAffecter, notFound error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
