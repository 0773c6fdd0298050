package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

const (
	changesChannel = "document_changes"

	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	listenerPingInterval = 90 * time.Second
)

var ErrSchemaMissing = errors.New("documents table is missing")

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	fields     JSONB       NOT NULL DEFAULT '{}'::jsonb,
	version    BIGINT      NOT NULL DEFAULT 1,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, id)
)`

type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore keeps documents in one jsonb table. Every write sends a
// NOTIFY on commit; a pq.Listener turns those into subscription callbacks, so
// subscribers see writes made by other processes too.
type PostgresStore struct {
	db       *sql.DB
	listener *pq.Listener
	notifier *notifier
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

type changeNotice struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

func NewPostgresStore(ctx context.Context, db *sql.DB, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to ensure documents table: %w", err)
	}

	listener := pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("document listener event", slog.Int("event", int(ev)), slog.Any("error", err))
		}
	})
	if err := listener.Listen(changesChannel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", changesChannel, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s := &PostgresStore{
		db:       db,
		listener: listener,
		notifier: newNotifier(),
		logger:   logger,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.listen(loopCtx)
	return s, nil
}

func (s *PostgresStore) listen(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// Connection was re-established; notifications may have been missed.
				s.logger.Info("document listener reconnected")
				continue
			}
			var notice changeNotice
			if err := json.Unmarshal([]byte(n.Extra), &notice); err != nil {
				s.logger.Warn("malformed change notice", slog.String("payload", n.Extra), slog.Any("error", err))
				continue
			}
			s.dispatch(ctx, notice)
		case <-ticker.C:
			go func() {
				if err := s.listener.Ping(); err != nil {
					s.logger.Warn("document listener ping failed", slog.Any("error", err))
				}
			}()
		}
	}
}

func (s *PostgresStore) dispatch(ctx context.Context, notice changeNotice) {
	if !s.notifier.has(notice.Collection, notice.ID) {
		return
	}
	rec, err := s.get(ctx, s.db, notice.Collection, notice.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		s.notifier.publish(notice.Collection, notice.ID, nil)
	case err != nil:
		s.logger.Error("failed to load changed document",
			slog.String("collection", notice.Collection), slog.String("id", notice.ID), slog.Any("error", err))
	default:
		s.notifier.publish(notice.Collection, notice.ID, rec)
	}
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Record, error) {
	return s.get(ctx, s.db, collection, id)
}

func (s *PostgresStore) get(ctx context.Context, exec SQLExecutor, collection, id string) (*Record, error) {
	query := `SELECT id, fields, version, updated_at FROM documents WHERE collection = $1 AND id = $2`
	rec, err := scanRecord(exec.QueryRowContext(ctx, query, collection, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
		return nil, handlePostgresError(err)
	}
	return rec, nil
}

func (s *PostgresStore) Put(ctx context.Context, collection, id string, fields map[string]any) (*Record, error) {
	query := `
		INSERT INTO documents (collection, id, fields, version, updated_at)
		VALUES ($1, $2, $3::jsonb, 1, NOW())
		ON CONFLICT (collection, id) DO UPDATE SET
			fields = (documents.fields || EXCLUDED.fields) - $4::text[],
			version = documents.version + 1,
			updated_at = NOW()
		RETURNING id, fields, version, updated_at`
	return s.writeInTx(ctx, collection, id, func(tx *sql.Tx, payload []byte, removed []string) (*Record, error) {
		return scanRecord(tx.QueryRowContext(ctx, query, collection, id, string(payload), pq.Array(removed)))
	}, fields)
}

func (s *PostgresStore) PutIfVersion(ctx context.Context, collection, id string, fields map[string]any, expected int64) (*Record, error) {
	if expected < 0 {
		return nil, fmt.Errorf("%w: negative expected version", ErrVersionConflict)
	}
	return s.writeInTx(ctx, collection, id, func(tx *sql.Tx, payload []byte, removed []string) (*Record, error) {
		var row *sql.Row
		if expected == 0 {
			row = tx.QueryRowContext(ctx, `
				INSERT INTO documents (collection, id, fields, version, updated_at)
				VALUES ($1, $2, $3::jsonb, 1, NOW())
				ON CONFLICT (collection, id) DO NOTHING
				RETURNING id, fields, version, updated_at`, collection, id, string(payload))
		} else {
			row = tx.QueryRowContext(ctx, `
				UPDATE documents SET fields = (fields || $3::jsonb) - $5::text[], version = version + 1, updated_at = NOW()
				WHERE collection = $1 AND id = $2 AND version = $4
				RETURNING id, fields, version, updated_at`, collection, id, string(payload), expected, pq.Array(removed))
		}
		rec, err := scanRecord(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s expected version %d", ErrVersionConflict, collection, id, expected)
		}
		return rec, err
	}, fields)
}

func (s *PostgresStore) writeInTx(ctx context.Context, collection, id string, write func(*sql.Tx, []byte, []string) (*Record, error), fields map[string]any) (rec *Record, txErr error) {
	set, removed := splitFields(fields)
	payload, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields for %s/%s: %w", collection, id, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				txErr = fmt.Errorf("%w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit write of %s/%s: %w", collection, id, handlePostgresError(cErr))
			rec = nil
		}
	}()

	rec, txErr = write(tx, payload, removed)
	if txErr != nil {
		return nil, handlePostgresError(txErr)
	}
	if txErr = s.notify(ctx, tx, collection, id); txErr != nil {
		return nil, txErr
	}
	return rec, nil
}

func (s *PostgresStore) notify(ctx context.Context, exec SQLExecutor, collection, id string) error {
	payload, err := json.Marshal(changeNotice{Collection: collection, ID: id})
	if err != nil {
		return err
	}
	if _, err := exec.ExecContext(ctx, `SELECT pg_notify($1, $2)`, changesChannel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify change of %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	return s.remove(ctx, collection, id, -1)
}

func (s *PostgresStore) DeleteIfVersion(ctx context.Context, collection, id string, expected int64) error {
	if expected <= 0 {
		return fmt.Errorf("%w: %s/%s expected version %d", ErrVersionConflict, collection, id, expected)
	}
	return s.remove(ctx, collection, id, expected)
}

// remove deletes a record; expected < 0 disables the version check.
func (s *PostgresStore) remove(ctx context.Context, collection, id string, expected int64) (txErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit delete of %s/%s: %w", collection, id, cErr)
		}
	}()

	var result sql.Result
	if expected < 0 {
		result, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	} else {
		result, err = tx.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = $1 AND id = $2 AND version = $3`, collection, id, expected)
	}
	if err != nil {
		return handlePostgresError(err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		if expected >= 0 {
			return fmt.Errorf("%w: %s/%s expected version %d", ErrVersionConflict, collection, id, expected)
		}
		return nil
	}
	return s.notify(ctx, tx, collection, id)
}

func (s *PostgresStore) Query(ctx context.Context, collection string, filters ...Filter) ([]*Record, error) {
	query, args, err := buildQuery(collection, filters)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, handlePostgresError(err)
	}
	defer rows.Close()

	result := make([]*Record, 0)
	for rows.Next() {
		rec, errScan := scanRecord(rows)
		if errScan != nil {
			return nil, errScan
		}
		result = append(result, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// buildQuery translates filters into SQL. Field names travel as parameters.
func buildQuery(collection string, filters []Filter) (string, []interface{}, error) {
	if err := validateFilters(filters); err != nil {
		return "", nil, err
	}

	var qb strings.Builder
	qb.WriteString(`SELECT id, fields, version, updated_at FROM documents WHERE collection = $1`)
	args := []interface{}{collection}
	next := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	for _, f := range filters {
		value, _ := normalize(f.Value)
		if f.Op == OpEq {
			doc, err := json.Marshal(map[string]any{f.Field: value})
			if err != nil {
				return "", nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
			}
			qb.WriteString(" AND fields @> " + next(string(doc)) + "::jsonb")
			continue
		}
		switch v := value.(type) {
		case float64:
			qb.WriteString(" AND jsonb_typeof(fields->" + next(f.Field) + "::text) = 'number'")
			qb.WriteString(" AND (fields->>" + next(f.Field) + "::text)::numeric " + string(f.Op) + " " + next(v) + "::numeric")
		case string:
			qb.WriteString(" AND jsonb_typeof(fields->" + next(f.Field) + "::text) = 'string'")
			qb.WriteString(" AND fields->>" + next(f.Field) + "::text " + string(f.Op) + " " + next(v) + "::text COLLATE \"C\"")
		}
	}
	qb.WriteString(" ORDER BY id ASC")
	return qb.String(), args, nil
}

func (s *PostgresStore) Subscribe(collection, id string, onChange func(*Record)) Unsubscribe {
	sub, unsubscribe := s.notifier.add(collection, id, onChange)
	if rec, err := s.Get(context.Background(), collection, id); err == nil {
		sub.deliver(rec)
	}
	return unsubscribe
}

func (s *PostgresStore) Close() error {
	s.cancel()
	err := s.listener.Close()
	<-s.done
	return err
}

func scanRecord(rowScanner interface{ Scan(...interface{}) error }) (*Record, error) {
	var (
		rec    Record
		fields []byte
	)
	if err := rowScanner.Scan(&rec.ID, &fields, &rec.Version, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &rec.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields of %s: %w", rec.ID, err)
	}
	return &rec, nil
}

func handlePostgresError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42P01": // undefined_table
			return fmt.Errorf("%w: %v", ErrSchemaMissing, err)
		case "40001": // serialization_failure
			return fmt.Errorf("%w: %v", ErrVersionConflict, err)
		}
	}
	return err
}
