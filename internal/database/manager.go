// Package database is the SQLite admission audit store. Entries are
// queued without blocking and written by a single goroutine.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"campus/internal/metrics"
	dbconfig "campus/pkg/database"
	"campus/pkg/interfaces"
	"campus/pkg/types"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
)

// Options tune the writer.
type Options struct {
	BufferSize int
	// Timeout bounds each insert.
	Timeout time.Duration
	// RetryDelay is the pause before the single retry of a failed insert.
	RetryDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		BufferSize: 1024,
		Timeout:    30 * time.Second,
		RetryDelay: 5 * time.Second,
	}
}

// Manager implements interfaces.AuditStore.
type Manager struct {
	db      *sql.DB
	opts    Options
	metrics *metrics.Metrics
	log     zerolog.Logger

	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

// writeOperation carries an entry, or only done for a flush barrier.
type writeOperation struct {
	entry *types.AuditEntry
	done  chan struct{}
}

var _ interfaces.AuditStore = (*Manager)(nil)

// NewManager opens the database, applies migrations and starts the writer.
// m may be nil.
func NewManager(cfg *dbconfig.Config, opts Options, m *metrics.Metrics, log zerolog.Logger) (*Manager, error) {
	db, err := dbconfig.Open(cfg)
	if err != nil {
		return nil, err
	}

	migrations := dbconfig.NewMigrationManager(db)
	if err := migrations.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate audit database: %w", err)
	}
	if err := migrations.ValidateSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit schema invalid: %w", err)
	}

	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultOptions().BufferSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}

	manager := &Manager{
		db:           db,
		opts:         opts,
		metrics:      m,
		log:          log.With().Str("component", "audit").Logger(),
		writeChannel: make(chan writeOperation, opts.BufferSize),
		shutdown:     make(chan struct{}),
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	manager.log.Info().Str("path", cfg.DatabasePath).Msg("audit store ready")
	return manager, nil
}

func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			m.handle(op)

		case <-m.shutdown:
			// Drain what was queued before Close.
			for {
				select {
				case op := <-m.writeChannel:
					m.handle(op)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) handle(op writeOperation) {
	if op.entry != nil {
		m.write(op.entry)
	}
	if op.done != nil {
		close(op.done)
	}
}

// write inserts one entry, retrying once.
func (m *Manager) write(entry *types.AuditEntry) {
	err := m.insert(entry)
	if err == nil {
		return
	}
	m.log.Warn().Err(err).Str("entry", entry.ID).Dur("retry_in", m.opts.RetryDelay).Msg("audit write failed, retrying")
	time.Sleep(m.opts.RetryDelay)

	if err := m.insert(entry); err != nil {
		m.metrics.AuditDropped()
		m.log.Error().Err(err).Str("entry", entry.ID).Str("classroom", entry.ClassroomID).Msg("audit write failed after retry")
	}
}

func (m *Manager) insert(e *types.AuditEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.Timeout)
	defer cancel()

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO admission_audit
			(id, classroom_id, action, subject_id, subject_name, connection_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.ClassroomID,
		e.Action,
		e.SubjectID,
		e.SubjectName,
		e.ConnectionID,
		e.Detail,
		e.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Record queues entry. A full queue or a closed store drops it.
func (m *Manager) Record(entry *types.AuditEntry) {
	if entry == nil {
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		m.metrics.AuditDropped()
		return
	}

	select {
	case m.writeChannel <- writeOperation{entry: entry}:
	default:
		m.metrics.AuditDropped()
		m.log.Warn().Str("classroom", entry.ClassroomID).Str("action", entry.Action).Msg("audit queue full, entry dropped")
	}
}

// Flush waits until every entry queued before the call is written.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return interfaces.ErrAuditUnavailable
	}
	done := make(chan struct{})
	select {
	case m.writeChannel <- writeOperation{done: done}:
		m.mu.RUnlock()
	case <-ctx.Done():
		m.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClassroomHistory returns up to limit entries for a classroom, newest
// first. limit <= 0 means the default; larger values are capped.
func (m *Manager) ClassroomHistory(ctx context.Context, classroomID string, limit int) ([]*types.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, classroom_id, action, subject_id, subject_name, connection_id, detail, created_at
		FROM admission_audit
		WHERE classroom_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, classroomID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*types.AuditEntry, 0)
	for rows.Next() {
		var e types.AuditEntry
		if err := rows.Scan(
			&e.ID,
			&e.ClassroomID,
			&e.Action,
			&e.SubjectID,
			&e.SubjectName,
			&e.ConnectionID,
			&e.Detail,
			&e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}
	return entries, nil
}

// HealthCheck pings the database and reads the audit table.
func (m *Manager) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return interfaces.ErrAuditUnavailable
	}

	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var n int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM admission_audit").Scan(&n); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// Close drains the queue and closes the database. Safe to call twice.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	m.log.Info().Msg("audit store closed")
	return nil
}
