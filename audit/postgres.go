package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink appends Events to a single audit_events table via pgx. It
// never reads the table back; audit is write-only from the enclave's
// point of view.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// Config holds the connection parameters for a PostgresSink, mirroring
// the teacher's postgres.Config shape.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewPostgresSink opens a connection pool and verifies it with a ping.
func NewPostgresSink(ctx context.Context, cfg Config) (*PostgresSink, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("audit: create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit: ping database: %w", err)
	}

	return &PostgresSink{pool: pool}, nil
}

func (s *PostgresSink) Record(ctx context.Context, e Event) error {
	const insert = `
		INSERT INTO audit_events (kind, session_id, seq, detail, at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.pool.Exec(ctx, insert, string(e.Kind), e.SessionID, e.Seq, e.Detail, e.At); err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresSink) Close() {
	s.pool.Close()
}

var _ Sink = (*PostgresSink)(nil)
