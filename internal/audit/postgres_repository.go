package audit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores audit logs in PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates an audit repository over pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new audit log entry. The ID and CreatedAt are generated if empty.
func (r *PostgresRepository) Create(ctx context.Context, log *AuditLog) error {
	prepare(log)

	details, err := marshalDetails(log.Details)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, action, outcome, username, remote_addr, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`,
		log.ID, log.Action, log.Outcome,
		nullableString(log.Username), nullableString(log.RemoteAddr),
		details, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}

// List returns audit logs matching the filter, most recent first.
func (r *PostgresRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter = normalise(filter)
	where, args := buildWhere(filter, postgresPlaceholder)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit logs: %w", err)
	}

	n := len(args)
	query := "SELECT id, action, outcome, COALESCE(username, ''), COALESCE(remote_addr, ''), COALESCE(details::text, ''), created_at" +
		" FROM audit_logs " + where +
		" ORDER BY created_at DESC, id DESC LIMIT " + postgresPlaceholder(n+1) + " OFFSET " + postgresPlaceholder(n+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit logs: %w", err)
	}

	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (AuditLog, error) {
		var log AuditLog
		var details string
		if err := row.Scan(&log.ID, &log.Action, &log.Outcome,
			&log.Username, &log.RemoteAddr, &details, &log.CreatedAt); err != nil {
			return AuditLog{}, err
		}
		log.Details = unmarshalDetails(details)
		return log, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning audit logs: %w", err)
	}
	if logs == nil {
		logs = []AuditLog{}
	}

	return &ListResult{
		Logs:   logs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

func postgresPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}
