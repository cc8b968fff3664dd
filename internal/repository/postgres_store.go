package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vigil-backend/internal/domain"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// dbtx repository 需要的最小接口，*sql.Tx 和 *sql.DB 都满足
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore PostgreSQL 实现
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore 创建 PostgresStore
func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

var _ Store = (*PostgresStore)(nil)

// WithTx 在独立事务中执行 fn
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Warn("Failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	if err = fn(&pgTx{q: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	q dbtx
}

func (t *pgTx) Families() FamiliesRepository           { return &pgFamilies{q: t.q} }
func (t *pgTx) Devices() DevicesRepository             { return &pgDevices{q: t.q} }
func (t *pgTx) Settings() SettingsRepository           { return &pgSettings{q: t.q} }
func (t *pgTx) Alerts() AlertsRepository               { return &pgAlerts{q: t.q} }
func (t *pgTx) Motions() MotionsRepository             { return &pgMotions{q: t.q} }
func (t *pgTx) Subscriptions() SubscriptionsRepository { return &pgSubscriptions{q: t.q} }

// isUniqueViolation 23505 unique_violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

type pgFamilies struct {
	q dbtx
}

// EnsureFamily 不存在则创建
func (r *pgFamilies) EnsureFamily(ctx context.Context, familyID string) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO families (family_id) VALUES ($1) ON CONFLICT (family_id) DO NOTHING`,
		familyID,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure family: %w", err)
	}
	return nil
}

// ListMembers 家庭成员
func (r *pgFamilies) ListMembers(ctx context.Context, familyID string) ([]*domain.User, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT email, name, family_id FROM users WHERE family_id = $1 ORDER BY email`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.Email, &u.Name, &u.FamilyID); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		out = append(out, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return out, nil
}

// UpsertMember email 已存在时改绑家庭；u.Name 回填为最终保存的名字
func (r *pgFamilies) UpsertMember(ctx context.Context, u *domain.User) error {
	err := r.q.QueryRowContext(ctx,
		`INSERT INTO users (email, name, family_id) VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE
		 SET family_id = EXCLUDED.family_id,
		     name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name)
		 RETURNING name`,
		u.Email, u.Name, u.FamilyID,
	).Scan(&u.Name)
	if err != nil {
		return fmt.Errorf("failed to upsert member: %w", err)
	}
	return nil
}
