package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	logx "stretchbot/pkg/logx"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS stretchbot_kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS stretchbot_audit (
		id         BIGSERIAL PRIMARY KEY,
		at         TIMESTAMPTZ NOT NULL,
		actor_id   BIGINT NOT NULL DEFAULT 0,
		actor_name TEXT,
		chat_id    BIGINT NOT NULL DEFAULT 0,
		action     TEXT NOT NULL,
		target     TEXT,
		ok         BOOLEAN NOT NULL DEFAULT TRUE,
		err        TEXT,
		meta       TEXT
	)`,
}

type pgStore struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

func openPostgres(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return &pgStore{pool: pool, log: log}, nil
}

func (s *pgStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *pgStore) GetValue(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.pool == nil {
		return "", false, ErrDisabled
	}
	var v string
	err := s.pool.QueryRow(ctx, `SELECT value FROM stretchbot_kv WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *pgStore) SetValue(ctx context.Context, key, value string) error {
	if s == nil || s.pool == nil {
		return ErrDisabled
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO stretchbot_kv(key, value, updated_at) VALUES($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	return err
}

func (s *pgStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.pool == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO stretchbot_audit(at, actor_id, actor_name, chat_id, action, target, ok, err, meta)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.At, e.ActorID, nullStr(e.ActorName), e.ChatID, e.Action, nullStr(e.Target), e.OK,
		nullStr(e.Error), nullStr(e.Meta),
	)
	return err
}
