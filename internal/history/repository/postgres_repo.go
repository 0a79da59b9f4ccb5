package repository

import (
	"context"
	"database/sql"
	"time"
)

// ChangeRecord é uma linha do histórico de mudanças de campo
type ChangeRecord struct {
	Idx      int
	Field    string
	HomeTeam string
	AwayTeam string
	Value    string
	Ts       time.Time
}

// PostgresRepo implementa a persistência do histórico num banco Postgres
// DB: conexão com o banco de dados
type PostgresRepo struct {
	DB *sql.DB
}

// NewPostgresRepo retorna uma instância de repositório Postgres
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// EnsureSchema cria as tabelas de histórico se ainda não existirem
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	const q = `
		CREATE TABLE IF NOT EXISTS fixture_changes (
		  id         BIGSERIAL PRIMARY KEY,
		  idx        INTEGER     NOT NULL,
		  field      TEXT        NOT NULL,
		  home_team  TEXT        NOT NULL DEFAULT '',
		  away_team  TEXT        NOT NULL DEFAULT '',
		  value      TEXT        NOT NULL DEFAULT '',
		  ts         TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS fixture_changes_teams_ts ON fixture_changes (home_team, away_team, ts);
		CREATE TABLE IF NOT EXISTS fixture_resyncs (
		  id            BIGSERIAL PRIMARY KEY,
		  fixture_count INTEGER     NOT NULL,
		  ts            TIMESTAMPTZ NOT NULL
		);
	`
	_, err := r.DB.ExecContext(ctx, q)
	return err
}

// InsertChange grava uma mudança de campo no histórico
func (r *PostgresRepo) InsertChange(ctx context.Context, c ChangeRecord) error {
	const q = `
		INSERT INTO fixture_changes
		  (idx, field, home_team, away_team, value, ts)
		VALUES
		  ($1,$2,$3,$4,$5,$6)
	`
	_, err := r.DB.ExecContext(ctx, q, c.Idx, c.Field, c.HomeTeam, c.AwayTeam, c.Value, c.Ts)
	return err
}

// InsertResync registra uma ressincronização completa
func (r *PostgresRepo) InsertResync(ctx context.Context, fixtureCount int, ts time.Time) error {
	const q = `INSERT INTO fixture_resyncs (fixture_count, ts) VALUES ($1,$2)`
	_, err := r.DB.ExecContext(ctx, q, fixtureCount, ts)
	return err
}
