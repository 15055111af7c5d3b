package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/comics-billing/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// PoolConfig - параметры пула соединений.
type PoolConfig struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// DBClient держит один пул pgx и sqlx-обертку над ним. Хранилище подписок
// работает через sqlx, каталог пользователей - напрямую через pgxpool.
type DBClient struct {
	pool *pgxpool.Pool
	db   *sqlx.DB
	log  *logger.Logger
}

// NewDBClient создает пул соединений и проверяет подключение.
func NewDBClient(ctx context.Context, cfg PoolConfig, log *logger.Logger) (*DBClient, error) {
	log.Infow("Connecting to PostgreSQL")

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db: unable to parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("db: unable to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		log.Errorw("Failed to ping database", "error", err)
		return nil, fmt.Errorf("db: unable to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	log.Infow("Successfully connected to PostgreSQL", "max_conns", poolConfig.MaxConns)
	return &DBClient{
		pool: pool,
		db:   sqlx.NewDb(sqlDB, "pgx"),
		log:  log,
	}, nil
}

// DB возвращает sqlx-обертку.
func (dc *DBClient) DB() *sqlx.DB {
	return dc.db
}

// Pool возвращает пул pgx.
func (dc *DBClient) Pool() *pgxpool.Pool {
	return dc.pool
}

// Close закрывает соединения с базой данных.
func (dc *DBClient) Close() error {
	err := dc.db.Close()
	dc.pool.Close()
	if err != nil {
		dc.log.Errorw("Failed to close database connection", "error", err)
		return fmt.Errorf("db: failed to close database connection: %w", err)
	}
	return nil
}
