package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Sink is where finished rounds end up.
type Sink interface {
	SaveRound(ctx context.Context, r Round) error
}

type Store struct {
	db  *gorm.DB
	sql *sql.DB
}

// Open connects to Postgres and migrates the archive tables.
func Open(dsn string) (*Store, error) {
	config, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	// poolers like PgBouncer reject server-side prepared statements
	config.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	sqlDB := stdlib.OpenDB(*config)
	sqlDB.SetConnMaxIdleTime(4 * time.Minute)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	if err := db.AutoMigrate(&Round{}, &RoundBet{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return &Store{db: db, sql: sqlDB}, nil
}

func (s *Store) SaveRound(ctx context.Context, r Round) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&r).Error
	})
}

// Recent returns the newest rounds of a table, bets included.
func (s *Store) Recent(ctx context.Context, tableCode string, limit int) ([]Round, error) {
	var rounds []Round
	err := s.db.WithContext(ctx).
		Preload("Bets").
		Where("table_code = ?", tableCode).
		Order("crashed_at DESC").
		Limit(limit).
		Find(&rounds).Error
	if err != nil {
		return nil, fmt.Errorf("recent rounds: %w", err)
	}
	return rounds, nil
}

func (s *Store) Close() error { return s.sql.Close() }
