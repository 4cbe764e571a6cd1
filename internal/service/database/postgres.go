package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"
	"github.com/lib/pq" // PostgreSQL 드라이버 등록 겸 에러 코드 판별
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/kapu/mkw-stats-bot-go/internal/constants"
	apperrors "github.com/kapu/mkw-stats-bot-go/pkg/errors"
)

// PostgresService: PostgreSQL 데이터베이스 연결 및 GORM 인스턴스를 관리하는 서비스
type PostgresService struct {
	db     *sql.DB
	gormDB *gorm.DB
	logger *slog.Logger
}

// PostgresConfig: PostgreSQL 접속 정보를 담는 설정 구조체
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	MaxConns int
}

// NewPostgresService: 주어진 설정을 사용하여 PostgreSQL 연결을 수립하고 서비스를 초기화한다.
// 연결 풀 설정 및 초기 헬스 체크(Ping)를 수행하며, GORM 인스턴스도 함께 초기화한다.
func NewPostgresService(cfg PostgresConfig, logger *slog.Logger) (*PostgresService, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = constants.DatabaseConfig.MaxOpenConns
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(constants.DatabaseConfig.MaxIdleConns)
	db.SetConnMaxLifetime(constants.DatabaseConfig.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), constants.RequestTimeout.DatabasePing)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.Info("PostgreSQL connected",
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.String("database", cfg.Database),
	)

	// Initialize GORM with existing connection
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize GORM: %w", err)
	}

	return &PostgresService{
		db:     db,
		gormDB: gormDB,
		logger: logger,
	}, nil
}

// GetDB: 기본 sql.DB 인스턴스를 반환한다. (GORM이 아닌 raw SQL 사용 시 활용)
func (ps *PostgresService) GetDB() *sql.DB {
	return ps.db
}

// GetGormDB: GORM DB 인스턴스를 반환한다. (모델 마이그레이션 및 단순 CRUD 시 활용)
func (ps *PostgresService) GetGormDB() *gorm.DB {
	return ps.gormDB
}

// Migrate: 주어진 모델들의 스키마를 생성/갱신한다.
func (ps *PostgresService) Migrate(models ...any) error {
	if err := ps.gormDB.AutoMigrate(models...); err != nil {
		return apperrors.NewFatalError("schema migration", err)
	}
	ps.logger.Info("Database schema migrated", slog.Int("models", len(models)))
	return nil
}

// Close: 데이터베이스 연결을 안전하게 종료한다.
func (ps *PostgresService) Close() error {
	if ps.db != nil {
		if err := ps.db.Close(); err != nil {
			return fmt.Errorf("failed to close postgres: %w", err)
		}
	}
	return nil
}

// Ping: 데이터베이스 연결 상태를 확인한다. (헬스 체크용)
func (ps *PostgresService) Ping(ctx context.Context) error {
	if err := ps.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

// IsSerializationFailure: PostgreSQL 직렬화 실패(40001)/교착(40P01) 여부를 판별한다.
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

// RunSerializable: SERIALIZABLE 트랜잭션으로 fn을 실행한다.
// 직렬화 실패 시 지수 백오프로 최대 3회 시도한다(재시도 2회, RetryConfig.MaxAttempts). fn은 재시도 가능하도록
// 멱등해야 한다 (confirm_session은 상태 검사로 멱등성이 보장된다).
func (ps *PostgresService) RunSerializable(ctx context.Context, fn func(tx *sql.Tx) error) error {
	attempt := func() error {
		tx, err := ps.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return backoff.Permanent(apperrors.NewStorageError("begin_tx", true, err))
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if IsSerializationFailure(err) {
				return apperrors.NewStorageError("tx", true, err)
			}
			return backoff.Permanent(err)
		}

		if err := tx.Commit(); err != nil {
			if IsSerializationFailure(err) {
				return apperrors.NewStorageError("commit", true, err)
			}
			return backoff.Permanent(apperrors.NewStorageError("commit", false, err))
		}
		return nil
	}

	policy := backoff.WithContext(newRetryPolicy(), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}
		return err
	}
	return nil
}

func newRetryPolicy() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = constants.RetryConfig.BaseDelay
	policy.MaxInterval = constants.RetryConfig.MaxDelay
	return backoff.WithMaxRetries(policy, uint64(constants.RetryConfig.MaxAttempts-1))
}
