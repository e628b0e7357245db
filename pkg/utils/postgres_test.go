package utils

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestWithTx_CommitOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE screening_calls").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE screening_calls SET status = 'rejected'")
		return err
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic to propagate")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("expectations: %v", err)
		}
	}()
	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error {
		panic("kaboom")
	})
}

func TestHealthCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectPing()
	if err := HealthCheck(context.Background(), db, time.Second); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	mock.ExpectPing().WillReturnError(errors.New("down"))
	if err := HealthCheck(context.Background(), db, time.Second); !errors.Is(err, ErrDatabaseUnavailable) {
		t.Fatalf("expected ErrDatabaseUnavailable, got %v", err)
	}
}

func TestWithTx_CommitFailureIsWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err = WithTx(context.Background(), db, nil, func(ctx context.Context, tx *sql.Tx) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "commit tx") {
		t.Fatalf("expected wrapped commit error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPoolConfig_Defaults(t *testing.T) {
	got := PoolConfig{}.withDefaults()
	if got.MaxOpenConns != 20 || got.MaxIdleConns != 10 || got.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	got = PoolConfig{MaxOpenConns: 4, MaxIdleConns: 9}.withDefaults()
	if got.MaxIdleConns != 2 {
		t.Fatalf("idle conns must not exceed open conns: %+v", got)
	}
	got = PoolConfig{MaxOpenConns: 1}.withDefaults()
	if got.MaxIdleConns != 1 {
		t.Fatalf("expected one idle conn, got %+v", got)
	}
}
