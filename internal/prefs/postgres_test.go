package prefs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ---------------------------------------------------------------------------
// Fake pgx DB used by the store tests.
// ---------------------------------------------------------------------------

// mockRow implements pgx.Row for testing.
type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

// mockDB implements the DB interface for testing.
type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

// ---------------------------------------------------------------------------

func TestPostgresStore_Migrate(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
				if !strings.Contains(sql, "CREATE TABLE") {
					t.Errorf("Migrate SQL should contain CREATE TABLE, got: %s", sql)
				}
				return pgconn.CommandTag{}, nil
			},
		}
		if err := NewPostgresStore(db, "alice").Migrate(context.Background()); err != nil {
			t.Fatalf("Migrate() unexpected error: %v", err)
		}
	})

	t.Run("error", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			execFunc: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
				return pgconn.CommandTag{}, errors.New("connection refused")
			},
		}
		err := NewPostgresStore(db, "alice").Migrate(context.Background())
		if err == nil {
			t.Fatal("Migrate() expected error, got nil")
		}
		if !strings.Contains(err.Error(), "prefs: migrate:") {
			t.Errorf("error = %q, want prefix 'prefs: migrate:'", err.Error())
		}
	})
}

func TestPostgresStore_Get(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
				if len(args) != 2 || args[0] != "alice" || args[1] != KeyVoiceMode {
					t.Errorf("unexpected args: %v", args)
				}
				return &mockRow{scanFunc: func(dest ...any) error {
					*dest[0].(*string) = "secondary"
					return nil
				}}
			},
		}
		s := NewPostgresStore(db, "alice")
		v, err := s.Get(context.Background(), KeyVoiceMode)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v != "secondary" {
			t.Errorf("Get = %q, want %q", v, "secondary")
		}
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		s := NewPostgresStore(&mockDB{}, "alice")
		if _, err := s.Get(context.Background(), "x"); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
		b, err := Bool(context.Background(), s, KeyHasUsedVoiceInput, false)
		if err != nil || b {
			t.Errorf("Bool(missing) = %v, %v", b, err)
		}
	})

	t.Run("query error", func(t *testing.T) {
		t.Parallel()
		db := &mockDB{
			queryRowFunc: func(context.Context, string, ...any) pgx.Row {
				return &mockRow{scanFunc: func(...any) error { return errors.New("boom") }}
			},
		}
		_, err := NewPostgresStore(db, "alice").Get(context.Background(), "x")
		if err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want wrapped query error", err)
		}
	})
}

func TestPostgresStore_Set(t *testing.T) {
	t.Parallel()

	var gotSQL string
	var gotArgs []any
	db := &mockDB{
		execFunc: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			gotSQL, gotArgs = sql, args
			return pgconn.CommandTag{}, nil
		},
	}
	s := NewPostgresStore(db, "bob")
	if err := SetBool(context.Background(), s, KeyHasUsedVoiceInput, true); err != nil {
		t.Fatalf("SetBool: %v", err)
	}
	if !strings.Contains(gotSQL, "ON CONFLICT") {
		t.Errorf("Set should upsert, got: %s", gotSQL)
	}
	if len(gotArgs) != 3 || gotArgs[0] != "bob" || gotArgs[1] != KeyHasUsedVoiceInput || gotArgs[2] != "true" {
		t.Errorf("unexpected args: %v", gotArgs)
	}
}
