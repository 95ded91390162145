package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIsBusy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sqlite busy", errors.New("sqlite: SQLITE_BUSY"), true},
		{"database locked", errors.New("database is locked"), true},
		{"unrelated", errors.New("no such table: flushes"), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := isBusy(c.err); got != c.want {
				t.Errorf("isBusy(%v) = %v, want %v", c.err, got, c.want)
			}
		})
	}
}

func TestRetryOnBusy_success(t *testing.T) {
	attempts := 0
	err := retryOnBusy(context.Background(), 5, time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retryOnBusy() err = %v, want nil", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryOnBusy_nonBusyReturnsImmediately(t *testing.T) {
	attempts := 0
	wantErr := errors.New("constraint failed")
	err := retryOnBusy(context.Background(), 5, time.Millisecond, func() error {
		attempts++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("retryOnBusy() err = %v, want %v", err, wantErr)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on non-busy error)", attempts)
	}
}

func TestRetryOnBusy_contextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retryOnBusy(ctx, 5, 50*time.Millisecond, func() error {
		return errors.New("database is locked")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("retryOnBusy() err = %v, want context.Canceled", err)
	}
}

func TestRetryOnBusy_exhaustsAttempts(t *testing.T) {
	attempts := 0
	err := retryOnBusy(context.Background(), 3, time.Millisecond, func() error {
		attempts++
		return errors.New("database is locked")
	})
	if !errors.Is(err, errBusy) {
		t.Fatalf("retryOnBusy() err = %v, want errBusy", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}
