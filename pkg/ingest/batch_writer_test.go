package ingest

import (
	"context"
	"database/sql"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// Without a DB the writer runs callbacks directly, which keeps these tests
// focused on the batching behavior itself.

func TestBatchWriterFlushOnSize(t *testing.T) {
	bw := NewBatchWriter(nil, 3, 0)
	var ran int32
	for i := 0; i < 3; i++ {
		err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	// Size threshold reached; the batch is handed off asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&ran) != 3 {
		if time.Now().After(deadline) {
			t.Fatalf("batch not committed, ran=%d", atomic.LoadInt32(&ran))
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := bw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestBatchWriterFlushOnInterval(t *testing.T) {
	bw := NewBatchWriter(nil, 100, 20*time.Millisecond)
	var ran int32
	if err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
		atomic.AddInt32(&ran, 1)
		return nil
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&ran) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("interval flush never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestBatchWriterCloseFlushesRemainder(t *testing.T) {
	bw := NewBatchWriter(nil, 100, 0)
	var ran int32
	for i := 0; i < 5; i++ {
		if err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
			atomic.AddInt32(&ran, 1)
			return nil
		}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := atomic.LoadInt32(&ran); got != 5 {
		t.Errorf("expected 5 callbacks after close, got %d", got)
	}

	if err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error { return nil }); err != ErrBatchWriterClosed {
		t.Errorf("expected ErrBatchWriterClosed, got %v", err)
	}
	if err := bw.Close(); err != ErrBatchWriterClosed {
		t.Errorf("expected ErrBatchWriterClosed on double close, got %v", err)
	}
}

func TestBatchWriterReportsAsyncError(t *testing.T) {
	bw := NewBatchWriter(nil, 1, 0)
	wantErr := errors.New("write exploded")

	var seen atomic.Value
	bw.OnError = func(e error) { seen.Store(e) }

	if err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error { return wantErr }); err != nil {
		t.Fatalf("submit: %v", err)
	}

	err := bw.Close()
	if err == nil {
		t.Fatal("expected Close to surface the async error")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("close error = %v, want %v", err, wantErr)
	}
	if got, _ := seen.Load().(error); !errors.Is(got, wantErr) {
		t.Errorf("OnError saw %v, want %v", got, wantErr)
	}
}
