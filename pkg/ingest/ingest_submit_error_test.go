package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bindbook/bindbook/pkg/index"
	_ "github.com/mattn/go-sqlite3"
)

// failingPool always returns an error on Submit to simulate producer error.
type failingPool struct{}

func (f *failingPool) Start(ctx context.Context) {}
func (f *failingPool) Submit(job Job) error      { return errors.New("submit failed") }
func (f *failingPool) SubmitCtx(ctx context.Context, job Job) error {
	return errors.New("submit failed")
}
func (f *failingPool) Close() {}

func TestIngestHandlesSubmitError(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	docID, err := index.CreateOrGetDocument(conn, "rescript", "SubmitError", "t.md", "x")
	if err != nil {
		t.Fatal(err)
	}

	recipes := makeRecipes(10)

	ingester := NewIngester(conn)
	// Inject failing pool so first SubmitCtx() returns an error
	ingester.PoolFactory = func(workers, queue int) WorkerPoolInterface { return &failingPool{} }

	// Run ingest and expect it to return quickly with the submit error
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = ingester.Ingest(ctx, docID, recipes)
	if err == nil {
		t.Fatalf("expected submit error, got nil")
	}
}
