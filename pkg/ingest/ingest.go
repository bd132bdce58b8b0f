package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bindbook/bindbook/pkg/cookbook"
	"github.com/bindbook/bindbook/pkg/index"
)

// WorkerPoolInterface abstracts the worker pool so tests can inject failing
// implementations.
type WorkerPoolInterface interface {
	Start(ctx context.Context)
	Submit(Job) error
	// SubmitCtx attempts to enqueue a job but returns promptly if ctx is canceled.
	SubmitCtx(ctx context.Context, job Job) error
	Close()
}

// Ingester analyzes recipes and writes them to the index in batched
// transactions, checkpointing progress per recipe so an interrupted run
// resumes where it left off.
type Ingester struct {
	DB        *sql.DB
	BatchSize int
	// Logger is used for informational messages (e.g. resume status). nil means no logging.
	Logger *log.Logger
	// OnProgress is called periodically with the number of processed recipes and the total.
	OnProgress func(current, total int)

	Workers int

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewIngester creates a new Ingester with default batching and concurrency.
func NewIngester(conn *sql.DB) *Ingester {
	return &Ingester{
		DB:        conn,
		BatchSize: 50,
		Workers:   4,
	}
}

// analyzedRecipe is the result of the CPU-bound per-recipe work, ready for
// a DB write.
type analyzedRecipe struct {
	Index int
	Row   index.RecipeRow
	Error error
}

// Ingest analyzes and persists the recipes of one document. It resumes from
// the document's checkpoint and returns the number of recipes indexed.
func (ig *Ingester) Ingest(ctx context.Context, documentID int64, recipes []cookbook.Recipe) (int, error) {
	lastProcessed, err := index.GetDocumentProgress(ig.DB, documentID)
	if err != nil {
		if ig.Logger != nil {
			ig.Logger.Printf("Warning: failed to retrieve progress: %v", err)
		}
		lastProcessed = -1
	}
	if lastProcessed >= 0 && ig.Logger != nil {
		ig.Logger.Printf("Resuming from recipe index %d (skipping %d recipes)", lastProcessed+1, lastProcessed+1)
	}

	total := len(recipes)
	startIdx := lastProcessed + 1
	if startIdx >= total {
		return 0, nil // nothing to do
	}

	var wp WorkerPoolInterface
	if ig.PoolFactory != nil {
		wp = ig.PoolFactory(ig.Workers, ig.Workers*2)
	} else {
		wp = NewWorkerPool(ig.Workers, ig.Workers*2)
	}
	resultCh := make(chan analyzedRecipe, ig.Workers*2)
	doneCh := make(chan error, 1)

	var indexed int64

	bw := NewBatchWriter(ig.DB, ig.BatchSize, 100*time.Millisecond)
	var batchErr error
	var batchErrMu sync.Mutex
	bw.OnError = func(e error) {
		batchErrMu.Lock()
		if batchErr == nil {
			batchErr = e
		}
		batchErrMu.Unlock()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wp.Start(ctx)

	// Consumer: reorder results by index and submit contiguous runs to the
	// batch writer, checkpointing after each recipe.
	go func() {
		defer close(doneCh)
		buffer := make(map[int]analyzedRecipe)
		nextIdx := startIdx

		writeContiguous := func() error {
			for {
				item, ok := buffer[nextIdx]
				if !ok {
					return nil
				}
				delete(buffer, nextIdx)

				current := item
				err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
					if _, err := index.UpsertRecipe(tx, current.Row); err != nil {
						return fmt.Errorf("persist recipe %q: %w", current.Row.Title, err)
					}
					if err := index.UpdateDocumentProgress(tx, documentID, current.Index); err != nil {
						return fmt.Errorf("save progress: %w", err)
					}
					atomic.AddInt64(&indexed, 1)
					return nil
				})
				if err != nil {
					return err
				}

				if ig.OnProgress != nil && (nextIdx+1)%ig.BatchSize == 0 {
					ig.OnProgress(nextIdx+1, total)
				}
				nextIdx++
			}
		}

		for {
			// Canceled contexts win over buffered results.
			select {
			case <-ctx.Done():
				doneCh <- ctx.Err()
				return
			default:
			}

			res, ok := <-resultCh
			if !ok {
				if err := writeContiguous(); err != nil {
					cancel()
					doneCh <- err
					return
				}
				if ig.OnProgress != nil {
					ig.OnProgress(total, total)
				}
				doneCh <- nil
				return
			}
			if res.Error != nil {
				cancel()
				doneCh <- res.Error
				return
			}
			buffer[res.Index] = res
			if err := writeContiguous(); err != nil {
				cancel()
				doneCh <- err
				return
			}
		}
	}()

	// Producer: one analysis job per recipe.
	submitErr := func() error {
		for i := startIdx; i < total; i++ {
			idx := i
			recipe := recipes[i]

			job := func(ctx context.Context) error {
				res := ig.analyzeRecipe(idx, documentID, recipe)
				select {
				case resultCh <- res:
				case <-ctx.Done():
				}
				return nil
			}

			if err := wp.SubmitCtx(ctx, job); err != nil {
				if err == ctx.Err() || err == ErrPoolClosed {
					return nil
				}
				return err
			}
		}
		return nil
	}()

	// Close waits for in-flight jobs, so no worker can touch resultCh once
	// it returns; only then is the channel closed for the consumer.
	wp.Close()
	close(resultCh)

	consumerErr := <-doneCh
	if submitErr != nil {
		cancel()
		if consumerErr == nil {
			consumerErr = submitErr
		}
	}

	if err := bw.Close(); err != nil && err != ErrBatchWriterClosed && consumerErr == nil {
		consumerErr = err
	}

	batchErrMu.Lock()
	if batchErr != nil && consumerErr == nil {
		consumerErr = batchErr
	}
	batchErrMu.Unlock()

	return int(atomic.LoadInt64(&indexed)), consumerErr
}

// analyzeRecipe performs the CPU-bound per-recipe work: pick the primary
// snippet, classify its declaration and encode caveats.
func (ig *Ingester) analyzeRecipe(idx int, documentID int64, r cookbook.Recipe) analyzedRecipe {
	row := index.RecipeRow{
		DocumentID:   documentID,
		Category:     r.Category.String(),
		Position:     idx,
		Title:        r.Title,
		Anchor:       r.Anchor,
		ReferenceURL: r.Reference,
		Line:         r.Line,
	}

	if snip, ok := r.PrimarySnippet(); ok {
		row.Snippet = snip.Body
		row.SnippetLang = snip.Lang
		if decl, ok := cookbook.AnalyzeSnippet(snip.Body); ok {
			row.InstancePosition = decl.Instance.String()
			row.ReturnWrapping = decl.Wrapping.String()
			row.Mutating = decl.Mutating() || r.HasCaveat("in place")
		}
	}

	if len(r.Caveats) > 0 {
		encoded, err := json.Marshal(r.Caveats)
		if err != nil {
			return analyzedRecipe{Index: idx, Error: fmt.Errorf("encode caveats for %q: %w", r.Title, err)}
		}
		row.CaveatsJSON = string(encoded)
	}

	return analyzedRecipe{Index: idx, Row: row}
}
