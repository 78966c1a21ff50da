package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bug-analyzer/backend/internal/ado"
	"github.com/bug-analyzer/backend/internal/embedding"
	"github.com/bug-analyzer/backend/internal/metrics"
	"github.com/bug-analyzer/backend/internal/models"
	storagemodels "github.com/bug-analyzer/backend/internal/storage/models"
	"github.com/bug-analyzer/backend/internal/storage/sqlite"
	"github.com/bug-analyzer/backend/internal/textproc"
	"github.com/bug-analyzer/backend/internal/vector/milvus"
	"github.com/bug-analyzer/backend/pkg/logger"
	"github.com/bug-analyzer/backend/pkg/utils"
)

const embedBatchSize = 25

// Progress is one status event emitted while an indexing run executes.
type Progress struct {
	Stage     string `json:"stage"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Skipped   int    `json:"skipped"`
	Message   string `json:"message,omitempty"`
	Done      bool   `json:"done"`
	Error     string `json:"error,omitempty"`
}

// Indexer embeds fetched bugs and writes them to the vector index, tracking
// what it indexed in SQLite so unchanged bugs are skipped on re-runs. One run
// at a time; a second Index call while one is active returns an error.
type Indexer struct {
	ado      *ado.Client
	embedder *embedding.Client
	vectors  *milvus.Client
	store    *sqlite.Client

	mu      sync.Mutex
	running bool

	subMu       sync.Mutex
	subscribers []chan Progress
}

func NewIndexer(adoClient *ado.Client, embedder *embedding.Client, vectors *milvus.Client, store *sqlite.Client) *Indexer {
	return &Indexer{
		ado:      adoClient,
		embedder: embedder,
		vectors:  vectors,
		store:    store,
	}
}

// Available reports whether everything an indexing run needs is wired up.
func (ix *Indexer) Available() bool {
	return ix != nil && ix.embedder != nil && ix.vectors != nil && ix.store != nil
}

// Subscribe registers a progress listener. Slow subscribers miss events
// rather than blocking the run.
func (ix *Indexer) Subscribe() chan Progress {
	ch := make(chan Progress, 32)
	ix.subMu.Lock()
	ix.subscribers = append(ix.subscribers, ch)
	ix.subMu.Unlock()
	return ch
}

func (ix *Indexer) Unsubscribe(ch chan Progress) {
	ix.subMu.Lock()
	defer ix.subMu.Unlock()
	for i, sub := range ix.subscribers {
		if sub == ch {
			ix.subscribers = append(ix.subscribers[:i], ix.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (ix *Indexer) publish(p Progress) {
	ix.subMu.Lock()
	defer ix.subMu.Unlock()
	for _, sub := range ix.subscribers {
		select {
		case sub <- p:
		default:
		}
	}
}

// Index fetches bugs matching the filters, embeds the changed ones and
// upserts them into the vector index. Returns the number of bugs indexed.
func (ix *Indexer) Index(ctx context.Context, filters ado.Filters) (int, error) {
	if !ix.Available() {
		return 0, fmt.Errorf("indexing requires embedding, vector and storage backends")
	}

	ix.mu.Lock()
	if ix.running {
		ix.mu.Unlock()
		return 0, fmt.Errorf("an indexing run is already in progress")
	}
	ix.running = true
	ix.mu.Unlock()

	defer func() {
		ix.mu.Lock()
		ix.running = false
		ix.mu.Unlock()
	}()

	start := time.Now()
	defer func() {
		metrics.AnalysisDuration.WithLabelValues("index_bugs").Observe(time.Since(start).Seconds())
	}()

	ix.publish(Progress{Stage: "fetching", Message: "Fetching bugs from Azure DevOps"})

	bugs, err := ix.ado.FetchBugs(ctx, filters)
	if err != nil {
		ix.publish(Progress{Stage: "fetching", Done: true, Error: err.Error()})
		return 0, fmt.Errorf("failed to fetch bugs for indexing: %w", err)
	}

	known, err := ix.store.IndexedHashes(filters.Project)
	if err != nil {
		return 0, fmt.Errorf("failed to load indexed hashes: %w", err)
	}

	type pending struct {
		bug  models.BugRecord
		hash string
		text string
	}

	var work []pending
	skipped := 0
	for _, bug := range bugs {
		text := textproc.Normalize(bug.CombinedText())
		if text == "" {
			skipped++
			continue
		}
		hash := utils.HashString(text)
		if known[bug.ID] == hash {
			skipped++
			continue
		}
		work = append(work, pending{bug: bug, hash: hash, text: text})
	}

	ix.publish(Progress{
		Stage:   "embedding",
		Total:   len(work),
		Skipped: skipped,
		Message: fmt.Sprintf("Embedding %d changed bugs (%d unchanged)", len(work), skipped),
	})

	indexed := 0
	for batchStart := 0; batchStart < len(work); batchStart += embedBatchSize {
		batchEnd := batchStart + embedBatchSize
		if batchEnd > len(work) {
			batchEnd = len(work)
		}
		batch := work[batchStart:batchEnd]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.text
		}

		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			ix.publish(Progress{Stage: "embedding", Processed: indexed, Total: len(work), Done: true, Error: err.Error()})
			return indexed, fmt.Errorf("failed to embed bug batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return indexed, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(vectors))
		}

		rows := make([]milvus.IndexedBug, len(batch))
		now := time.Now()
		for i, p := range batch {
			rows[i] = milvus.IndexedBug{
				BugID:     p.bug.ID,
				Embedding: vectors[i],
				Title:     p.bug.Title,
				AreaPath:  p.bug.AreaPath,
				State:     p.bug.State,
				Project:   p.bug.Project,
				IndexedAt: now,
			}
		}

		if err := ix.vectors.Upsert(ctx, rows); err != nil {
			return indexed, fmt.Errorf("failed to upsert embeddings: %w", err)
		}

		for i, p := range batch {
			if err := ix.store.UpsertIndexedBug(storagemodels.IndexedBug{
				BugID:       p.bug.ID,
				Project:     p.bug.Project,
				ContentHash: p.hash,
				IndexedAt:   rows[i].IndexedAt,
			}); err != nil {
				logger.Warn("Failed to record indexed bug", zap.Int("bug_id", p.bug.ID), zap.Error(err))
			}
			metrics.BugsIndexed.Inc()
		}

		indexed += len(batch)
		ix.publish(Progress{Stage: "indexing", Processed: indexed, Total: len(work), Skipped: skipped})
	}

	ix.publish(Progress{
		Stage:     "complete",
		Processed: indexed,
		Total:     len(work),
		Skipped:   skipped,
		Done:      true,
		Message:   fmt.Sprintf("Indexed %d bugs", indexed),
	})

	logger.Info("Indexing run complete",
		zap.String("project", filters.Project),
		zap.Int("indexed", indexed),
		zap.Int("skipped", skipped),
		zap.Duration("took", time.Since(start)),
	)

	return indexed, nil
}
