package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/identity"
	"newsdesk/internal/store"
	"newsdesk/internal/vectorstore"

	"github.com/gofrs/flock"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
	empty bool
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if f.empty && i == len(texts)-1 {
			continue
		}
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

type fixture struct {
	dir      string
	store    *store.Store
	index    *vectorstore.SQLIndex
	embedder *fakeEmbedder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	s, err := store.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return &fixture{
		dir:      dir,
		store:    s,
		index:    vectorstore.NewSQLiteIndex(s.DB()),
		embedder: &fakeEmbedder{},
	}
}

func (f *fixture) ingester(opts Options) *Ingester {
	return New(f.store, f.index, f.embedder, f.dir, opts)
}

func (f *fixture) vectorCount(t *testing.T, name string) int {
	t.Helper()
	coll, err := f.index.GetOrCreateCollection(context.Background(), name)
	if err != nil {
		t.Fatalf("GetOrCreateCollection failed: %v", err)
	}
	n, err := coll.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	return n
}

func sampleArticles(n int) []core.Article {
	articles := make([]core.Article, n)
	for i := range articles {
		articles[i] = core.Article{
			Source:        core.SourceMBC,
			SequenceOrder: i + 1,
			Title:         "제목",
			SourceURL:     "https://imnews.imbc.com/" + string(rune('a'+i)),
			ScriptText:    "본문 " + string(rune('a'+i)),
		}
	}
	return articles
}

const (
	testDate       = "2025-03-07"
	testCollection = "broadcasts_2025_03_07"
)

func TestIngest_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ing := f.ingester(Options{})

	report, err := ing.Ingest(ctx, sampleArticles(3), testCollection, testDate)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if report.Created != 3 || report.Updated != 0 || report.Vectors != 3 {
		t.Errorf("Unexpected first report %+v", report)
	}

	report, err = ing.Ingest(ctx, sampleArticles(3), testCollection, testDate)
	if err != nil {
		t.Fatalf("Second ingest failed: %v", err)
	}
	if report.Created != 0 || report.Updated != 3 {
		t.Errorf("Unexpected second report %+v", report)
	}

	stored, err := f.store.Articles().ListByDate(ctx, testDate)
	if err != nil {
		t.Fatalf("ListByDate failed: %v", err)
	}
	if len(stored) != 3 {
		t.Errorf("Expected 3 stored articles, got %d", len(stored))
	}
	if n := f.vectorCount(t, testCollection); n != 3 {
		t.Errorf("Expected 3 vectors, got %d", n)
	}

	want := identity.Of(stored[0], testDate)
	if stored[0].Identity != want {
		t.Errorf("Expected identity %s, got %s", want, stored[0].Identity)
	}
	if stored[0].CollectionDate != testDate {
		t.Errorf("Expected collection date set, got %q", stored[0].CollectionDate)
	}
}

func TestIngest_ChangedTitleReplacesVector(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ing := f.ingester(Options{})

	if _, err := ing.Ingest(ctx, sampleArticles(3), testCollection, testDate); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	second := sampleArticles(3)
	second[1].Title = "정정된 제목"
	report, err := ing.Ingest(ctx, second, testCollection, testDate)
	if err != nil {
		t.Fatalf("Second ingest failed: %v", err)
	}
	if report.Pruned != 1 {
		t.Errorf("Expected 1 pruned vector, got %d", report.Pruned)
	}

	stored, err := f.store.Articles().ListByDate(ctx, testDate)
	if err != nil {
		t.Fatalf("ListByDate failed: %v", err)
	}
	if n := f.vectorCount(t, testCollection); n != len(stored) {
		t.Errorf("Expected %d vectors (one per article), got %d", len(stored), n)
	}

	coll, _ := f.index.GetOrCreateCollection(ctx, testCollection)
	ids, err := coll.IDs(ctx)
	if err != nil {
		t.Fatalf("IDs failed: %v", err)
	}
	live := make(map[string]bool, len(ids))
	for _, id := range ids {
		live[id] = true
	}
	for _, a := range stored {
		if !live[a.Identity] {
			t.Errorf("Expected vector for %s #%d (%s)", a.Source, a.SequenceOrder, a.Identity)
		}
	}
}

func TestIngest_Batches(t *testing.T) {
	f := newFixture(t)
	ing := f.ingester(Options{BatchSize: 2})

	report, err := ing.Ingest(context.Background(), sampleArticles(5), testCollection, testDate)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if report.Batches != 3 || f.embedder.calls != 3 {
		t.Errorf("Expected 3 batches and 3 embed calls, got %d and %d", report.Batches, f.embedder.calls)
	}
	if report.Vectors != 5 {
		t.Errorf("Expected 5 vectors, got %d", report.Vectors)
	}
}

func TestIngest_EmbeddingFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.embedder.err = errors.New("quota exceeded")
	ctx := context.Background()

	_, err := f.ingester(Options{}).Ingest(ctx, sampleArticles(3), testCollection, testDate)
	if !errors.Is(err, core.ErrProviderFailure) {
		t.Fatalf("Expected ErrProviderFailure, got %v", err)
	}

	stored, _ := f.store.Articles().ListByDate(ctx, testDate)
	if len(stored) != 0 {
		t.Errorf("Expected no articles written, got %d", len(stored))
	}
	if n := f.vectorCount(t, testCollection); n != 0 {
		t.Errorf("Expected no vectors written, got %d", n)
	}
}

func TestIngest_EmptyEmbeddingIsProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.embedder.empty = true

	_, err := f.ingester(Options{}).Ingest(context.Background(), sampleArticles(2), testCollection, testDate)
	if !errors.Is(err, core.ErrProviderFailure) {
		t.Fatalf("Expected ErrProviderFailure, got %v", err)
	}
	if n := f.vectorCount(t, testCollection); n != 0 {
		t.Errorf("Expected no vectors written, got %d", n)
	}
}

func TestIngest_LockedDate(t *testing.T) {
	f := newFixture(t)
	lockDir := filepath.Join(f.dir, "locks")
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		t.Fatal(err)
	}

	held := flock.New(LockPath(lockDir, testDate))
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("Failed to take lock: %v", err)
	}
	defer held.Unlock()

	ing := f.ingester(Options{LockTimeout: 200 * time.Millisecond})
	_, err := ing.Ingest(context.Background(), sampleArticles(1), testCollection, testDate)
	if !errors.Is(err, ErrIngestLocked) {
		t.Fatalf("Expected ErrIngestLocked, got %v", err)
	}
	if f.embedder.calls != 0 {
		t.Error("Expected no embedding while locked")
	}

	// A different date is not blocked.
	if _, err := ing.Ingest(context.Background(), sampleArticles(1), "broadcasts_2025_03_08", "2025-03-08"); err != nil {
		t.Errorf("Expected other date to ingest, got %v", err)
	}
}

func TestIngest_Empty(t *testing.T) {
	f := newFixture(t)
	report, err := f.ingester(Options{}).Ingest(context.Background(), nil, testCollection, testDate)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if report.Batches != 0 || f.embedder.calls != 0 {
		t.Errorf("Expected no work, got %+v", report)
	}
}
