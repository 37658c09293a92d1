package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/persistence"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testArticle(source core.Source, date string, order int) *core.Article {
	return &core.Article{
		Source:         source,
		CollectionDate: date,
		SequenceOrder:  order,
		Title:          "제목",
		SourceURL:      "https://example.com/" + string(source),
		ScriptText:     "본문",
		Identity:       "identity",
	}
}

func TestNewStore(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewStore(tmpDir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	if store.DB() == nil {
		t.Error("Store database should not be nil")
	}

	// Check that database file was created
	dbPath := filepath.Join(tmpDir, DatabaseFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should be created")
	}
	if store.Path() != dbPath {
		t.Errorf("Expected path %s, got %s", dbPath, store.Path())
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewStore_InvalidDirectory(t *testing.T) {
	// Try to create store in a file (not directory)
	tmpDir := t.TempDir()
	invalidPath := filepath.Join(tmpDir, "file.txt")
	_ = os.WriteFile(invalidPath, []byte("test"), 0644)

	_, err := NewStore(invalidPath)
	if err == nil {
		t.Error("Expected error when creating store in invalid directory")
	}
}

func TestNewStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if _, err := store.Articles().Upsert(context.Background(), testArticle(core.SourceKBS, "2025-03-07", 1)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	_ = store.Close()

	reopened, err := NewStore(dir)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	articles, err := reopened.Articles().ListByDate(context.Background(), "2025-03-07")
	if err != nil || len(articles) != 1 {
		t.Errorf("Expected 1 article after reopen, got %d (%v)", len(articles), err)
	}
}

func TestArticles_UpsertIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := testArticle(core.SourceKBS, "2025-03-07", 1)
	created, err := store.Articles().Upsert(ctx, first)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if !created {
		t.Error("Expected first upsert to create")
	}
	if first.ID == "" || first.ScrapedAt.IsZero() {
		t.Error("Expected ID and ScrapedAt to be set")
	}

	time.Sleep(5 * time.Millisecond)
	second := testArticle(core.SourceKBS, "2025-03-07", 1)
	second.ScriptText = "수정된 본문"
	created, err = store.Articles().Upsert(ctx, second)
	if err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}
	if created {
		t.Error("Expected second upsert to update")
	}
	if second.ID != first.ID {
		t.Errorf("Expected ID %s to be kept, got %s", first.ID, second.ID)
	}

	articles, err := store.Articles().ListByDate(ctx, "2025-03-07")
	if err != nil {
		t.Fatalf("ListByDate failed: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("Expected exactly 1 stored article, got %d", len(articles))
	}
	got := articles[0]
	if got.ScriptText != "수정된 본문" {
		t.Errorf("Expected updated script, got %q", got.ScriptText)
	}
	if !got.ScrapedAt.Equal(first.ScrapedAt) {
		t.Errorf("Expected scraped_at kept: %s vs %s", got.ScrapedAt, first.ScrapedAt)
	}
	if !got.UpdatedAt.After(got.ScrapedAt) {
		t.Errorf("Expected updated_at after scraped_at: %s vs %s", got.UpdatedAt, got.ScrapedAt)
	}
}

func TestArticles_GetNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Articles().Get(context.Background(), "missing")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestArticles_ListOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inputs := []*core.Article{
		testArticle(core.SourceSBS, "2025-03-06", 1),
		testArticle(core.SourceMBC, "2025-03-07", 2),
		testArticle(core.SourceKBS, "2025-03-07", 1),
		testArticle(core.SourceMBC, "2025-03-07", 1),
		testArticle(core.SourceKBS, "2025-03-06", 1),
	}
	for _, a := range inputs {
		if _, err := store.Articles().Upsert(ctx, a); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	articles, err := store.Articles().List(ctx, persistence.ArticleFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	want := []struct {
		date   string
		source core.Source
		order  int
	}{
		{"2025-03-07", core.SourceKBS, 1},
		{"2025-03-07", core.SourceMBC, 1},
		{"2025-03-07", core.SourceMBC, 2},
		{"2025-03-06", core.SourceKBS, 1},
		{"2025-03-06", core.SourceSBS, 1},
	}
	if len(articles) != len(want) {
		t.Fatalf("Expected %d articles, got %d", len(want), len(articles))
	}
	for i, w := range want {
		a := articles[i]
		if a.CollectionDate != w.date || a.Source != w.source || a.SequenceOrder != w.order {
			t.Errorf("Position %d: got %s/%s/%d, want %s/%s/%d",
				i, a.CollectionDate, a.Source, a.SequenceOrder, w.date, w.source, w.order)
		}
	}

	filtered, err := store.Articles().List(ctx, persistence.ArticleFilter{Source: core.SourceMBC, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Filtered list failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].SequenceOrder != 2 {
		t.Errorf("Expected second MBC article, got %+v", filtered)
	}

	one, err := store.Articles().Get(ctx, articles[0].ID)
	if err != nil || one.Source != core.SourceKBS {
		t.Errorf("Get failed: %v", err)
	}
}

func sampleResult(date string) *core.AnalysisResult {
	cmp := core.Comparison{
		PrimaryNarrative:  "공통 주제",
		SourceFocus:       []core.SourceFocus{{Source: "kbs", Focus: "정치"}},
		UniqueTopics:      []core.UniqueTopic{{Source: "sbs", Topic: "날씨"}},
		EditorialCritique: "비평",
		ExclusivesClaimed: []string{"단독"},
	}
	topics := []core.LabeledTopic{
		{
			Label:              "첫 주제",
			TotalItems:         2,
			SourceContribution: map[core.Source]int{core.SourceKBS: 1, core.SourceMBC: 1},
			Items: []core.TopicItem{
				{ID: "a", Source: core.SourceKBS, Order: 1, Title: "t1"},
				{ID: "b", Source: core.SourceMBC, Order: 1, Title: "t2"},
			},
		},
		{
			Label:              "둘째 주제",
			TotalItems:         1,
			SourceContribution: map[core.Source]int{core.SourceSBS: 1},
			Items:              []core.TopicItem{{ID: "c", Source: core.SourceSBS, Order: 1}},
		},
	}
	r := core.NewAnalysisResult(date, cmp, topics)
	r.Model = "test-model"
	return &r
}

func TestAnalyses_CreateGetExists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	exists, err := store.Analyses().Exists(ctx, "2025-03-07")
	if err != nil || exists {
		t.Fatalf("Expected no analysis yet, got %v (%v)", exists, err)
	}

	result := sampleResult("2025-03-07")
	err = persistence.InTransaction(ctx, store, func(tx persistence.Transaction) error {
		return tx.Analyses().Create(ctx, result)
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if result.ID == "" {
		t.Error("Expected ID to be assigned")
	}

	exists, err = store.Analyses().Exists(ctx, "2025-03-07")
	if err != nil || !exists {
		t.Errorf("Expected analysis to exist, got %v (%v)", exists, err)
	}

	got, err := store.Analyses().Get(ctx, "2025-03-07")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.HeadlineAnalysis.PrimaryNarrative != "공통 주제" || got.Model != "test-model" {
		t.Errorf("Unexpected result %+v", got)
	}
	if len(got.Topics) != 2 || got.Topics[0].Label != "첫 주제" {
		t.Fatalf("Expected topics in order, got %+v", got.Topics)
	}
	if got.Topics[0].SourceContribution[core.SourceMBC] != 1 || len(got.Topics[0].Items) != 2 {
		t.Errorf("Topic contents not preserved: %+v", got.Topics[0])
	}
	if len(got.NotableElements.ExclusivesClaimed) != 1 || len(got.UniqueTopics) != 1 {
		t.Errorf("Notable elements not preserved: %+v", got.NotableElements)
	}
}

func TestAnalyses_DuplicateCreate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Analyses().Create(ctx, sampleResult("2025-03-07")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	err := store.Analyses().Create(ctx, sampleResult("2025-03-07"))
	if !errors.Is(err, core.ErrAlreadyAnalyzed) {
		t.Errorf("Expected ErrAlreadyAnalyzed, got %v", err)
	}

	list, err := store.Analyses().List(ctx, persistence.ListOptions{})
	if err != nil || len(list) != 1 {
		t.Errorf("Expected exactly one stored analysis, got %d (%v)", len(list), err)
	}
}

func TestAnalyses_RolledBackTransactionWritesNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := persistence.InTransaction(ctx, store, func(tx persistence.Transaction) error {
		if err := tx.Analyses().Create(ctx, sampleResult("2025-03-07")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	exists, err := store.Analyses().Exists(ctx, "2025-03-07")
	if err != nil || exists {
		t.Errorf("Expected rollback to leave no analysis, got %v (%v)", exists, err)
	}
}

func TestAnalyses_ListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, date := range []string{"2025-03-05", "2025-03-07", "2025-03-06"} {
		if err := store.Analyses().Create(ctx, sampleResult(date)); err != nil {
			t.Fatalf("Create %s failed: %v", date, err)
		}
	}

	list, err := store.Analyses().List(ctx, persistence.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].CollectionDate != "2025-03-07" || list[1].CollectionDate != "2025-03-06" {
		t.Errorf("Unexpected order: %+v", list)
	}
	if len(list[0].Topics) != 2 {
		t.Errorf("Expected topics loaded for listed analyses")
	}

	if _, err := store.Analyses().Get(ctx, "2024-01-01"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCritiques_CreateOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	article := testArticle(core.SourceKBS, "2025-03-07", 1)
	if _, err := store.Articles().Upsert(ctx, article); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if _, err := store.Critiques().Get(ctx, article.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Expected ErrNotFound before create, got %v", err)
	}

	critique := &core.ArticleCritique{
		ArticleID:         article.ID,
		HeadlineAnalysis:  "헤드라인",
		KeyAgendaItems:    []core.AgendaItem{{Topic: "정치", Placement: "첫 보도", Comment: "비중 큼"}},
		EditorialCritique: "비평",
		Model:             "test-model",
	}
	if err := store.Critiques().Create(ctx, critique); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Critiques().Get(ctx, article.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.HeadlineAnalysis != "헤드라인" || len(got.KeyAgendaItems) != 1 {
		t.Errorf("Unexpected critique %+v", got)
	}

	err = store.Critiques().Create(ctx, &core.ArticleCritique{ArticleID: article.ID})
	if !errors.Is(err, core.ErrAlreadyAnalyzed) {
		t.Errorf("Expected ErrAlreadyAnalyzed for second critique, got %v", err)
	}
}
