package handlers

import (
	"testing"
	"time"

	"newsdesk/internal/newsday"
)

func TestRootCmdRegistersCommands(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"scrape", "ingest", "analyze", "critique", "articles", "show", "serve", "migrate", "newsday"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Errorf("Expected %s command to be registered", name)
		}
	}

	for _, sub := range []string{"up", "status", "rollback"} {
		cmd, _, err := root.Find([]string{"migrate", sub})
		if err != nil || cmd.Name() != sub {
			t.Errorf("Expected migrate %s command", sub)
		}
	}
}

func TestResolveDate(t *testing.T) {
	day, err := resolveDate("2025-03-07")
	if err != nil {
		t.Fatalf("resolveDate failed: %v", err)
	}
	if newsday.Format(day) != "2025-03-07" {
		t.Errorf("Expected 2025-03-07, got %s", newsday.Format(day))
	}

	if _, err := resolveDate("07/03/2025"); err == nil {
		t.Error("Expected error for malformed date")
	}

	today, err := resolveDate("")
	if err != nil {
		t.Fatalf("resolveDate failed: %v", err)
	}
	if gap := newsday.For(time.Now()).Sub(today); gap < 0 || gap > 24*time.Hour {
		t.Errorf("Expected the current news-day, got %s", newsday.Format(today))
	}
}
