package page_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/radieske/inplay-mirror/internal/mirror/extractor"
	"github.com/radieske/inplay-mirror/internal/simulator/page"
	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

func TestRenderIsReadableByExtractor(t *testing.T) {
	m := page.New(6, 42)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := m.Render(w); err != nil {
			t.Errorf("render: %v", err)
		}
	}))
	defer srv.Close()

	x := extractor.NewHTMLExtractor(extractor.HTMLConfig{URL: srv.URL, RPS: 1000, Burst: 10}, zap.NewNop())
	raw, err := x.ExtractFull(context.Background())
	if err != nil {
		t.Fatalf("ExtractFull: %v", err)
	}
	if len(raw) != 6 {
		t.Fatalf("expected 6 fixtures, got %d", len(raw))
	}

	live := 0
	for _, r := range raw {
		f := events.NormalizeFixture(r)
		if len(f.Teams) != 2 {
			t.Fatalf("expected 2 teams, got %#v", f.Teams)
		}
		if f.Time != "" {
			live++
			if f.Score == "" {
				t.Fatalf("started fixture without score: %#v", f)
			}
		}
	}
	if live != 3 {
		t.Fatalf("expected 3 started fixtures, got %d", live)
	}
}

func TestTickChangesPage(t *testing.T) {
	m := page.New(8, 7)
	var before bytes.Buffer
	if err := m.Render(&before); err != nil {
		t.Fatalf("render: %v", err)
	}
	for i := 0; i < 30; i++ {
		m.Tick(1)
	}
	var after bytes.Buffer
	if err := m.Render(&after); err != nil {
		t.Fatalf("render: %v", err)
	}
	if bytes.Equal(before.Bytes(), after.Bytes()) {
		t.Fatal("page did not change after ticks")
	}
}

func TestFinishedMatchesLeaveList(t *testing.T) {
	m := page.New(4, 1)
	for i := 0; i < 200; i++ {
		m.Tick(60)
	}
	// toda partida iniciada passa de 95 minutos e sai
	if m.Len() > 4+200/10 {
		t.Fatalf("list kept growing: %d", m.Len())
	}
}
