package relevance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boshu2/recall/internal/models"
)

func TestCacheExactHit(t *testing.T) {
	c := NewCache(t.TempDir(), 0)
	tokens := []string{"scanner", "buffer"}
	fp := Fingerprint([]string{"L001", "L002"})
	scores := map[string]int{"L001": 8, "L002": 2}

	if _, ok := c.Get(tokens, fp); ok {
		t.Fatal("hit on empty cache")
	}
	if err := c.Put(tokens, fp, scores); err != nil {
		t.Fatal(err)
	}
	got, ok := c.Get(tokens, fp)
	if !ok || got["L001"] != 8 {
		t.Errorf("get = %v, %v", got, ok)
	}
}

func TestCacheKeyIsOrderInsensitive(t *testing.T) {
	fp := Fingerprint([]string{"L002", "L001"})
	if fp != Fingerprint([]string{"L001", "L002"}) {
		t.Error("fingerprint depends on ID order")
	}
	if Key([]string{"b", "a"}, fp) != Key([]string{"a", "b"}, fp) {
		t.Error("key depends on token order")
	}
}

func TestCacheFuzzyHit(t *testing.T) {
	c := NewCache(t.TempDir(), 0.5)
	fp := Fingerprint([]string{"L001"})
	if err := c.Put([]string{"scanner", "buffer", "size"}, fp, map[string]int{"L001": 7}); err != nil {
		t.Fatal(err)
	}

	// Two of three tokens shared: jaccard 2/4 = 0.5, at threshold.
	got, ok := c.Get([]string{"scanner", "buffer", "limit"}, fp)
	if !ok || got["L001"] != 7 {
		t.Errorf("fuzzy get = %v, %v", got, ok)
	}

	// Disjoint query misses.
	if _, ok := c.Get([]string{"naming", "style"}, fp); ok {
		t.Error("disjoint query hit")
	}

	// Same tokens against a different corpus miss.
	other := Fingerprint([]string{"L001", "L002"})
	if _, ok := c.Get([]string{"scanner", "buffer", "size"}, other); ok {
		t.Error("corpus change not detected")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCache(t.TempDir(), 0)
	now := time.Now()
	c.now = func() time.Time { return now }

	tokens := []string{"scanner"}
	fp := Fingerprint([]string{"L001"})
	if err := c.Put(tokens, fp, map[string]int{"L001": 5}); err != nil {
		t.Fatal(err)
	}

	c.now = func() time.Time { return now.Add(CacheTTL + time.Hour) }
	if _, ok := c.Get(tokens, fp); ok {
		t.Error("expired entry served")
	}

	// The next Put evicts the expired entry.
	if err := c.Put([]string{"other"}, fp, map[string]int{"L001": 1}); err != nil {
		t.Fatal(err)
	}
	entries := c.read()
	if len(entries) != 1 {
		t.Errorf("entries after eviction = %d, want 1", len(entries))
	}
}

func TestJaccard(t *testing.T) {
	cases := []struct {
		a, b []string
		want float64
	}{
		{[]string{"a", "b"}, []string{"a", "b"}, 1},
		{[]string{"a", "b"}, []string{"b", "c"}, 1.0 / 3.0},
		{[]string{"a"}, []string{"b"}, 0},
		{nil, nil, 1},
		{[]string{"a"}, nil, 0},
	}
	for _, tc := range cases {
		if got := jaccard(tc.a, tc.b); got != tc.want {
			t.Errorf("jaccard(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

// fakeRanker counts calls and serves a fixed score map or an error.
type fakeRanker struct {
	scores map[string]int
	err    error
	calls  int
}

func (f *fakeRanker) ScoreLessons(ctx context.Context, query string, lessons []*models.Lesson) (map[string]int, error) {
	f.calls++
	return f.scores, f.err
}

func TestScorerUsesBM25WithoutExternal(t *testing.T) {
	s := &Scorer{}
	scored := s.Score(context.Background(), corpus(), "scanner buffer")
	if scored[0].Score != MaxScore {
		t.Errorf("top score = %d", scored[0].Score)
	}
}

func TestScorerCachesExternalResults(t *testing.T) {
	ranker := &fakeRanker{scores: map[string]int{"L001": 9, "L002": 1}}
	s := &Scorer{External: ranker, Cache: NewCache(t.TempDir(), 0)}
	lessons := corpus()[:2]

	first := s.Score(context.Background(), lessons, "scanner buffer")
	if first[0].Lesson.ID != "L001" || first[0].Score != 9 {
		t.Errorf("first = %+v", first[0])
	}
	second := s.Score(context.Background(), lessons, "scanner buffer")
	if second[0].Score != 9 {
		t.Errorf("second = %+v", second[0])
	}
	if ranker.calls != 1 {
		t.Errorf("external calls = %d, want 1 (cache miss only)", ranker.calls)
	}
}

func TestScorerFallsBackOnExternalError(t *testing.T) {
	ranker := &fakeRanker{err: errors.New("subprocess died")}
	s := &Scorer{External: ranker}
	scored := s.Score(context.Background(), corpus(), "scanner buffer")
	if scored[0].Score != MaxScore {
		t.Errorf("fallback top score = %d, want BM25's %d", scored[0].Score, MaxScore)
	}
}

func TestScorerClampsExternalScores(t *testing.T) {
	ranker := &fakeRanker{scores: map[string]int{"L001": 99, "L002": -4}}
	s := &Scorer{External: ranker}
	scored := s.Score(context.Background(), corpus()[:2], "anything")
	if scored[0].Score != MaxScore {
		t.Errorf("overscored lesson = %d, want clamp to %d", scored[0].Score, MaxScore)
	}
	if scored[1].Score != 0 {
		t.Errorf("underscored lesson = %d, want 0", scored[1].Score)
	}
}
