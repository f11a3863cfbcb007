package relevance

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/boshu2/recall/internal/models"
)

// DefaultExternalTimeout bounds one external scoring call.
const DefaultExternalTimeout = 30 * time.Second

// ExternalRanker scores lessons 0 to 10 against a query. Implementations
// live behind a network or subprocess boundary; the map is keyed by lesson
// ID and may omit lessons the ranker had no opinion on.
type ExternalRanker interface {
	ScoreLessons(ctx context.Context, query string, lessons []*models.Lesson) (map[string]int, error)
}

// Scorer combines BM25, an optional external ranker, and the cache.
type Scorer struct {
	// External is optional; nil means BM25 only.
	External ExternalRanker

	// Cache is optional; nil disables caching.
	Cache *Cache

	// Timeout bounds each external call; zero means DefaultExternalTimeout.
	Timeout time.Duration
}

// Score ranks lessons against the query. External results are cached and
// fuzzily reused; any external failure falls back to BM25 so scoring never
// errors.
func (s *Scorer) Score(ctx context.Context, lessons []*models.Lesson, query string) []ScoredLesson {
	if s.External == nil {
		return ScoreBM25(lessons, query)
	}

	tokens := Tokenize(query)
	fp := Fingerprint(lessonIDs(lessons))

	if s.Cache != nil {
		if scores, ok := s.Cache.Get(tokens, fp); ok {
			return applyScores(lessons, scores)
		}
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultExternalTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	scores, err := s.External.ScoreLessons(ctx, query, lessons)
	if err != nil {
		os.Stderr.WriteString("recall: external scorer failed, using local scores: " + err.Error() + "\n")
		return ScoreBM25(lessons, query)
	}
	if s.Cache != nil {
		_ = s.Cache.Put(tokens, fp, scores)
	}
	return applyScores(lessons, scores)
}

// TopN filters a scored list to the first n entries at or above minScore.
func TopN(scored []ScoredLesson, n, minScore int) []ScoredLesson {
	var out []ScoredLesson
	for _, sl := range scored {
		if sl.Score < minScore {
			continue
		}
		out = append(out, sl)
		if n > 0 && len(out) == n {
			break
		}
	}
	return out
}

func applyScores(lessons []*models.Lesson, scores map[string]int) []ScoredLesson {
	out := make([]ScoredLesson, len(lessons))
	for i, l := range lessons {
		s := scores[l.ID]
		if s < 0 {
			s = 0
		}
		if s > MaxScore {
			s = MaxScore
		}
		out[i] = ScoredLesson{Lesson: l, Score: s}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Lesson.Uses != out[j].Lesson.Uses {
			return out[i].Lesson.Uses > out[j].Lesson.Uses
		}
		return out[i].Lesson.ID < out[j].Lesson.ID
	})
	return out
}

func lessonIDs(lessons []*models.Lesson) []string {
	ids := make([]string, len(lessons))
	for i, l := range lessons {
		ids[i] = l.ID
	}
	return ids
}
