// Package relevance scores lessons against a query. The default scorer is
// plain BM25 over title+content; an external ranker can be plugged in and
// falls back to BM25 on timeout or error. Scores are integers 0 to 10.
package relevance

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/boshu2/recall/internal/models"
)

// BM25 parameters.
const (
	k1 = 1.5
	b  = 0.75
)

// MaxScore is the top of the normalized score range.
const MaxScore = 10

// minTokenLength drops one-character fragments from tokenization.
const minTokenLength = 2

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "how": true, "if": true, "in": true,
	"is": true, "it": true, "its": true, "not": true, "of": true,
	"on": true, "or": true, "that": true, "the": true, "this": true,
	"to": true, "was": true, "what": true, "when": true, "where": true,
	"which": true, "will": true, "with": true,
}

// Tokenize lowercases, splits on non-alphanumeric runs, and drops stop
// words and tokens shorter than two characters.
func Tokenize(s string) []string {
	var out []string
	for _, tok := range nonAlnum.Split(strings.ToLower(s), -1) {
		if len(tok) < minTokenLength || stopWords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// ScoredLesson pairs a lesson with its normalized relevance score.
type ScoredLesson struct {
	Lesson *models.Lesson `json:"lesson"`
	Score  int            `json:"score"`
}

// ScoreBM25 ranks lessons against the query. Raw BM25 scores are scaled so
// the single best match gets MaxScore; ties break by uses descending, then
// by ID for determinism. A query with no usable tokens scores everything
// zero.
func ScoreBM25(lessons []*models.Lesson, query string) []ScoredLesson {
	queryTokens := Tokenize(query)

	docs := make([][]string, len(lessons))
	totalLen := 0
	for i, l := range lessons {
		docs[i] = Tokenize(l.Title + " " + l.Content)
		totalLen += len(docs[i])
	}
	avgLen := 0.0
	if len(lessons) > 0 {
		avgLen = float64(totalLen) / float64(len(lessons))
	}

	// Document frequency per query term, then raw BM25 per lesson.
	df := map[string]int{}
	for _, tok := range queryTokens {
		if _, done := df[tok]; done {
			continue
		}
		n := 0
		for _, doc := range docs {
			if contains(doc, tok) {
				n++
			}
		}
		df[tok] = n
	}

	raw := make([]float64, len(lessons))
	maxRaw := 0.0
	for i, doc := range docs {
		tf := map[string]int{}
		for _, tok := range doc {
			tf[tok]++
		}
		score := 0.0
		for tok, n := range df {
			f := float64(tf[tok])
			if f == 0 || n == 0 {
				continue
			}
			idf := math.Log(1 + (float64(len(lessons))-float64(n)+0.5)/(float64(n)+0.5))
			norm := 1 - b + b*float64(len(doc))/math.Max(avgLen, 1)
			score += idf * f * (k1 + 1) / (f + k1*norm)
		}
		raw[i] = score
		if score > maxRaw {
			maxRaw = score
		}
	}

	out := make([]ScoredLesson, len(lessons))
	for i, l := range lessons {
		s := 0
		if maxRaw > 0 {
			s = int(math.Round(raw[i] / maxRaw * MaxScore))
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
	// Exactly one lesson holds MaxScore: ties at the raw maximum round to
	// MaxScore together, so everything past the tie-break winner drops one.
	for i := 1; i < len(out) && out[i].Score == MaxScore; i++ {
		out[i].Score = MaxScore - 1
	}
	return out
}

func contains(doc []string, tok string) bool {
	for _, t := range doc {
		if t == tok {
			return true
		}
	}
	return false
}
