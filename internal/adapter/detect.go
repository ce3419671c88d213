package adapter

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/ginjaninja78/statement-normalizer/internal/config"
	"github.com/ginjaninja78/statement-normalizer/internal/logging"
	"github.com/ginjaninja78/statement-normalizer/internal/table"
)

// =============================================================================
// DETECTION
// =============================================================================
//
// Detection picks the institution for a file that was not assigned one
// explicitly. It never guesses a layout; it only chooses among configured
// institutions, in this order of evidence:
//
//   1. file name matches one of the institution's file_matching_patterns
//   2. the adapter's own Sniff score over the table
//   3. fuzzy similarity between the mapped header labels and the first rows
//
// Header similarity alone reaches MinScore only when every mapped label
// has a close counterpart (StrongLabel); a header with one label missing
// or far off only ranks.
//
// =============================================================================

// MinScore is the lowest score Detect accepts.
const MinScore = 0.6

// StrongLabel is the similarity every label needs before header similarity
// can select an institution on its own.
const StrongLabel = 0.8

// headerScanRows is how many leading rows are searched for header labels.
const headerScanRows = 10

// ErrNoMatch is returned when no institution fits a file.
var ErrNoMatch = errors.New("no matching institution")

// Candidate is one institution scored against a file.
type Candidate struct {
	Institution *config.Institution
	Score       float64
	Reason      string
}

// Rank scores every institution against a file and returns them best first.
// Institutions whose config does not build an adapter are skipped.
func Rank(path string, t *table.Table, insts []*config.Institution, log *zap.Logger) []Candidate {
	log = logging.OrNop(log)
	out := make([]Candidate, 0, len(insts))
	for _, inst := range insts {
		if inst.MatchesFile(path) {
			out = append(out, Candidate{Institution: inst, Score: 1, Reason: "file name pattern"})
			continue
		}
		a, err := New(inst, log)
		if err != nil {
			log.Debug("skipping institution for detection", zap.String("bank", inst.Name), zap.Error(err))
			continue
		}
		c := Candidate{Institution: inst}
		if s, ok := a.(Sniffer); ok {
			c.Score = s.Sniff(t)
			c.Reason = "layout"
		}
		if c.Score == 0 {
			c.Score = headerScore(a.ColumnMapping().Labels(), t)
			c.Reason = "header similarity"
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Detect returns the best scoring institution, or ErrNoMatch when none
// reaches MinScore.
func Detect(path string, t *table.Table, insts []*config.Institution, log *zap.Logger) (Candidate, error) {
	ranked := Rank(path, t, insts, log)
	if len(ranked) == 0 || ranked[0].Score < MinScore {
		return Candidate{}, ErrNoMatch
	}
	return ranked[0], nil
}

// HeaderSimilarity averages, over the expected labels, the best similarity
// to any cell in the first rows of the table. Similarity is one minus the
// edit distance over the longer string's length. With no labels it is 0.
func HeaderSimilarity(labels []string, t *table.Table) float64 {
	avg, _ := labelSimilarity(labels, t)
	return avg
}

// headerScore turns header similarity into a detection score. A header
// whose every label is close scores 0.4 + 0.6*avg, at least 0.88; any
// other header scores 0.5*avg, below MinScore.
func headerScore(labels []string, t *table.Table) float64 {
	avg, worst := labelSimilarity(labels, t)
	if avg > 0 && worst >= StrongLabel {
		return 0.4 + 0.6*avg
	}
	return 0.5 * avg
}

// labelSimilarity returns the average and the lowest of the labels' best
// similarities.
func labelSimilarity(labels []string, t *table.Table) (avg, worst float64) {
	if len(labels) == 0 || t.Len() == 0 {
		return 0, 0
	}
	var cells []string
	for i := 0; i < headerScanRows; i++ {
		r, ok := t.Row(i)
		if !ok {
			break
		}
		for _, c := range r.Cells {
			if !c.IsEmpty() {
				cells = append(cells, normalizeLabel(c.String()))
			}
		}
	}
	if h := t.Header(); h != nil {
		for _, l := range h.Labels() {
			cells = append(cells, normalizeLabel(l))
		}
	}

	total := 0.0
	worst = 1
	for _, l := range labels {
		l = normalizeLabel(l)
		best := 0.0
		for _, c := range cells {
			if s := similarity(l, c); s > best {
				best = s
			}
		}
		total += best
		if best < worst {
			worst = best
		}
	}
	return total / float64(len(labels)), worst
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func similarity(a, b string) float64 {
	n := utf8.RuneCountInString(a)
	if m := utf8.RuneCountInString(b); m > n {
		n = m
	}
	if n == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(n)
}
