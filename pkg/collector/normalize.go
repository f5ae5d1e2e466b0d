package collector

import (
	"sort"

	"github.com/araddon/dateparse"
	"github.com/go-pkgz/lgr"

	"newswatch/pkg/domain"
	"newswatch/pkg/scoring"
)

// Normalizer turns raw collected articles into the flat, scored and
// filtered record table the rest of the pipeline works with
type Normalizer struct {
	scorer       *scoring.Scorer
	minRelevance float64
}

// NewNormalizer creates a normalizer with the given scorer and threshold
func NewNormalizer(scorer *scoring.Scorer, minRelevance float64) *Normalizer {
	return &Normalizer{scorer: scorer, minRelevance: minRelevance}
}

// Normalize scores every article, drops those below the relevance
// threshold and flattens the rest into records. An entity whose articles
// all score below the threshold keeps its single best article, so a
// noisy scorer never blanks an entity out entirely. Output ordering is
// deterministic: entity name ascending, then relevance descending, then
// published date descending with unparsed dates last.
func (n *Normalizer) Normalize(collected map[string][]domain.Article) []domain.Record {
	// iterate entities in stable order
	names := make([]string, 0, len(collected))
	for name := range collected {
		names = append(names, name)
	}
	sort.Strings(names)

	var records []domain.Record
	for _, name := range names {
		ranked := n.Rank(collected[name], name)
		for _, a := range ranked {
			records = append(records, n.toRecord(name, a))
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		return a.Published.After(b.Published) // zero times sort last
	})
	return records
}

// Rank scores the articles for one entity, filters by the relevance
// threshold and sorts by relevance descending. When every article falls
// below the threshold the single best one is kept. The input slice is
// not modified.
func (n *Normalizer) Rank(articles []domain.Article, entityName string) []domain.Article {
	if len(articles) == 0 {
		return nil
	}

	scored := make([]domain.Article, len(articles))
	copy(scored, articles)
	for i := range scored {
		scored[i].Relevance = n.scorer.Score(scored[i].Title, scored[i].Excerpt, entityName)
	}

	kept := make([]domain.Article, 0, len(scored))
	best := 0
	for i, a := range scored {
		if a.Relevance >= n.minRelevance {
			kept = append(kept, a)
		}
		if a.Relevance > scored[best].Relevance {
			best = i
		}
	}

	// never blank an entity out: keep the best article even below threshold
	if len(kept) == 0 {
		lgr.Printf("[DEBUG] %q: no articles above %.2f, keeping best at %.2f", entityName, n.minRelevance, scored[best].Relevance)
		kept = append(kept, scored[best])
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Relevance > kept[j].Relevance })
	return kept
}

// toRecord flattens an article into a record, parsing its published
// date into UTC. Unparsable dates are logged and kept raw with a zero
// timestamp rather than dropping the article.
func (n *Normalizer) toRecord(entityName string, a domain.Article) domain.Record {
	rec := domain.Record{
		Entity:       entityName,
		Title:        a.Title,
		URL:          a.URL,
		PublishedRaw: a.PublishedRaw,
		Source:       a.Source,
		Excerpt:      a.Excerpt,
		Image:        a.Image,
		Relevance:    a.Relevance,
	}
	if a.PublishedRaw != "" {
		ts, err := dateparse.ParseAny(a.PublishedRaw)
		if err != nil {
			lgr.Printf("[WARN] unparsable date %q for %q: %v", a.PublishedRaw, a.Title, err)
		} else {
			rec.Published = ts.UTC()
		}
	}
	return rec
}
