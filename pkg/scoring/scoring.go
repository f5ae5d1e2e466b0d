// Package scoring assigns relevance scores to articles. The score is a
// deterministic function of where the entity name appears in the title
// and excerpt; earlier mentions score higher, approximating "is this
// entity the subject, not just mentioned in passing".
package scoring

import "strings"

// Scorer scores article relevance for an entity. Aliases extend the
// generated name variations with hand-curated forms (abbreviations,
// former names) keyed by entity name.
type Scorer struct {
	aliases map[string][]string
}

// NewScorer creates a scorer with the given alias table, which may be nil
func NewScorer(aliases map[string][]string) *Scorer {
	return &Scorer{aliases: aliases}
}

// Score rates how prominently the entity appears in the article.
// Result is in [0, 1]: a title match near the start is worth 0.7, an
// early excerpt match up to 0.5, and the sum is capped at 1.
func (s *Scorer) Score(title, excerpt, entityName string) float64 {
	variations := s.variations(entityName)
	if len(variations) == 0 {
		return 0
	}

	titleLower := strings.ToLower(title)
	excerptLower := strings.ToLower(excerpt)

	var score float64

	// title: first matching variation wins, position decides the weight
	for _, v := range variations {
		pos := strings.Index(titleLower, v)
		if pos < 0 {
			continue
		}
		score = 0.6
		if pos <= len(titleLower)/3 {
			score = 0.7
		}
		break
	}

	// excerpt: base for any match plus a bonus for early position
	for _, v := range variations {
		pos := strings.Index(excerptLower, v)
		if pos < 0 {
			continue
		}
		score += 0.3
		switch {
		case pos <= len(excerptLower)/4:
			score += 0.2
		case pos <= len(excerptLower)/2:
			score += 0.1
		}
		break
	}

	if score > 1 {
		score = 1
	}
	return score
}

// variations builds the lower-cased name forms to match against:
// the full name, its main form, and any configured aliases
func (s *Scorer) variations(entityName string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(v string) {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		out = append(out, v)
	}

	add(entityName)
	add(mainForm(entityName))
	for _, alias := range s.aliases[entityName] {
		add(alias)
	}
	return out
}

// mainForm strips legal suffixes and category prefixes from an entity
// name: text before the first comma, then before the first ampersand,
// then after the last colon
func mainForm(name string) string {
	if i := strings.Index(name, ","); i >= 0 {
		name = name[:i]
	}
	if i := strings.Index(name, "&"); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSpace(name)
}
