package search

import (
	"strings"
	"unicode"

	"romgrab/internal/catalog"
	"romgrab/internal/config"
	"romgrab/internal/textutil"
)

// ExactMatchScore is reserved for titles equal to the query ignoring case.
const ExactMatchScore = 1.0

// maxFuzzyScore keeps fuzzy matches strictly below an exact match.
const maxFuzzyScore = 0.999

// Scorer assigns a relevance in [0, 1] to an entry for a query.
type Scorer interface {
	Score(query string, entry catalog.RomEntry) float64
}

// Weights tunes DefaultScorer. Zero values fall back to the defaults.
//
// EditRatio, Cosine, and Coverage blend into the title similarity. Title,
// Quality, Availability, and Preference then blend that similarity with the
// entry-level signals.
type Weights struct {
	EditRatio      float64
	Cosine         float64
	Coverage       float64
	BracketLimit   int
	BracketPenalty float64

	Title        float64
	Quality      float64
	Availability float64
	Preference   float64
}

// DefaultWeights favours whole-title similarity while still rewarding titles
// that contain every query keyword.
func DefaultWeights() Weights {
	return Weights{
		EditRatio:      0.4,
		Cosine:         0.3,
		Coverage:       0.3,
		BracketLimit:   3,
		BracketPenalty: 0.8,
		Title:          0.7,
		Quality:        0.1,
		Availability:   0.1,
		Preference:     0.1,
	}
}

func (w Weights) normalized() Weights {
	d := DefaultWeights()
	if w.EditRatio <= 0 && w.Cosine <= 0 && w.Coverage <= 0 {
		w.EditRatio, w.Cosine, w.Coverage = d.EditRatio, d.Cosine, d.Coverage
	}
	if w.Title <= 0 && w.Quality <= 0 && w.Availability <= 0 && w.Preference <= 0 {
		w.Title, w.Quality, w.Availability, w.Preference = d.Title, d.Quality, d.Availability, d.Preference
	}
	if w.BracketLimit <= 0 {
		w.BracketLimit = d.BracketLimit
	}
	if w.BracketPenalty <= 0 || w.BracketPenalty > 1 {
		w.BracketPenalty = d.BracketPenalty
	}
	return w
}

// DefaultScorer blends normalized edit distance, token cosine similarity,
// and keyword coverage. Titles heavy with bracketed tags ("(USA) (Rev 1)
// [b] [!]") are penalized so clean dumps rank above annotated variants.
//
// The title similarity is then mixed with a release quality score, the
// number of mirrors, and how well the entry matches the preferred platforms
// and regions. Earlier preferences count for more.
type DefaultScorer struct {
	Weights            Weights
	PreferredPlatforms []string
	PreferredRegions   []string
}

// NewScorer returns a DefaultScorer with the default weights.
func NewScorer() DefaultScorer {
	return DefaultScorer{Weights: DefaultWeights()}
}

// NewScorerFromConfig returns a DefaultScorer carrying the configured
// platform and region preferences.
func NewScorerFromConfig(cfg config.Search) DefaultScorer {
	s := NewScorer()
	s.PreferredPlatforms = cfg.PreferredPlatforms
	s.PreferredRegions = cfg.PreferredRegions
	return s
}

func (s DefaultScorer) Score(query string, entry catalog.RomEntry) float64 {
	query = strings.TrimSpace(query)
	title := strings.TrimSpace(entry.Title)
	if query == "" || title == "" {
		return 0
	}
	if strings.EqualFold(query, title) {
		return ExactMatchScore
	}

	w := s.Weights.normalized()
	nq := textutil.Normalize(query)
	nt := textutil.Normalize(title)
	qf := textutil.NewFingerprint(nq)
	tf := textutil.NewFingerprint(nt)

	similarity := (w.EditRatio*textutil.EditRatio(nq, nt) +
		w.Cosine*textutil.CosineSimilarity(qf, tf) +
		w.Coverage*coverage(nq, tf)) / (w.EditRatio + w.Cosine + w.Coverage)

	preference := (preferenceScore(s.PreferredPlatforms, []string{entry.Platform}) +
		preferenceScore(s.PreferredRegions, entry.Regions)) / 2
	score := (w.Title*similarity +
		w.Quality*QualityScore(title) +
		w.Availability*AvailabilityScore(entry) +
		w.Preference*preference) / (w.Title + w.Quality + w.Availability + w.Preference)

	if textutil.CountBrackets(title) > w.BracketLimit {
		score *= w.BracketPenalty
	}
	return clamp(score, 0, maxFuzzyScore)
}

// qualityBase is the score of a title with no quality markers.
const qualityBase = 0.5

// qualityAdjustments are matched against whole words of the normalized title.
var qualityAdjustments = []struct {
	phrase string
	delta  float64
}{
	{"hack", -0.3},
	{"homebrew", -0.2},
	{"prototype", -0.2},
	{"proto", -0.2},
	{"beta", -0.1},
	{"demo", -0.1},
	{"sample", -0.2},
	{"pirate", -0.4},
	{"bad", -0.3},
	{"corrupt", -0.5},
	{"final", 0.1},
	{"complete", 0.1},
	{"special edition", 0.1},
	{"deluxe", 0.1},
	{"goty", 0.1},
	{"game of the year", 0.1},
	{"remaster", 0.1},
	{"remastered", 0.1},
}

// maxSpecialRunes is how many punctuation runes a title may carry before it
// is treated as a mangled dump name.
const maxSpecialRunes = 5

// QualityScore rates a release title in [0, 1]. Hacks, prototypes, pirate
// and bad dumps score low; final and deluxe releases score high.
func QualityScore(title string) float64 {
	padded := " " + textutil.Normalize(title) + " "
	score := qualityBase
	for _, adj := range qualityAdjustments {
		if strings.Contains(padded, " "+adj.phrase+" ") {
			score += adj.delta
		}
	}
	special := 0
	for _, r := range title {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
		case strings.ContainsRune("-()[]", r):
		default:
			special++
		}
	}
	if special > maxSpecialRunes {
		score -= 0.2
	}
	return clamp(score, 0, 1)
}

// AvailabilityScore rewards entries hosted on several mirrors.
func AvailabilityScore(entry catalog.RomEntry) float64 {
	switch n := len(entry.HostURLs()); {
	case n >= 3:
		return 1
	case n == 2:
		return 0.8
	case n == 1:
		return 0.6
	default:
		return 0
	}
}

// preferenceScore is 0.5 when nothing is preferred, 1.0 for the first
// preference (0.1 less for each later one), and 0.2 for no match.
func preferenceScore(preferred, values []string) float64 {
	if len(preferred) == 0 {
		return 0.5
	}
	best := 0.2
	for i, p := range preferred {
		for _, v := range values {
			if strings.EqualFold(strings.TrimSpace(v), p) {
				if score := max(1-0.1*float64(i), 0.2); score > best {
					best = score
				}
			}
		}
	}
	return best
}

// coverage is the share of query tokens present in the title.
func coverage(normalizedQuery string, title *textutil.Fingerprint) float64 {
	tokens := textutil.Tokenize(normalizedQuery)
	if len(tokens) == 0 || title == nil {
		return 0
	}
	hits := 0
	for _, token := range tokens {
		if title.Contains(token) {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
