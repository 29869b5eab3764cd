package similarity

import (
	"strings"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Threshold is the minimum score at which a pair becomes a duplicate suggestion.
const Threshold = 0.85

// Scorer computes a [0,1] likelihood that two records denote the same real-world entity.
type Scorer struct{}

func NewScorer() *Scorer {
	return &Scorer{}
}

// Score dispatches on the record variant. Records of different variants score 0.
func (s *Scorer) Score(a, b models.Record) float64 {
	switch ra := a.(type) {
	case *models.OrganizationRecord:
		if rb, ok := b.(*models.OrganizationRecord); ok {
			return s.ScoreOrganizations(ra, rb)
		}
	case *models.ContactRecord:
		if rb, ok := b.(*models.ContactRecord); ok {
			return s.ScoreContacts(ra, rb)
		}
	}
	return 0
}

// ScoreOrganizations is 1.0 on a shared website domain, otherwise the better of the raw
// and the suffix-normalized name similarity.
func (s *Scorer) ScoreOrganizations(a, b *models.OrganizationRecord) float64 {
	if a == nil || b == nil {
		return 0
	}

	domainA, domainB := ExtractDomain(a.WebsiteValue()), ExtractDomain(b.WebsiteValue())
	if domainA != "" && domainA == domainB {
		return 1.0
	}

	score := s.NameSimilarity(a.Name, b.Name)

	normA, normB := NormalizeBusinessName(a.Name), NormalizeBusinessName(b.Name)
	if normA != "" && normB != "" {
		score = max(score, s.NameSimilarity(normA, normB))
	}
	return score
}

// ScoreContacts only compares contacts of the same organization. A shared email is 1.0,
// otherwise the full-name similarity.
func (s *Scorer) ScoreContacts(a, b *models.ContactRecord) float64 {
	if a == nil || b == nil {
		return 0
	}
	if a.PrimaryOrganizationID == "" || a.PrimaryOrganizationID != b.PrimaryOrganizationID {
		return 0
	}

	if sharesEmail(a.Emails, b.Emails) {
		return 1.0
	}

	return s.NameSimilarity(strings.TrimSpace(a.FullName()), strings.TrimSpace(b.FullName()))
}

func sharesEmail(a, b []string) bool {
	normalized := ectolinq.Filter(ectolinq.Map(a, NormalizeEmail), func(e string) bool { return e != "" })
	if len(normalized) == 0 {
		return false
	}

	seen := make(map[string]struct{}, len(normalized))
	for _, e := range normalized {
		seen[e] = struct{}{}
	}
	for _, e := range b {
		if _, ok := seen[NormalizeEmail(e)]; ok {
			return true
		}
	}
	return false
}

// NameSimilarity is the case-insensitive Levenshtein ratio of two names.
func (s *Scorer) NameSimilarity(a, b string) float64 {
	return s.Levenshtein(strings.ToLower(a), strings.ToLower(b))
}

// Levenshtein returns (maxLen - distance) / maxLen over runes; two empty strings are identical.
func (s *Scorer) Levenshtein(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := max(len(ra), len(rb))
	if maxLen == 0 {
		return 1.0
	}
	return float64(maxLen-levenshteinDistance(ra, rb)) / float64(maxLen)
}

// LevenshteinDistance calculates the rune edit distance between two strings.
func (s *Scorer) LevenshteinDistance(a, b string) int {
	return levenshteinDistance([]rune(a), []rune(b))
}

func levenshteinDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(row[j-1]+1, prevRow[j]+1, prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}
