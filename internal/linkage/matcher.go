// Package linkage reconciles free-text company names to company records.
//
// Matching is a pure, deterministically-ordered ranking (exact, then
// prefix, then substring) implemented in Go rather than with database
// pattern operators, so the semantics are portable and testable without
// a live store.
package linkage

import (
	"sort"
	"strings"

	"github.com/keen-violet-ibis/rfphub/internal/models"
)

// matchRank orders match quality. Lower is better.
type matchRank int

const (
	rankExact matchRank = iota
	rankPrefix        // text is a prefix of the name
	rankSubstring     // text appears inside the name
	rankNamePrefix    // name is a prefix of the text
	rankNameSubstring // name appears inside the text
	rankNone
)

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// rank classifies how well text matches a company name. Matching runs
// in both directions, but text-inside-name outranks name-inside-text:
// "Acme Corp" links to "Acme Corporation" even when a company named
// just "Acme" also exists.
func rank(text, name string) matchRank {
	switch {
	case text == "" || name == "":
		return rankNone
	case text == name:
		return rankExact
	case strings.HasPrefix(name, text):
		return rankPrefix
	case strings.Contains(name, text):
		return rankSubstring
	case strings.HasPrefix(text, name):
		return rankNamePrefix
	case strings.Contains(text, name):
		return rankNameSubstring
	}
	return rankNone
}

// Match returns the best-matching company for a free-text name, or nil.
// Ties inside a rank break to the shortest name, then lexicographically
// by name, then by ID, so repeated runs always pick the same company.
func Match(text string, companies []*models.Company) *models.Company {
	folded := fold(text)
	if folded == "" {
		return nil
	}

	best := rankNone
	var candidates []*models.Company
	for _, c := range companies {
		r := rank(folded, fold(c.Name))
		if r == rankNone {
			continue
		}
		if r < best {
			best = r
			candidates = candidates[:0]
		}
		if r == best {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if len(a.Name) != len(b.Name) {
			return len(a.Name) < len(b.Name)
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return candidates[0]
}
