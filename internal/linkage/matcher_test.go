package linkage

import (
	"testing"

	"github.com/keen-violet-ibis/rfphub/internal/models"
)

func company(id, name string) *models.Company {
	return &models.Company{ID: id, Name: name}
}

func TestMatch_RankOrdering(t *testing.T) {
	companies := []*models.Company{
		company("c-exact", "Acme"),
		company("c-prefix", "Acme Corporation"),
		company("c-substring", "The Acme Group"),
	}

	tests := []struct {
		name string
		text string
		want string
	}{
		{"exact beats prefix and substring", "Acme", "c-exact"},
		{"exact is case and whitespace insensitive", "  ACME  ", "c-exact"},
		{"prefix beats substring", "Acme Corp", "c-prefix"},
		{"substring when nothing closer", "he Acme Gro", "c-substring"},
		{"no match", "Globex", ""},
		{"empty text", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.text, companies)
			gotID := ""
			if got != nil {
				gotID = got.ID
			}
			if gotID != tt.want {
				t.Errorf("Match(%q) = %q, want %q", tt.text, gotID, tt.want)
			}
		})
	}
}

func TestMatch_TextInsideNameOutranksNameInsideText(t *testing.T) {
	// "Acme" begins the text, but the text begins "Acme Corporation";
	// the longer stored name is the better link and must win even
	// though the shorter one would take the tie-break.
	got := Match("Acme Corp", []*models.Company{
		company("c-short", "Acme"),
		company("c-long", "Acme Corporation"),
	})
	if got == nil || got.ID != "c-long" {
		t.Fatalf("Match = %v, want c-long", got)
	}
}

func TestMatch_PrefixRunsBothDirections(t *testing.T) {
	// A stored name shorter than the text still ranks as a prefix match.
	companies := []*models.Company{company("c1", "Acme")}
	got := Match("Acme Corporation", companies)
	if got == nil || got.ID != "c1" {
		t.Fatalf("Match = %v, want c1", got)
	}
}

func TestMatch_TieBreaks(t *testing.T) {
	// Two prefix matches of different lengths: shortest name wins.
	got := Match("Acme", []*models.Company{
		company("c-long", "Acme Corporation Worldwide"),
		company("c-short", "Acme Corp"),
	})
	if got == nil || got.ID != "c-short" {
		t.Fatalf("Match = %v, want c-short", got)
	}

	// Same length: lexicographic name order.
	got = Match("Acme", []*models.Company{
		company("c-b", "Acme B"),
		company("c-a", "Acme A"),
	})
	if got == nil || got.ID != "c-a" {
		t.Fatalf("Match = %v, want c-a", got)
	}

	// Identical names: lowest ID, so repeated runs pick the same record.
	got = Match("Acme", []*models.Company{
		company("c-2", "Acme Corp"),
		company("c-1", "Acme Corp"),
	})
	if got == nil || got.ID != "c-1" {
		t.Fatalf("Match = %v, want c-1", got)
	}
}

func TestMatch_DeterministicAcrossInputOrder(t *testing.T) {
	a := company("c-a", "Acme Corp")
	b := company("c-b", "Acme Corporation")

	first := Match("Acme", []*models.Company{a, b})
	second := Match("Acme", []*models.Company{b, a})
	if first == nil || second == nil || first.ID != second.ID {
		t.Fatalf("order-dependent result: %v vs %v", first, second)
	}
}
