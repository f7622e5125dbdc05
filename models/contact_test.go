package models

import "testing"

func TestFindContactCloseMatch(t *testing.T) {
	contacts := []*Contact{
		{ID: 1, Name: "Acme Rentals"},
		{ID: 2, Name: "Crew Catering"},
		{ID: 3, Name: "PETTY CASH"},
	}

	// exact match is case-insensitive
	if got := FindContactCloseMatch("acme rentals", contacts); got == nil || got.ID != 1 {
		t.Errorf("exact match failed: %+v", got)
	}

	// one-character typo lands on the existing contact
	if got := FindContactCloseMatch("Acme Rentalz", contacts); got == nil || got.ID != 1 {
		t.Errorf("fuzzy match failed: %+v", got)
	}

	// unrelated names never match
	if got := FindContactCloseMatch("ACE Hardware", contacts); got != nil {
		t.Errorf("unrelated name matched %+v", got)
	}

	if got := FindContactCloseMatch("   ", contacts); got != nil {
		t.Errorf("blank name matched %+v", got)
	}
}

func TestNameSimilarity(t *testing.T) {
	if s := nameSimilarity("acme rentals", "acme rentals"); s != 1 {
		t.Errorf("identical similarity = %f", s)
	}
	if s := nameSimilarity("acme", ""); s != 0 {
		t.Errorf("empty similarity = %f", s)
	}
	if s := nameSimilarity("acme rentals", "acme rentalz"); s < contactMatchThreshold {
		t.Errorf("near-identical similarity %f below threshold", s)
	}
}
