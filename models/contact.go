package models

import (
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
)

type Contact struct {
	ID             int       `gorm:"primary_key" json:"id"`
	Name           string    `gorm:"uniqueIndex;size:255;not null" json:"name"`
	VendorType     string    `gorm:"size:45;default:Vendor" json:"vendor_type"`
	VendorStatus   string    `gorm:"size:45;default:PENDING" json:"vendor_status"`
	PaymentDetails string    `gorm:"size:255;default:PENDING" json:"payment_details"`
	Email          *string   `gorm:"size:100" json:"email"`
	Phone          *string   `gorm:"size:45" json:"phone"`
	TaxNumber      *string   `gorm:"size:45" json:"tax_number"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// contactMatchThreshold is the minimum normalized similarity for a fuzzy
// name match. Vendor names come from hand-typed PO logs; small typos should
// land on the existing contact, "Acme Rentals" vs "ACE Hardware" should not.
const contactMatchThreshold = 0.85

// FindContactCloseMatch returns the existing contact whose name best matches
// name, or nil when nothing is close enough. Exact (case-insensitive)
// matches win outright.
func FindContactCloseMatch(name string, contacts []*Contact) *Contact {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil
	}

	var best *Contact
	var bestScore float64
	for _, c := range contacts {
		candidate := strings.ToLower(strings.TrimSpace(c.Name))
		if candidate == needle {
			return c
		}
		score := nameSimilarity(needle, candidate)
		if score >= contactMatchThreshold && score > bestScore {
			best = c
			bestScore = score
		}
	}
	return best
}

func nameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
