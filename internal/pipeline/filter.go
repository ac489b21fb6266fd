package pipeline

import (
	"strings"

	"jobscout/internal/model"
)

// containsRedFlag reports whether any flagged term appears (case-insensitive)
// in the combined title + company + teaser text. Flagged listings are dropped
// before any description fetch so junk never reaches the AI prompt.
func containsRedFlag(l model.JobListing, redFlags []string) bool {
	if len(redFlags) == 0 {
		return false
	}
	combined := strings.ToLower(l.Title + " " + l.Company + " " + l.Description)
	for _, flag := range redFlags {
		if flag == "" {
			continue
		}
		if strings.Contains(combined, strings.ToLower(flag)) {
			return true
		}
	}
	return false
}

func filterListings(listings []model.JobListing, redFlags []string) []model.JobListing {
	if len(redFlags) == 0 {
		return listings
	}
	kept := listings[:0:0]
	for _, l := range listings {
		if !containsRedFlag(l, redFlags) {
			kept = append(kept, l)
		}
	}
	return kept
}
