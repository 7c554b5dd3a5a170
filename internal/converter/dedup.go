package converter

import (
	"encoding/json"

	"github.com/bnema/adblock-dashboard/internal/models"
)

// Deduplicate removes duplicate rules based on their JSON representation,
// keeping the first occurrence
func Deduplicate(rules []models.WebKitRule) []models.WebKitRule {
	seen := make(map[string]bool, len(rules))
	result := make([]models.WebKitRule, 0, len(rules))

	for _, r := range rules {
		key, err := json.Marshal(r)
		if err != nil {
			result = append(result, r)
			continue
		}
		if !seen[string(key)] {
			seen[string(key)] = true
			result = append(result, r)
		}
	}

	return result
}
