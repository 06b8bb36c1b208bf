package persistence

import "strings"

// ValidateSortOrder normalizes the sort direction to ASC or DESC.
// Anything else, including empty input, becomes DESC.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "asc") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed
// fields to prevent SQL injection through ORDER BY. Returns defaultField when
// the input is empty or not whitelisted.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// CollectionSortFields contains the allowed sort fields for collections
var CollectionSortFields = map[string]bool{
	"created_at":      true,
	"updated_at":      true,
	"collection_date": true,
	"total_amount":    true,
	"status":          true,
	"district_name":   true,
	"gazette_no":      true,
}
