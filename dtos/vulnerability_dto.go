package dtos

import (
	"time"

	"github.com/google/uuid"
)

// VulnerabilityFilter narrows the paged vulnerability listing. Vendor and
// Product are matched as case-insensitive substrings against the display
// names.
type VulnerabilityFilter struct {
	Vendor         string
	Product        string
	RansomwareOnly bool
	DateFrom       *time.Time
	DateTo         *time.Time
	SortBy         string // dateAdded | cveID | vendor
	SortOrder      string // asc | desc
}

type VulnerabilityStats struct {
	Total           int64 `json:"total"`
	RansomwareCount int64 `json:"ransomwareCount"`
	VendorCount     int64 `json:"vendorCount"`
	ProductCount    int64 `json:"productCount"`
	AddedLast30Days int64 `json:"addedLast30Days"`
}

type VendorSummary struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	ProductCount       int64     `json:"productCount"`
	VulnerabilityCount int64     `json:"vulnerabilityCount"`
}
