package kev

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// sentinel vendor/product names the upstream feed uses for "we don't know".
// All of them collapse into a single canonical entity instead of spawning
// one spurious vendor per spelling.
const unknownCanonical = "unknown"
const unknownDisplay = "Unknown"

// corporate suffixes stripped from vendor names so "Microsoft Corp." and
// "Microsoft" resolve to the same vendor
var vendorSuffixes = []string{
	" inc.",
	" inc",
	" corporation",
	" corp.",
	" corp",
	" ltd.",
	" ltd",
	" llc",
	" co.",
	" company",
}

// NormalizedEntry is the strongly-typed form every catalog entry is forced
// into right after parsing. Downstream logic never touches RawEntry again.
type NormalizedEntry struct {
	CVEID string

	VendorName       string
	VendorCanonical  string
	ProductName      string
	ProductCanonical string

	VulnerabilityName  string
	DateAdded          datatypes.Date
	ShortDescription   string
	RequiredAction     string
	DueDate            *datatypes.Date
	KnownRansomwareUse bool
	Notes              string
	CWEs               []string
}

// SkippedEntry is the tagged alternative to NormalizedEntry: the raw entry
// could not be normalized and is counted but never persisted.
type SkippedEntry struct {
	CVEID  string
	Reason string
}

func isSentinelName(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "n/a", "unknown":
		return true
	}
	return false
}

// CanonicalVendorName returns the matching key for a vendor display name:
// trimmed, case-folded, corporate suffixes and punctuation stripped.
func CanonicalVendorName(name string) string {
	if isSentinelName(name) {
		return unknownCanonical
	}

	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, suffix := range vendorSuffixes {
		normalized = strings.ReplaceAll(normalized, suffix, "")
	}
	normalized = strings.ReplaceAll(normalized, ".", "")
	normalized = strings.ReplaceAll(normalized, ",", "")

	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		return unknownCanonical
	}
	return normalized
}

func CanonicalProductName(name string) string {
	if isSentinelName(name) {
		return unknownCanonical
	}
	return strings.ToLower(strings.TrimSpace(name))
}

func displayName(name string) string {
	if isSentinelName(name) {
		return unknownDisplay
	}
	return strings.TrimSpace(name)
}

func parseDate(dateStr string) (*datatypes.Date, error) {
	t, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, err
	}
	d := datatypes.Date(t)
	return &d, nil
}

func parseRansomwareUse(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "known", "yes", "true", "1":
		return true
	}
	return false
}

// normalizeEntry converts a raw catalog entry into its normalized form, or
// explains why it has to be skipped. Entries without a CVE identifier or
// with unparseable dates are skipped, never persisted.
func normalizeEntry(raw RawEntry) (NormalizedEntry, *SkippedEntry) {
	cveID := strings.TrimSpace(raw.CVEID)
	if cveID == "" {
		return NormalizedEntry{}, &SkippedEntry{Reason: "missing CVE identifier"}
	}

	dateAdded, err := parseDate(raw.DateAdded)
	if err != nil {
		return NormalizedEntry{}, &SkippedEntry{CVEID: cveID, Reason: "unparseable dateAdded: " + raw.DateAdded}
	}

	var dueDate *datatypes.Date
	if !isSentinelName(raw.DueDate) {
		dueDate, err = parseDate(raw.DueDate)
		if err != nil {
			return NormalizedEntry{}, &SkippedEntry{CVEID: cveID, Reason: "unparseable dueDate: " + raw.DueDate}
		}
	}

	return NormalizedEntry{
		CVEID:              cveID,
		VendorName:         displayName(raw.VendorProject),
		VendorCanonical:    CanonicalVendorName(raw.VendorProject),
		ProductName:        displayName(raw.Product),
		ProductCanonical:   CanonicalProductName(raw.Product),
		VulnerabilityName:  strings.TrimSpace(raw.VulnerabilityName),
		DateAdded:          *dateAdded,
		ShortDescription:   raw.ShortDescription,
		RequiredAction:     raw.RequiredAction,
		DueDate:            dueDate,
		KnownRansomwareUse: parseRansomwareUse(raw.KnownRansomwareCampaignUse),
		Notes:              raw.Notes,
		CWEs:               raw.CWEs,
	}, nil
}

func formatDate(d *datatypes.Date) string {
	if d == nil {
		return ""
	}
	return time.Time(*d).Format("2006-01-02")
}

// ContentHash fingerprints all mutable fields. The serialization is a fixed
// field order joined with a unit separator, so identical content always
// hashes identically across runs. CWEs are sorted first - their order in the
// feed carries no meaning.
func (e NormalizedEntry) ContentHash() string {
	cwes := make([]string, len(e.CWEs))
	copy(cwes, e.CWEs)
	sort.Strings(cwes)

	fields := []string{
		e.VulnerabilityName,
		e.ShortDescription,
		e.RequiredAction,
		formatDate(e.DueDate),
		strconv.FormatBool(e.KnownRansomwareUse),
		e.Notes,
		strings.Join(cwes, ","),
	}

	sum := sha256.Sum256([]byte(strings.Join(fields, "\x1f")))
	return hex.EncodeToString(sum[:])
}
