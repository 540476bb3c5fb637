package kev

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/l3montree-dev/kevmon/database/models"
	"github.com/l3montree-dev/kevmon/shared"
	"gorm.io/datatypes"
)

type Classification int

const (
	ClassInsert Classification = iota
	ClassUpdate
	ClassUnchanged
)

// Diff is the result of reconciling a normalized entry against the stored
// row. ChangedFields and the snapshots feed the change-event audit trail.
type Diff struct {
	Classification Classification
	ChangedFields  []string
	OldValues      map[string]any
	NewValues      map[string]any
}

func decodeCWEs(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var cwes []string
	if err := json.Unmarshal(raw, &cwes); err != nil {
		return nil
	}
	return cwes
}

func encodeCWEs(cwes []string) datatypes.JSON {
	if cwes == nil {
		cwes = []string{}
	}
	b, _ := json.Marshal(cwes)
	return datatypes.JSON(b)
}

func mustJSON(values map[string]any) datatypes.JSON {
	b, _ := json.Marshal(values)
	return datatypes.JSON(b)
}

func cweKey(cwes []string) string {
	sorted := make([]string, len(cwes))
	copy(sorted, cwes)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func datesEqual(a, b *datatypes.Date) bool {
	if a == nil || b == nil {
		return a == b
	}
	return time.Time(*a).Equal(time.Time(*b))
}

// classify decides insert / update / unchanged for one entry. The stored
// content hash is the cheap first check; only on mismatch are the individual
// fields compared to name what changed.
func classify(existing *models.Vulnerability, entry NormalizedEntry, hash string) Diff {
	if existing == nil {
		return Diff{Classification: ClassInsert}
	}

	if existing.ContentHash == hash {
		return Diff{Classification: ClassUnchanged}
	}

	// dateAdded is immutable. Upstream occasionally rewrites it; that is an
	// anomaly to log, never a change to apply.
	if !time.Time(existing.DateAdded).Equal(time.Time(entry.DateAdded)) {
		slog.Warn("upstream reports a different dateAdded for an existing CVE, keeping the stored value",
			"cve", entry.CVEID,
			"stored", time.Time(existing.DateAdded).Format("2006-01-02"),
			"upstream", time.Time(entry.DateAdded).Format("2006-01-02"))
	}

	diff := Diff{
		Classification: ClassUpdate,
		OldValues:      map[string]any{},
		NewValues:      map[string]any{},
	}
	changed := func(field string, oldVal, newVal any) {
		diff.ChangedFields = append(diff.ChangedFields, field)
		diff.OldValues[field] = oldVal
		diff.NewValues[field] = newVal
	}

	if existing.VulnerabilityName != entry.VulnerabilityName {
		changed("vulnerabilityName", existing.VulnerabilityName, entry.VulnerabilityName)
	}
	if existing.ShortDescription != entry.ShortDescription {
		changed("shortDescription", existing.ShortDescription, entry.ShortDescription)
	}
	if existing.RequiredAction != entry.RequiredAction {
		changed("requiredAction", existing.RequiredAction, entry.RequiredAction)
	}
	if !datesEqual(existing.DueDate, entry.DueDate) {
		changed("dueDate", formatDate(existing.DueDate), formatDate(entry.DueDate))
	}
	if existing.KnownRansomwareUse != entry.KnownRansomwareUse {
		changed("knownRansomwareUse", existing.KnownRansomwareUse, entry.KnownRansomwareUse)
	}
	if existing.Notes != entry.Notes {
		changed("notes", existing.Notes, entry.Notes)
	}
	if cweKey(decodeCWEs(existing.CWEs)) != cweKey(entry.CWEs) {
		changed("cwes", decodeCWEs(existing.CWEs), entry.CWEs)
	}

	return diff
}

// applyUpdate rewrites the mutable fields and the hash. CVE identifier,
// dateAdded and firstSeenAt stay untouched.
func applyUpdate(existing *models.Vulnerability, entry NormalizedEntry, hash string, now time.Time) {
	existing.VulnerabilityName = entry.VulnerabilityName
	existing.ShortDescription = entry.ShortDescription
	existing.RequiredAction = entry.RequiredAction
	existing.DueDate = entry.DueDate
	existing.KnownRansomwareUse = entry.KnownRansomwareUse
	existing.Notes = entry.Notes
	existing.CWEs = encodeCWEs(entry.CWEs)
	existing.ContentHash = hash
	existing.LastSyncedAt = now
}

func newVulnerability(entry NormalizedEntry, hash string, vendor models.Vendor, product models.Product, now time.Time) models.Vulnerability {
	return models.Vulnerability{
		CVE:                entry.CVEID,
		VendorID:           vendor.ID,
		ProductID:          product.ID,
		VulnerabilityName:  entry.VulnerabilityName,
		DateAdded:          entry.DateAdded,
		ShortDescription:   entry.ShortDescription,
		RequiredAction:     entry.RequiredAction,
		DueDate:            entry.DueDate,
		KnownRansomwareUse: entry.KnownRansomwareUse,
		Notes:              entry.Notes,
		CWEs:               encodeCWEs(entry.CWEs),
		ContentHash:        hash,
		FirstSeenAt:        now,
		LastSyncedAt:       now,
	}
}

// entityResolver performs the look-up-or-create for vendors and products
// ahead of vulnerability classification, so foreign keys are always valid at
// write time. Resolved IDs are cached per run - the same vendor shows up in
// many batches.
type entityResolver struct {
	vendorRepository  shared.VendorRepository
	productRepository shared.ProductRepository

	vendors  map[string]models.Vendor
	products map[string]models.Product
}

func newEntityResolver(vendorRepository shared.VendorRepository, productRepository shared.ProductRepository) *entityResolver {
	return &entityResolver{
		vendorRepository:  vendorRepository,
		productRepository: productRepository,
		vendors:           map[string]models.Vendor{},
		products:          map[string]models.Product{},
	}
}

func (r *entityResolver) resolve(tx shared.DB, entry NormalizedEntry) (models.Vendor, models.Product, error) {
	vendor, ok := r.vendors[entry.VendorCanonical]
	if !ok {
		vendor = models.Vendor{
			Name:          entry.VendorName,
			CanonicalName: entry.VendorCanonical,
		}
		if err := r.vendorRepository.UpsertByCanonicalName(tx, &vendor); err != nil {
			return models.Vendor{}, models.Product{}, err
		}
		r.vendors[entry.VendorCanonical] = vendor
	}

	productKey := vendor.ID.String() + "/" + entry.ProductCanonical
	product, ok := r.products[productKey]
	if !ok {
		product = models.Product{
			VendorID:      vendor.ID,
			Name:          entry.ProductName,
			CanonicalName: entry.ProductCanonical,
		}
		if err := r.productRepository.UpsertByCanonicalName(tx, &product); err != nil {
			return models.Vendor{}, models.Product{}, err
		}
		r.products[productKey] = product
	}

	return vendor, product, nil
}
