package kev

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
)

// CatalogURL is a package variable so tests can point it at an httptest
// server.
var CatalogURL = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"

type Catalog struct {
	Title           string     `json:"title"`
	CatalogVersion  string     `json:"catalogVersion"`
	DateReleased    string     `json:"dateReleased"`
	Count           int        `json:"count"`
	Vulnerabilities []RawEntry `json:"vulnerabilities"`
}

type RawEntry struct {
	CVEID                      string   `json:"cveID"`
	VendorProject              string   `json:"vendorProject"`
	Product                    string   `json:"product"`
	VulnerabilityName          string   `json:"vulnerabilityName"`
	DateAdded                  string   `json:"dateAdded"`
	ShortDescription           string   `json:"shortDescription"`
	RequiredAction             string   `json:"requiredAction"`
	DueDate                    string   `json:"dueDate"`
	KnownRansomwareCampaignUse string   `json:"knownRansomwareCampaignUse"`
	Notes                      string   `json:"notes"`
	CWEs                       []string `json:"cwes"`
}

// Envelope is the catalog header without the entry list. Cheap to fetch for
// the check-for-updates path.
type Envelope struct {
	CatalogVersion string `json:"catalogVersion"`
	DateReleased   string `json:"dateReleased"`
	Count          int    `json:"count"`
}

// FetchError classifies feed failures for the coordinator. Transient errors
// (network, timeout, 5xx) are worth retrying, everything else is not.
type FetchError struct {
	Transient bool
	Err       error
}

func (e *FetchError) Error() string {
	if e.Transient {
		return fmt.Sprintf("transient feed error: %s", e.Err)
	}
	return fmt.Sprintf("feed error: %s", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type FeedService struct {
	httpClient *http.Client
	url        string
	timeout    time.Duration
}

func NewFeedService() FeedService {
	feedURL := os.Getenv("KEV_FEED_URL")
	if feedURL == "" {
		feedURL = CatalogURL
	}
	return FeedService{
		httpClient: &http.Client{},
		url:        feedURL,
		timeout:    30 * time.Second,
	}
}

func (s FeedService) get(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, &FetchError{Transient: false, Err: errors.Wrap(err, "could not create feed request")}
	}

	res, err := s.httpClient.Do(req)
	if err != nil {
		// connection refused, DNS failure, timeout - all worth a retry
		return nil, &FetchError{Transient: true, Err: errors.Wrap(err, "could not reach feed")}
	}

	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, &FetchError{
			Transient: res.StatusCode >= 500,
			Err:       fmt.Errorf("feed returned status code %d", res.StatusCode),
		}
	}

	return res, nil
}

// Fetch retrieves and validates the full catalog. It is a single-shot
// operation - retry policy lives in the sync coordinator.
func (s FeedService) Fetch(ctx context.Context) (Catalog, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.get(ctx)
	if err != nil {
		return Catalog{}, err
	}
	defer res.Body.Close()

	var catalog Catalog
	if err := json.NewDecoder(res.Body).Decode(&catalog); err != nil {
		return Catalog{}, &FetchError{Transient: false, Err: errors.Wrap(err, "could not parse catalog JSON")}
	}

	if catalog.CatalogVersion == "" || catalog.DateReleased == "" || catalog.Vulnerabilities == nil {
		return Catalog{}, &FetchError{Transient: false, Err: fmt.Errorf("catalog envelope is malformed (version=%q, dateReleased=%q)", catalog.CatalogVersion, catalog.DateReleased)}
	}

	return catalog, nil
}

// FetchEnvelope streams the top-level object and stops before the entry
// list, so checking for updates does not parse tens of thousands of entries.
func (s FeedService) FetchEnvelope(ctx context.Context) (Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.get(ctx)
	if err != nil {
		return Envelope{}, err
	}
	defer res.Body.Close()

	dec := json.NewDecoder(res.Body)

	// opening brace of the catalog object
	if _, err := dec.Token(); err != nil {
		return Envelope{}, &FetchError{Transient: false, Err: errors.Wrap(err, "could not parse catalog JSON")}
	}

	var env Envelope
	for dec.More() {
		keyToken, err := dec.Token()
		if err != nil {
			return Envelope{}, &FetchError{Transient: false, Err: errors.Wrap(err, "could not parse catalog JSON")}
		}
		key, ok := keyToken.(string)
		if !ok {
			return Envelope{}, &FetchError{Transient: false, Err: fmt.Errorf("unexpected token %v in catalog envelope", keyToken)}
		}

		switch key {
		case "catalogVersion":
			if err := dec.Decode(&env.CatalogVersion); err != nil {
				return Envelope{}, &FetchError{Transient: false, Err: err}
			}
		case "dateReleased":
			if err := dec.Decode(&env.DateReleased); err != nil {
				return Envelope{}, &FetchError{Transient: false, Err: err}
			}
		case "count":
			if err := dec.Decode(&env.Count); err != nil {
				return Envelope{}, &FetchError{Transient: false, Err: err}
			}
		case "vulnerabilities":
			// the header fields precede the entry list in the published
			// document; once we are here we have everything we need
			if env.CatalogVersion != "" && env.DateReleased != "" {
				return env, nil
			}
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return Envelope{}, &FetchError{Transient: false, Err: err}
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return Envelope{}, &FetchError{Transient: false, Err: err}
			}
		}
	}

	if env.CatalogVersion == "" || env.DateReleased == "" {
		return Envelope{}, &FetchError{Transient: false, Err: fmt.Errorf("catalog envelope is malformed (version=%q, dateReleased=%q)", env.CatalogVersion, env.DateReleased)}
	}

	return env, nil
}
