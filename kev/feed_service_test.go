package kev

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCatalogJSON = `{
	"title": "CISA Catalog of Known Exploited Vulnerabilities",
	"catalogVersion": "2024.03.05",
	"dateReleased": "2024-03-05T14:00:00.000Z",
	"count": 2,
	"vulnerabilities": [
		{
			"cveID": "CVE-2024-1234",
			"vendorProject": "Microsoft",
			"product": "Windows",
			"vulnerabilityName": "Windows Kernel Privilege Escalation",
			"dateAdded": "2024-03-05",
			"shortDescription": "A privilege escalation vulnerability.",
			"requiredAction": "Apply updates per vendor instructions.",
			"dueDate": "2024-03-26",
			"knownRansomwareCampaignUse": "Known",
			"notes": "",
			"cwes": ["CWE-416"]
		},
		{
			"cveID": "CVE-2023-9999",
			"vendorProject": "Apple",
			"product": "iOS",
			"vulnerabilityName": "WebKit Memory Corruption",
			"dateAdded": "2023-11-01",
			"shortDescription": "A memory corruption vulnerability.",
			"requiredAction": "Apply updates per vendor instructions.",
			"dueDate": "",
			"knownRansomwareCampaignUse": "Unknown",
			"notes": "",
			"cwes": []
		}
	]
}`

func feedServiceFor(url string) FeedService {
	svc := NewFeedService()
	svc.url = url
	return svc
}

func TestFeedServiceFetch(t *testing.T) {
	t.Run("should fetch and parse a valid catalog", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(validCatalogJSON)) // nolint: errcheck
		}))
		defer srv.Close()

		catalog, err := feedServiceFor(srv.URL).Fetch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "2024.03.05", catalog.CatalogVersion)
		assert.Len(t, catalog.Vulnerabilities, 2)
		assert.Equal(t, "CVE-2024-1234", catalog.Vulnerabilities[0].CVEID)
	})

	t.Run("should fail without retry hint on malformed JSON", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"catalogVersion": "2024.`)) // nolint: errcheck
		}))
		defer srv.Close()

		_, err := feedServiceFor(srv.URL).Fetch(context.Background())
		require.Error(t, err)
		var fetchErr *FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.False(t, fetchErr.Transient)
	})

	t.Run("should fail on a structurally valid but incomplete envelope", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"title": "no version", "vulnerabilities": []}`)) // nolint: errcheck
		}))
		defer srv.Close()

		_, err := feedServiceFor(srv.URL).Fetch(context.Background())
		require.Error(t, err)
		var fetchErr *FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.False(t, fetchErr.Transient)
	})

	t.Run("should mark 5xx responses as transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(503)
		}))
		defer srv.Close()

		_, err := feedServiceFor(srv.URL).Fetch(context.Background())
		require.Error(t, err)
		var fetchErr *FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.True(t, fetchErr.Transient)
	})

	t.Run("should mark 4xx responses as permanent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(404)
		}))
		defer srv.Close()

		_, err := feedServiceFor(srv.URL).Fetch(context.Background())
		require.Error(t, err)
		var fetchErr *FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.False(t, fetchErr.Transient)
	})

	t.Run("should mark unreachable hosts as transient", func(t *testing.T) {
		_, err := feedServiceFor("http://127.0.0.1:1/kev.json").Fetch(context.Background())
		require.Error(t, err)
		var fetchErr *FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.True(t, fetchErr.Transient)
	})
}

func TestFeedServiceFetchEnvelope(t *testing.T) {
	t.Run("should read the envelope without the entry list", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(validCatalogJSON)) // nolint: errcheck
		}))
		defer srv.Close()

		env, err := feedServiceFor(srv.URL).FetchEnvelope(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "2024.03.05", env.CatalogVersion)
		assert.Equal(t, "2024-03-05T14:00:00.000Z", env.DateReleased)
		assert.Equal(t, 2, env.Count)
	})

	t.Run("should fail on an envelope without a catalog version", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"title": "x", "count": 0}`)) // nolint: errcheck
		}))
		defer srv.Close()

		_, err := feedServiceFor(srv.URL).FetchEnvelope(context.Background())
		require.Error(t, err)
	})
}
