package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/integridade/internal/model"
)

func TestRobotsChecker_CanFetch(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			hits++
			_, _ = w.Write([]byte("User-agent: Integridade\nDisallow: /private\nCrawl-delay: 2\n\nUser-agent: *\nDisallow: /\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rc := NewRobotsChecker("Integridade/0.1 (+https://example.com)", server.Client())
	ctx := context.Background()

	ok, delay, err := rc.CanFetch(ctx, server.URL+"/api/explore/v2.1/catalog/datasets/portal-base/exports/csv")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, delay)

	ok, _, err = rc.CanFetch(ctx, server.URL+"/private/data.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, hits, "robots.txt is cached per host")

	rc.Clear()
	_, _, _ = rc.CanFetch(ctx, server.URL+"/x")
	assert.Equal(t, 2, hits)
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	rc := NewRobotsChecker("Integridade/0.1", server.Client())
	ok, _, err := rc.CanFetch(context.Background(), server.URL+"/anything")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRobotsChecker_UnreachableAllows(t *testing.T) {
	rc := NewRobotsChecker("Integridade/0.1", &http.Client{Timeout: time.Second})
	ok, _, err := rc.CanFetch(context.Background(), "http://127.0.0.1:1/data.csv")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNormalizeUserAgent(t *testing.T) {
	assert.Equal(t, "Integridade", NormalizeUserAgent("Integridade/0.1 (+https://github.com/ppiankov/integridade)"))
	assert.Equal(t, "curl", NormalizeUserAgent("curl"))
	assert.Equal(t, "", NormalizeUserAgent(""))
}

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc(model.ProxyConfig{
		HTTP:    "http://proxy.local:3128",
		HTTPS:   "http://secure.local:3128",
		NoProxy: "internal.example",
	})

	req := func(raw string) *http.Request {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		return &http.Request{URL: u}
	}

	got, err := proxy(req("https://transparencia.sns.gov.pt/robots.txt"))
	require.NoError(t, err)
	assert.Equal(t, "secure.local:3128", got.Host)

	got, err = proxy(req("http://dados.gov.pt/"))
	require.NoError(t, err)
	assert.Equal(t, "proxy.local:3128", got.Host)

	got, err = proxy(req("http://internal.example/x"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNewHTTPClient(t *testing.T) {
	c := NewHTTPClient(5*time.Second, model.ProxyConfig{})
	assert.Equal(t, 5*time.Second, c.Timeout)
	require.NotNil(t, c.Transport)
}
