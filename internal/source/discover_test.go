package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const datasetPage = `<html><body>
<h1>Contratos Públicos - Portal BASE</h1>
<ul>
  <li><a href="/s/resources/contratos2024.xlsx">Contratos <b>2024</b></a></li>
  <li><a href="https://cdn.example.org/files/contratos2023.CSV" title="2023"></a></li>
  <li><a href="/api/1/datasets/r/abc?format=csv">Exportação</a></li>
  <li><a href="/s/resources/contratos2024.xlsx">duplicate</a></li>
  <li><a href="/about">About</a></li>
  <li><a href="#top">top</a></li>
  <li><a href="mailto:dados@example.org">mail.csv</a></li>
  <li><a href="ftp://example.org/old.csv">ftp</a></li>
</ul>
</body></html>`

func TestParseResources(t *testing.T) {
	got, err := ParseResources([]byte(datasetPage), "https://dados.gov.pt/en/datasets/contratos/")
	require.NoError(t, err)

	assert.Equal(t, []Resource{
		{URL: "https://dados.gov.pt/s/resources/contratos2024.xlsx", Title: "Contratos 2024", Format: "xlsx"},
		{URL: "https://cdn.example.org/files/contratos2023.CSV", Title: "2023", Format: "csv"},
		{URL: "https://dados.gov.pt/api/1/datasets/r/abc?format=csv", Title: "Exportação", Format: "csv"},
	}, got)
}

func TestParseResources_NoLinks(t *testing.T) {
	got, err := ParseResources([]byte("<p>nothing here</p>"), "https://dados.gov.pt/")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDiscoverAndDownload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/datasets/contratos/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<a href="/files/contratos2024.csv">2024</a><a href="/files/x?format=xlsx">x</a>`)
	})
	mux.HandleFunc("/files/contratos2024.csv", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "a;b;c;d\n")
	})
	mux.HandleFunc("/files/x", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "PK")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := newTestFetcher()
	resources, err := Discover(context.Background(), f, server.URL+"/datasets/contratos/")
	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, server.URL+"/files/contratos2024.csv", resources[0].URL)

	dir := t.TempDir()
	path, err := DownloadResource(context.Background(), f, resources[0], dir)
	require.NoError(t, err)
	assert.Equal(t, "contratos2024.csv", filepath.Base(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a;b;c;d\n", string(data))

	path, err = DownloadResource(context.Background(), f, resources[1], dir)
	require.NoError(t, err)
	assert.Equal(t, "resource.xlsx", filepath.Base(path))
}
