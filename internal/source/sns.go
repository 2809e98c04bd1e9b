package source

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/integridade/internal/logger"
	"github.com/ppiankov/integridade/internal/model"
)

// Download strategies, in the order Obtain tries them
const (
	StrategyLocal  = "local"
	StrategyFull   = "full"
	StrategyExport = "export"
	StrategyPaged  = "paged"
)

const (
	// DefaultFileName is where downloads are written inside the data dir
	DefaultFileName = "portal_base.csv"
	// DatasetPage lists the manually downloadable yearly files
	DatasetPage = "https://dados.gov.pt/en/datasets/contratos-publicos-portal-base-impic-contratos-de-2012-a-2026/"

	minLocalBytes    = 1000
	minDownloadBytes = 100
)

// ErrNoData is returned when every strategy failed
var ErrNoData = errors.New("could not obtain procurement data")

// Client talks to the OpenDataSoft explore API of the SNS transparency
// portal, which republishes the Portal BASE contracts dataset
type Client struct {
	fetcher     *Fetcher
	baseURL     string
	dataset     string
	exportLimit int
	pageSize    int
	log         *logger.Logger
}

// NewClient creates a portal client
func NewClient(cfg model.SourceConfig, fetcher *Fetcher, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	c := &Client{
		fetcher:     fetcher,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		dataset:     cfg.Dataset,
		exportLimit: cfg.ExportLimit,
		pageSize:    cfg.PageSize,
		log:         log,
	}
	if c.exportLimit <= 0 {
		c.exportLimit = 10000
	}
	if c.pageSize <= 0 {
		c.pageSize = 100
	}
	return c
}

// Result describes where the data came from
type Result struct {
	Path     string
	Strategy string
	Records  int
	Bytes    int64
}

// RecordsURL is the paged JSON records endpoint
func (c *Client) RecordsURL(limit, offset int) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return fmt.Sprintf("%s/api/explore/v2.1/catalog/datasets/%s/records?%s", c.baseURL, c.dataset, q.Encode())
}

// ExportURL is the CSV export endpoint
func (c *Client) ExportURL(limit int) string {
	q := url.Values{}
	q.Set("delimiter", ";")
	q.Set("list_separator", "|")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", "0")
	return fmt.Sprintf("%s/api/explore/v2.1/catalog/datasets/%s/exports/csv?%s", c.baseURL, c.dataset, q.Encode())
}

// FullURL is the unlimited CSV download link
func (c *Client) FullURL() string {
	return fmt.Sprintf("%s/explore/dataset/%s/download/?format=csv&timezone=Europe/Lisbon", c.baseURL, c.dataset)
}

// ExportPage is the portal page a person can download the CSV from by hand
func (c *Client) ExportPage() string {
	return fmt.Sprintf("%s/explore/dataset/%s/export/?sort=datacelebracaocontrato", c.baseURL, c.dataset)
}

type recordsPage struct {
	TotalCount int               `json:"total_count"`
	Results    []json.RawMessage `json:"results"`
}

// CountRecords asks the API how many records the dataset holds
func (c *Client) CountRecords(ctx context.Context) (int, error) {
	res, err := c.fetcher.FetchCached(ctx, c.RecordsURL(0, 0))
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	var page recordsPage
	if err := json.Unmarshal(res.Body, &page); err != nil {
		return 0, fmt.Errorf("decode record count: %w", err)
	}
	return page.TotalCount, nil
}

// DownloadFull fetches the complete CSV. Bodies of 100 bytes or less are
// rejected as empty.
func (c *Client) DownloadFull(ctx context.Context, path string) (int64, error) {
	n, err := c.fetcher.Download(ctx, c.FullURL(), path)
	if err != nil {
		return 0, err
	}
	if n <= minDownloadBytes {
		_ = os.Remove(path)
		return 0, fmt.Errorf("full download returned only %d bytes", n)
	}
	return n, nil
}

// DownloadExport fetches at most limit records through the export API
func (c *Client) DownloadExport(ctx context.Context, path string, limit int) (int64, error) {
	n, err := c.fetcher.Download(ctx, c.ExportURL(limit), path)
	if err != nil {
		return 0, err
	}
	if n <= minDownloadBytes {
		_ = os.Remove(path)
		return 0, fmt.Errorf("export returned only %d bytes", n)
	}
	return n, nil
}

// DownloadPaged walks the records API page by page and writes a ';'
// separated CSV with a UTF-8 BOM. A failing page ends the walk; the records
// gathered so far are kept.
func (c *Client) DownloadPaged(ctx context.Context, path string, total int) (int, error) {
	var records []map[string]any
	for offset := 0; offset < total; offset += c.pageSize {
		res, err := c.fetcher.FetchWithRetry(ctx, c.RecordsURL(c.pageSize, offset))
		if err != nil {
			c.log.Warn("page fetch failed", "offset", offset, "error", err)
			break
		}
		var page recordsPage
		if err := json.Unmarshal(res.Body, &page); err != nil {
			c.log.Warn("page decode failed", "offset", offset, "error", err)
			break
		}
		if len(page.Results) == 0 {
			break
		}
		for _, raw := range page.Results {
			rec, err := recordFields(raw)
			if err != nil {
				c.log.Warn("skipping undecodable record", "offset", offset, "error", err)
				continue
			}
			records = append(records, rec)
		}
		c.log.Debug("page fetched", "records", len(records), "total", total)
	}

	if len(records) == 0 {
		return 0, fmt.Errorf("paged download returned no records")
	}
	if err := writeRecordsCSV(path, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// recordFields unwraps the v1 {"record": {"fields": {...}}} shape; v2.1
// records are flat
func recordFields(raw json.RawMessage) (map[string]any, error) {
	var rec map[string]any
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	if inner, ok := rec["record"].(map[string]any); ok {
		if fields, ok := inner["fields"].(map[string]any); ok {
			return fields, nil
		}
	}
	return rec, nil
}

func writeRecordsCSV(path string, records []map[string]any) error {
	seen := make(map[string]bool)
	var columns []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	if _, err := f.WriteString("\ufeff"); err != nil {
		_ = f.Close()
		return err
	}
	w := csv.NewWriter(f)
	w.Comma = ';'
	_ = w.Write(columns)
	row := make([]string, len(columns))
	for _, rec := range records {
		for i, col := range columns {
			row[i] = formatValue(rec[col])
		}
		_ = w.Write(row)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = formatValue(item)
		}
		return strings.Join(parts, "|")
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// FindLocal returns the first CSV, then XLSX, in dir larger than 1000 bytes
func FindLocal(dir string) (string, bool) {
	for _, pattern := range []string{"*.csv", "*.xlsx"} {
		matches, _ := filepath.Glob(filepath.Join(dir, pattern))
		sort.Strings(matches)
		for _, m := range matches {
			if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() && info.Size() > minLocalBytes {
				return m, true
			}
		}
	}
	return "", false
}

// Obtain returns a usable data file in dir, trying a local file, the full
// CSV, the export API and finally the paged records API
func (c *Client) Obtain(ctx context.Context, dir string) (*Result, error) {
	if path, ok := FindLocal(dir); ok {
		info, _ := os.Stat(path)
		c.log.Info("using local file", "path", path, "bytes", info.Size())
		return &Result{Path: path, Strategy: StrategyLocal, Bytes: info.Size()}, nil
	}

	path := filepath.Join(dir, DefaultFileName)

	total, err := c.CountRecords(ctx)
	if err != nil {
		c.log.Warn("record count unavailable", "error", err)
	} else {
		c.log.Info("records available", "total", total)
	}

	n, err := c.DownloadFull(ctx, path)
	if err == nil {
		return &Result{Path: path, Strategy: StrategyFull, Records: total, Bytes: n}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	c.log.Warn("full download failed", "error", err)

	limit := c.exportLimit
	if total > 0 && total < limit {
		limit = total
	}
	n, err = c.DownloadExport(ctx, path, limit)
	if err == nil {
		return &Result{Path: path, Strategy: StrategyExport, Records: limit, Bytes: n}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	c.log.Warn("export download failed", "error", err)

	if total > 0 {
		records, err := c.DownloadPaged(ctx, path, total)
		if err == nil {
			var size int64
			if info, statErr := os.Stat(path); statErr == nil {
				size = info.Size()
			}
			return &Result{Path: path, Strategy: StrategyPaged, Records: records, Bytes: size}, nil
		}
		c.log.Warn("paged download failed", "error", err)
	}

	return nil, fmt.Errorf("%w: download the CSV from %s or an xlsx from %s into %s", ErrNoData, c.ExportPage(), DatasetPage, dir)
}
