package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// Resource is a downloadable data file linked from a dataset page
type Resource struct {
	URL    string
	Title  string
	Format string // csv or xlsx
}

// Discover lists the CSV and XLSX files linked from a dataset page
func Discover(ctx context.Context, f *Fetcher, pageURL string) ([]Resource, error) {
	res, err := f.FetchCached(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	base := pageURL
	if res.FinalURL != "" {
		base = res.FinalURL
	}
	return ParseResources(res.Body, base)
}

// ParseResources extracts csv/xlsx links from an HTML page, resolved
// against baseURL and deduplicated in document order
func ParseResources(page []byte, baseURL string) ([]Resource, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	var resources []Resource
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attr(n, "href")
			if resolved := resolveURL(base, href); resolved != nil && !seen[resolved.String()] {
				if format := resourceFormat(resolved); format != "" {
					seen[resolved.String()] = true
					title := strings.Join(strings.Fields(textContent(n)), " ")
					if title == "" {
						title = attr(n, "title")
					}
					if title == "" {
						title = path.Base(resolved.Path)
					}
					resources = append(resources, Resource{URL: resolved.String(), Title: title, Format: format})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return resources, nil
}

// DownloadResource saves r into dir under its own file name
func DownloadResource(ctx context.Context, f *Fetcher, r Resource, dir string) (string, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || !strings.HasSuffix(strings.ToLower(name), "."+r.Format) {
		name = "resource." + r.Format
	}
	dst := filepath.Join(dir, name)
	if _, err := f.Download(ctx, r.URL, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func resourceFormat(u *url.URL) string {
	ext := strings.ToLower(path.Ext(u.Path))
	switch ext {
	case ".csv":
		return "csv"
	case ".xlsx":
		return "xlsx"
	}
	switch strings.ToLower(u.Query().Get("format")) {
	case "csv":
		return "csv"
	case "xlsx":
		return "xlsx"
	}
	return ""
}

func resolveURL(base *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return nil
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return nil
	}
	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil
	}
	return resolved
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
