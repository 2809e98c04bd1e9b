package util

import (
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http/httpproxy"

	"github.com/ppiankov/integridade/internal/model"
)

// NewProxyFunc returns the proxy selector for outbound clients. Configured
// values override the environment; NoProxy is honored either way.
func NewProxyFunc(cfg model.ProxyConfig) func(*http.Request) (*url.URL, error) {
	if cfg.HTTP == "" && cfg.HTTPS == "" && cfg.NoProxy == "" {
		return http.ProxyFromEnvironment
	}

	env := httpproxy.FromEnvironment()
	pc := &httpproxy.Config{
		HTTPProxy:  firstNonEmpty(cfg.HTTP, env.HTTPProxy),
		HTTPSProxy: firstNonEmpty(cfg.HTTPS, env.HTTPSProxy),
		NoProxy:    firstNonEmpty(cfg.NoProxy, env.NoProxy),
	}
	proxy := pc.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return proxy(req.URL)
	}
}

// NewHTTPClient builds a client with the given timeout and proxy settings
func NewHTTPClient(timeout time.Duration, cfg model.ProxyConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = NewProxyFunc(cfg)
	return &http.Client{Timeout: timeout, Transport: transport}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
