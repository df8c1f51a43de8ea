package proxy

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// NewHTTPClient returns a client that sends every request through proxyURL.
// An empty proxyURL yields a direct client.
func NewHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               nil,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
	}

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q: missing host", proxyURL)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// ClientSet holds one HTTP client per working proxy
type ClientSet struct {
	proxies WorkingSet
	clients map[string]*http.Client
	direct  *http.Client
}

// NewClientSet builds clients for every proxy in ws. Entries that cannot be
// parsed are skipped.
func NewClientSet(ws WorkingSet, timeout time.Duration) *ClientSet {
	direct, _ := NewHTTPClient("", timeout)
	cs := &ClientSet{
		clients: make(map[string]*http.Client, len(ws)),
		direct:  direct,
	}
	for _, p := range ws {
		c, err := NewHTTPClient(p, timeout)
		if err != nil {
			continue
		}
		cs.proxies = append(cs.proxies, p)
		cs.clients[p] = c
	}
	return cs
}

// Pick returns a random proxy and its client, or the direct client with an
// empty proxy when the set is empty
func (cs *ClientSet) Pick() (string, *http.Client) {
	p, ok := cs.proxies.Pick()
	if !ok {
		return "", cs.direct
	}
	return p, cs.clients[p]
}

// Len returns the number of proxied clients
func (cs *ClientSet) Len() int {
	return cs.proxies.Len()
}

// Redact strips the password from a connection string for logging
func Redact(proxyURL string) string {
	if proxyURL == "" {
		return "none"
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return "invalid"
	}
	return u.Redacted()
}
