package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"imgscraper/pkg/errors"
	"imgscraper/pkg/logger"
)

const (
	// DefaultBaseURL is the Webshare API root
	DefaultBaseURL = "https://proxy.webshare.io/api/v2/"
	// DefaultMaxCandidates caps how many listed proxies are probed
	DefaultMaxCandidates = 10

	listPath = "proxy/list/?mode=direct&page=1&page_size=25"
)

// Pool fetches candidate proxies from the listing API
type Pool struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	maxCandidates int
	logger        logger.Logger
}

// NewPool creates a listing client
func NewPool(baseURL, apiKey string, maxCandidates int, timeout time.Duration, log logger.Logger) *Pool {
	if log == nil {
		log = logger.GetLogger()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if maxCandidates < 1 {
		maxCandidates = DefaultMaxCandidates
	}

	return &Pool{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		apiKey:        apiKey,
		maxCandidates: maxCandidates,
		logger:        log.WithField("component", "proxy_pool"),
	}
}

// ListCandidates returns at most maxCandidates proxies in listing order
func (p *Pool) ListCandidates(ctx context.Context) ([]Candidate, error) {
	url := p.baseURL + listPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeUpstreamUnavailable, err, "failed to create request")
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		logger.LogRequest(p.logger, req.Method, url, 0, time.Since(start))
		return nil, errors.Wrap(errors.ErrorTypeUpstreamUnavailable, err, "proxy list request failed")
	}
	defer resp.Body.Close()

	logger.LogRequest(p.logger, req.Method, url, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.WithStatus(errors.ErrorTypeUpstreamUnavailable, resp.StatusCode,
			fmt.Sprintf("proxy list returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeUpstreamUnavailable, err, "failed to read response body")
	}

	var list listResponse
	if err := json.Unmarshal(body, &list); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		p.logger.ErrorWithFields("failed to parse proxy list", logger.Fields{
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return nil, errors.Wrap(errors.ErrorTypeUpstreamUnavailable, err, "failed to parse proxy list")
	}

	candidates := list.Results
	if len(candidates) > p.maxCandidates {
		candidates = candidates[:p.maxCandidates]
	}

	p.logger.DebugWithFields("proxy candidates listed", logger.Fields{
		"listed":     len(list.Results),
		"candidates": len(candidates),
	})
	return candidates, nil
}

// ConnectionStrings lists candidates and renders their connection strings
func (p *Pool) ConnectionStrings(ctx context.Context) ([]string, error) {
	candidates, err := p.ListCandidates(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.String()
	}
	return out, nil
}
