package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"imgscraper/pkg/errors"
	"imgscraper/pkg/logger"
)

const (
	DefaultProbeURL     = "https://www.google.com"
	DefaultProbeTimeout = 5 * time.Second
)

// Validator probes candidate proxies against a known-good URL
type Validator struct {
	probeURL string
	timeout  time.Duration
	logger   logger.Logger
}

// NewValidator creates a validator; zero values fall back to the defaults
func NewValidator(probeURL string, timeout time.Duration, log logger.Logger) *Validator {
	if probeURL == "" {
		probeURL = DefaultProbeURL
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Validator{
		probeURL: probeURL,
		timeout:  timeout,
		logger:   log.WithField("component", "proxy_validator"),
	}
}

// Validate probes every candidate at once and returns those that answered
// 200 within the timeout, in input order. Failed candidates are dropped.
func (v *Validator) Validate(ctx context.Context, candidates []string) WorkingSet {
	alive := make([]bool, len(candidates))

	var g errgroup.Group
	for i, c := range candidates {
		g.Go(func() error {
			if err := v.Probe(ctx, c); err != nil {
				v.logger.WithError(err).DebugWithFields("proxy rejected", logger.Fields{
					"proxy": Redact(c),
				})
				return nil
			}
			alive[i] = true
			return nil
		})
	}
	_ = g.Wait()

	working := make(WorkingSet, 0, len(candidates))
	for i, ok := range alive {
		if ok {
			working = append(working, candidates[i])
		}
	}

	v.logger.DebugWithFields("proxy validation finished", logger.Fields{
		"candidates": len(candidates),
		"working":    len(working),
	})
	return working
}

// Probe sends one GET to the probe URL through proxyURL
func (v *Validator) Probe(ctx context.Context, proxyURL string) error {
	client, err := NewHTTPClient(proxyURL, v.timeout)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeProxyProbe, err, "bad candidate")
	}
	if t, ok := client.Transport.(*http.Transport); ok {
		t.DisableKeepAlives = true
		defer t.CloseIdleConnections()
	}

	reqCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, v.probeURL, nil)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeProxyProbe, err, "bad request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeProxyProbe, err, "probe failed")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return errors.WithStatus(errors.ErrorTypeProxyProbe, resp.StatusCode,
			fmt.Sprintf("probe returned status %d", resp.StatusCode))
	}
	return nil
}
