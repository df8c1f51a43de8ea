// Package proxy finds proxies that can carry search traffic.
//
// Pool lists candidates from the Webshare API and Validator probes them all
// concurrently, keeping those that answer 200 within the probe timeout. The
// result is a WorkingSet, which is never modified once built.
package proxy
