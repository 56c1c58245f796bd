package httpclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// New returns a client with bounded dial/TLS timeouts.
func New(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// Permanent marks an error that Retry must not retry.
type Permanent struct{ Err error }

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Retry calls fn up to attempts times with doubling backoff capped at max.
// It stops early on ctx cancellation or a *Permanent error.
func Retry(ctx context.Context, attempts int, initial, max time.Duration, fn func() error) error {
	if attempts <= 1 {
		return Cause(fn())
	}
	d := initial
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ctx.Err()
			}
			if d < max {
				d *= 2
				if d > max {
					d = max
				}
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
	}
	return err
}

// Cause strips a *Permanent wrapper.
func Cause(err error) error {
	var perm *Permanent
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
