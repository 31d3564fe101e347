package httpclient

import (
	"context"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

type Options struct {
	PreferIPv4 bool
	Timeout    time.Duration

	// RateInterval spaces outbound requests; zero disables limiting.
	RateInterval time.Duration
	RateBurst    int
}

func New(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   15 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	var transport http.RoundTripper = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if opts.PreferIPv4 {
				return dialer.DialContext(ctx, "tcp4", addr)
			}
			return dialer.DialContext(ctx, network, addr)
		},
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if opts.RateInterval > 0 {
		transport = NewLimitedTransport(transport, opts.RateInterval, opts.RateBurst)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

type LimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func NewLimitedTransport(base http.RoundTripper, every time.Duration, burst int) *LimitedTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if burst < 1 {
		burst = 1
	}
	return &LimitedTransport{
		base:    base,
		limiter: rate.NewLimiter(rate.Every(every), burst),
	}
}

func (t *LimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
