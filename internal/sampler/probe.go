package sampler

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

// NetProber implements Prober with plain TCP dials and HTTP GETs.
type NetProber struct {
	client *http.Client
}

func NewNetProber() *NetProber {
	return &NetProber{client: &http.Client{}}
}

func (p *NetProber) ProbeTCP(ctx context.Context, host string, port int, timeout time.Duration) bool {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()

	return true
}

func (p *NetProber) ProbeHTTP(ctx context.Context, url string, timeout time.Duration) (HTTPResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return HTTPResult{}, Unavailable(err)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return HTTPResult{}, Unavailable(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return HTTPResult{
		StatusCode: resp.StatusCode,
		Elapsed:    time.Since(start),
	}, nil
}
