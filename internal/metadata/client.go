package metadata

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/logger"
)

// NotAvailable stands in for any metadata value that could not be read.
const NotAvailable = "N/A"

const (
	DefaultEndpoint = "http://169.254.169.254"
	DefaultTimeout  = 10 * time.Second

	tokenPath      = "/latest/api/token"
	metaDataPath   = "/latest/meta-data/"
	dynamicPath    = "/latest/dynamic/"
	userDataPath   = "/latest/user-data"
	tokenHeader    = "X-aws-ec2-metadata-token"
	tokenTTLHeader = "X-aws-ec2-metadata-token-ttl-seconds"
)

var log = logger.Component("metadata")

// Client reads the instance metadata service. Reads carry a session token
// when one can be minted and fall back to plain GETs otherwise.
type Client struct {
	endpoint string
	http     *http.Client
	tokens   *TokenCache
}

type ClientOptions struct {
	Endpoint string
	Timeout  time.Duration
	TokenTTL time.Duration
}

func NewClient(opts ClientOptions) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	c := &Client{
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		http:     &http.Client{Timeout: opts.Timeout},
	}
	c.tokens = NewTokenCache(MinterFunc(c.mint), opts.TokenTTL)

	return c
}

// Tokens exposes the client's token cache.
func (c *Client) Tokens() *TokenCache {
	return c.tokens
}

func (c *Client) mint(ctx context.Context, ttl time.Duration) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint+tokenPath, http.NoBody)
	if err != nil {
		return "", errors.New().Wrap(ErrTokenRefresh, err)
	}
	req.Header.Set(tokenTTLHeader, strconv.Itoa(int(ttl.Seconds())))

	body, err := c.do(req)
	if err != nil {
		return "", errors.New().Wrap(ErrTokenRefresh, err)
	}

	return strings.TrimSpace(body), nil
}

// Get reads a path under the meta-data tree.
func (c *Client) Get(ctx context.Context, path string) string {
	return c.read(ctx, metaDataPath+path, true)
}

// Dynamic reads a path under the dynamic tree.
func (c *Client) Dynamic(ctx context.Context, path string) string {
	return c.read(ctx, dynamicPath+path, true)
}

// UserData returns the raw user data, untrimmed.
func (c *Client) UserData(ctx context.Context) string {
	return c.read(ctx, userDataPath, false)
}

func (c *Client) read(ctx context.Context, path string, trim bool) string {
	url := c.endpoint + path

	if token := c.tokens.Token(ctx); token != "" {
		body, err := c.get(ctx, url, token)
		if err == nil {
			return value(body, trim)
		}
		log.Debug().Err(err).Str("path", path).Msg("Token read failed, retrying without token")
	}

	body, err := c.get(ctx, url, "")
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("Metadata unavailable")
		return NotAvailable
	}

	return value(body, trim)
}

func value(body string, trim bool) string {
	if trim {
		body = strings.TrimSpace(body)
	}
	if body == "" {
		return NotAvailable
	}

	return body
}

func (c *Client) get(ctx context.Context, url, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", errors.New().Wrap(ErrRequestFailed, err)
	}
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) (string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.New().Wrap(ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.New().Wrap(ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.New().WithData(ErrUnexpectedCode, resp.StatusCode)
	}

	return string(body), nil
}
