// Copyright © 2018 One Concern

// Package fetch downloads archives and index files from upstream repositories.
//
// Remote (http, https) and local (file) URLs are supported. Transient failures are retried
// with an exponential backoff, and a circuit breaker per host suspends requests to an
// upstream that keeps failing.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oneconcern/darkpan/pkg/errors"
	"github.com/oneconcern/darkpan/pkg/fetch/status"
	"github.com/oneconcern/darkpan/pkg/storage"
	"github.com/rs/dnscache"
	"go.uber.org/zap"
)

// Fetcher knows how to retrieve an URL
type Fetcher interface {
	// Fetch retrieves from into the local file to
	Fetch(ctx context.Context, from, to string) error
	// Open a stream on from
	Open(ctx context.Context, from string) (io.ReadCloser, error)
}

var _ Fetcher = &Client{}

// Client fetches http(s) and file URLs
type Client struct {
	client      *http.Client
	userAgent   string
	maxRetries  uint64
	baseDelay   time.Duration
	breakers    *breakers
	l           *zap.Logger
	resolver    *dnscache.Resolver
	refresh     time.Duration
	stopRefresh context.CancelFunc
	wg          sync.WaitGroup
}

// New fetcher client.
//
// When no http client is provided, a client with a caching DNS resolver is used. Its refresh loop
// is stopped by Close.
func New(opts ...Option) *Client {
	f := &Client{
		userAgent:  defaultUserAgent,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		refresh:    defaultDNSRefresh,
		l:          zap.NewNop(),
	}
	for _, apply := range opts {
		apply(f)
	}
	if f.breakers == nil {
		f.breakers = newBreakers(defaultTripThreshold, defaultBreakerInterval)
	}
	if f.client == nil {
		f.client = f.cachingClient()
	}
	return f
}

func (f *Client) cachingClient() *http.Client {
	f.resolver = &dnscache.Resolver{}
	ctx, cancel := context.WithCancel(context.Background())
	f.stopRefresh = cancel
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ticker := time.NewTicker(f.refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.resolver.Refresh(true)
			}
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Timeout: 10 * time.Minute,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				ips, err := f.resolver.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return conn, nil
					}
				}
				return nil, fmt.Errorf("failed to dial any resolved IP for %s", host)
			},
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Close releases the background resources of the client
func (f *Client) Close() {
	if f.stopRefresh != nil {
		f.stopRefresh()
		f.wg.Wait()
	}
	f.client.CloseIdleConnections()
}

// Fetch downloads from into the local file to.
//
// The file is written next to its destination then renamed: to either holds the complete
// content, or does not exist.
func (f *Client) Fetch(ctx context.Context, from, to string) error {
	rdr, err := f.Open(ctx, from)
	if err != nil {
		return err
	}
	defer func() {
		_ = rdr.Close()
	}()

	if err = os.MkdirAll(filepath.Dir(to), 0700); err != nil {
		return fmt.Errorf("creating directory for %q: %w", to, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(to), "."+filepath.Base(to)+".*")
	if err != nil {
		return fmt.Errorf("creating temporary file for %q: %w", to, err)
	}
	n, err := storage.PipeIO(tmp, rdr)
	if err == nil {
		err = tmp.Close()
	} else {
		_ = tmp.Close()
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("downloading %q: %w", from, err)
	}
	if err = os.Rename(tmp.Name(), to); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("placing download of %q: %w", from, err)
	}
	f.l.Debug("fetched", zap.String("url", from), zap.String("file", to), zap.Int64("size", n))
	return nil
}

// Open a stream on an URL. The caller must close it.
func (f *Client) Open(ctx context.Context, from string) (io.ReadCloser, error) {
	u, err := url.Parse(from)
	if err != nil {
		return nil, fmt.Errorf("parsing URL %q: %w", from, err)
	}

	switch u.Scheme {
	case "file":
		return openFile(u)
	case "http", "https":
		return f.openHTTP(ctx, u)
	default:
		return nil, status.ErrUnsupportedScheme.WrapMessage("%q in %s", u.Scheme, from)
	}
}

func openFile(u *url.URL) (io.ReadCloser, error) {
	pth := filepath.FromSlash(u.Path)
	if u.Host != "" && u.Host != "localhost" {
		pth = filepath.Join(u.Host, pth)
	}
	file, err := os.Open(pth)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, status.ErrNotFound.WrapMessage("%s", u)
		}
		return nil, err
	}
	return file, nil
}

func (f *Client) openHTTP(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	breaker := f.breakers.get(u.Host)
	if !breaker.Ready() {
		return nil, status.ErrCircuitOpen.WrapMessage("host %s", u.Host)
	}

	var body io.ReadCloser
	err := breaker.Call(func() error {
		var e error
		body, e = f.retry(ctx, u.String())
		if errors.Is(e, status.ErrNotFound) {
			// a missing resource says nothing about the health of the host
			return nil
		}
		return e
	}, 0)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, status.ErrNotFound.WrapMessage("%s", u)
	}
	return body, nil
}

func (f *Client) retry(ctx context.Context, target string) (io.ReadCloser, error) {
	var (
		body    io.ReadCloser
		attempt int
	)
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.baseDelay
	policy.RandomizationFactor = 0.1

	err := backoff.Retry(func() error {
		attempt++
		var err error
		body, err = f.get(ctx, target)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, status.ErrRateLimited), errors.Is(err, status.ErrUpstreamDown):
			f.l.Warn("retrying fetch", zap.String("url", target), zap.Int("attempt", attempt), zap.Error(err))
			return err
		default:
			return backoff.Permanent(err)
		}
	}, backoff.WithContext(backoff.WithMaxRetries(policy, f.maxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (f *Client) get(ctx context.Context, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", target, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		_ = resp.Body.Close()
		return nil, status.ErrNotFound.WrapMessage("%s", target)
	case resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		return nil, status.ErrRateLimited.WrapMessage("%s", target)
	case resp.StatusCode >= http.StatusInternalServerError:
		_ = resp.Body.Close()
		return nil, status.ErrUpstreamDown.WrapMessage("%s: %s", target, resp.Status)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		return nil, status.ErrUnexpectedStatus.WrapMessage("%s: %s: %s", target, strconv.Itoa(resp.StatusCode), string(msg))
	}
}
