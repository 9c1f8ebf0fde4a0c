// Package status declares error constants returned by fetchers.
package status

import "github.com/oneconcern/darkpan/pkg/errors"

var (
	// ErrNotFound indicates that the remote resource does not exist
	ErrNotFound = errors.New("remote resource not found")

	// ErrRateLimited indicates that the upstream refused the request for now
	ErrRateLimited = errors.New("rate limited by upstream")

	// ErrUpstreamDown indicates a server-side failure of the upstream
	ErrUpstreamDown = errors.New("upstream unavailable")

	// ErrCircuitOpen indicates that requests to a host are suspended after repeated failures
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrUnsupportedScheme indicates an URL scheme that cannot be fetched
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrUnexpectedStatus indicates an HTTP response that is neither a success nor a known failure
	ErrUnexpectedStatus = errors.New("unexpected response status")
)
