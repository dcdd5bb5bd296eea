package retry

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Kind tags an error with a retry classification at the throw site.
// Typed classification takes precedence over message matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransient
	KindTerminal
)

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// Transient marks err as retryable regardless of its message.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: KindTransient, err: err}
}

// Terminal marks err as never retryable. Assertion and syntax failures
// must be tagged this way so a pattern match cannot resurrect them.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: KindTerminal, err: err}
}

// KindOf returns the tagged kind of err, or KindUnknown if untagged.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

// Message fragments recognized as transient by the generic classifier:
// timeouts, connection failures, DNS, HTTP 5xx/429, and UI timing issues.
var transientPatterns = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"connection closed",
	"broken pipe",
	"econnreset",
	"econnrefused",
	"no such host",
	"dns lookup",
	"name resolution",
	"socket hang up",
	"status 500",
	"status 502",
	"status 503",
	"status 504",
	"internal server error",
	"bad gateway",
	"service unavailable",
	"gateway timeout",
	"429",
	"too many requests",
	"element not found",
	"element is not visible",
	"not visible",
	"stale element",
	"element is not attached",
}

// IsTransient reports whether err should be retried according to the
// built-in generic classifier. Terminal-tagged errors are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	switch KindOf(err) {
	case KindTerminal:
		return false
	case KindTransient:
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return matchesAny(err, transientPatterns)
}

// Postgres SQLSTATE codes worth retrying: serialization failure, deadlock,
// lock not available, query canceled, too many connections, connection
// failures.
var transientPgCodes = map[string]bool{
	"40001": true,
	"40P01": true,
	"55P03": true,
	"57014": true,
	"53300": true,
	"08000": true,
	"08006": true,
}

var databasePatterns = []string{
	"deadlock",
	"lock timeout",
	"could not obtain lock",
	"lock not available",
	"database is locked",
	"database table is locked",
	"busy",
	"serialization failure",
	"too many connections",
	"connection pool",
}

// isTransientDatabase layers database lock/deadlock/busy detection on top
// of the generic classifier. Both pgx and pq error types are inspected
// since the codebase has carried both drivers.
func isTransientDatabase(err error) bool {
	if err == nil || KindOf(err) == KindTerminal {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && transientPgCodes[pgErr.Code] {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && transientPgCodes[string(pqErr.Code)] {
		return true
	}

	if matchesAny(err, databasePatterns) {
		return true
	}
	return IsTransient(err)
}

var networkPatterns = []string{
	"network",
	"fetch failed",
	"request aborted",
	"tls handshake",
}

func isTransientNetwork(err error) bool {
	if err == nil || KindOf(err) == KindTerminal {
		return false
	}
	if matchesAny(err, networkPatterns) {
		return true
	}
	return IsTransient(err)
}

var browserPatterns = []string{
	"waiting for selector",
	"waiting for element",
	"element is detached",
	"target closed",
	"navigation",
	"intercepts pointer events",
}

func isTransientBrowser(err error) bool {
	if err == nil || KindOf(err) == KindTerminal {
		return false
	}
	if matchesAny(err, browserPatterns) {
		return true
	}
	return IsTransient(err)
}

func matchesAny(err error, patterns []string) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
