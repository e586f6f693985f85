package repository

import "errors"

// Error taxonomy for the detection service. Sentinels are matched with
// errors.Is so adapters can wrap them with context.
var (
	// ErrInvalidSymbol marks a symbol the feed does not trade. Permanent:
	// the session for it is skipped, other sessions are unaffected.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrTransientFeed marks a recoverable network/transport failure.
	// Retried with backoff, never surfaced as a crash.
	ErrTransientFeed = errors.New("transient feed error")

	// ErrMalformedCandle marks a candle with an out-of-order timestamp or
	// non-positive prices. The candle is dropped, processing continues.
	ErrMalformedCandle = errors.New("malformed candle")

	// ErrPersistence marks a dedup store read/write failure. The store
	// degrades to in-memory-only dedup for the rest of the run.
	ErrPersistence = errors.New("persistence error")

	// ErrConfiguration marks invalid configuration. Fatal at startup,
	// before any session begins.
	ErrConfiguration = errors.New("configuration error")
)
