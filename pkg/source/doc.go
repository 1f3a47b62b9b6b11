// Package source reads tree input from where a run names it.
//
// A source is a local path, "-" for standard input, or an http(s) URL.
// Remote sources are fetched with a [Client] that retries transient
// failures (network errors and 5xx responses) with exponential backoff:
//
//	data, err := source.Read(ctx, "https://example.org/run.nwk")
//
// Errors carry pkg/errors codes so callers can map them to exit codes and
// HTTP statuses: a missing file or a 404 is FILE_NOT_FOUND, anything else
// that fails is INVALID_INPUT.
package source
