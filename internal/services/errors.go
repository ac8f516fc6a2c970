package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Failure markers. Every error returned across a package boundary carries
// exactly one of the domain markers so callers can branch with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrAmbiguousReference  = errors.New("ambiguous reference")
	ErrNoActiveSearch      = errors.New("no active search")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMirrorExhausted     = errors.New("mirrors exhausted")
	ErrIntegrityMismatch   = errors.New("integrity mismatch")
	ErrCancelled           = errors.New("cancelled")

	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

var kinds = []struct {
	marker error
	name   string
}{
	{ErrCancelled, "cancelled"},
	{ErrNotFound, "not_found"},
	{ErrAmbiguousReference, "ambiguous_reference"},
	{ErrNoActiveSearch, "no_active_search"},
	{ErrUpstreamUnavailable, "upstream_unavailable"},
	{ErrMirrorExhausted, "mirror_exhausted"},
	{ErrIntegrityMismatch, "integrity_mismatch"},
	{ErrValidation, "validation"},
	{ErrConfiguration, "configuration"},
	{ErrTransient, "transient"},
}

// Kind returns the taxonomy name for err. Unclassified errors report
// "internal"; nil reports "".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			return k.name
		}
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "internal"
}

// Summary trims an error message to a single line suitable for ledgers and tables.
func Summary(err error, limit int) string {
	if err == nil {
		return ""
	}
	msg := strings.Join(strings.Fields(err.Error()), " ")
	if limit > 0 && len(msg) > limit {
		msg = strings.TrimSpace(msg[:limit-3]) + "..."
	}
	return msg
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
