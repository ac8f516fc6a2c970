package download

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"romgrab/internal/catalog"
	"romgrab/internal/search"
	"romgrab/internal/services"
)

// Lookup is the subset of catalog reads needed to resolve references.
// *search.Engine satisfies it with cached reads.
type Lookup interface {
	Entry(ctx context.Context, slug string) (*catalog.RomEntry, error)
	EntriesByID(ctx context.Context, romID string) ([]catalog.RomEntry, error)
}

// Resolve maps ref to a single catalog entry. Automatic references are tried
// as a catalog id, then a slug, then a session index, and finally matched
// against slugs and titles in the session's last result set.
func Resolve(ctx context.Context, lookup Lookup, sess *search.Session, ref Ref, opts Options) (catalog.RomEntry, error) {
	switch ref.Kind {
	case RefIndex:
		return resolveIndex(sess, ref)
	case RefID:
		entry, _, err := resolveID(ctx, lookup, ref.Value, opts)
		return entry, err
	case RefSlug:
		entry, _, err := resolveSlug(ctx, lookup, ref.Value, opts)
		return entry, err
	}

	if entry, ok, err := resolveID(ctx, lookup, ref.Value, opts); ok || !notFound(err) {
		return entry, err
	}
	if entry, ok, err := resolveSlug(ctx, lookup, ref.Value, opts); ok || !notFound(err) {
		return entry, err
	}
	if _, ok := ref.index(); ok {
		return resolveIndex(sess, ref)
	}
	return resolveSessionMatch(sess, ref.Value, opts)
}

func resolveIndex(sess *search.Session, ref Ref) (catalog.RomEntry, error) {
	n, ok := ref.index()
	if !ok {
		return catalog.RomEntry{}, services.Wrap(services.ErrValidation, "download", "resolve",
			fmt.Sprintf("%q is not a result index", ref.Value), nil)
	}
	result, err := sess.Lookup(n)
	if err != nil {
		return catalog.RomEntry{}, err
	}
	return result.Entry, nil
}

func resolveID(ctx context.Context, lookup Lookup, id string, opts Options) (catalog.RomEntry, bool, error) {
	entries, err := lookup.EntriesByID(ctx, id)
	if err != nil {
		return catalog.RomEntry{}, false, err
	}
	entry, err := pickOne(entries, opts, "id "+id)
	return entry, err == nil, err
}

func resolveSlug(ctx context.Context, lookup Lookup, slug string, opts Options) (catalog.RomEntry, bool, error) {
	entry, err := lookup.Entry(ctx, slug)
	if err != nil {
		return catalog.RomEntry{}, false, err
	}
	picked, err := pickOne([]catalog.RomEntry{*entry}, opts, "slug "+slug)
	return picked, err == nil, err
}

func resolveSessionMatch(sess *search.Session, value string, opts Options) (catalog.RomEntry, error) {
	rs, ok := sess.Last()
	if !ok {
		return catalog.RomEntry{}, services.Wrap(services.ErrNotFound, "download", "resolve",
			fmt.Sprintf("no catalog entry matches %q", value), nil)
	}
	var matches []catalog.RomEntry
	for _, result := range rs.Results {
		if strings.EqualFold(result.Entry.Slug, value) || strings.EqualFold(result.Entry.Title, value) {
			matches = append(matches, result.Entry)
		}
	}
	return pickOne(matches, opts, fmt.Sprintf("%q in the last search", value))
}

// pickOne applies the platform and region filters and requires exactly one
// survivor.
func pickOne(entries []catalog.RomEntry, opts Options, what string) (catalog.RomEntry, error) {
	var kept []catalog.RomEntry
	for _, entry := range entries {
		if entry.OnPlatform(opts.Platform) && entry.HasRegion(opts.Region) {
			kept = append(kept, entry)
		}
	}
	switch len(kept) {
	case 0:
		return catalog.RomEntry{}, services.Wrap(services.ErrNotFound, "download", "resolve",
			fmt.Sprintf("no entry for %s matches the filters", what), nil)
	case 1:
		return kept[0], nil
	default:
		variants := make([]string, 0, len(kept))
		for _, entry := range kept {
			variants = append(variants, entry.Slug)
		}
		return catalog.RomEntry{}, services.Wrap(services.ErrAmbiguousReference, "download", "resolve",
			fmt.Sprintf("%s matches %d entries (%s); add a platform or region filter", what, len(kept), strings.Join(variants, ", ")), nil)
	}
}

// notFound reports whether an automatic lookup should fall through to the
// next strategy.
func notFound(err error) bool {
	return errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrValidation)
}
