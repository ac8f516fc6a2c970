package api

import (
	"context"
	"errors"

	"romgrab/internal/cache"
)

// ErrCacheDisabled is returned by cache operations on a Service built
// without a cache store.
var ErrCacheDisabled = errors.New("response cache is disabled")

// ClearCache removes cached records in one namespace, or every namespace
// when namespace is empty or "all".
func (s *Service) ClearCache(ctx context.Context, namespace string) (CacheClearResponse, error) {
	if s.cache == nil {
		return CacheClearResponse{}, ErrCacheDisabled
	}
	ns, err := cache.ParseNamespace(namespace)
	if err != nil {
		return CacheClearResponse{}, validationError(err)
	}
	removed, err := s.cache.Clear(ctx, ns)
	if err != nil {
		return CacheClearResponse{}, err
	}
	label := string(ns)
	if label == "" {
		label = "all"
	}
	return CacheClearResponse{Namespace: label, Removed: removed}, nil
}
