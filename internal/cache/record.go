package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Namespace partitions cache records by the kind of data they hold.
type Namespace string

const (
	NamespaceSearch     Namespace = "search-results"
	NamespaceROMInfo    Namespace = "rom-info"
	NamespaceThumbnails Namespace = "thumbnails"
	NamespacePlatforms  Namespace = "platforms"
	NamespaceRegions    Namespace = "regions"
)

// Namespaces lists every namespace in display order.
func Namespaces() []Namespace {
	return []Namespace{NamespaceSearch, NamespaceROMInfo, NamespaceThumbnails, NamespacePlatforms, NamespaceRegions}
}

// ParseNamespace validates a namespace name. The empty string and "all" map
// to the zero Namespace, which Clear interprets as every namespace.
func ParseNamespace(value string) (Namespace, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == "all" {
		return "", nil
	}
	for _, ns := range Namespaces() {
		if string(ns) == value {
			return ns, nil
		}
	}
	return "", fmt.Errorf("unknown cache namespace %q", value)
}

// Record is one cached value.
type Record struct {
	Namespace Namespace
	Key       string
	CreatedAt time.Time
	TTL       time.Duration
	Payload   []byte
}

// Expired reports whether the record is stale at now. A positive limit caps
// the stored TTL, so lowering the configured lifetime also shortens records
// written under the old one. The boundary is inclusive: a record is expired
// exactly at created_at + ttl.
func (r Record) Expired(now time.Time, limit time.Duration) bool {
	ttl := r.TTL
	if limit > 0 && limit < ttl {
		ttl = limit
	}
	if ttl <= 0 {
		return true
	}
	return !now.Before(r.CreatedAt.Add(ttl))
}

type header struct {
	Namespace Namespace `json:"ns"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	TTLMillis int64     `json:"ttl_ms"`
	Size      int       `json:"size"`
	Checksum  string    `json:"sha256"`
}

var errCorrupt = errors.New("corrupt cache record")

// encode serializes a record as a JSON header line followed by the raw
// payload so large thumbnails are not base64 inflated.
func encode(r Record) ([]byte, error) {
	sum := sha256.Sum256(r.Payload)
	head, err := json.Marshal(header{
		Namespace: r.Namespace,
		Key:       r.Key,
		CreatedAt: r.CreatedAt.UTC(),
		TTLMillis: r.TTL.Milliseconds(),
		Size:      len(r.Payload),
		Checksum:  hex.EncodeToString(sum[:]),
	})
	if err != nil {
		return nil, fmt.Errorf("encode cache header: %w", err)
	}
	out := make([]byte, 0, len(head)+1+len(r.Payload))
	out = append(out, head...)
	out = append(out, '\n')
	return append(out, r.Payload...), nil
}

func decode(data []byte) (Record, error) {
	idx := bytes.IndexByte(data, '\n')
	if idx <= 0 {
		return Record{}, fmt.Errorf("%w: missing header", errCorrupt)
	}
	var h header
	if err := json.Unmarshal(data[:idx], &h); err != nil {
		return Record{}, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	payload := data[idx+1:]
	if len(payload) != h.Size {
		return Record{}, fmt.Errorf("%w: size %d, header says %d", errCorrupt, len(payload), h.Size)
	}
	sum := sha256.Sum256(payload)
	if hex.EncodeToString(sum[:]) != h.Checksum {
		return Record{}, fmt.Errorf("%w: checksum mismatch", errCorrupt)
	}
	return Record{
		Namespace: h.Namespace,
		Key:       h.Key,
		CreatedAt: h.CreatedAt,
		TTL:       time.Duration(h.TTLMillis) * time.Millisecond,
		Payload:   payload,
	}, nil
}
