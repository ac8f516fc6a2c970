package download

import (
	"fmt"
	"strconv"
	"strings"
)

// RefKind says how a reference should be interpreted.
type RefKind string

const (
	// RefAuto tries catalog id, then slug, then session index.
	RefAuto  RefKind = "auto"
	RefIndex RefKind = "index"
	RefID    RefKind = "id"
	RefSlug  RefKind = "slug"
)

// Ref identifies the entry to download.
type Ref struct {
	Kind  RefKind
	Value string
}

// ParseRef builds a reference from user input. "#3" is a session index,
// "id:X" and "slug:X" force a kind, and anything else resolves
// automatically.
func ParseRef(input string) (Ref, error) {
	value := strings.TrimSpace(input)
	if value == "" {
		return Ref{}, fmt.Errorf("empty reference")
	}
	switch {
	case strings.HasPrefix(value, "#"):
		n, err := strconv.Atoi(strings.TrimPrefix(value, "#"))
		if err != nil || n < 1 {
			return Ref{}, fmt.Errorf("invalid index reference %q", input)
		}
		return Ref{Kind: RefIndex, Value: strconv.Itoa(n)}, nil
	case hasFold(value, "id:"):
		return nonEmpty(RefID, value[3:], input)
	case hasFold(value, "slug:"):
		return nonEmpty(RefSlug, value[5:], input)
	}
	return Ref{Kind: RefAuto, Value: value}, nil
}

// IndexRef references item n of the session's last search.
func IndexRef(n int) Ref {
	return Ref{Kind: RefIndex, Value: strconv.Itoa(n)}
}

func (r Ref) String() string {
	switch r.Kind {
	case RefIndex:
		return "#" + r.Value
	case RefID, RefSlug:
		return string(r.Kind) + ":" + r.Value
	default:
		return r.Value
	}
}

// index returns the numeric value when the reference can be a session index.
func (r Ref) index() (int, bool) {
	n, err := strconv.Atoi(r.Value)
	return n, err == nil && n >= 1
}

func hasFold(value, prefix string) bool {
	return len(value) >= len(prefix) && strings.EqualFold(value[:len(prefix)], prefix)
}

func nonEmpty(kind RefKind, value, input string) (Ref, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Ref{}, fmt.Errorf("invalid reference %q", input)
	}
	return Ref{Kind: kind, Value: value}, nil
}
