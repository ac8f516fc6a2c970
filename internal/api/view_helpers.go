package api

import (
	"errors"
	"fmt"

	"romgrab/internal/download"
	"romgrab/internal/services"
)

var errNoExportTarget = errors.New("export needs a path or a writer")

// ParseRefs parses every reference, failing on the first invalid one.
func ParseRefs(values []string) ([]download.Ref, error) {
	if len(values) == 0 {
		return nil, validationError(errors.New("at least one reference is required"))
	}
	refs := make([]download.Ref, 0, len(values))
	for _, v := range values {
		ref, err := download.ParseRef(v)
		if err != nil {
			return nil, validationError(err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// BoolPtr is a convenience for optional request flags.
func BoolPtr(v bool) *bool {
	return &v
}

func validationError(err error) error {
	return services.Wrap(services.ErrValidation, "api", "", fmt.Sprint(err), nil)
}
