package staging

import (
	"fmt"
	"strconv"
	"strings"

	"consentsync/pkg/platform/sentinel"
)

// MethodDelete is the history method recorded for deleted resources.
const MethodDelete = "DELETE"

// ChangeRecord is one observed (resource id, version) pair awaiting
// registration. Its presence means the version has not been confirmed
// downstream yet.
type ChangeRecord struct {
	ID              string `json:"_id"`
	ResourceID      string `json:"fhir_consent_id"`
	ResourceVersion string `json:"fhir_consent_id_version"`
	Method          string `json:"fhir_consent_method"`
	LastModified    string `json:"lastModified"`
}

// IsDelete reports whether the change deleted the resource.
func (r ChangeRecord) IsDelete() bool {
	return strings.EqualFold(r.Method, MethodDelete)
}

// TargetVersion is the resource version to fetch when registering the change.
// A delete event carries the version number of the tombstone, so the last
// live version is the one before it.
func (r ChangeRecord) TargetVersion() (string, error) {
	if !r.IsDelete() {
		return r.ResourceVersion, nil
	}
	v, err := strconv.Atoi(r.ResourceVersion)
	if err != nil {
		return "", fmt.Errorf("%w: version %q of deleted resource %s is not numeric", sentinel.ErrMalformed, r.ResourceVersion, r.ResourceID)
	}
	if v < 2 {
		return "", fmt.Errorf("%w: deleted resource %s has no prior version (version %d)", sentinel.ErrMalformed, r.ResourceID, v)
	}
	return strconv.Itoa(v - 1), nil
}

// pendingLess orders records by resource id, then by numeric version so that
// later versions of a resource register after earlier ones. Non-numeric
// versions sort after numeric ones.
func pendingLess(a, b ChangeRecord) bool {
	if a.ResourceID != b.ResourceID {
		return a.ResourceID < b.ResourceID
	}
	va, errA := strconv.ParseInt(a.ResourceVersion, 10, 64)
	vb, errB := strconv.ParseInt(b.ResourceVersion, 10, 64)
	switch {
	case errA == nil && errB == nil && va != vb:
		return va < vb
	case errA == nil && errB != nil:
		return true
	case errA != nil && errB == nil:
		return false
	}
	return a.ID < b.ID
}
