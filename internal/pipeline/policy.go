package pipeline

import "fmt"

// EmptyPagePolicy decides how a poll or register run with nothing to do is
// reported.
type EmptyPagePolicy string

const (
	// EmptyNotFound reports 404 "Not found resources".
	EmptyNotFound EmptyPagePolicy = "not_found"
	// EmptyPass reports success.
	EmptyPass EmptyPagePolicy = "pass"
)

// BatchPolicy decides what happens to the rest of a register batch after a
// record fails.
type BatchPolicy string

const (
	// BatchHalt stops at the first failing record.
	BatchHalt BatchPolicy = "halt"
	// BatchContinue attempts every record and reports the failures.
	BatchContinue BatchPolicy = "continue"
)

// ParseEmptyPagePolicy maps a configured name. Empty selects EmptyNotFound.
func ParseEmptyPagePolicy(s string) (EmptyPagePolicy, error) {
	switch p := EmptyPagePolicy(s); p {
	case EmptyNotFound, EmptyPass:
		return p, nil
	case "":
		return EmptyNotFound, nil
	default:
		return "", fmt.Errorf("unknown empty page policy %q", s)
	}
}

// ParseBatchPolicy maps a configured name. Empty selects BatchHalt.
func ParseBatchPolicy(s string) (BatchPolicy, error) {
	switch p := BatchPolicy(s); p {
	case BatchHalt, BatchContinue:
		return p, nil
	case "":
		return BatchHalt, nil
	default:
		return "", fmt.Errorf("unknown batch policy %q", s)
	}
}
