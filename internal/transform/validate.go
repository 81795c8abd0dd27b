package transform

import (
	"strings"

	dErrors "consentsync/pkg/domain-errors"
)

// RequiredFields must be present and non-empty after transformation.
var RequiredFields = []Field{FieldPatientID, FieldTenantID, FieldDatatypeIDs}

// Validate checks the required fields of rec.
func Validate(rec Record) error {
	var missing []string
	for _, f := range RequiredFields {
		if isEmpty(rec, f) {
			missing = append(missing, f.String())
		}
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "missing required fields: "+strings.Join(missing, ", "))
	}
	return nil
}

func isEmpty(rec Record, f Field) bool {
	switch f {
	case FieldDatatypeIDs:
		return len(rec.DatatypeIDs) == 0
	case FieldFHIRProvisionAction:
		return len(rec.FHIRProvisionAction) == 0
	case FieldConsentOption:
		return len(rec.ConsentOption) == 0
	case FieldExpiration:
		return rec.Expiration == 0
	case FieldCreation:
		return rec.Creation == nil
	default:
		if p := rec.stringField(f); p != nil {
			return *p == ""
		}
		return true
	}
}
