package transform

// Field enumerates the canonical consent record fields.
type Field uint8

const (
	FieldTenantID Field = iota
	FieldPatientID
	FieldServiceID
	FieldDatatypeIDs
	FieldConsentOption
	FieldFHIRPolicy
	FieldFHIRStatus
	FieldFHIRProvisionType
	FieldFHIRProvisionAction
	FieldExpiration
	FieldCreation
	FieldFHIRResourceID
	FieldFHIRResourceVersion
	FieldFHIRPerformerIDSystem
	FieldFHIRPerformerIDValue
	FieldFHIRPerformerDisplay
	FieldFHIRRecipientIDSystem
	FieldFHIRRecipientIDValue
	FieldFHIRRecipientDisplay
)

var fieldNames = [...]string{
	FieldTenantID:              "TenantID",
	FieldPatientID:             "PatientID",
	FieldServiceID:             "ServiceID",
	FieldDatatypeIDs:           "DatatypeIDs",
	FieldConsentOption:         "ConsentOption",
	FieldFHIRPolicy:            "FHIRPolicy",
	FieldFHIRStatus:            "FHIRStatus",
	FieldFHIRProvisionType:     "FHIRProvisionType",
	FieldFHIRProvisionAction:   "FHIRProvisionAction",
	FieldExpiration:            "Expiration",
	FieldCreation:              "Creation",
	FieldFHIRResourceID:        "FHIRResourceID",
	FieldFHIRResourceVersion:   "FHIRResourceVersion",
	FieldFHIRPerformerIDSystem: "FHIRPerformerIDSystem",
	FieldFHIRPerformerIDValue:  "FHIRPerformerIDValue",
	FieldFHIRPerformerDisplay:  "FHIRPerformerDisplay",
	FieldFHIRRecipientIDSystem: "FHIRRecipientIDSystem",
	FieldFHIRRecipientIDValue:  "FHIRRecipientIDValue",
	FieldFHIRRecipientDisplay:  "FHIRRecipientDisplay",
}

func (f Field) String() string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return "Field(unknown)"
}

// Consent options.
const (
	OptionRead = "read"
	OptionDeny = "deny"
)

// Record is the flat consent representation registered downstream.
type Record struct {
	TenantID              string    `json:"TenantID"`
	PatientID             string    `json:"PatientID"`
	ServiceID             string    `json:"ServiceID"`
	DatatypeIDs           []Element `json:"DatatypeIDs"`
	ConsentOption         []string  `json:"ConsentOption"`
	FHIRPolicy            string    `json:"FHIRPolicy"`
	FHIRStatus            string    `json:"FHIRStatus"`
	FHIRProvisionType     string    `json:"FHIRProvisionType"`
	FHIRProvisionAction   []Element `json:"FHIRProvisionAction"`
	Expiration            int64     `json:"Expiration"`
	Creation              *int64    `json:"Creation"`
	FHIRResourceID        string    `json:"FHIRResourceID"`
	FHIRResourceVersion   string    `json:"FHIRResourceVersion"`
	FHIRPerformerIDSystem string    `json:"FHIRPerformerIDSystem"`
	FHIRPerformerIDValue  string    `json:"FHIRPerformerIDValue"`
	FHIRPerformerDisplay  string    `json:"FHIRPerformerDisplay"`
	FHIRRecipientIDSystem string    `json:"FHIRRecipientIDSystem"`
	FHIRRecipientIDValue  string    `json:"FHIRRecipientIDValue"`
	FHIRRecipientDisplay  string    `json:"FHIRRecipientDisplay"`
}

// stringField returns a pointer to the string-valued field f, or nil when f
// is not a string field.
func (r *Record) stringField(f Field) *string {
	switch f {
	case FieldTenantID:
		return &r.TenantID
	case FieldPatientID:
		return &r.PatientID
	case FieldServiceID:
		return &r.ServiceID
	case FieldFHIRPolicy:
		return &r.FHIRPolicy
	case FieldFHIRStatus:
		return &r.FHIRStatus
	case FieldFHIRProvisionType:
		return &r.FHIRProvisionType
	case FieldFHIRResourceID:
		return &r.FHIRResourceID
	case FieldFHIRResourceVersion:
		return &r.FHIRResourceVersion
	case FieldFHIRPerformerIDSystem:
		return &r.FHIRPerformerIDSystem
	case FieldFHIRPerformerIDValue:
		return &r.FHIRPerformerIDValue
	case FieldFHIRPerformerDisplay:
		return &r.FHIRPerformerDisplay
	case FieldFHIRRecipientIDSystem:
		return &r.FHIRRecipientIDSystem
	case FieldFHIRRecipientIDValue:
		return &r.FHIRRecipientIDValue
	case FieldFHIRRecipientDisplay:
		return &r.FHIRRecipientDisplay
	default:
		return nil
	}
}
