// Package transform converts a FHIR Consent resource into the flat record the
// consent manager registers.
//
// The conversion is a fixed, ordered table of (field, source path, operation)
// entries. Transform is pure: identical inputs always yield identical records.
package transform

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	dErrors "consentsync/pkg/domain-errors"
)

// Op is the post-processing applied to a mapped value.
type Op uint8

const (
	// OpString copies a string value.
	OpString Op = iota
	// OpParseID keeps the part after "/" of a "Type/id" reference.
	OpParseID
	// OpElements maps an array into tagged elements.
	OpElements
	// OpConsentOption derives the option from status and provision type.
	OpConsentOption
	// OpPolicyURI takes the uri of the first policy entry.
	OpPolicyURI
	// OpExpiration parses a date to epoch millis, 0 when unparsable.
	OpExpiration
	// OpCreation parses a date to epoch millis, null when unparsable.
	OpCreation
	// OpVersion copies the version, defaulting to "1".
	OpVersion
	// OpActorSystem, OpActorValue and OpActorDisplay read the identity of the
	// first actor holding Mapping.Role.
	OpActorSystem
	OpActorValue
	OpActorDisplay
)

// Actor role codes.
const (
	RolePerformer = "performer"
	RoleRecipient = "IRCP"
)

// Mapping binds one canonical field to its source path and operation.
type Mapping struct {
	Field Field
	Path  Path
	Op    Op
	// Role selects the actor for the actor operations.
	Role string
}

// ConsentMappings is the Consent mapping table, applied in order.
var ConsentMappings = []Mapping{
	{Field: FieldPatientID, Path: P("patient.reference"), Op: OpParseID},
	{Field: FieldServiceID, Path: P("organization.0.reference"), Op: OpParseID},
	{Field: FieldDatatypeIDs, Path: P("scope.coding"), Op: OpElements},
	{Field: FieldConsentOption, Op: OpConsentOption},
	{Field: FieldFHIRPolicy, Path: P("policy"), Op: OpPolicyURI},
	{Field: FieldFHIRStatus, Path: P("status"), Op: OpString},
	{Field: FieldFHIRProvisionType, Path: P("provision.type"), Op: OpString},
	{Field: FieldFHIRProvisionAction, Path: P("provision.action"), Op: OpElements},
	{Field: FieldExpiration, Path: P("provision.period.end"), Op: OpExpiration},
	{Field: FieldCreation, Path: P("dateTime"), Op: OpCreation},
	{Field: FieldFHIRResourceID, Path: P("id"), Op: OpString},
	{Field: FieldFHIRResourceVersion, Path: P("meta.versionId"), Op: OpVersion},
	{Field: FieldFHIRPerformerIDSystem, Path: P("provision.actor"), Op: OpActorSystem, Role: RolePerformer},
	{Field: FieldFHIRPerformerIDValue, Path: P("provision.actor"), Op: OpActorValue, Role: RolePerformer},
	{Field: FieldFHIRPerformerDisplay, Path: P("provision.actor"), Op: OpActorDisplay, Role: RolePerformer},
	{Field: FieldFHIRRecipientIDSystem, Path: P("provision.actor"), Op: OpActorSystem, Role: RoleRecipient},
	{Field: FieldFHIRRecipientIDValue, Path: P("provision.actor"), Op: OpActorValue, Role: RoleRecipient},
	{Field: FieldFHIRRecipientDisplay, Path: P("provision.actor"), Op: OpActorDisplay, Role: RoleRecipient},
}

// Overrides are caller supplied string values applied after mapping.
type Overrides map[Field]string

// Transform maps a Consent resource. deleted forces the deny option. The
// only failure is a document that is not a JSON object, or an override
// targeting a non-string field.
func Transform(resource json.RawMessage, deleted bool, overrides Overrides) (Record, error) {
	return Apply(ConsentMappings, resource, deleted, overrides)
}

// Apply runs table against resource.
func Apply(table []Mapping, resource json.RawMessage, deleted bool, overrides Overrides) (Record, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(resource, &probe); err != nil {
		return Record{}, dErrors.Wrap(err, dErrors.CodeInvalidData, "consent resource is not a JSON object")
	}

	rec := Record{DatatypeIDs: []Element{}, ConsentOption: []string{}, FHIRProvisionAction: []Element{}}
	for _, m := range table {
		if err := m.apply(&rec, resource, deleted); err != nil {
			return Record{}, err
		}
	}

	for _, f := range slices.Sorted(maps.Keys(overrides)) {
		dst := rec.stringField(f)
		if dst == nil {
			return Record{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("field %s cannot be overridden", f))
		}
		*dst = overrides[f]
	}
	return rec, nil
}

func (m Mapping) apply(rec *Record, doc json.RawMessage, deleted bool) error {
	switch m.Op {
	case OpString, OpParseID, OpVersion, OpPolicyURI, OpActorSystem, OpActorValue, OpActorDisplay:
		dst := rec.stringField(m.Field)
		if dst == nil {
			return fmt.Errorf("mapping %s: op %d needs a string field", m.Field, m.Op)
		}
		*dst = m.stringValue(doc)
	case OpElements:
		elems := elements(doc, m.Path)
		switch m.Field {
		case FieldDatatypeIDs:
			rec.DatatypeIDs = elems
		case FieldFHIRProvisionAction:
			rec.FHIRProvisionAction = elems
		default:
			return fmt.Errorf("mapping %s: not an element field", m.Field)
		}
	case OpConsentOption:
		rec.ConsentOption = ConsentOption(
			lookupString(doc, P("status")),
			lookupString(doc, P("provision.type")),
			deleted,
		)
	case OpExpiration:
		ms, _ := epochMillis(lookupString(doc, m.Path))
		rec.Expiration = ms
	case OpCreation:
		if ms, ok := epochMillis(lookupString(doc, m.Path)); ok {
			rec.Creation = &ms
		} else {
			rec.Creation = nil
		}
	default:
		return fmt.Errorf("mapping %s: unknown op %d", m.Field, m.Op)
	}
	return nil
}

func (m Mapping) stringValue(doc json.RawMessage) string {
	switch m.Op {
	case OpParseID:
		return ParseID(lookupString(doc, m.Path))
	case OpVersion:
		if v := lookupString(doc, m.Path); v != "" {
			return v
		}
		return "1"
	case OpPolicyURI:
		return lookupString(doc, append(append(Path{}, m.Path...), "0", "uri"))
	case OpActorSystem:
		return actorDetail(doc, m.Path, m.Role, P("reference.identifier.system"))
	case OpActorValue:
		return actorDetail(doc, m.Path, m.Role, P("reference.identifier.value"))
	case OpActorDisplay:
		return actorDetail(doc, m.Path, m.Role, P("reference.display"))
	default:
		return lookupString(doc, m.Path)
	}
}

// ParseID returns the id half of a "Type/id" reference; values without a
// slash are returned unchanged.
func ParseID(ref string) string {
	if i := strings.Index(ref, "/"); i >= 0 {
		rest := ref[i+1:]
		if j := strings.Index(rest, "/"); j >= 0 {
			return rest[:j]
		}
		return rest
	}
	return ref
}

// ConsentOption derives the consent option.
//
//	deleted                                  -> [deny]
//	active + permit                          -> [read]
//	active + deny                            -> [deny]
//	rejected | inactive | entered-in-error   -> [deny]
//	anything else                            -> []
func ConsentOption(status, provisionType string, deleted bool) []string {
	if deleted {
		return []string{OptionDeny}
	}
	switch {
	case status == "active" && provisionType == "permit":
		return []string{OptionRead}
	case status == "active" && provisionType == "deny":
		return []string{OptionDeny}
	case status == "rejected" || status == "inactive" || status == "entered-in-error":
		return []string{OptionDeny}
	default:
		return []string{}
	}
}

func elements(doc json.RawMessage, p Path) []Element {
	arr, ok := lookupArray(doc, p)
	if !ok {
		return []Element{}
	}
	out := make([]Element, 0, len(arr))
	for _, raw := range arr {
		out = append(out, NewElement(raw))
	}
	return out
}

// actorDetail scans actors in order and reads detail from the first actor
// whose role coding contains role. No match yields "".
func actorDetail(doc json.RawMessage, actorsPath Path, role string, detail Path) string {
	actors, ok := lookupArray(doc, actorsPath)
	if !ok {
		return ""
	}
	for _, actor := range actors {
		if hasRole(actor, role) {
			return lookupString(actor, detail)
		}
	}
	return ""
}

func hasRole(actor json.RawMessage, role string) bool {
	codings, ok := lookupArray(actor, P("role.coding"))
	if !ok {
		return false
	}
	for _, coding := range codings {
		if lookupString(coding, P("code")) == role {
			return true
		}
	}
	return false
}
