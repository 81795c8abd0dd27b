package staging

import "strings"

// CursorName is the logical name of the per-partition cursor document.
const CursorName = "changeIdMarker"

// Partition identifies one tenant keyspace.
type Partition struct {
	// Name is the database name, e.g. fhir-resource-ids-T1.
	Name string
	// Key prefixes every document id inside the partition.
	Key string
}

// RecordID builds the composite id of a change record.
func (p Partition) RecordID(resourceID, version string) string {
	return p.Key + ":" + resourceID + ":" + version
}

// CursorID is the document id of the partition cursor.
func (p Partition) CursorID() string {
	return p.Key + ":" + CursorName
}

// Namer derives partitions from tenant ids.
type Namer struct {
	DBName       string
	PartitionKey string
}

// Partition returns the live or test-mode partition for a tenant.
func (n Namer) Partition(tenantID string, testMode bool) Partition {
	parts := []string{n.DBName}
	if testMode {
		parts = append(parts, "test")
	}
	if tenantID != "" {
		parts = append(parts, tenantID)
	}
	return Partition{Name: strings.Join(parts, "-"), Key: n.PartitionKey}
}
