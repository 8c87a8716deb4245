// Package models holds the value model, wire codec, schema types, request
// and response shapes, and the error taxonomy shared by the expression
// engine and the storage engine.
package models

import "time"

// KeyTypeHash and KeyTypeRange are the two key roles a schema element can
// take. A schema has exactly one HASH element and at most one RANGE element.
const (
	KeyTypeHash  = "HASH"
	KeyTypeRange = "RANGE"
)

// AttributeDefinition declares the scalar type ("S", "N" or "B") of an
// attribute that appears in the table's or any index's key schema.
type AttributeDefinition struct {
	AttributeName string
	AttributeType string
}

// KeySchemaElement names one component of a primary key.
type KeySchemaElement struct {
	AttributeName string
	KeyType       string
}

// Projection controls which attributes an index row carries back out on
// queries. The stored row is always the full item; projection is applied
// when reading.
type Projection struct {
	ProjectionType   string // "ALL", "KEYS_ONLY" or "INCLUDE"
	NonKeyAttributes []string
}

// SecondaryIndex describes a GSI or LSI. An LSI shares the table's
// partition key and only varies the sort key; a GSI may key on any declared
// attributes. Items missing any of the index's key attributes simply have
// no row in it (a sparse index).
type SecondaryIndex struct {
	IndexName  string
	KeySchema  []KeySchemaElement
	Projection Projection
}

// TimeToLiveDescription is the per-table TTL configuration the write path
// reads: when Status is "ENABLED", the named attribute's numeric value is
// the item's expiry epoch in seconds.
type TimeToLiveDescription struct {
	Status        string // "ENABLED" or "DISABLED"
	AttributeName string
}

// Table is the canonical internal representation of a table's metadata,
// persisted as JSON in the metadata table.
type Table struct {
	TableName              string
	KeySchema              []KeySchemaElement
	AttributeDefinitions   []AttributeDefinition
	GlobalSecondaryIndexes []SecondaryIndex
	LocalSecondaryIndexes  []SecondaryIndex
	TimeToLive             *TimeToLiveDescription
	CreationDateTime       time.Time

	// Aggregates maintained by the engine; approximate between sweeps.
	ItemCount int64
	SizeBytes int64
}

// HashKeyName returns the partition key attribute name.
func (t *Table) HashKeyName() string {
	for _, k := range t.KeySchema {
		if k.KeyType == KeyTypeHash {
			return k.AttributeName
		}
	}
	return ""
}

// RangeKeyName returns the sort key attribute name, or "" when the table
// has no sort key.
func (t *Table) RangeKeyName() string {
	for _, k := range t.KeySchema {
		if k.KeyType == KeyTypeRange {
			return k.AttributeName
		}
	}
	return ""
}

// AttributeType looks up the declared scalar type for an attribute name.
func (t *Table) AttributeType(name string) (string, bool) {
	for _, d := range t.AttributeDefinitions {
		if d.AttributeName == name {
			return d.AttributeType, true
		}
	}
	return "", false
}

// Index finds a secondary index by name, searching GSIs then LSIs.
func (t *Table) Index(name string) (*SecondaryIndex, bool) {
	for i := range t.GlobalSecondaryIndexes {
		if t.GlobalSecondaryIndexes[i].IndexName == name {
			return &t.GlobalSecondaryIndexes[i], true
		}
	}
	for i := range t.LocalSecondaryIndexes {
		if t.LocalSecondaryIndexes[i].IndexName == name {
			return &t.LocalSecondaryIndexes[i], true
		}
	}
	return nil, false
}

// Indexes returns all secondary indexes, GSIs first.
func (t *Table) Indexes() []SecondaryIndex {
	out := make([]SecondaryIndex, 0, len(t.GlobalSecondaryIndexes)+len(t.LocalSecondaryIndexes))
	out = append(out, t.GlobalSecondaryIndexes...)
	out = append(out, t.LocalSecondaryIndexes...)
	return out
}

// TTLAttribute returns the designated expiry attribute, or "" when TTL is
// not enabled.
func (t *Table) TTLAttribute() string {
	if t.TimeToLive != nil && t.TimeToLive.Status == "ENABLED" {
		return t.TimeToLive.AttributeName
	}
	return ""
}
