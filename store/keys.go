package store

import (
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/tabeth/concretelocal/models"
)

// primaryKey is an item's position in a table or index after key
// canonicalization: strings pass through, numbers normalize to canonical
// decimal text, binaries encode as lowercase hex, which keeps bytewise
// order under text comparison and turns byte prefixes into text prefixes.
// Numeric sort keys also
// carry a float shadow used only for ORDER BY and range comparisons, since
// the canonical text does not sort numerically.
type primaryKey struct {
	PK      string
	SK      string
	HasSK   bool
	SKNum   sql.NullFloat64
	SKIsNum bool
}

// canonicalKey converts a key attribute value to its canonical string form,
// enforcing the declared scalar type.
func canonicalKey(v models.AttributeValue, declaredType string) (string, error) {
	switch declaredType {
	case "S":
		s, ok := v.AsString()
		if !ok {
			return "", fmt.Errorf("key value is %s, schema declares S", v.Kind())
		}
		if s == "" {
			return "", fmt.Errorf("key string values must be non-empty")
		}
		return s, nil
	case "N":
		n, ok := v.AsNumber()
		if !ok {
			return "", fmt.Errorf("key value is %s, schema declares N", v.Kind())
		}
		norm, err := models.NormalizeNumber(n)
		if err != nil {
			return "", err
		}
		return norm, nil
	case "B":
		b, ok := v.AsBinary()
		if !ok {
			return "", fmt.Errorf("key value is %s, schema declares B", v.Kind())
		}
		if len(b) == 0 {
			return "", fmt.Errorf("key binary values must be non-empty")
		}
		return hex.EncodeToString(b), nil
	}
	return "", fmt.Errorf("unsupported key type %q", declaredType)
}

// extractKeys pulls the table's primary key out of an item. Every key
// attribute must be present with the declared type; extra attributes in a
// key-only input are rejected by the caller, not here.
func extractKeys(table *models.Table, item models.Item) (primaryKey, error) {
	return extractSchemaKeys(table, table.KeySchema, item, true)
}

// tryExtractIndexKeys pulls an index's key out of an item. An item missing
// any index key attribute, or carrying it with a type other than the
// declared one, has no row in that index; the second return is false then.
func tryExtractIndexKeys(table *models.Table, idx *models.SecondaryIndex, item models.Item) (primaryKey, bool) {
	key, err := extractSchemaKeys(table, idx.KeySchema, item, false)
	if err != nil {
		return primaryKey{}, false
	}
	return key, true
}

func extractSchemaKeys(table *models.Table, schema []models.KeySchemaElement, item models.Item, strict bool) (primaryKey, error) {
	var key primaryKey
	for _, elem := range schema {
		declared, ok := table.AttributeType(elem.AttributeName)
		if !ok {
			return primaryKey{}, fmt.Errorf("key attribute %s has no attribute definition", elem.AttributeName)
		}
		v, ok := item[elem.AttributeName]
		if !ok {
			return primaryKey{}, fmt.Errorf("missing key attribute %s", elem.AttributeName)
		}
		canon, err := canonicalKey(v, declared)
		if err != nil {
			if strict {
				return primaryKey{}, fmt.Errorf("key attribute %s: %w", elem.AttributeName, err)
			}
			return primaryKey{}, err
		}
		switch elem.KeyType {
		case models.KeyTypeHash:
			key.PK = canon
		case models.KeyTypeRange:
			key.SK = canon
			key.HasSK = true
			if declared == "N" {
				f, err := models.NumberToFloat(canon)
				if err != nil {
					return primaryKey{}, err
				}
				key.SKNum = sql.NullFloat64{Float64: f, Valid: true}
				key.SKIsNum = true
			}
		}
	}
	if key.PK == "" {
		return primaryKey{}, fmt.Errorf("missing partition key")
	}
	return key, nil
}

// validateKeyInput checks that a Key argument names exactly the table's key
// attributes, nothing more and nothing less.
func validateKeyInput(table *models.Table, key models.Item) error {
	want := 1
	if table.RangeKeyName() != "" {
		want = 2
	}
	if len(key) != want {
		return fmt.Errorf("key must name exactly the table's key attributes")
	}
	for name := range key {
		if name != table.HashKeyName() && name != table.RangeKeyName() {
			return fmt.Errorf("attribute %s is not part of the table's key", name)
		}
	}
	return nil
}
