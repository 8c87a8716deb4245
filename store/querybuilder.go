package store

import (
	"fmt"
	"unicode/utf8"

	"github.com/tabeth/concretelocal/expression"
	"github.com/tabeth/concretelocal/models"
)

// keyQuery is a parsed key condition translated into SQL fragments over
// the canonical key columns: an exact partition key value plus zero or
// more sort-key clauses. Numeric sort keys compare on the sk_num shadow
// column; everything else compares on the canonical sk text.
type keyQuery struct {
	PK      string
	Clauses []string
	Args    []any
}

// buildKeyQuery resolves a key condition against the table's (or the named
// index's) schema and produces the row-range predicates for it.
func buildKeyQuery(table *models.Table, indexName string, kc *expression.KeyCondition, names map[string]string, values map[string]models.AttributeValue) (*keyQuery, error) {
	schema := table.KeySchema
	if indexName != "" {
		idx, ok := table.Index(indexName)
		if !ok {
			return nil, models.New(models.ErrCodeValidation,
				fmt.Sprintf("index %s does not exist on table %s", indexName, table.TableName))
		}
		schema = idx.KeySchema
	}
	hashName, rangeName := schemaKeyNames(schema)

	var hashC, rangeC *expression.KeyConstraint
	for _, c := range kc.Constraints {
		name, err := resolveKeyName(c.Path, names)
		if err != nil {
			return nil, err
		}
		switch name {
		case hashName:
			if hashC != nil {
				return nil, models.New(models.ErrCodeValidation,
					"key condition addresses the partition key twice")
			}
			hashC = c
		case rangeName:
			if rangeC != nil {
				return nil, models.New(models.ErrCodeValidation,
					"key condition addresses the sort key twice")
			}
			rangeC = c
		default:
			return nil, models.New(models.ErrCodeValidation,
				fmt.Sprintf("attribute %s is not a key of the queried target", name))
		}
	}
	if hashC == nil {
		return nil, models.New(models.ErrCodeValidation,
			"key condition must constrain the partition key")
	}
	if hashC.Operator != "=" {
		return nil, models.New(models.ErrCodeValidation,
			"partition key condition must be an equality")
	}

	hashType, _ := table.AttributeType(hashName)
	pkVal, err := resolveKeyValue(hashC.Values[0], hashType, values)
	if err != nil {
		return nil, err
	}
	q := &keyQuery{PK: pkVal}
	if rangeC == nil {
		return q, nil
	}

	rangeType, _ := table.AttributeType(rangeName)
	if err := q.addSortClause(rangeC, rangeType, values); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *keyQuery) addSortClause(c *expression.KeyConstraint, declaredType string, values map[string]models.AttributeValue) error {
	col := "sk"
	resolve := func(lit *expression.LiteralNode) (any, error) {
		return resolveKeyValue(lit, declaredType, values)
	}
	if declaredType == "N" {
		col = "sk_num"
		resolve = func(lit *expression.LiteralNode) (any, error) {
			canon, err := resolveKeyValue(lit, declaredType, values)
			if err != nil {
				return nil, err
			}
			return models.NumberToFloat(canon)
		}
	}

	switch c.Operator {
	case "=", "<", "<=", ">", ">=":
		v, err := resolve(c.Values[0])
		if err != nil {
			return err
		}
		q.Clauses = append(q.Clauses, fmt.Sprintf("%s %s ?", col, c.Operator))
		q.Args = append(q.Args, v)

	case "BETWEEN":
		low, err := resolve(c.Values[0])
		if err != nil {
			return err
		}
		high, err := resolve(c.Values[1])
		if err != nil {
			return err
		}
		q.Clauses = append(q.Clauses, col+" >= ?", col+" <= ?")
		q.Args = append(q.Args, low, high)

	case "begins_with":
		if declaredType == "N" {
			return models.New(models.ErrCodeValidation,
				"begins_with is not defined for a number sort key")
		}
		prefix, err := resolveKeyValue(c.Values[0], declaredType, values)
		if err != nil {
			return err
		}
		q.Clauses = append(q.Clauses, "sk >= ?")
		q.Args = append(q.Args, prefix)
		if upper, bounded := prefixUpperBound(prefix); bounded {
			q.Clauses = append(q.Clauses, "sk < ?")
			q.Args = append(q.Args, upper)
		}

	default:
		return models.New(models.ErrCodeValidation,
			fmt.Sprintf("operator %s is not allowed in a key condition", c.Operator))
	}
	return nil
}

// resolveKeyValue resolves a :placeholder and canonicalizes it under the
// declared key type.
func resolveKeyValue(lit *expression.LiteralNode, declaredType string, values map[string]models.AttributeValue) (string, error) {
	v, ok := values[lit.Placeholder]
	if !ok {
		return "", models.New(models.ErrCodeValidation,
			fmt.Sprintf("value placeholder %s is not defined", lit.Placeholder))
	}
	canon, err := canonicalKey(v, declaredType)
	if err != nil {
		return "", models.New(models.ErrCodeValidation, err.Error())
	}
	return canon, nil
}

func resolveKeyName(path *expression.PathNode, names map[string]string) (string, error) {
	raw := path.Parts[0].Name
	if len(raw) > 0 && raw[0] == '#' {
		if n, ok := names[raw]; ok {
			return n, nil
		}
		return "", models.New(models.ErrCodeValidation,
			fmt.Sprintf("name placeholder %s is not defined", raw))
	}
	return raw, nil
}

func schemaKeyNames(schema []models.KeySchemaElement) (hash, rng string) {
	for _, e := range schema {
		switch e.KeyType {
		case models.KeyTypeHash:
			hash = e.AttributeName
		case models.KeyTypeRange:
			rng = e.AttributeName
		}
	}
	return hash, rng
}

// prefixUpperBound computes the smallest string greater than every string
// with the given prefix, so begins_with(p) becomes the half-open range
// [p, upper). The last code point is incremented, stepping over the
// surrogate gap; a code point already at the maximum drops off and the
// carry moves left. A prefix of all-maximal code points has no upper
// bound, and the second return is false.
func prefixUpperBound(prefix string) (string, bool) {
	runes := []rune(prefix)
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] < utf8.MaxRune {
			next := runes[i] + 1
			if next >= 0xD800 && next <= 0xDFFF {
				next = 0xE000
			}
			runes[i] = next
			return string(runes[:i+1]), true
		}
	}
	return "", false
}
