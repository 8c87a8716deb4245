package expression

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/tabeth/concretelocal/models"
)

// Evaluator interprets parsed expressions against items. It is stateless
// and safe for concurrent use.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// EvaluateCondition evaluates a parsed condition against an item. The item
// may be nil (no such item): every attribute reference then resolves to
// "absent", so only attribute_not_exists (possibly under NOT) can hold.
// A nil node evaluates true.
func (e *Evaluator) EvaluateCondition(node Node, item models.Item, names map[string]string, values map[string]models.AttributeValue) (bool, error) {
	if node == nil {
		return true, nil
	}
	return e.evalNode(node, item, names, values)
}

// EvaluateFilter parses and evaluates a condition source string in one
// step. Empty input matches everything.
func (e *Evaluator) EvaluateFilter(item models.Item, filterExpr string, names map[string]string, values map[string]models.AttributeValue) (bool, error) {
	node, err := ParseCondition(filterExpr)
	if err != nil {
		return false, err
	}
	return e.EvaluateCondition(node, item, names, values)
}

func (e *Evaluator) evalNode(node Node, item models.Item, names map[string]string, values map[string]models.AttributeValue) (bool, error) {
	switch n := node.(type) {
	case *BinaryNode:
		switch n.Operator.Type {
		case TokenAND:
			left, err := e.evalNode(n.Left, item, names, values)
			if err != nil {
				return false, err
			}
			if !left {
				return false, nil
			}
			return e.evalNode(n.Right, item, names, values)
		case TokenOR:
			left, err := e.evalNode(n.Left, item, names, values)
			if err != nil {
				return false, err
			}
			if left {
				return true, nil
			}
			return e.evalNode(n.Right, item, names, values)
		}
		lhs, err := e.resolveOperand(n.Left, item, names, values)
		if err != nil {
			return false, err
		}
		rhs, err := e.resolveOperand(n.Right, item, names, values)
		if err != nil {
			return false, err
		}
		return compareValues(lhs, rhs, n.Operator.Type), nil

	case *UnaryNode:
		if n.Operator.Type != TokenNOT {
			return false, fmt.Errorf("unknown unary operator %s", n.Operator.Literal)
		}
		val, err := e.evalNode(n.Operand, item, names, values)
		if err != nil {
			return false, err
		}
		return !val, nil

	case *FunctionNode:
		return e.evalFunction(n, item, names, values)
	}
	return false, fmt.Errorf("node %s is not a boolean predicate", node)
}

func (e *Evaluator) evalFunction(n *FunctionNode, item models.Item, names map[string]string, values map[string]models.AttributeValue) (bool, error) {
	switch n.Name {
	case "attribute_exists":
		if len(n.Arguments) != 1 {
			return false, fmt.Errorf("attribute_exists requires 1 argument")
		}
		val, err := e.resolveOperand(n.Arguments[0], item, names, values)
		if err != nil {
			return false, err
		}
		return val != nil, nil

	case "attribute_not_exists":
		if len(n.Arguments) != 1 {
			return false, fmt.Errorf("attribute_not_exists requires 1 argument")
		}
		val, err := e.resolveOperand(n.Arguments[0], item, names, values)
		if err != nil {
			return false, err
		}
		return val == nil, nil

	case "attribute_type":
		if len(n.Arguments) != 2 {
			return false, fmt.Errorf("attribute_type requires 2 arguments")
		}
		val, err := e.resolveOperand(n.Arguments[0], item, names, values)
		if err != nil {
			return false, err
		}
		want, err := e.resolveOperand(n.Arguments[1], item, names, values)
		if err != nil {
			return false, err
		}
		if val == nil || want == nil {
			return false, nil
		}
		tag, ok := want.AsString()
		if !ok {
			return false, models.New(models.ErrCodeValidation, "attribute_type expects a string type tag")
		}
		// Classification is by populated variant only; an empty set is
		// still its declared set type.
		return val.Kind().String() == tag, nil

	case "begins_with":
		if len(n.Arguments) != 2 {
			return false, fmt.Errorf("begins_with requires 2 arguments")
		}
		val, err := e.resolveOperand(n.Arguments[0], item, names, values)
		if err != nil {
			return false, err
		}
		prefix, err := e.resolveOperand(n.Arguments[1], item, names, values)
		if err != nil {
			return false, err
		}
		if val == nil || prefix == nil {
			return false, nil
		}
		if s, ok := val.AsString(); ok {
			if p, ok := prefix.AsString(); ok {
				return strings.HasPrefix(s, p), nil
			}
		}
		if b, ok := val.AsBinary(); ok {
			if p, ok := prefix.AsBinary(); ok {
				return bytes.HasPrefix(b, p), nil
			}
		}
		return false, nil

	case "contains":
		if len(n.Arguments) != 2 {
			return false, fmt.Errorf("contains requires 2 arguments")
		}
		container, err := e.resolveOperand(n.Arguments[0], item, names, values)
		if err != nil {
			return false, err
		}
		element, err := e.resolveOperand(n.Arguments[1], item, names, values)
		if err != nil {
			return false, err
		}
		if container == nil || element == nil {
			return false, nil
		}
		return valueContains(*container, *element), nil

	case "BETWEEN":
		val, err := e.resolveOperand(n.Arguments[0], item, names, values)
		if err != nil {
			return false, err
		}
		low, err := e.resolveOperand(n.Arguments[1], item, names, values)
		if err != nil {
			return false, err
		}
		high, err := e.resolveOperand(n.Arguments[2], item, names, values)
		if err != nil {
			return false, err
		}
		return compareValues(val, low, TokenGTE) && compareValues(val, high, TokenLTE), nil

	case "IN":
		val, err := e.resolveOperand(n.Arguments[0], item, names, values)
		if err != nil {
			return false, err
		}
		if val == nil {
			return false, nil
		}
		for _, candNode := range n.Arguments[1:] {
			cand, err := e.resolveOperand(candNode, item, names, values)
			if err != nil {
				return false, err
			}
			if cand != nil && val.Equal(*cand) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("unknown function %s", n.Name)
}

// resolveOperand resolves a value position to an attribute value, or nil
// when the reference is to something absent. Undefined #name and :value
// placeholders are errors; absent attributes are not.
func (e *Evaluator) resolveOperand(node Node, item models.Item, names map[string]string, values map[string]models.AttributeValue) (*models.AttributeValue, error) {
	switch n := node.(type) {
	case *LiteralNode:
		v, ok := values[n.Placeholder]
		if !ok {
			return nil, models.New(models.ErrCodeValidation,
				fmt.Sprintf("value placeholder %s is not defined", n.Placeholder))
		}
		return &v, nil

	case *PathNode:
		return resolvePath(n, item, names)

	case *FunctionNode:
		if n.Name == "size" {
			if len(n.Arguments) != 1 {
				return nil, models.New(models.ErrCodeValidation, "size requires 1 argument")
			}
			val, err := e.resolveOperand(n.Arguments[0], item, names, values)
			if err != nil {
				return nil, err
			}
			if val == nil {
				// Absent operand: comparisons against it are false.
				return nil, nil
			}
			sz, ok := val.Length()
			if !ok {
				return nil, nil
			}
			n := models.N(strconv.Itoa(sz))
			return &n, nil
		}
		return nil, models.New(models.ErrCodeValidation,
			fmt.Sprintf("function %s cannot be used as a value", n.Name))
	}
	return nil, fmt.Errorf("unresolvable operand %s", node)
}

// resolvePath walks an attribute path through the item tree. Any missing
// map key, out-of-range list index or shape mismatch along the way yields
// "absent" (nil), never an error.
func resolvePath(n *PathNode, item models.Item, names map[string]string) (*models.AttributeValue, error) {
	if len(n.Parts) == 0 || item == nil {
		return nil, nil
	}
	name, err := resolveName(n.Parts[0].Name, names)
	if err != nil {
		return nil, err
	}
	cur, ok := item[name]
	if !ok {
		return nil, nil
	}
	for _, part := range n.Parts[1:] {
		if part.IsIndex {
			list, ok := cur.AsList()
			if !ok || part.Index >= len(list) {
				return nil, nil
			}
			cur = list[part.Index]
		} else {
			key, err := resolveName(part.Name, names)
			if err != nil {
				return nil, err
			}
			m, ok := cur.AsMap()
			if !ok {
				return nil, nil
			}
			cur, ok = m[key]
			if !ok {
				return nil, nil
			}
		}
	}
	return &cur, nil
}

// resolveName maps a #placeholder through the caller's name map. Plain
// names pass through unchanged.
func resolveName(raw string, names map[string]string) (string, error) {
	if !strings.HasPrefix(raw, "#") {
		return raw, nil
	}
	if n, ok := names[raw]; ok {
		return n, nil
	}
	return "", models.New(models.ErrCodeValidation,
		fmt.Sprintf("name placeholder %s is not defined", raw))
}

// compareValues applies a comparison operator. A nil (absent) or NULL
// operand makes every comparison false; so does a type mismatch. Ordering
// operators are defined for S, N and B only.
func compareValues(lhs, rhs *models.AttributeValue, op TokenType) bool {
	if lhs == nil || rhs == nil || lhs.IsNull() || rhs.IsNull() {
		return false
	}
	switch op {
	case TokenEq:
		return lhs.Equal(*rhs)
	case TokenNE:
		if lhs.Kind() != rhs.Kind() {
			return false
		}
		return !lhs.Equal(*rhs)
	}
	cmp, ok := orderValues(*lhs, *rhs)
	if !ok {
		return false
	}
	switch op {
	case TokenLT:
		return cmp < 0
	case TokenLTE:
		return cmp <= 0
	case TokenGT:
		return cmp > 0
	case TokenGTE:
		return cmp >= 0
	}
	return false
}

func orderValues(a, b models.AttributeValue) (int, bool) {
	if as, ok := a.AsString(); ok {
		bs, ok := b.AsString()
		if !ok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	if an, ok := a.AsNumber(); ok {
		bn, ok := b.AsNumber()
		if !ok {
			return 0, false
		}
		cmp, err := models.CompareNumbers(an, bn)
		if err != nil {
			return 0, false
		}
		return cmp, true
	}
	if ab, ok := a.AsBinary(); ok {
		bb, ok := b.AsBinary()
		if !ok {
			return 0, false
		}
		return bytes.Compare(ab, bb), true
	}
	return 0, false
}

func valueContains(container, element models.AttributeValue) bool {
	if s, ok := container.AsString(); ok {
		e, ok := element.AsString()
		return ok && strings.Contains(s, e)
	}
	if ss, ok := container.AsStringSet(); ok {
		e, ok := element.AsString()
		if !ok {
			return false
		}
		for _, m := range ss {
			if m == e {
				return true
			}
		}
		return false
	}
	if ns, ok := container.AsNumberSet(); ok {
		e, ok := element.AsNumber()
		if !ok {
			return false
		}
		for _, m := range ns {
			if cmp, err := models.CompareNumbers(m, e); err == nil && cmp == 0 {
				return true
			}
		}
		return false
	}
	if bs, ok := container.AsBinarySet(); ok {
		e, ok := element.AsBinary()
		if !ok {
			return false
		}
		for _, m := range bs {
			if bytes.Equal(m, e) {
				return true
			}
		}
		return false
	}
	if list, ok := container.AsList(); ok {
		for _, m := range list {
			if m.Equal(element) {
				return true
			}
		}
		return false
	}
	return false
}
