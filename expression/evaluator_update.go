package expression

import (
	"fmt"

	"github.com/tabeth/concretelocal/models"
)

// ApplyUpdate applies a parsed UpdateExpression to an item and returns the
// resulting item. The input item is never mutated; a nil item starts from
// empty, which is how updates create items. Clauses apply in the order
// SET, REMOVE, ADD, DELETE; every read of the old state (operand paths,
// if_not_exists) resolves against the item as it was before any clause ran.
func (e *Evaluator) ApplyUpdate(update *UpdateNode, item models.Item, names map[string]string, values map[string]models.AttributeValue) (models.Item, error) {
	if update == nil {
		return models.CopyItem(item), nil
	}
	if err := checkDuplicateTargets(update, names); err != nil {
		return nil, err
	}
	old := item
	out := models.CopyItem(item)
	if out == nil {
		out = models.Item{}
	}

	for _, action := range update.SetActions {
		val, err := e.resolveUpdateValue(action.Value, old, names, values)
		if err != nil {
			return nil, err
		}
		if err := setAtPath(out, action.Path, names, val); err != nil {
			return nil, err
		}
	}
	for _, action := range update.RemoveActions {
		if err := removeAtPath(out, action.Path, names); err != nil {
			return nil, err
		}
	}
	for _, action := range update.AddActions {
		if err := e.applyAdd(out, action, names, values); err != nil {
			return nil, err
		}
	}
	for _, action := range update.DeleteActions {
		if err := e.applyDelete(out, action, names, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// resolveUpdateValue evaluates a SET right-hand side. Unlike condition
// operands, a path that does not exist is an error here, except inside
// if_not_exists where absence is the point.
func (e *Evaluator) resolveUpdateValue(node Node, item models.Item, names map[string]string, values map[string]models.AttributeValue) (models.AttributeValue, error) {
	switch n := node.(type) {
	case *LiteralNode:
		v, ok := values[n.Placeholder]
		if !ok {
			return models.AttributeValue{}, models.New(models.ErrCodeValidation,
				fmt.Sprintf("value placeholder %s is not defined", n.Placeholder))
		}
		return v, nil

	case *PathNode:
		v, err := resolvePath(n, item, names)
		if err != nil {
			return models.AttributeValue{}, err
		}
		if v == nil {
			return models.AttributeValue{}, models.New(models.ErrCodeValidation,
				fmt.Sprintf("the update expression refers to %s, which does not exist in the item", n))
		}
		return *v, nil

	case *BinaryNode:
		left, err := e.resolveUpdateValue(n.Left, item, names, values)
		if err != nil {
			return models.AttributeValue{}, err
		}
		right, err := e.resolveUpdateValue(n.Right, item, names, values)
		if err != nil {
			return models.AttributeValue{}, err
		}
		ln, okL := left.AsNumber()
		rn, okR := right.AsNumber()
		if !okL || !okR {
			return models.AttributeValue{}, models.New(models.ErrCodeValidation,
				"arithmetic in a SET action requires number operands")
		}
		var sum string
		if n.Operator.Type == TokenPlus {
			sum, err = models.AddNumbers(ln, rn)
		} else {
			sum, err = models.SubtractNumbers(ln, rn)
		}
		if err != nil {
			return models.AttributeValue{}, models.New(models.ErrCodeValidation, err.Error())
		}
		return models.N(sum), nil

	case *FunctionNode:
		switch n.Name {
		case "if_not_exists":
			path, ok := n.Arguments[0].(*PathNode)
			if !ok {
				return models.AttributeValue{}, models.New(models.ErrCodeValidation,
					"if_not_exists expects an attribute path as its first argument")
			}
			v, err := resolvePath(path, item, names)
			if err != nil {
				return models.AttributeValue{}, err
			}
			if v != nil {
				return *v, nil
			}
			return e.resolveUpdateValue(n.Arguments[1], item, names, values)

		case "list_append":
			left, err := e.resolveUpdateValue(n.Arguments[0], item, names, values)
			if err != nil {
				return models.AttributeValue{}, err
			}
			right, err := e.resolveUpdateValue(n.Arguments[1], item, names, values)
			if err != nil {
				return models.AttributeValue{}, err
			}
			ll, okL := left.AsList()
			rl, okR := right.AsList()
			if !okL || !okR {
				return models.AttributeValue{}, models.New(models.ErrCodeValidation,
					"list_append requires two list operands")
			}
			merged := make([]models.AttributeValue, 0, len(ll)+len(rl))
			merged = append(merged, ll...)
			merged = append(merged, rl...)
			return models.L(merged...), nil
		}
		return models.AttributeValue{}, models.New(models.ErrCodeValidation,
			fmt.Sprintf("function %s is not allowed in a SET action", n.Name))
	}
	return models.AttributeValue{}, fmt.Errorf("unresolvable update value %s", node)
}

// setAtPath writes val at the given path inside item. Every intermediate
// step must already exist with the matching shape; only the final step may
// be absent. Setting a list index at or past the end appends one element.
func setAtPath(item models.Item, path *PathNode, names map[string]string, val models.AttributeValue) error {
	name, err := resolveName(path.Parts[0].Name, names)
	if err != nil {
		return err
	}
	if len(path.Parts) == 1 {
		item[name] = val
		return nil
	}
	cur, ok := item[name]
	if !ok {
		return pathMissingErr(path)
	}
	updated, err := setInValue(cur, path, path.Parts[1:], names, val)
	if err != nil {
		return err
	}
	item[name] = updated
	return nil
}

func setInValue(cur models.AttributeValue, full *PathNode, rest []PathPart, names map[string]string, val models.AttributeValue) (models.AttributeValue, error) {
	part := rest[0]
	last := len(rest) == 1

	if part.IsIndex {
		list, ok := cur.AsList()
		if !ok {
			return models.AttributeValue{}, pathShapeErr(full)
		}
		out := append([]models.AttributeValue(nil), list...)
		if last {
			if part.Index < len(out) {
				out[part.Index] = val
			} else {
				out = append(out, val)
			}
			return models.L(out...), nil
		}
		if part.Index >= len(out) {
			return models.AttributeValue{}, pathMissingErr(full)
		}
		child, err := setInValue(out[part.Index], full, rest[1:], names, val)
		if err != nil {
			return models.AttributeValue{}, err
		}
		out[part.Index] = child
		return models.L(out...), nil
	}

	key, err := resolveName(part.Name, names)
	if err != nil {
		return models.AttributeValue{}, err
	}
	m, ok := cur.AsMap()
	if !ok {
		return models.AttributeValue{}, pathShapeErr(full)
	}
	out := make(map[string]models.AttributeValue, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	if last {
		out[key] = val
		return models.M(out), nil
	}
	child, ok := out[key]
	if !ok {
		return models.AttributeValue{}, pathMissingErr(full)
	}
	updated, err := setInValue(child, full, rest[1:], names, val)
	if err != nil {
		return models.AttributeValue{}, err
	}
	out[key] = updated
	return models.M(out), nil
}

// removeAtPath deletes the value at path. A path that resolves to nothing
// is a no-op; removing a list index shifts the remaining elements left.
func removeAtPath(item models.Item, path *PathNode, names map[string]string) error {
	name, err := resolveName(path.Parts[0].Name, names)
	if err != nil {
		return err
	}
	if len(path.Parts) == 1 {
		delete(item, name)
		return nil
	}
	cur, ok := item[name]
	if !ok {
		return nil
	}
	updated, removed, err := removeInValue(cur, path.Parts[1:], names)
	if err != nil {
		return err
	}
	if removed {
		item[name] = updated
	}
	return nil
}

func removeInValue(cur models.AttributeValue, rest []PathPart, names map[string]string) (models.AttributeValue, bool, error) {
	part := rest[0]
	last := len(rest) == 1

	if part.IsIndex {
		list, ok := cur.AsList()
		if !ok || part.Index >= len(list) {
			return cur, false, nil
		}
		out := append([]models.AttributeValue(nil), list...)
		if last {
			out = append(out[:part.Index], out[part.Index+1:]...)
			return models.L(out...), true, nil
		}
		child, removed, err := removeInValue(out[part.Index], rest[1:], names)
		if err != nil || !removed {
			return cur, false, err
		}
		out[part.Index] = child
		return models.L(out...), true, nil
	}

	key, err := resolveName(part.Name, names)
	if err != nil {
		return models.AttributeValue{}, false, err
	}
	m, ok := cur.AsMap()
	if !ok {
		return cur, false, nil
	}
	child, ok := m[key]
	if !ok {
		return cur, false, nil
	}
	out := make(map[string]models.AttributeValue, len(m))
	for k, v := range m {
		out[k] = v
	}
	if last {
		delete(out, key)
		return models.M(out), true, nil
	}
	updated, removed, err := removeInValue(child, rest[1:], names)
	if err != nil || !removed {
		return cur, false, err
	}
	out[key] = updated
	return models.M(out), true, nil
}

// applyAdd handles ADD: numeric increment or set union, top-level
// attributes only. An absent target starts from zero or the empty set of
// the operand's type.
func (e *Evaluator) applyAdd(item models.Item, action *AddAction, names map[string]string, values map[string]models.AttributeValue) error {
	if len(action.Path.Parts) != 1 || action.Path.Parts[0].IsIndex {
		return models.New(models.ErrCodeValidation, "ADD supports top-level attributes only")
	}
	name, err := resolveName(action.Path.Parts[0].Name, names)
	if err != nil {
		return err
	}
	operand, err := e.resolveUpdateValue(action.Value, item, names, values)
	if err != nil {
		return err
	}
	existing, exists := item[name]

	if delta, ok := operand.AsNumber(); ok {
		base := "0"
		if exists {
			n, ok := existing.AsNumber()
			if !ok {
				return addTypeErr(name, existing, operand)
			}
			base = n
		}
		sum, err := models.AddNumbers(base, delta)
		if err != nil {
			return models.New(models.ErrCodeValidation, err.Error())
		}
		item[name] = models.N(sum)
		return nil
	}

	switch operand.Kind() {
	case models.KindSS:
		add, _ := operand.AsStringSet()
		var cur []string
		if exists {
			c, ok := existing.AsStringSet()
			if !ok {
				return addTypeErr(name, existing, operand)
			}
			cur = c
		}
		item[name] = models.SS(append(append([]string(nil), cur...), add...)...)
	case models.KindNS:
		add, _ := operand.AsNumberSet()
		var cur []string
		if exists {
			c, ok := existing.AsNumberSet()
			if !ok {
				return addTypeErr(name, existing, operand)
			}
			cur = c
		}
		item[name] = models.NS(append(append([]string(nil), cur...), add...)...)
	case models.KindBS:
		add, _ := operand.AsBinarySet()
		var cur [][]byte
		if exists {
			c, ok := existing.AsBinarySet()
			if !ok {
				return addTypeErr(name, existing, operand)
			}
			cur = c
		}
		item[name] = models.BS(append(append([][]byte(nil), cur...), add...)...)
	default:
		return models.New(models.ErrCodeValidation,
			fmt.Sprintf("ADD action requires a number or set operand, got %s", operand.Kind()))
	}
	return nil
}

// applyDelete handles DELETE: set difference on a top-level attribute. A
// set left empty is removed from the item entirely, keeping sets sparse.
func (e *Evaluator) applyDelete(item models.Item, action *DeleteAction, names map[string]string, values map[string]models.AttributeValue) error {
	if len(action.Path.Parts) != 1 || action.Path.Parts[0].IsIndex {
		return models.New(models.ErrCodeValidation, "DELETE supports top-level attributes only")
	}
	name, err := resolveName(action.Path.Parts[0].Name, names)
	if err != nil {
		return err
	}
	operand, err := e.resolveUpdateValue(action.Value, item, names, values)
	if err != nil {
		return err
	}
	if !operand.IsSet() {
		return models.New(models.ErrCodeValidation,
			fmt.Sprintf("DELETE action requires a set operand, got %s", operand.Kind()))
	}
	existing, exists := item[name]
	if !exists {
		return nil
	}
	if existing.Kind() != operand.Kind() {
		return models.New(models.ErrCodeValidation,
			fmt.Sprintf("DELETE action type mismatch for %s: item has %s, operand is %s",
				name, existing.Kind(), operand.Kind()))
	}

	var result models.AttributeValue
	switch existing.Kind() {
	case models.KindSS:
		cur, _ := existing.AsStringSet()
		var kept []string
		for _, v := range cur {
			if !valueContains(operand, models.S(v)) {
				kept = append(kept, v)
			}
		}
		result = models.SS(kept...)
	case models.KindNS:
		cur, _ := existing.AsNumberSet()
		var kept []string
		for _, v := range cur {
			if !valueContains(operand, models.N(v)) {
				kept = append(kept, v)
			}
		}
		result = models.NS(kept...)
	case models.KindBS:
		cur, _ := existing.AsBinarySet()
		var kept [][]byte
		for _, v := range cur {
			if !valueContains(operand, models.B(v)) {
				kept = append(kept, v)
			}
		}
		result = models.BS(kept...)
	}
	if n, _ := result.Length(); n == 0 {
		delete(item, name)
		return nil
	}
	item[name] = result
	return nil
}

// checkDuplicateTargets rejects expressions that address the same path from
// two actions, whose outcome would depend on application order.
func checkDuplicateTargets(update *UpdateNode, names map[string]string) error {
	seen := map[string]bool{}
	note := func(p *PathNode) error {
		resolved := make([]PathPart, len(p.Parts))
		for i, part := range p.Parts {
			resolved[i] = part
			if !part.IsIndex {
				name, err := resolveName(part.Name, names)
				if err != nil {
					return err
				}
				resolved[i].Name = name
			}
		}
		key := (&PathNode{Parts: resolved}).String()
		if seen[key] {
			return models.New(models.ErrCodeValidation,
				fmt.Sprintf("the update expression addresses %s more than once", key))
		}
		seen[key] = true
		return nil
	}
	for _, a := range update.SetActions {
		if err := note(a.Path); err != nil {
			return err
		}
	}
	for _, a := range update.RemoveActions {
		if err := note(a.Path); err != nil {
			return err
		}
	}
	for _, a := range update.AddActions {
		if err := note(a.Path); err != nil {
			return err
		}
	}
	for _, a := range update.DeleteActions {
		if err := note(a.Path); err != nil {
			return err
		}
	}
	return nil
}

func pathMissingErr(path *PathNode) error {
	return models.New(models.ErrCodeValidation,
		fmt.Sprintf("the document path %s does not exist in the item", path))
}

func pathShapeErr(path *PathNode) error {
	return models.New(models.ErrCodeValidation,
		fmt.Sprintf("the document path %s conflicts with the item's structure", path))
}

func addTypeErr(name string, existing, operand models.AttributeValue) error {
	return models.New(models.ErrCodeValidation,
		fmt.Sprintf("ADD action type mismatch for %s: item has %s, operand is %s",
			name, existing.Kind(), operand.Kind()))
}
