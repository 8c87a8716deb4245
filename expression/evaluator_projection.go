package expression

import (
	"sort"

	"github.com/tabeth/concretelocal/models"
)

// ProjectItem returns a copy of item narrowed to the given projection
// paths. Paths that resolve to nothing simply contribute nothing; lists
// keep relative order and compact around absent indices. Overlapping paths
// merge, and a path subsumed by a broader one is absorbed by it.
func (e *Evaluator) ProjectItem(item models.Item, paths []*PathNode, names map[string]string) (models.Item, error) {
	if item == nil {
		return nil, nil
	}
	if len(paths) == 0 {
		return models.CopyItem(item), nil
	}
	root := newProjNode()
	for _, p := range paths {
		if err := root.add(p.Parts, names); err != nil {
			return nil, err
		}
	}
	out := models.Item{}
	for name, child := range root.mapChildren {
		v, ok := item[name]
		if !ok {
			continue
		}
		projected, ok := child.apply(v)
		if ok {
			out[name] = projected
		}
	}
	return out, nil
}

// projNode is one level of the merged projection tree. A leaf takes the
// whole subtree at that point, which is why add stops descending once a
// leaf is reached.
type projNode struct {
	leaf         bool
	mapChildren  map[string]*projNode
	listChildren map[int]*projNode
}

func newProjNode() *projNode {
	return &projNode{
		mapChildren:  map[string]*projNode{},
		listChildren: map[int]*projNode{},
	}
}

func (n *projNode) add(parts []PathPart, names map[string]string) error {
	if n.leaf {
		return nil
	}
	if len(parts) == 0 {
		n.leaf = true
		n.mapChildren = map[string]*projNode{}
		n.listChildren = map[int]*projNode{}
		return nil
	}
	part := parts[0]
	if part.IsIndex {
		child, ok := n.listChildren[part.Index]
		if !ok {
			child = newProjNode()
			n.listChildren[part.Index] = child
		}
		return child.add(parts[1:], names)
	}
	name, err := resolveName(part.Name, names)
	if err != nil {
		return err
	}
	child, ok := n.mapChildren[name]
	if !ok {
		child = newProjNode()
		n.mapChildren[name] = child
	}
	return child.add(parts[1:], names)
}

// apply projects a value through this node. The second return is false
// when nothing under the node exists in the value.
func (n *projNode) apply(v models.AttributeValue) (models.AttributeValue, bool) {
	if n.leaf {
		return v.Copy(), true
	}
	if len(n.listChildren) > 0 {
		list, ok := v.AsList()
		if !ok {
			return models.AttributeValue{}, false
		}
		indices := make([]int, 0, len(n.listChildren))
		for i := range n.listChildren {
			indices = append(indices, i)
		}
		sort.Ints(indices)
		var out []models.AttributeValue
		for _, i := range indices {
			if i >= len(list) {
				continue
			}
			projected, ok := n.listChildren[i].apply(list[i])
			if ok {
				out = append(out, projected)
			}
		}
		if out == nil {
			return models.AttributeValue{}, false
		}
		return models.L(out...), true
	}
	m, ok := v.AsMap()
	if !ok {
		return models.AttributeValue{}, false
	}
	out := map[string]models.AttributeValue{}
	for name, child := range n.mapChildren {
		cv, ok := m[name]
		if !ok {
			continue
		}
		projected, ok := child.apply(cv)
		if ok {
			out[name] = projected
		}
	}
	if len(out) == 0 {
		return models.AttributeValue{}, false
	}
	return models.M(out), true
}
