package expression

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a syntax or placeholder-resolution failure with enough
// context to point at the offending token. It maps to a validation failure
// at the API boundary.
type ParseError struct {
	Pos   int
	Token string
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("invalid expression at position %d: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("invalid expression at position %d near %q: %s", e.Pos, e.Token, e.Msg)
}

type Node interface {
	String() string
}

// BinaryNode is a comparison or AND/OR connective.
type BinaryNode struct {
	Left     Node
	Operator Token
	Right    Node
}

func (n *BinaryNode) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left, n.Operator.Literal, n.Right)
}

// UnaryNode is NOT.
type UnaryNode struct {
	Operator Token
	Operand  Node
}

func (n *UnaryNode) String() string {
	return fmt.Sprintf("(%s %s)", n.Operator.Literal, n.Operand)
}

// FunctionNode covers the named functions plus the internal BETWEEN and IN
// forms, which parse to functions of 3 and 1+n arguments respectively.
type FunctionNode struct {
	Name      string
	Arguments []Node
}

func (n *FunctionNode) String() string {
	args := make([]string, len(n.Arguments))
	for i, a := range n.Arguments {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", n.Name, strings.Join(args, ", "))
}

// LiteralNode is a :placeholder, resolved against the caller's value map at
// evaluation time.
type LiteralNode struct {
	Placeholder string
}

func (n *LiteralNode) String() string { return n.Placeholder }

// PathPart is one step of an attribute path: a map key (possibly a #name
// placeholder) or a list index.
type PathPart struct {
	Name    string
	Index   int
	IsIndex bool
}

// PathNode is a dotted/bracketed attribute path such as a.b[2].c.
type PathNode struct {
	Parts []PathPart
}

func (n *PathNode) String() string {
	var b strings.Builder
	for i, p := range n.Parts {
		if p.IsIndex {
			b.WriteString("[" + strconv.Itoa(p.Index) + "]")
		} else {
			if i > 0 {
				b.WriteString(".")
			}
			b.WriteString(p.Name)
		}
	}
	return b.String()
}

// UpdateNode is a parsed UpdateExpression, one slice per clause kind.
type UpdateNode struct {
	SetActions    []*SetAction
	RemoveActions []*RemoveAction
	AddActions    []*AddAction
	DeleteActions []*DeleteAction
}

type SetAction struct {
	Path  *PathNode
	Value Node
}

type RemoveAction struct {
	Path *PathNode
}

type AddAction struct {
	Path  *PathNode
	Value Node
}

type DeleteAction struct {
	Path  *PathNode
	Value Node
}

// KeyConstraint is one conjunct of a key condition: a comparison, BETWEEN
// or begins_with applied to a single key attribute.
type KeyConstraint struct {
	Path     *PathNode
	Operator string // "=", "<", "<=", ">", ">=", "BETWEEN", "begins_with"
	Values   []*LiteralNode
}

// KeyCondition is a parsed KeyConditionExpression: one or two constraints
// joined by AND. Which constraint addresses the partition key is decided by
// the translator, which knows the schema.
type KeyCondition struct {
	Constraints []*KeyConstraint
}
