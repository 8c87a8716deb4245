package expression

// ParseProjection parses a ProjectionExpression: one or more attribute
// paths separated by commas.
func ParseProjection(input string) ([]*PathNode, error) {
	p := newParser(input)
	if p.isAtEnd() {
		return nil, p.errorf(p.peek(), "empty projection expression")
	}
	var paths []*PathNode
	for {
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
		if !p.match(TokenComma) {
			break
		}
	}
	if !p.isAtEnd() {
		return nil, p.errorf(p.peek(), "unexpected token in projection expression")
	}
	return paths, nil
}

// ParseKeyCondition parses a KeyConditionExpression. The grammar is a
// strict subset of the condition grammar: one or two predicates joined by
// AND, each an equality/comparison/BETWEEN/begins_with over a single key
// attribute with placeholder operands. Which predicate addresses the
// partition key is resolved by the query translator against the schema.
func ParseKeyCondition(input string) (*KeyCondition, error) {
	node, err := ParseCondition(input)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, &ParseError{Msg: "empty key condition expression"}
	}
	kc := &KeyCondition{}
	if err := collectKeyConstraints(kc, node); err != nil {
		return nil, err
	}
	if len(kc.Constraints) < 1 || len(kc.Constraints) > 2 {
		return nil, &ParseError{Msg: "key condition must have one or two predicates joined by AND"}
	}
	return kc, nil
}

func collectKeyConstraints(kc *KeyCondition, node Node) error {
	switch n := node.(type) {
	case *BinaryNode:
		if n.Operator.Type == TokenAND {
			if err := collectKeyConstraints(kc, n.Left); err != nil {
				return err
			}
			return collectKeyConstraints(kc, n.Right)
		}
		if n.Operator.Type == TokenOR {
			return &ParseError{Pos: n.Operator.Pos, Token: n.Operator.Literal,
				Msg: "OR is not allowed in a key condition"}
		}
		path, lit, err := keyPredicateOperands(n.Left, n.Right, n.Operator)
		if err != nil {
			return err
		}
		kc.Constraints = append(kc.Constraints, &KeyConstraint{
			Path:     path,
			Operator: n.Operator.Literal,
			Values:   []*LiteralNode{lit},
		})
		return nil
	case *FunctionNode:
		switch n.Name {
		case "BETWEEN":
			path, ok := n.Arguments[0].(*PathNode)
			if !ok {
				return &ParseError{Msg: "BETWEEN in a key condition must apply to the sort key"}
			}
			low, okL := n.Arguments[1].(*LiteralNode)
			high, okH := n.Arguments[2].(*LiteralNode)
			if !okL || !okH {
				return &ParseError{Msg: "BETWEEN bounds in a key condition must be value placeholders"}
			}
			kc.Constraints = append(kc.Constraints, &KeyConstraint{
				Path:     path,
				Operator: "BETWEEN",
				Values:   []*LiteralNode{low, high},
			})
			return nil
		case "begins_with":
			if len(n.Arguments) != 2 {
				return &ParseError{Msg: "begins_with requires 2 arguments"}
			}
			path, okP := n.Arguments[0].(*PathNode)
			lit, okV := n.Arguments[1].(*LiteralNode)
			if !okP || !okV {
				return &ParseError{Msg: "begins_with in a key condition takes a key path and a value placeholder"}
			}
			kc.Constraints = append(kc.Constraints, &KeyConstraint{
				Path:     path,
				Operator: "begins_with",
				Values:   []*LiteralNode{lit},
			})
			return nil
		}
		return &ParseError{Msg: "function " + n.Name + " is not allowed in a key condition"}
	case *UnaryNode:
		return &ParseError{Pos: n.Operator.Pos, Token: n.Operator.Literal,
			Msg: "NOT is not allowed in a key condition"}
	}
	return &ParseError{Msg: "unsupported predicate in key condition"}
}

func keyPredicateOperands(left, right Node, op Token) (*PathNode, *LiteralNode, error) {
	path, ok := left.(*PathNode)
	if !ok {
		return nil, nil, &ParseError{Pos: op.Pos, Token: op.Literal,
			Msg: "key condition comparisons must have a key attribute on the left"}
	}
	if len(path.Parts) != 1 || path.Parts[0].IsIndex {
		return nil, nil, &ParseError{Pos: op.Pos, Token: op.Literal,
			Msg: "key condition paths must be plain attribute names"}
	}
	lit, ok := right.(*LiteralNode)
	if !ok {
		return nil, nil, &ParseError{Pos: op.Pos, Token: op.Literal,
			Msg: "key condition comparisons must have a value placeholder on the right"}
	}
	return path, lit, nil
}
