package expression

// ParseUpdate parses an UpdateExpression: SET, REMOVE, ADD and DELETE
// clauses in any order, each clause carrying one or more comma-separated
// actions.
func ParseUpdate(input string) (*UpdateNode, error) {
	p := newParser(input)
	if p.isAtEnd() {
		return nil, p.errorf(p.peek(), "empty update expression")
	}
	node := &UpdateNode{}
	for !p.isAtEnd() {
		switch {
		case p.match(TokenSET):
			actions, err := p.parseSetClause()
			if err != nil {
				return nil, err
			}
			node.SetActions = append(node.SetActions, actions...)
		case p.match(TokenREMOVE):
			actions, err := p.parseRemoveClause()
			if err != nil {
				return nil, err
			}
			node.RemoveActions = append(node.RemoveActions, actions...)
		case p.match(TokenADD):
			actions, err := p.parseAddClause()
			if err != nil {
				return nil, err
			}
			node.AddActions = append(node.AddActions, actions...)
		case p.match(TokenDELETE):
			actions, err := p.parseDeleteClause()
			if err != nil {
				return nil, err
			}
			node.DeleteActions = append(node.DeleteActions, actions...)
		default:
			return nil, p.errorf(p.peek(), "expected SET, REMOVE, ADD or DELETE")
		}
	}
	return node, nil
}

func (p *parser) parseSetClause() ([]*SetAction, error) {
	var actions []*SetAction
	for {
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		if !p.match(TokenEq) {
			return nil, p.errorf(p.peek(), "expected '=' after path in SET clause")
		}
		val, err := p.parseSetValue()
		if err != nil {
			return nil, err
		}
		actions = append(actions, &SetAction{Path: path, Value: val})
		if !p.match(TokenComma) {
			break
		}
	}
	return actions, nil
}

// parseSetValue parses a SET right-hand side: an operand, operand+operand,
// operand-operand, if_not_exists(path, default) or list_append(a, b).
func (p *parser) parseSetValue() (Node, error) {
	left, err := p.parseSetOperand()
	if err != nil {
		return nil, err
	}
	if p.match(TokenPlus, TokenMinus) {
		op := p.prev()
		right, err := p.parseSetOperand()
		if err != nil {
			return nil, err
		}
		return &BinaryNode{Left: left, Operator: op, Right: right}, nil
	}
	return left, nil
}

func (p *parser) parseSetOperand() (Node, error) {
	if p.check(TokenIfNotExists) || p.check(TokenListAppend) {
		start := p.advance()
		name := start.Literal
		if !p.match(TokenLParen) {
			return nil, p.errorf(p.peek(), "expected '(' after "+name)
		}
		var args []Node
		for {
			arg, err := p.parseSetOperand()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.match(TokenComma) {
				break
			}
		}
		if !p.match(TokenRParen) {
			return nil, p.errorf(p.peek(), "expected ')'")
		}
		if len(args) != 2 {
			return nil, p.errorf(start, name+" requires exactly 2 arguments")
		}
		return &FunctionNode{Name: name, Arguments: args}, nil
	}
	if p.match(TokenValue) {
		return &LiteralNode{Placeholder: p.prev().Literal}, nil
	}
	return p.parsePath()
}

func (p *parser) parseRemoveClause() ([]*RemoveAction, error) {
	var actions []*RemoveAction
	for {
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		actions = append(actions, &RemoveAction{Path: path})
		if !p.match(TokenComma) {
			break
		}
	}
	return actions, nil
}

func (p *parser) parseAddClause() ([]*AddAction, error) {
	var actions []*AddAction
	for {
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		if !p.match(TokenValue) {
			return nil, p.errorf(p.peek(), "ADD expects a value placeholder")
		}
		actions = append(actions, &AddAction{Path: path, Value: &LiteralNode{Placeholder: p.prev().Literal}})
		if !p.match(TokenComma) {
			break
		}
	}
	return actions, nil
}

func (p *parser) parseDeleteClause() ([]*DeleteAction, error) {
	var actions []*DeleteAction
	for {
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		if !p.match(TokenValue) {
			return nil, p.errorf(p.peek(), "DELETE expects a value placeholder")
		}
		actions = append(actions, &DeleteAction{Path: path, Value: &LiteralNode{Placeholder: p.prev().Literal}})
		if !p.match(TokenComma) {
			break
		}
	}
	return actions, nil
}
