package sqllang

import (
	"strconv"
	"strings"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/condition"
	"github.com/nogdb/nogdb/pkg/nogdberr"
)

type parser struct {
	toks []token
	pos  int
}

// Parse tokenizes and parses a single NogDB SQL statement.
func Parse(src string) (Stmt, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.parseStmt()
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errf(format string, args ...any) error {
	return nogdberr.New(nogdberr.SQLSyntaxError, format, args...)
}

func upper(s string) string { return strings.ToUpper(s) }

func (p *parser) expectKeyword(kw string) error {
	t := p.advance()
	if t.kind != tokIdent || upper(t.text) != kw {
		return p.errf("expected %q, got %q", kw, t.text)
	}
	return nil
}

func (p *parser) matchKeyword(kw string) bool {
	if p.cur().kind == tokIdent && upper(p.cur().text) == kw {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectIdent() (string, error) {
	t := p.advance()
	if t.kind != tokIdent {
		return "", p.errf("expected identifier, got %q", t.text)
	}
	return t.text, nil
}

func (p *parser) expectSymbol(sym string) error {
	t := p.advance()
	if t.kind != tokSymbol || t.text != sym {
		return p.errf("expected %q, got %q", sym, t.text)
	}
	return nil
}

func (p *parser) parseStmt() (Stmt, error) {
	kw := upper(p.cur().text)
	switch kw {
	case "EXPLAIN":
		p.advance()
		inner, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		return ExplainStmt{Inner: inner}, nil
	case "CREATE":
		p.advance()
		return p.parseCreate()
	case "DROP":
		p.advance()
		return p.parseDrop()
	case "ALTER":
		p.advance()
		return p.parseAlter()
	case "SELECT":
		p.advance()
		return p.parseSelect()
	case "UPDATE":
		p.advance()
		return p.parseUpdate()
	case "DELETE":
		p.advance()
		return p.parseDelete()
	case "TRAVERSE":
		p.advance()
		return p.parseTraverse()
	default:
		return nil, p.errf("unrecognized statement keyword %q", p.cur().text)
	}
}

func (p *parser) parseCreate() (Stmt, error) {
	switch upper(p.cur().text) {
	case "CLASS":
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AS"); err != nil {
			return nil, err
		}
		tag, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		tag = upper(tag)
		if tag != "VERTEX" && tag != "EDGE" {
			return nil, p.errf("class tag must be VERTEX or EDGE, got %q", tag)
		}
		parent := ""
		if p.matchKeyword("EXTENDS") {
			parent, err = p.expectIdent()
			if err != nil {
				return nil, err
			}
		}
		return CreateClassStmt{Name: name, Tag: tag, Parent: parent}, nil

	case "PROPERTY":
		p.advance()
		class, prop, err := p.parseClassDotProp()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("TYPE"); err != nil {
			return nil, err
		}
		typeName, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return CreatePropertyStmt{Class: class, Property: prop, Type: typeName}, nil

	case "INDEX":
		p.advance()
		if err := p.expectKeyword("ON"); err != nil {
			return nil, err
		}
		class, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		prop, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		unique := p.matchKeyword("UNIQUE")
		return CreateIndexStmt{Class: class, Property: prop, Unique: unique}, nil

	case "VERTEX":
		p.advance()
		class, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		set, err := p.parseOptionalSet()
		if err != nil {
			return nil, err
		}
		return CreateVertexStmt{Class: class, Set: set}, nil

	case "EDGE":
		p.advance()
		class, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("FROM"); err != nil {
			return nil, err
		}
		from, err := p.expectRecordID()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("TO"); err != nil {
			return nil, err
		}
		to, err := p.expectRecordID()
		if err != nil {
			return nil, err
		}
		set, err := p.parseOptionalSet()
		if err != nil {
			return nil, err
		}
		return CreateEdgeStmt{Class: class, From: from, To: to, Set: set}, nil

	default:
		return nil, p.errf("unrecognized CREATE target %q", p.cur().text)
	}
}

func (p *parser) parseDrop() (Stmt, error) {
	switch upper(p.cur().text) {
	case "CLASS":
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return DropClassStmt{Name: name}, nil
	case "PROPERTY":
		p.advance()
		class, prop, err := p.parseClassDotProp()
		if err != nil {
			return nil, err
		}
		return DropPropertyStmt{Class: class, Property: prop}, nil
	case "INDEX":
		p.advance()
		if err := p.expectKeyword("ON"); err != nil {
			return nil, err
		}
		class, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		prop, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return DropIndexStmt{Class: class, Property: prop}, nil
	default:
		return nil, p.errf("unrecognized DROP target %q", p.cur().text)
	}
}

func (p *parser) parseAlter() (Stmt, error) {
	switch upper(p.cur().text) {
	case "CLASS":
		p.advance()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("NAME"); err != nil {
			return nil, err
		}
		newName, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return AlterClassStmt{Name: name, NewName: newName}, nil
	case "PROPERTY":
		p.advance()
		class, prop, err := p.parseClassDotProp()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("NAME"); err != nil {
			return nil, err
		}
		newName, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return AlterPropertyStmt{Class: class, Property: prop, NewName: newName}, nil
	default:
		return nil, p.errf("unrecognized ALTER target %q", p.cur().text)
	}
}

func (p *parser) parseClassDotProp() (string, string, error) {
	ident, err := p.expectIdent()
	if err != nil {
		return "", "", err
	}
	dot := strings.IndexByte(ident, '.')
	if dot < 0 {
		return "", "", p.errf("expected class.property, got %q", ident)
	}
	return ident[:dot], ident[dot+1:], nil
}

func (p *parser) parseOptionalSet() (map[string]any, error) {
	if !p.matchKeyword("SET") {
		return nil, nil
	}
	return p.parseAssignments()
}

func (p *parser) parseAssignments() (map[string]any, error) {
	set := map[string]any{}
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("="); err != nil {
			return nil, err
		}
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		set[name] = v
		if p.cur().kind == tokSymbol && p.cur().text == "," {
			p.advance()
			continue
		}
		break
	}
	return set, nil
}

func (p *parser) parseLiteral() (any, error) {
	t := p.advance()
	switch t.kind {
	case tokString:
		return t.text, nil
	case tokNumber:
		if strings.ContainsRune(t.text, '.') {
			f, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return nil, p.errf("invalid number literal %q", t.text)
			}
			return f, nil
		}
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, p.errf("invalid number literal %q", t.text)
		}
		return n, nil
	case tokIdent:
		switch upper(t.text) {
		case "TRUE":
			return int64(1), nil
		case "FALSE":
			return int64(0), nil
		case "NULL":
			return nil, nil
		}
		return t.text, nil
	default:
		return nil, p.errf("expected a literal, got %q", t.text)
	}
}

func (p *parser) expectRecordID() (string, error) {
	t := p.advance()
	if t.kind != tokRecordID {
		return "", p.errf("expected a record id (#class:pos), got %q", t.text)
	}
	return t.text, nil
}

func (p *parser) parseSelect() (Stmt, error) {
	stmt := SelectStmt{}
	if p.matchKeyword("COUNT") {
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		if err := p.expectSymbol("*"); err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		stmt.CountOnly = true
	} else if p.cur().kind == tokSymbol && p.cur().text == "*" {
		p.advance()
	} else {
		for {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			stmt.Projection = append(stmt.Projection, name)
			if p.cur().kind == tokSymbol && p.cur().text == "," {
				p.advance()
				continue
			}
			break
		}
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	class, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	stmt.Class = class

	if p.matchKeyword("WHERE") {
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		stmt.Where = cond
	}
	if p.matchKeyword("SKIP") {
		n, err := p.expectIntLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Skip, stmt.HasSkip = n, true
	}
	if p.matchKeyword("LIMIT") {
		n, err := p.expectIntLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Limit, stmt.HasLimit = n, true
	}
	return stmt, nil
}

func (p *parser) expectIntLiteral() (int, error) {
	t := p.advance()
	if t.kind != tokNumber {
		return 0, p.errf("expected a number, got %q", t.text)
	}
	n, err := strconv.Atoi(t.text)
	if err != nil {
		return 0, p.errf("invalid integer literal %q", t.text)
	}
	return n, nil
}

func (p *parser) parseUpdate() (Stmt, error) {
	class, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	set, err := p.parseAssignments()
	if err != nil {
		return nil, err
	}
	stmt := UpdateStmt{Class: class, Set: set}
	if p.matchKeyword("WHERE") {
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		stmt.Where = cond
	}
	return stmt, nil
}

func (p *parser) parseDelete() (Stmt, error) {
	isVertex := false
	if p.matchKeyword("VERTEX") {
		isVertex = true
	} else if err := p.expectKeyword("EDGE"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	class, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var cond condition.Tree
	if p.matchKeyword("WHERE") {
		cond, err = p.parseCondition()
		if err != nil {
			return nil, err
		}
	}
	if isVertex {
		return DeleteVertexStmt{Class: class, Where: cond}, nil
	}
	return DeleteEdgeStmt{Class: class, Where: cond}, nil
}

func (p *parser) parseTraverse() (Stmt, error) {
	dir := "OUT"
	if p.cur().kind == tokIdent {
		switch upper(p.cur().text) {
		case "OUT", "IN", "ALL":
			dir = upper(p.advance().text)
		}
	}
	var class string
	if p.cur().kind == tokSymbol && p.cur().text == "(" {
		p.advance()
		if p.cur().kind == tokSymbol && p.cur().text == ")" {
			// dir() with no class names inside means "any edge class".
		} else {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			class = name
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	from, err := p.expectRecordID()
	if err != nil {
		return nil, err
	}
	sources := []string{from}
	for p.cur().kind == tokSymbol && p.cur().text == "," {
		p.advance()
		next, err := p.expectRecordID()
		if err != nil {
			return nil, err
		}
		sources = append(sources, next)
	}
	stmt := TraverseStmt{Direction: dir, Class: class, From: sources, Strategy: "BREADTH_FIRST"}
	if p.matchKeyword("MINDEPTH") {
		n, err := p.expectIntLiteral()
		if err != nil {
			return nil, err
		}
		stmt.MinDepth, stmt.HasMin = n, true
	}
	if p.matchKeyword("MAXDEPTH") {
		n, err := p.expectIntLiteral()
		if err != nil {
			return nil, err
		}
		stmt.MaxDepth, stmt.HasMax = n, true
	}
	if p.matchKeyword("STRATEGY") {
		switch {
		case p.matchKeyword("DEPTH_FIRST"):
			stmt.Strategy = "DEPTH_FIRST"
		case p.matchKeyword("BREADTH_FIRST"):
			stmt.Strategy = "BREADTH_FIRST"
		default:
			return nil, p.errf("expected DEPTH_FIRST or BREADTH_FIRST, got %q", p.cur().text)
		}
	}
	return stmt, nil
}

// parseCondition parses an OR-of-ANDs of comparison atoms, e.g.
// "age > 10 AND name = 'Ann' OR active = true".
func (p *parser) parseCondition() (condition.Tree, error) {
	left, err := p.parseAndCondition()
	if err != nil {
		return nil, err
	}
	terms := condition.Or{left}
	for p.matchKeyword("OR") {
		right, err := p.parseAndCondition()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return terms, nil
}

func (p *parser) parseAndCondition() (condition.Tree, error) {
	left, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	terms := condition.And{left}
	for p.matchKeyword("AND") {
		right, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return terms, nil
}

func (p *parser) parseAtom() (condition.Tree, error) {
	negate := p.matchKeyword("NOT")
	column, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	var atom condition.Atom
	atom.Column = column

	switch upper(p.cur().text) {
	case "IS":
		p.advance()
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		atom.Operator = condition.IsNull
		return wrapNot(atom, negate), nil
	case "BETWEEN":
		p.advance()
		lo, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		hi, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		atom.Operator = condition.Between
		atom.Args = []codec.Value{lo, hi}
		return wrapNot(atom, negate), nil
	case "IN":
		p.advance()
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		for {
			v, err := p.parseLiteralValue()
			if err != nil {
				return nil, err
			}
			atom.Args = append(atom.Args, v)
			if p.cur().kind == tokSymbol && p.cur().text == "," {
				p.advance()
				continue
			}
			break
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		atom.Operator = condition.In
		return wrapNot(atom, negate), nil
	}

	op, err := p.parseOperator()
	if err != nil {
		return nil, err
	}
	v, err := p.parseLiteralValue()
	if err != nil {
		return nil, err
	}
	atom.Operator = op
	atom.Args = []codec.Value{v}
	return wrapNot(atom, negate), nil
}

func wrapNot(atom condition.Atom, negate bool) condition.Tree {
	if negate {
		return condition.Not{Tree: atom}
	}
	return atom
}

func (p *parser) parseOperator() (condition.Op, error) {
	t := p.advance()
	switch {
	case t.kind == tokSymbol && t.text == "=":
		return condition.Eq, nil
	case t.kind == tokSymbol && t.text == "!=":
		return condition.Ne, nil
	case t.kind == tokSymbol && t.text == "<":
		return condition.Lt, nil
	case t.kind == tokSymbol && t.text == "<=":
		return condition.Le, nil
	case t.kind == tokSymbol && t.text == ">":
		return condition.Gt, nil
	case t.kind == tokSymbol && t.text == ">=":
		return condition.Ge, nil
	case t.kind == tokIdent && upper(t.text) == "CONTAINS":
		return condition.Contain, nil
	case t.kind == tokIdent && upper(t.text) == "BEGINSWITH":
		return condition.BeginWith, nil
	case t.kind == tokIdent && upper(t.text) == "ENDSWITH":
		return condition.EndWith, nil
	case t.kind == tokIdent && upper(t.text) == "LIKE":
		return condition.Like, nil
	default:
		return 0, p.errf("unrecognized comparison operator %q", t.text)
	}
}

func (p *parser) parseLiteralValue() (codec.Value, error) {
	lit, err := p.parseLiteral()
	if err != nil {
		return codec.Value{}, err
	}
	return toValue(lit), nil
}

// toValue converts a parsed Go literal into the widest-fitting codec
// source Value; pkg/txn narrows it to a property's declared type.
func toValue(lit any) codec.Value {
	switch x := lit.(type) {
	case string:
		return codec.NewText(x)
	case int64:
		v, _ := codec.NewInt(codec.BigInt, x)
		return v
	case float64:
		return codec.NewReal(x)
	default:
		return codec.NewText("")
	}
}
