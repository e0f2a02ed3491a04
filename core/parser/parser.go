// Package parser turns namespace-DSL source text into a schema.Schema
// via a hand-written recursive-descent parser over core/lexer's token
// stream. It never panics on malformed input: every production either
// succeeds or records an *Error and either recovers at the next
// statement boundary (';', '}', or the next 'class') or, for a handful
// of unrecoverable situations (a lexical error, running out of tokens
// mid-declaration), marks the error fatal and stops.
package parser

import (
	"fmt"

	"github.com/wardenhq/warden/core/lexer"
	"github.com/wardenhq/warden/core/schema"
	"github.com/wardenhq/warden/core/token"
)

const (
	maxExprDepth     = 10
	maxTraverseDepth = 10
)

// Result is the full outcome of a parse: the schema built so far (which
// may be partial when errs is non-empty — recovery keeps going after a
// non-fatal error so later, valid classes are still reflected here) and
// every error collected along the way.
type Result struct {
	Schema *schema.Schema
	Errors []error
}

// Parse tokenizes and parses source, returning either a fully-built
// Schema with a nil error slice, or a nil Schema with every error
// collected during the attempt. Use ParseAll to inspect the partial
// schema built before a failure.
func Parse(source, name string) (*schema.Schema, []error) {
	r := ParseAll(source, name)
	if len(r.Errors) > 0 {
		return nil, r.Errors
	}
	return r.Schema, nil
}

// ParseAll runs the full parse and returns both the (possibly partial)
// schema and every error collected, without collapsing either to nil.
func ParseAll(source, name string) Result {
	toks := lexer.Tokenize(source, name)
	p := &Parser{cur: NewCursor(toks)}
	sch := p.parseSchema()
	return Result{Schema: sch, Errors: p.errors}
}

// Parser is single-use: construct via ParseAll/Parse, not directly.
type Parser struct {
	cur           *Cursor
	errors        []error
	fatal         bool
	exprDepth     int
	traverseDepth int
}

func (p *Parser) addError(tok token.Token, msg string, fatal bool) {
	line, col := tok.Pos()
	p.errors = append(p.errors, &Error{Message: msg, Line: line, Column: col, Fatal: fatal})
	if fatal {
		p.fatal = true
	}
}

// checkLexError reports (and records as fatal) a lexer Error token at
// the current cursor position. Every entry point that is about to
// require a specific token shape calls this first, since an Error
// token can never satisfy any grammar production.
func (p *Parser) checkLexError() bool {
	t := p.cur.Peek()
	if t.Kind != token.Error {
		return false
	}
	p.addError(t, fmt.Sprintf("lexical error at %q", t.Value), true)
	return true
}

func (p *Parser) expect(k token.Kind) bool {
	if p.checkLexError() {
		return false
	}
	t := p.cur.Peek()
	if t.Kind != k {
		p.addError(t, fmt.Sprintf("expected %s, got %s", k, t.Kind), false)
		return false
	}
	p.cur.Advance()
	return true
}

func (p *Parser) expectIdent() (string, bool) {
	if p.checkLexError() {
		return "", false
	}
	t := p.cur.Peek()
	if t.Kind != token.Identifier {
		p.addError(t, fmt.Sprintf("expected identifier, got %s", t.Kind), false)
		return "", false
	}
	p.cur.Advance()
	return t.Value, true
}

// parseNameLike accepts either an Identifier or a String as a name,
// per the grammar's "(Ident | String)" name productions.
func (p *Parser) parseNameLike() (string, bool) {
	if p.checkLexError() {
		return "", false
	}
	t := p.cur.Peek()
	if t.Kind != token.Identifier && t.Kind != token.String {
		p.addError(t, fmt.Sprintf("expected a name (identifier or string), got %s", t.Kind), false)
		return "", false
	}
	p.cur.Advance()
	return t.Value, true
}

// expectArrow requires the Arrow-kind token at the cursor to carry the
// literal "=>" text, rejecting the bare "=" spelling the lexer folds
// into the same Kind.
func (p *Parser) expectArrow() bool {
	if p.checkLexError() {
		return false
	}
	t := p.cur.Peek()
	if t.Kind != token.Arrow {
		p.addError(t, fmt.Sprintf("expected '=>', got %s", t.Kind), false)
		return false
	}
	if t.Value != "=>" {
		p.addError(t, "bare '=' is not accepted here, use '=>'", false)
		p.cur.Advance()
		return false
	}
	p.cur.Advance()
	return true
}

// syncStatement recovers from a non-fatal error inside a block body by
// skipping to the next ';' (consumed), or stopping just before the
// next '}' or 'class' so the enclosing loop can see it.
func (p *Parser) syncStatement() {
	for !p.cur.IsAtEnd() {
		t := p.cur.Peek()
		if t.Kind == token.Error {
			return
		}
		if t.Kind == token.Semicolon {
			p.cur.Advance()
			return
		}
		if t.Kind == token.RBrace || t.Kind == token.Class {
			return
		}
		p.cur.Advance()
	}
}

// syncToClassOrEnd recovers from a non-fatal error at the top level by
// skipping to the next 'class' keyword.
func (p *Parser) syncToClassOrEnd() {
	for !p.cur.IsAtEnd() {
		if p.cur.Check(token.Class) || p.cur.Peek().Kind == token.Error {
			return
		}
		p.cur.Advance()
	}
}

func (p *Parser) parseSchema() *schema.Schema {
	sch := &schema.Schema{}
	for !p.cur.IsAtEnd() {
		if p.checkLexError() {
			return sch
		}
		if !p.cur.Check(token.Class) {
			p.addError(p.cur.Peek(), fmt.Sprintf("expected 'class', got %s", p.cur.Peek().Kind), false)
			p.syncToClassOrEnd()
			continue
		}
		ns, fatal := p.parseNamespace()
		if ns != nil {
			sch.Namespaces = append(sch.Namespaces, ns)
		}
		if fatal || p.fatal {
			return sch
		}
	}
	return sch
}

func (p *Parser) parseNamespace() (*schema.Namespace, bool) {
	p.cur.Advance() // 'class'

	name, ok := p.expectIdent()
	if !ok {
		p.syncToClassOrEnd()
		return nil, p.fatal
	}
	if !p.expect(token.Implements) {
		p.syncToClassOrEnd()
		return nil, p.fatal
	}
	if !p.expect(token.Namespace) {
		p.syncToClassOrEnd()
		return nil, p.fatal
	}
	if !p.expect(token.LBrace) {
		p.syncToClassOrEnd()
		return nil, p.fatal
	}

	ns := &schema.Namespace{Name: name}
	for !p.cur.Check(token.RBrace) {
		if p.cur.IsAtEnd() {
			p.addError(p.cur.Peek(), "unexpected end of input inside namespace body", true)
			return ns, true
		}
		if p.checkLexError() {
			return ns, true
		}
		switch {
		case p.cur.Check(token.Related):
			rels, fatal := p.parseRelatedBlock()
			ns.Relations = append(ns.Relations, rels...)
			if fatal {
				return ns, true
			}
		case p.cur.Check(token.Permits):
			rels, fatal := p.parsePermitsBlock(ns)
			ns.Relations = append(ns.Relations, rels...)
			if fatal {
				return ns, true
			}
		default:
			p.addError(p.cur.Peek(), fmt.Sprintf("expected 'related' or 'permits', got %s", p.cur.Peek().Kind), false)
			p.syncStatement()
		}
	}
	p.cur.Advance() // '}'
	return ns, false
}

func (p *Parser) parseRelatedBlock() ([]*schema.Relation, bool) {
	p.cur.Advance() // 'related'
	if !p.expect(token.Colon) {
		p.syncStatement()
		return nil, p.fatal
	}
	if !p.expect(token.LBrace) {
		p.syncStatement()
		return nil, p.fatal
	}

	var rels []*schema.Relation
	for !p.cur.Check(token.RBrace) {
		if p.cur.IsAtEnd() {
			p.addError(p.cur.Peek(), "unexpected end of input inside 'related' block", true)
			return rels, true
		}
		if p.checkLexError() {
			return rels, true
		}
		rel, ok := p.parseRelationDecl()
		if p.fatal {
			return rels, true
		}
		if ok {
			rels = append(rels, rel)
		} else {
			p.syncStatement()
		}
	}
	p.cur.Advance() // '}'
	return rels, false
}

func (p *Parser) parseRelationDecl() (*schema.Relation, bool) {
	name, ok := p.parseNameLike()
	if !ok {
		return nil, false
	}
	if !p.expect(token.Colon) {
		return nil, false
	}
	types, ok := p.parseRelationType()
	if !ok {
		return nil, false
	}
	if p.cur.Check(token.Semicolon) {
		p.cur.Advance()
	}
	return &schema.Relation{Name: name, Types: types}, true
}

func (p *Parser) parseRelationType() ([]schema.RelationType, bool) {
	if p.checkLexError() {
		return nil, false
	}

	switch {
	case p.cur.CheckIdentifierText("boolean"):
		p.cur.Advance()
		return []schema.RelationType{{Kind: schema.RelationAttributeBoolean}}, true

	case p.cur.CheckIdentifierText("string"):
		p.cur.Advance()
		return []schema.RelationType{{Kind: schema.RelationAttributeString}}, true

	case p.cur.CheckIdentifierText("SubjectSet"):
		rt, ok := p.parseSubjectSetRef()
		if !ok {
			return nil, false
		}
		if !p.expect(token.LBracket) || !p.expect(token.RBracket) {
			return nil, false
		}
		return []schema.RelationType{rt}, true

	case p.cur.Check(token.LParen):
		p.cur.Advance()
		var types []schema.RelationType
		first, ok := p.parseUnionMember()
		if !ok {
			return nil, false
		}
		types = append(types, first)
		for p.cur.Check(token.Pipe) {
			p.cur.Advance()
			m, ok := p.parseUnionMember()
			if !ok {
				return nil, false
			}
			types = append(types, m)
		}
		if !p.expect(token.RParen) || !p.expect(token.LBracket) || !p.expect(token.RBracket) {
			return nil, false
		}
		return types, true

	case p.cur.Check(token.Identifier):
		name := p.cur.Advance().Value
		if !p.expect(token.LBracket) || !p.expect(token.RBracket) {
			return nil, false
		}
		return []schema.RelationType{{Kind: schema.RelationReference, Namespace: name}}, true

	default:
		p.addError(p.cur.Peek(), fmt.Sprintf("expected a relation type, got %s", p.cur.Peek().Kind), false)
		return nil, false
	}
}

// parseSubjectSetRef parses "SubjectSet" '<' Ident ',' (Ident|String) '>',
// with the leading "SubjectSet" identifier already confirmed but not
// yet consumed.
func (p *Parser) parseSubjectSetRef() (schema.RelationType, bool) {
	p.cur.Advance() // 'SubjectSet'
	if !p.expect(token.LAngle) {
		return schema.RelationType{}, false
	}
	ns, ok := p.expectIdent()
	if !ok {
		return schema.RelationType{}, false
	}
	if !p.expect(token.Comma) {
		return schema.RelationType{}, false
	}
	rel, ok := p.parseNameLike()
	if !ok {
		return schema.RelationType{}, false
	}
	if !p.expect(token.RAngle) {
		return schema.RelationType{}, false
	}
	return schema.RelationType{Kind: schema.RelationReference, Namespace: ns, Relation: rel}, true
}

func (p *Parser) parseUnionMember() (schema.RelationType, bool) {
	if p.checkLexError() {
		return schema.RelationType{}, false
	}
	if p.cur.CheckIdentifierText("SubjectSet") {
		return p.parseSubjectSetRef()
	}
	if p.cur.Check(token.Identifier) {
		name := p.cur.Advance().Value
		return schema.RelationType{Kind: schema.RelationReference, Namespace: name}, true
	}
	p.addError(p.cur.Peek(), fmt.Sprintf("expected a union member, got %s", p.cur.Peek().Kind), false)
	return schema.RelationType{}, false
}

func (p *Parser) parsePermitsBlock(ns *schema.Namespace) ([]*schema.Relation, bool) {
	p.cur.Advance() // 'permits'
	if !p.expect(token.Colon) {
		p.syncStatement()
		return nil, p.fatal
	}
	if !p.expect(token.LBrace) {
		p.syncStatement()
		return nil, p.fatal
	}

	var rels []*schema.Relation
	for !p.cur.Check(token.RBrace) {
		if p.cur.IsAtEnd() {
			p.addError(p.cur.Peek(), "unexpected end of input inside 'permits' block", true)
			return rels, true
		}
		if p.checkLexError() {
			return rels, true
		}
		rel, ok := p.parsePermissionRule()
		if p.fatal {
			return rels, true
		}
		if ok {
			rels = append(rels, rel)
		} else {
			p.syncStatement()
		}
	}
	p.cur.Advance() // '}'
	return rels, false
}

func (p *Parser) parsePermissionRule() (*schema.Relation, bool) {
	name, ok := p.parseNameLike()
	if !ok {
		return nil, false
	}
	if !p.expect(token.Colon) {
		return nil, false
	}
	if !p.parseCtxParam() {
		return nil, false
	}
	if !p.expectArrow() {
		return nil, false
	}
	p.exprDepth = 0
	rw, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	if p.cur.Check(token.Semicolon) {
		p.cur.Advance()
	}
	return &schema.Relation{Name: name, Rewrite: rw}, true
}

// parseCtxParam parses '(' 'ctx' (':' Ident)? ')' (':' Ident)?, all
// type annotations being accepted but discarded: they constrain the
// surrounding host language's type checker, not the rewrite tree.
func (p *Parser) parseCtxParam() bool {
	if !p.expect(token.LParen) {
		return false
	}
	if !p.expect(token.Ctx) {
		return false
	}
	if p.cur.Check(token.Colon) {
		p.cur.Advance()
		if _, ok := p.expectIdent(); !ok {
			return false
		}
	}
	if !p.expect(token.RParen) {
		return false
	}
	if p.cur.Check(token.Colon) {
		p.cur.Advance()
		if _, ok := p.expectIdent(); !ok {
			return false
		}
	}
	return true
}

func (p *Parser) parseExpr() (*schema.SubjectSetRewrite, bool) {
	p.exprDepth++
	defer func() { p.exprDepth-- }()
	if p.exprDepth > maxExprDepth {
		p.addError(p.cur.Peek(), fmt.Sprintf("expression nesting exceeds maximum depth of %d", maxExprDepth), false)
		return nil, false
	}
	return p.parseOr()
}

func (p *Parser) parseOr() (*schema.SubjectSetRewrite, bool) {
	first, ok := p.parseAnd()
	if !ok {
		return nil, false
	}
	if !p.cur.Check(token.Or) {
		return first, true
	}

	children := []schema.Child{collapseOrOperand(first)}
	for p.cur.Check(token.Or) {
		p.cur.Advance()
		next, ok := p.parseAnd()
		if !ok {
			return nil, false
		}
		children = append(children, collapseOrOperand(next))
	}
	return &schema.SubjectSetRewrite{Operator: schema.Or, Children: children}, true
}

// collapseOrOperand turns an And-level result into a single Child
// suitable as an Or node's operand: a bare singleton And (the
// lowering used for a lone leaf) collapses to its one child directly,
// while a real multi-operand And, or the singleton And that holds a
// negation, is wrapped in Rewrite so no Or node ever holds a bare And
// child and an InvertResult always stays under an And.
func collapseOrOperand(rw *schema.SubjectSetRewrite) schema.Child {
	if rw.Operator == schema.And && len(rw.Children) == 1 {
		if _, negated := rw.Children[0].(schema.InvertResult); !negated {
			return rw.Children[0]
		}
	}
	return schema.Rewrite{Inner: rw}
}

func (p *Parser) parseAnd() (*schema.SubjectSetRewrite, bool) {
	first, ok := p.parseUnary()
	if !ok {
		return nil, false
	}
	if !p.cur.Check(token.And) {
		return schema.Singleton(schema.And, first), true
	}

	children := []schema.Child{first}
	for p.cur.Check(token.And) {
		p.cur.Advance()
		next, ok := p.parseUnary()
		if !ok {
			return nil, false
		}
		children = append(children, next)
	}
	return &schema.SubjectSetRewrite{Operator: schema.And, Children: children}, true
}

func (p *Parser) parseUnary() (schema.Child, bool) {
	if p.checkLexError() {
		return nil, false
	}
	if p.cur.Check(token.Not) {
		p.cur.Advance()
		inner, ok := p.parsePrimary()
		if !ok {
			return nil, false
		}
		return schema.InvertResult{Child: schema.Rewrite{Inner: inner}}, true
	}
	primary, ok := p.parsePrimary()
	if !ok {
		return nil, false
	}
	return collapseOrOperand(primary), true
}

// parsePrimary always returns a rewrite node: a parenthesized Expr
// returns whatever it built, and a bare Simple leaf is wrapped in a
// singleton And so every caller has a uniform *SubjectSetRewrite to
// fold into the surrounding && / || chain.
func (p *Parser) parsePrimary() (*schema.SubjectSetRewrite, bool) {
	if p.checkLexError() {
		return nil, false
	}
	if p.cur.Check(token.LParen) {
		p.cur.Advance()
		inner, ok := p.parseExpr()
		if !ok {
			return nil, false
		}
		if !p.expect(token.RParen) {
			return nil, false
		}
		return inner, true
	}
	leaf, ok := p.parseSimple()
	if !ok {
		return nil, false
	}
	return schema.Singleton(schema.And, leaf), true
}

func (p *Parser) parseSimple() (schema.Child, bool) {
	if !p.expect(token.This) {
		return nil, false
	}
	if !p.expect(token.Dot) {
		return nil, false
	}
	switch {
	case p.cur.Check(token.Related):
		p.cur.Advance()
		return p.parseRelatedTail()
	case p.cur.Check(token.Permits):
		p.cur.Advance()
		return p.parsePermitsTail()
	default:
		p.addError(p.cur.Peek(), fmt.Sprintf("expected 'related' or 'permits', got %s", p.cur.Peek().Kind), false)
		return nil, false
	}
}

// parsePropName parses '.' (Ident|String) | '[' (Ident|String) ']'.
func (p *Parser) parsePropName() (string, bool) {
	if p.checkLexError() {
		return "", false
	}
	if p.cur.Check(token.Dot) {
		p.cur.Advance()
		return p.parseNameLike()
	}
	if p.cur.Check(token.LBracket) {
		p.cur.Advance()
		name, ok := p.parseNameLike()
		if !ok {
			return "", false
		}
		if !p.expect(token.RBracket) {
			return "", false
		}
		return name, true
	}
	p.addError(p.cur.Peek(), "expected '.' or '[' for property access", false)
	return "", false
}

// parseRelatedTail parses PropName ('.' Method '(' Args ')')?, with
// 'this.related' already consumed.
func (p *Parser) parseRelatedTail() (schema.Child, bool) {
	prop, ok := p.parsePropName()
	if !ok {
		return nil, false
	}
	if !p.cur.Check(token.Dot) {
		return schema.AttributeReference{Relation: prop}, true
	}
	p.cur.Advance() // '.'

	method, ok := p.parseNameLike()
	if !ok {
		return nil, false
	}
	if !p.expect(token.LParen) {
		return nil, false
	}

	switch method {
	case "includes":
		if !p.parseIncludesArg() {
			return nil, false
		}
		if !p.expect(token.RParen) {
			return nil, false
		}
		return schema.ComputedSubjectSet{Relation: prop}, true
	case "traverse":
		child, ok := p.parseTraverseArg(prop)
		if !ok {
			return nil, false
		}
		if !p.expect(token.RParen) {
			return nil, false
		}
		return child, true
	default:
		p.addError(p.cur.Peek(), fmt.Sprintf("expected 'includes' or 'traverse', got %q", method), false)
		return nil, false
	}
}

// parsePermitsTail parses PropName '(' 'ctx' ')', with 'this.permits'
// already consumed.
func (p *Parser) parsePermitsTail() (schema.Child, bool) {
	prop, ok := p.parsePropName()
	if !ok {
		return nil, false
	}
	if !p.expect(token.LParen) {
		return nil, false
	}
	if !p.expect(token.Ctx) {
		return nil, false
	}
	if !p.expect(token.RParen) {
		return nil, false
	}
	return schema.ComputedSubjectSet{Relation: prop}, true
}

// parseIncludesArg parses the fixed argument "ctx.subject".
func (p *Parser) parseIncludesArg() bool {
	if !p.expect(token.Ctx) {
		return false
	}
	if !p.expect(token.Dot) {
		return false
	}
	if p.checkLexError() {
		return false
	}
	t := p.cur.Peek()
	if t.Kind != token.Identifier || t.Value != "subject" {
		p.addError(t, "expected 'ctx.subject'", false)
		return false
	}
	p.cur.Advance()
	return true
}

// parseTraverseArg parses the single-parameter arrow body of a
// traverse(...) call: "(p) => p.related.Y.includes(ctx.subject)" or
// "p => p.permits.Y(ctx)", with outerRelation the relation traverse
// was called on.
func (p *Parser) parseTraverseArg(outerRelation string) (schema.Child, bool) {
	p.traverseDepth++
	defer func() { p.traverseDepth-- }()
	if p.traverseDepth > maxTraverseDepth {
		p.addError(p.cur.Peek(), fmt.Sprintf("traverse chaining exceeds maximum depth of %d", maxTraverseDepth), false)
		return nil, false
	}

	var param string
	if p.cur.Check(token.LParen) {
		p.cur.Advance()
		ident, ok := p.expectIdent()
		if !ok {
			return nil, false
		}
		param = ident
		if !p.expect(token.RParen) {
			return nil, false
		}
	} else {
		ident, ok := p.expectIdent()
		if !ok {
			return nil, false
		}
		param = ident
	}

	if !p.expectArrow() {
		return nil, false
	}

	boundName, ok := p.expectIdent()
	if !ok {
		return nil, false
	}
	if boundName != param {
		p.addError(p.cur.Peek(), fmt.Sprintf("traverse parameter %q does not match bound name %q", param, boundName), false)
		return nil, false
	}
	if !p.expect(token.Dot) {
		return nil, false
	}

	switch {
	case p.cur.Check(token.Related):
		p.cur.Advance()
		prop, ok := p.parsePropName()
		if !ok {
			return nil, false
		}
		if !p.expect(token.Dot) {
			return nil, false
		}
		method, ok := p.parseNameLike()
		if !ok {
			return nil, false
		}
		if method != "includes" {
			p.addError(p.cur.Peek(), fmt.Sprintf("expected 'includes' in traverse body, got %q", method), false)
			return nil, false
		}
		if !p.expect(token.LParen) {
			return nil, false
		}
		if !p.parseIncludesArg() {
			return nil, false
		}
		if !p.expect(token.RParen) {
			return nil, false
		}
		return schema.TupleToSubjectSet{Relation: outerRelation, ComputedSubjectSetRelation: prop}, true

	case p.cur.Check(token.Permits):
		p.cur.Advance()
		prop, ok := p.parsePropName()
		if !ok {
			return nil, false
		}
		if !p.expect(token.LParen) {
			return nil, false
		}
		if !p.expect(token.Ctx) {
			return nil, false
		}
		if !p.expect(token.RParen) {
			return nil, false
		}
		return schema.TupleToSubjectSet{Relation: outerRelation, ComputedSubjectSetRelation: prop}, true

	default:
		p.addError(p.cur.Peek(), fmt.Sprintf("expected 'related' or 'permits' in traverse body, got %s", p.cur.Peek().Kind), false)
		return nil, false
	}
}
