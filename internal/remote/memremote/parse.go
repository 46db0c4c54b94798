package memremote

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/credativ/informix-fdw-sub001/internal/remote"
)

// The server understands exactly the statement subset the bridge
// generates: single-table SELECT (optionally over one subselect) with a
// conjunction/disjunction of parameterized comparisons, and parameterized
// INSERT/UPDATE/DELETE targeted by rowid, a pushed predicate or
// CURRENT OF a cursor.

type stmtKind int

const (
	stmtSelect stmtKind = iota
	stmtInsert
	stmtUpdate
	stmtDelete
)

type parsedStmt struct {
	kind      stmtKind
	table     string
	sub       *parsedStmt
	cols      []string
	setCols   []string
	where     boolExpr
	currentOf string
	nargs     int
}

type boolExpr interface{ isBoolExpr() }

type andExpr struct{ kids []boolExpr }

type orExpr struct{ kids []boolExpr }

type cmpExpr struct {
	col string
	op  string
	arg int
}

func (andExpr) isBoolExpr() {}
func (orExpr) isBoolExpr()  {}
func (cmpExpr) isBoolExpr() {}

type token struct {
	text  string
	ident bool
}

func tokenize(query string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(query) {
		c := rune(query[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(' || c == ')' || c == ',' || c == '?' || c == '*' || c == '=':
			toks = append(toks, token{text: string(c)})
			i++
		case c == '<':
			if i+1 < len(query) && (query[i+1] == '=' || query[i+1] == '>') {
				toks = append(toks, token{text: query[i : i+2]})
				i += 2
			} else {
				toks = append(toks, token{text: "<"})
				i++
			}
		case c == '>':
			if i+1 < len(query) && query[i+1] == '=' {
				toks = append(toks, token{text: ">="})
				i += 2
			} else {
				toks = append(toks, token{text: ">"})
				i++
			}
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(query) && (unicode.IsLetter(rune(query[j])) || unicode.IsDigit(rune(query[j])) || query[j] == '_') {
				j++
			}
			toks = append(toks, token{text: strings.ToLower(query[i:j]), ident: true})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", c)
		}
	}
	return toks, nil
}

type parser struct {
	toks  []token
	pos   int
	nargs int
}

func parseStatement(query string) (*parsedStmt, error) {
	toks, err := tokenize(query)
	if err != nil {
		return nil, remote.NewProtocolErr("42000", "cannot parse statement %q: %v", query, err)
	}
	p := &parser{toks: toks}
	stmt, err := p.parseStmt()
	if err != nil {
		return nil, remote.NewProtocolErr("42000", "cannot parse statement %q: %v", query, err)
	}
	if p.pos != len(p.toks) {
		return nil, remote.NewProtocolErr("42000", "trailing tokens in statement %q", query)
	}
	stmt.nargs = p.nargs
	return stmt, nil
}

func (p *parser) parseStmt() (*parsedStmt, error) {
	switch {
	case p.acceptKeyword("select"):
		return p.parseSelect()
	case p.acceptKeyword("insert"):
		return p.parseInsert()
	case p.acceptKeyword("update"):
		return p.parseUpdate()
	case p.acceptKeyword("delete"):
		return p.parseDelete()
	default:
		return nil, fmt.Errorf("unsupported statement verb")
	}
}

func (p *parser) parseSelect() (*parsedStmt, error) {
	stmt := &parsedStmt{kind: stmtSelect}
	if p.accept("*") {
		stmt.cols = []string{"*"}
	} else {
		for {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			stmt.cols = append(stmt.cols, name)
			if !p.accept(",") {
				break
			}
		}
	}
	if !p.acceptKeyword("from") {
		return nil, fmt.Errorf("expected FROM")
	}
	if p.accept("(") {
		if !p.acceptKeyword("select") {
			return nil, fmt.Errorf("expected subselect")
		}
		sub, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		if !p.accept(")") {
			return nil, fmt.Errorf("unterminated subselect")
		}
		stmt.sub = sub
		// Optional derived-table alias.
		if p.peekIdentNotKeyword("where") {
			p.pos++
		}
	} else {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		stmt.table = name
	}
	if p.acceptKeyword("where") {
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		stmt.where = expr
	}
	return stmt, nil
}

func (p *parser) parseInsert() (*parsedStmt, error) {
	if !p.acceptKeyword("into") {
		return nil, fmt.Errorf("expected INTO")
	}
	stmt := &parsedStmt{kind: stmtInsert}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	stmt.table = name
	if !p.accept("(") {
		return nil, fmt.Errorf("expected column list")
	}
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		stmt.cols = append(stmt.cols, col)
		if !p.accept(",") {
			break
		}
	}
	if !p.accept(")") {
		return nil, fmt.Errorf("unterminated column list")
	}
	if !p.acceptKeyword("values") || !p.accept("(") {
		return nil, fmt.Errorf("expected VALUES list")
	}
	count := 0
	for {
		if !p.accept("?") {
			return nil, fmt.Errorf("only placeholder values are supported")
		}
		p.nargs++
		count++
		if !p.accept(",") {
			break
		}
	}
	if !p.accept(")") {
		return nil, fmt.Errorf("unterminated VALUES list")
	}
	if count != len(stmt.cols) {
		return nil, fmt.Errorf("%d placeholders for %d columns", count, len(stmt.cols))
	}
	return stmt, nil
}

func (p *parser) parseUpdate() (*parsedStmt, error) {
	stmt := &parsedStmt{kind: stmtUpdate}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	stmt.table = name
	if !p.acceptKeyword("set") {
		return nil, fmt.Errorf("expected SET")
	}
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if !p.accept("=") || !p.accept("?") {
			return nil, fmt.Errorf("only parameterized SET expressions are supported")
		}
		p.nargs++
		stmt.setCols = append(stmt.setCols, col)
		if !p.accept(",") {
			break
		}
	}
	if err := p.parseModifyTarget(stmt); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseDelete() (*parsedStmt, error) {
	if !p.acceptKeyword("from") {
		return nil, fmt.Errorf("expected FROM")
	}
	stmt := &parsedStmt{kind: stmtDelete}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	stmt.table = name
	if err := p.parseModifyTarget(stmt); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseModifyTarget(stmt *parsedStmt) error {
	if !p.acceptKeyword("where") {
		return fmt.Errorf("modifications require a WHERE target")
	}
	if p.acceptKeyword("current") {
		if !p.acceptKeyword("of") {
			return fmt.Errorf("expected CURRENT OF")
		}
		name, err := p.expectIdent()
		if err != nil {
			return err
		}
		stmt.currentOf = name
		return nil
	}
	expr, err := p.parseOr()
	if err != nil {
		return err
	}
	stmt.where = expr
	return nil
}

func (p *parser) parseOr() (boolExpr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	kids := []boolExpr{left}
	for p.acceptKeyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		kids = append(kids, right)
	}
	if len(kids) == 1 {
		return left, nil
	}
	return orExpr{kids: kids}, nil
}

func (p *parser) parseAnd() (boolExpr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	kids := []boolExpr{left}
	for p.acceptKeyword("and") {
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		kids = append(kids, right)
	}
	if len(kids) == 1 {
		return left, nil
	}
	return andExpr{kids: kids}, nil
}

func (p *parser) parsePrimary() (boolExpr, error) {
	if p.accept("(") {
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.accept(")") {
			return nil, fmt.Errorf("unterminated parenthesized expression")
		}
		return expr, nil
	}
	col, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	op := ""
	for _, candidate := range []string{"=", "<>", "<=", ">=", "<", ">"} {
		if p.accept(candidate) {
			op = candidate
			break
		}
	}
	if op == "" {
		return nil, fmt.Errorf("expected comparison operator after %q", col)
	}
	if !p.accept("?") {
		return nil, fmt.Errorf("only parameterized comparisons are supported")
	}
	arg := p.nargs
	p.nargs++
	return cmpExpr{col: col, op: op, arg: arg}, nil
}

func (p *parser) accept(text string) bool {
	if p.pos < len(p.toks) && !p.toks[p.pos].ident && p.toks[p.pos].text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.pos < len(p.toks) && p.toks[p.pos].ident && p.toks[p.pos].text == kw {
		p.pos++
		return true
	}
	return false
}

func (p *parser) peekIdentNotKeyword(kw string) bool {
	return p.pos < len(p.toks) && p.toks[p.pos].ident && p.toks[p.pos].text != kw
}

func (p *parser) expectIdent() (string, error) {
	if p.pos < len(p.toks) && p.toks[p.pos].ident {
		name := p.toks[p.pos].text
		p.pos++
		return name, nil
	}
	return "", fmt.Errorf("expected identifier")
}
