package engine

import (
	"strings"
	"unicode"
)

// Node is a parsed query expression.
type Node interface {
	node()
}

// And matches when every child matches.
type And struct{ Children []Node }

// Or matches when any child matches.
type Or struct{ Children []Node }

// Term matches Value in Field. Phrase marks a quoted value.
type Term struct {
	Field  string
	Value  string
	Phrase bool
}

func (And) node()  {}
func (Or) node()   {}
func (Term) node() {}

// Searchable fields. Bare values go to FieldText.
const (
	FieldText      = "text"
	FieldFilename  = "filename"
	FieldTags      = "tags"
	FieldSenderID  = "senderId"
	FieldThreadID  = "threadId"
	FieldMessageID = "messageId"
	FieldFileType  = "filetype"
	FieldHasFiles  = "hasfiles"
	FieldChatType  = "chatType"
)

var knownFields = map[string]bool{
	FieldText: true, FieldFilename: true, FieldTags: true, FieldSenderID: true,
	FieldThreadID: true, FieldMessageID: true, FieldFileType: true,
	FieldHasFiles: true, FieldChatType: true,
}

// IsFullText reports whether field is analyzed rather than matched exactly.
func IsFullText(field string) bool {
	return field == FieldText || field == FieldFilename
}

// ParseQuery parses the boolean query language:
//
//	expr    = and { [OR] and }
//	and     = primary { AND primary }
//	primary = "(" expr ")" | field ":" ( "(" expr ")" | value ) | value
//	value   = word | "quoted phrase"
//
// Juxtaposed expressions are OR'ed. Inside field:( ... ) bare values take
// that field. An unterminated quote runs to the end of input. A nil Node
// means the query has no terms.
func ParseQuery(q string) Node {
	p := &parser{toks: lex(q)}
	return p.parseExpr(FieldText, false)
}

type tokKind int

const (
	tEOF tokKind = iota
	tWord
	tPhrase
	tField
	tLParen
	tRParen
	tAnd
	tOr
)

type token struct {
	kind tokKind
	text string
}

func lex(q string) []token {
	var toks []token
	rs := []rune(q)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{kind: tLParen})
			i++
		case r == ')':
			toks = append(toks, token{kind: tRParen})
			i++
		case r == '"':
			j := i + 1
			for j < len(rs) && rs[j] != '"' {
				j++
			}
			toks = append(toks, token{kind: tPhrase, text: string(rs[i+1 : j])})
			i = j + 1
		default:
			j := i
			for j < len(rs) && !unicode.IsSpace(rs[j]) && rs[j] != '(' && rs[j] != ')' && rs[j] != '"' {
				if rs[j] == ':' && knownFields[string(rs[i:j])] {
					break
				}
				j++
			}
			word := string(rs[i:j])
			if j < len(rs) && rs[j] == ':' && knownFields[word] {
				toks = append(toks, token{kind: tField, text: word})
				i = j + 1
				continue
			}
			switch word {
			case "AND":
				toks = append(toks, token{kind: tAnd})
			case "OR":
				toks = append(toks, token{kind: tOr})
			default:
				toks = append(toks, token{kind: tWord, text: word})
			}
			i = j
		}
	}
	return toks
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	if p.pos >= len(p.toks) {
		return token{kind: tEOF}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) parseExpr(field string, nested bool) Node {
	var alts []Node
	for {
		t := p.peek()
		if t.kind == tEOF || (nested && t.kind == tRParen) {
			break
		}
		if t.kind == tOr || t.kind == tAnd || t.kind == tRParen {
			// stray operator or closing paren
			p.next()
			continue
		}
		if n := p.parseAnd(field, nested); n != nil {
			alts = append(alts, n)
		}
	}
	return combine(alts, func(c []Node) Node { return Or{Children: c} })
}

func (p *parser) parseAnd(field string, nested bool) Node {
	var parts []Node
	if n := p.parsePrimary(field); n != nil {
		parts = append(parts, n)
	}
	for p.peek().kind == tAnd {
		p.next()
		t := p.peek()
		if t.kind == tEOF || t.kind == tOr || (nested && t.kind == tRParen) {
			break
		}
		if n := p.parsePrimary(field); n != nil {
			parts = append(parts, n)
		}
	}
	if p.peek().kind == tOr {
		p.next()
	}
	return combine(parts, func(c []Node) Node { return And{Children: c} })
}

func (p *parser) parsePrimary(field string) Node {
	t := p.next()
	switch t.kind {
	case tLParen:
		n := p.parseExpr(field, true)
		if p.peek().kind == tRParen {
			p.next()
		}
		return n
	case tField:
		switch v := p.peek(); v.kind {
		case tLParen:
			p.next()
			n := p.parseExpr(t.text, true)
			if p.peek().kind == tRParen {
				p.next()
			}
			return n
		case tWord, tPhrase:
			p.next()
			return newTerm(t.text, v)
		}
		return nil
	case tWord, tPhrase:
		return newTerm(field, t)
	}
	return nil
}

func newTerm(field string, t token) Node {
	v := strings.TrimSpace(t.text)
	if v == "" {
		return nil
	}
	return Term{Field: field, Value: v, Phrase: t.kind == tPhrase}
}

func combine(nodes []Node, wrap func([]Node) Node) Node {
	switch len(nodes) {
	case 0:
		return nil
	case 1:
		return nodes[0]
	}
	return wrap(nodes)
}
