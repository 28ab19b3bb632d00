package expr

import (
	"fmt"
	"strings"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokNumber
	tokIdent
	tokTrue
	tokFalse
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
	tokLT
	tokLE
	tokGT
	tokGE
	tokEQ
	tokNE
	tokAnd
	tokOr
	tokNot
)

func (t tokenType) String() string {
	switch t {
	case tokEOF:
		return "end of expression"
	case tokNumber:
		return "number"
	case tokIdent:
		return "identifier"
	case tokTrue, tokFalse:
		return "boolean"
	case tokPlus:
		return "'+'"
	case tokMinus:
		return "'-'"
	case tokStar:
		return "'*'"
	case tokSlash:
		return "'/'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokLT:
		return "'<'"
	case tokLE:
		return "'<='"
	case tokGT:
		return "'>'"
	case tokGE:
		return "'>='"
	case tokEQ:
		return "'=='"
	case tokNE:
		return "'!='"
	case tokAnd:
		return "'and'"
	case tokOr:
		return "'or'"
	case tokNot:
		return "'not'"
	default:
		return "unknown token"
	}
}

type token struct {
	typ tokenType
	lit string
	pos int
}

// SyntaxError is returned by Compile when an expression falls outside the
// supported grammar. Rules carrying such expressions must be rejected at
// save time, never at evaluation time.
type SyntaxError struct {
	Expr    string
	Pos     int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid expression %q at offset %d: %s", e.Expr, e.Pos, e.Message)
}

// keywords recognized as operators or literals. Rule conditions in the wild
// were written in both word and symbol form, so both are accepted.
var keywords = map[string]tokenType{
	"and":   tokAnd,
	"or":    tokOr,
	"not":   tokNot,
	"true":  tokTrue,
	"false": tokFalse,
}

func lex(src string) ([]token, error) {
	var tokens []token
	i := 0
	n := len(src)

	for i < n {
		c := src[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c >= '0' && c <= '9':
			start := i
			seenDot := false
			for i < n && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
				if src[i] == '.' {
					if seenDot {
						return nil, &SyntaxError{Expr: src, Pos: i, Message: "malformed number"}
					}
					seenDot = true
				}
				i++
			}
			tokens = append(tokens, token{tokNumber, src[start:i], start})

		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
			start := i
			for i < n && (src[i] == '_' || src[i] >= 'a' && src[i] <= 'z' || src[i] >= 'A' && src[i] <= 'Z' || src[i] >= '0' && src[i] <= '9') {
				i++
			}
			word := src[start:i]
			if kw, ok := keywords[strings.ToLower(word)]; ok {
				tokens = append(tokens, token{kw, word, start})
			} else {
				tokens = append(tokens, token{tokIdent, word, start})
			}

		default:
			start := i
			switch c {
			case '+':
				tokens = append(tokens, token{tokPlus, "+", start})
				i++
			case '-':
				tokens = append(tokens, token{tokMinus, "-", start})
				i++
			case '*':
				tokens = append(tokens, token{tokStar, "*", start})
				i++
			case '/':
				tokens = append(tokens, token{tokSlash, "/", start})
				i++
			case '(':
				tokens = append(tokens, token{tokLParen, "(", start})
				i++
			case ')':
				tokens = append(tokens, token{tokRParen, ")", start})
				i++
			case '<':
				if i+1 < n && src[i+1] == '=' {
					tokens = append(tokens, token{tokLE, "<=", start})
					i += 2
				} else {
					tokens = append(tokens, token{tokLT, "<", start})
					i++
				}
			case '>':
				if i+1 < n && src[i+1] == '=' {
					tokens = append(tokens, token{tokGE, ">=", start})
					i += 2
				} else {
					tokens = append(tokens, token{tokGT, ">", start})
					i++
				}
			case '=':
				if i+1 < n && src[i+1] == '=' {
					tokens = append(tokens, token{tokEQ, "==", start})
					i += 2
				} else {
					return nil, &SyntaxError{Expr: src, Pos: start, Message: "assignment is not allowed; use '=='"}
				}
			case '!':
				if i+1 < n && src[i+1] == '=' {
					tokens = append(tokens, token{tokNE, "!=", start})
					i += 2
				} else {
					tokens = append(tokens, token{tokNot, "!", start})
					i++
				}
			case '&':
				if i+1 < n && src[i+1] == '&' {
					tokens = append(tokens, token{tokAnd, "&&", start})
					i += 2
				} else {
					return nil, &SyntaxError{Expr: src, Pos: start, Message: "unexpected '&'"}
				}
			case '|':
				if i+1 < n && src[i+1] == '|' {
					tokens = append(tokens, token{tokOr, "||", start})
					i += 2
				} else {
					return nil, &SyntaxError{Expr: src, Pos: start, Message: "unexpected '|'"}
				}
			default:
				return nil, &SyntaxError{Expr: src, Pos: start, Message: fmt.Sprintf("unexpected character %q", c)}
			}
		}
	}

	tokens = append(tokens, token{tokEOF, "", n})
	return tokens, nil
}
