// Package phpsource parses PHP source files into a lightweight structural
// syntax tree: class-like declarations, functions, closures, control
// structures, call argument lists and throw expressions, each with its line
// range. Expressions are not modelled beyond what is needed to find those
// constructs.
package phpsource

import (
	"fmt"
	"strings"
)

// TokenKind classifies a lexed token.
type TokenKind int

// Token kinds.
const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenVariable
	TokenNumber
	TokenString
	TokenPunct
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "end of file"
	case TokenIdent:
		return "identifier"
	case TokenVariable:
		return "variable"
	case TokenNumber:
		return "number"
	case TokenString:
		return "string"
	case TokenPunct:
		return "punctuation"
	default:
		return "unknown"
	}
}

// Token is a single lexeme. Comments and inline HTML never become tokens;
// a doc comment is attached to the token that follows it.
type Token struct {
	Kind    TokenKind
	Text    string
	Line    int
	EndLine int
	Doc     string
}

// is reports whether the token is the given punctuation or keyword
// (keywords compare case-insensitively).
func (t Token) is(text string) bool {
	switch t.Kind {
	case TokenPunct:
		return t.Text == text
	case TokenIdent:
		return strings.EqualFold(t.Text, text)
	default:
		return false
	}
}

// operators is ordered longest first so the lexer can munch greedily.
var operators = []string{
	"<<=", ">>=", "**=", "...", "<=>", "===", "!==", "??=", "?->",
	"#[", "++", "--", "->", "=>", "::", "==", "!=", "<>", "<=", ">=", "&&", "||",
	"??", "+=", "-=", "*=", "/=", ".=", "%=", "&=", "|=", "^=", "<<", ">>", "**",
	"{", "}", "(", ")", "[", "]", ";", ",", ":", "?", "=", "+", "-", "*", "/",
	"%", ".", "&", "|", "^", "~", "!", "<", ">", "@", "$", "\\",
}

type lexer struct {
	src    string
	pos    int
	line   int
	tokens []Token
	doc    string
}

// Tokenize splits PHP source into tokens.
func Tokenize(src string) ([]Token, error) {
	lx := &lexer{src: src, line: 1}
	if err := lx.run(); err != nil {
		return nil, err
	}

	lx.tokens = append(lx.tokens, Token{Kind: TokenEOF, Line: lx.line, EndLine: lx.line})

	return lx.tokens, nil
}

func (lx *lexer) run() error {
	for lx.pos < len(lx.src) {
		lx.skipInlineHTML()

		if err := lx.lexPHP(); err != nil {
			return err
		}
	}

	return nil
}

// skipInlineHTML advances past text outside of PHP tags.
func (lx *lexer) skipInlineHTML() {
	idx := strings.Index(lx.src[lx.pos:], "<?")
	if idx < 0 {
		lx.advance(len(lx.src) - lx.pos)
		return
	}

	lx.advance(idx)

	switch {
	case strings.HasPrefix(strings.ToLower(lx.src[lx.pos:]), "<?php"):
		lx.advance(5)
	case strings.HasPrefix(lx.src[lx.pos:], "<?="):
		lx.advance(3)
		lx.emit(TokenIdent, "echo", lx.line)
	default:
		lx.advance(2)
	}
}

func (lx *lexer) lexPHP() error {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]

		switch {
		case c == '\n':
			lx.line++
			lx.pos++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			lx.pos++
		case strings.HasPrefix(lx.src[lx.pos:], "?>"):
			lx.emit(TokenPunct, ";", lx.line)
			lx.advance(2)

			if strings.HasPrefix(lx.src[lx.pos:], "\r\n") {
				lx.advance(2)
			} else if lx.pos < len(lx.src) && lx.src[lx.pos] == '\n' {
				lx.advance(1)
			}

			return nil
		case c == '#' && !strings.HasPrefix(lx.src[lx.pos:], "#["), c == '/' && lx.peekByte(1) == '/':
			lx.skipLineComment()
		case c == '/' && lx.peekByte(1) == '*':
			if err := lx.lexBlockComment(); err != nil {
				return err
			}
		case c == '$' && isIdentStart(lx.peekByte(1)):
			lx.lexVariable()
		case isIdentStart(c) || (c == '\\' && isIdentStart(lx.peekByte(1))):
			lx.lexIdent()
		case isDigit(c) || (c == '.' && isDigit(lx.peekByte(1))):
			lx.lexNumber()
		case c == '\'' || c == '"' || c == '`':
			if err := lx.lexQuoted(c); err != nil {
				return err
			}
		case strings.HasPrefix(lx.src[lx.pos:], "<<<"):
			if err := lx.lexHeredoc(); err != nil {
				return err
			}
		default:
			lx.lexOperator()
		}
	}

	return nil
}

func (lx *lexer) peekByte(offset int) byte {
	if lx.pos+offset >= len(lx.src) {
		return 0
	}

	return lx.src[lx.pos+offset]
}

// advance moves n bytes forward keeping the line counter in sync.
func (lx *lexer) advance(n int) {
	end := lx.pos + n
	if end > len(lx.src) {
		end = len(lx.src)
	}

	lx.line += strings.Count(lx.src[lx.pos:end], "\n")
	lx.pos = end
}

func (lx *lexer) emit(kind TokenKind, text string, startLine int) {
	lx.tokens = append(lx.tokens, Token{
		Kind:    kind,
		Text:    text,
		Line:    startLine,
		EndLine: lx.line,
		Doc:     lx.doc,
	})
	lx.doc = ""
}

func (lx *lexer) skipLineComment() {
	for lx.pos < len(lx.src) {
		if lx.src[lx.pos] == '\n' || strings.HasPrefix(lx.src[lx.pos:], "?>") {
			return
		}

		lx.pos++
	}
}

func (lx *lexer) lexBlockComment() error {
	start := lx.pos
	startLine := lx.line

	end := strings.Index(lx.src[lx.pos+2:], "*/")
	if end < 0 {
		return fmt.Errorf("line %d: unterminated comment", startLine)
	}

	lx.advance(end + 4)

	text := lx.src[start:lx.pos]
	if strings.HasPrefix(text, "/**") && len(text) > 4 {
		lx.doc = text
	}

	return nil
}

func (lx *lexer) lexVariable() {
	start := lx.pos
	lx.pos++

	for lx.pos < len(lx.src) && isIdentPart(lx.src[lx.pos]) {
		lx.pos++
	}

	lx.emit(TokenVariable, lx.src[start:lx.pos], lx.line)
}

// lexIdent reads a possibly namespace-qualified name.
func (lx *lexer) lexIdent() {
	start := lx.pos

	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]

		if isIdentPart(c) {
			lx.pos++
			continue
		}

		if c == '\\' && isIdentStart(lx.peekByte(1)) {
			lx.pos++
			continue
		}

		break
	}

	lx.emit(TokenIdent, lx.src[start:lx.pos], lx.line)
}

func (lx *lexer) lexNumber() {
	start := lx.pos

	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]

		switch {
		case isIdentPart(c), c == '.' && isDigit(lx.peekByte(1)):
			lx.pos++
		case (c == '+' || c == '-') && (lx.src[lx.pos-1] == 'e' || lx.src[lx.pos-1] == 'E') && !isHexLiteral(lx.src[start:lx.pos]):
			lx.pos++
		default:
			lx.emit(TokenNumber, lx.src[start:lx.pos], lx.line)
			return
		}
	}

	lx.emit(TokenNumber, lx.src[start:lx.pos], lx.line)
}

func isHexLiteral(text string) bool {
	return strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X")
}

func (lx *lexer) lexQuoted(quote byte) error {
	start := lx.pos
	startLine := lx.line
	lx.pos++

	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]

		switch {
		case c == '\\':
			lx.pos += 2
		case c == quote:
			lx.pos++
			text := lx.src[start:lx.pos]
			lx.line = startLine + strings.Count(text, "\n")
			lx.emit(TokenString, text, startLine)

			return nil
		default:
			lx.pos++
		}
	}

	return fmt.Errorf("line %d: unterminated string", startLine)
}

// lexHeredoc reads heredoc and nowdoc literals, including the flexible
// closing marker syntax (indented, followed by any non-identifier byte).
func (lx *lexer) lexHeredoc() error {
	start := lx.pos
	startLine := lx.line

	header := lx.src[lx.pos+3:]

	newline := strings.IndexByte(header, '\n')
	if newline < 0 {
		lx.lexOperator()
		return nil
	}

	label := strings.TrimSpace(strings.TrimRight(header[:newline], "\r"))
	label = strings.Trim(label, `"'`)

	if label == "" || !isIdentStart(label[0]) {
		lx.lexOperator()
		return nil
	}

	lx.pos += 3 + newline + 1
	lx.line++

	for lx.pos < len(lx.src) {
		lineEnd := strings.IndexByte(lx.src[lx.pos:], '\n')
		current := lx.src[lx.pos:]

		if lineEnd >= 0 {
			current = current[:lineEnd]
		}

		trimmed := strings.TrimLeft(current, " \t")
		if strings.HasPrefix(trimmed, label) {
			rest := trimmed[len(label):]
			if rest == "" || !isIdentPart(rest[0]) {
				lx.pos += len(current) - len(rest)
				lx.emit(TokenString, lx.src[start:lx.pos], startLine)

				return nil
			}
		}

		if lineEnd < 0 {
			break
		}

		lx.pos += lineEnd + 1
		lx.line++
	}

	return fmt.Errorf("line %d: unterminated heredoc %q", startLine, label)
}

func (lx *lexer) lexOperator() {
	rest := lx.src[lx.pos:]

	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			lx.emit(TokenPunct, op, lx.line)
			lx.pos += len(op)

			return
		}
	}

	lx.emit(TokenPunct, rest[:1], lx.line)
	lx.pos++
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
