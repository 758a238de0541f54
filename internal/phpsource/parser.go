package phpsource

import (
	"fmt"
	"strings"
)

// keywords after which an opening parenthesis groups an expression instead
// of starting an argument list.
var nonCallKeywords = map[string]bool{
	"return": true, "echo": true, "print": true, "yield": true, "from": true,
	"and": true, "or": true, "xor": true, "instanceof": true, "clone": true,
	"case": true, "else": true, "elseif": true, "if": true, "while": true,
	"for": true, "foreach": true, "switch": true, "include": true,
	"include_once": true, "require": true, "require_once": true, "throw": true,
	"use": true, "as": true, "insteadof": true, "global": true, "new": true,
	"function": true, "fn": true, "match": true, "catch": true, "declare": true,
	"const": true, "do": true,
}

var memberModifiers = map[string]bool{
	"public": true, "protected": true, "private": true, "static": true,
	"abstract": true, "final": true, "var": true, "readonly": true,
}

type parseError struct {
	err error
}

type parser struct {
	tokens   []Token
	pos      int
	prevLine int
	names    *nameResolver
}

// Parse builds the structural syntax tree of a PHP source file.
func Parse(path string, src []byte) (file *File, err error) {
	tokens, err := Tokenize(string(src))
	if err != nil {
		return nil, fmt.Errorf("tokenize %s: %w", path, err)
	}

	p := &parser{tokens: tokens, names: newNameResolver()}
	root := &Node{Kind: NodeFile, StartLine: 1}

	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(parseError)
			if !ok {
				panic(r)
			}

			file = nil
			err = fmt.Errorf("parse %s: %w", path, pe.err)
		}
	}()

	p.parseStatements(root)
	root.EndLine = tokens[len(tokens)-1].Line

	return &File{Path: path, Root: root}, nil
}

func (p *parser) peek() Token {
	return p.peekAt(0)
}

func (p *parser) peekAt(offset int) Token {
	idx := p.pos + offset
	if idx >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}

	return p.tokens[idx]
}

func (p *parser) previous() (Token, bool) {
	if p.pos == 0 {
		return Token{}, false
	}

	return p.tokens[p.pos-1], true
}

func (p *parser) next() Token {
	tok := p.peek()
	if tok.Kind != TokenEOF {
		p.pos++
		p.prevLine = tok.EndLine
	}

	return tok
}

func (p *parser) fail(format string, args ...interface{}) {
	panic(parseError{err: fmt.Errorf(format, args...)})
}

func (p *parser) expect(text string) Token {
	tok := p.peek()
	if !tok.is(text) {
		p.fail("line %d: expected %q, found %s %q", tok.Line, text, tok.Kind, tok.Text)
	}

	return p.next()
}

func (p *parser) expectStatementEnd() {
	if p.peek().is(";") {
		p.next()
	}
}

func (p *parser) atAny(terminators []string) bool {
	tok := p.peek()
	for _, term := range terminators {
		if tok.is(term) {
			return true
		}
	}

	return false
}

// parseStatements parses statements into parent until one of the
// terminators (not consumed) or, without terminators, the end of file.
func (p *parser) parseStatements(parent *Node, terminators ...string) {
	for {
		tok := p.peek()
		if tok.Kind == TokenEOF {
			if len(terminators) > 0 {
				p.fail("line %d: unexpected end of file, expected %s", tok.Line, strings.Join(terminators, " or "))
			}

			return
		}

		if p.atAny(terminators) {
			return
		}

		p.parseStatement(parent)
	}
}

//nolint:cyclop // Statement dispatch mirrors the PHP grammar.
func (p *parser) parseStatement(parent *Node) {
	doc := p.peek().Doc
	startLine := p.peek().Line

	p.skipAttributes()

	tok := p.peek()
	if doc == "" {
		doc = tok.Doc
	}

	switch {
	case tok.is("{"):
		p.next()
		p.parseStatements(parent, "}")
		p.expect("}")
	case tok.is(";"):
		p.next()
	case tok.is("}"), tok.is(")"), tok.is("]"):
		p.fail("line %d: unexpected %q", tok.Line, tok.Text)
	case tok.Kind != TokenIdent:
		p.parseExpressionStatement(parent)
	case tok.is("namespace") && (p.peekAt(1).Kind == TokenIdent || p.peekAt(1).is("{")):
		p.parseNamespace(parent)
	case tok.is("use"):
		p.parseUse()
	case p.isClassDeclaration():
		p.parseClassDeclaration(parent, doc, startLine)
	case tok.is("function") && (p.peekAt(1).Kind == TokenIdent || (p.peekAt(1).is("&") && p.peekAt(2).Kind == TokenIdent)):
		p.parseFunctionDeclaration(parent, doc)
	case tok.is("if"):
		p.parseIf(parent)
	case tok.is("foreach"), tok.is("for"), tok.is("while"):
		p.parseLoop(parent)
	case tok.is("do"):
		p.parseDoWhile(parent)
	case tok.is("switch"):
		p.parseSwitch(parent)
	case tok.is("try"):
		p.parseTry(parent)
	case tok.is("declare"):
		p.parseDeclare(parent)
	case tok.is("__halt_compiler"):
		p.pos = len(p.tokens) - 1
	default:
		p.parseExpressionStatement(parent)
	}
}

func (p *parser) parseExpressionStatement(parent *Node) {
	p.scanExpression(parent, func(t Token) bool { return t.is(";") })
	p.expectStatementEnd()
}

// isClassDeclaration looks past modifiers for a class-like keyword followed
// by its name.
func (p *parser) isClassDeclaration() bool {
	offset := 0
	for p.peekAt(offset).is("abstract") || p.peekAt(offset).is("final") || p.peekAt(offset).is("readonly") {
		offset++
	}

	keyword := p.peekAt(offset)
	name := p.peekAt(offset + 1)

	if name.Kind != TokenIdent {
		return false
	}

	switch {
	case keyword.is("class"), keyword.is("trait"), keyword.is("interface"):
		return true
	case keyword.is("enum"):
		after := p.peekAt(offset + 2)
		return after.is("{") || after.is(":") || after.is("implements")
	default:
		return false
	}
}

func (p *parser) parseNamespace(parent *Node) {
	p.next()

	name := ""
	if p.peek().Kind == TokenIdent {
		name = p.next().Text
	}

	p.names.enterNamespace(name)

	if p.peek().is("{") {
		p.next()
		p.parseStatements(parent, "}")
		p.expect("}")
		p.names.enterNamespace("")

		return
	}

	p.expectStatementEnd()
}

// parseUse records class imports; function and constant imports are skipped.
func (p *parser) parseUse() {
	p.next()

	if p.peek().is("function") || p.peek().is("const") {
		p.skipUntil(";")
		return
	}

	for {
		tok := p.peek()
		if tok.Kind != TokenIdent {
			p.skipUntil(";")
			return
		}

		name := p.next().Text

		if p.peek().is(`\`) && p.peekAt(1).is("{") {
			p.next()
			p.next()
			p.parseGroupUse(name)
		} else {
			p.names.addImport(name, p.parseAlias())
		}

		if !p.peek().is(",") {
			break
		}

		p.next()
	}

	p.expectStatementEnd()
}

func (p *parser) parseGroupUse(prefix string) {
	for !p.peek().is("}") {
		tok := p.peek()

		switch {
		case tok.Kind == TokenEOF:
			p.fail("line %d: unterminated group use", tok.Line)
		case tok.is(","):
			p.next()
		case tok.is("function"), tok.is("const"):
			p.next()
			p.next()
			p.parseAlias()
		case tok.Kind == TokenIdent:
			member := p.next().Text
			p.names.addImport(prefix+`\`+member, p.parseAlias())
		default:
			p.next()
		}
	}

	p.next()
}

func (p *parser) parseAlias() string {
	if !p.peek().is("as") {
		return ""
	}

	p.next()

	return p.next().Text
}

func (p *parser) parseClassDeclaration(parent *Node, doc string, startLine int) {
	for !p.peek().is("class") && !p.peek().is("trait") && !p.peek().is("interface") && !p.peek().is("enum") {
		p.next()
	}

	keyword := p.next()
	nameTok := p.next()

	node := &Node{
		Kind:       NodeClass,
		ClassKind:  ClassKind(strings.ToLower(keyword.Text)),
		Name:       nameTok.Text,
		NameLine:   nameTok.Line,
		FQName:     p.names.qualify(nameTok.Text),
		DocComment: doc,
		StartLine:  startLine,
	}

	for !p.peek().is("{") {
		if p.peek().Kind == TokenEOF {
			p.fail("line %d: missing body of %s %s", nameTok.Line, keyword.Text, nameTok.Text)
		}

		p.next()
	}

	p.parseClassBody(node)
	node.EndLine = p.prevLine
	parent.add(node)
}

func (p *parser) parseAnonymousClass(parent *Node) {
	start := p.next()
	p.next()

	node := &Node{Kind: NodeClass, ClassKind: ClassKindAnonymous, StartLine: start.Line}

	if p.peek().is("(") {
		p.parseCall(node)
	}

	for !p.peek().is("{") {
		if p.peek().Kind == TokenEOF {
			p.fail("line %d: missing body of anonymous class", start.Line)
		}

		p.next()
	}

	p.parseClassBody(node)
	node.EndLine = p.prevLine
	parent.add(node)
}

func (p *parser) parseClassBody(class *Node) {
	p.expect("{")

	memberDoc := ""

	for {
		tok := p.peek()

		switch {
		case tok.Kind == TokenEOF:
			p.fail("line %d: unterminated body of %s %s", class.StartLine, class.ClassKind, class.Name)
		case tok.is("}"):
			p.next()
			return
		}

		if memberDoc == "" {
			memberDoc = tok.Doc
		}

		p.skipAttributes()
		tok = p.peek()

		if memberDoc == "" {
			memberDoc = tok.Doc
		}

		switch {
		case tok.Kind == TokenIdent && memberModifiers[strings.ToLower(tok.Text)]:
			p.next()

			// Asymmetric visibility: private(set).
			if p.peek().is("(") && p.peekAt(1).is("set") && p.peekAt(2).is(")") {
				p.skipBalanced("(", ")")
			}

			continue
		case tok.is("use"):
			p.skipTraitUse()
		case tok.is("function"):
			p.parseMethod(class, memberDoc)
		case tok.is("}"):
			continue
		default:
			p.parseClassMember(class)
		}

		memberDoc = ""
	}
}

// parseClassMember consumes a property, constant or enum case. A property
// with hooks ends at the brace closing its hook list, not at a semicolon.
func (p *parser) parseClassMember(class *Node) {
	stop := func(t Token) bool { return t.is(";") || t.is("{") }

	for {
		tok := p.peek()

		switch {
		case tok.Kind == TokenEOF, tok.is("}"):
			return
		case tok.is(";"):
			p.next()
			return
		case tok.is("{"):
			p.scanGroup(class, "{", "}")
			return
		}

		p.scanTerm(class, stop)
	}
}

func (p *parser) skipTraitUse() {
	p.next()

	for {
		tok := p.peek()

		switch {
		case tok.Kind == TokenEOF:
			return
		case tok.is(";"):
			p.next()
			return
		case tok.is("{"):
			p.skipBalanced("{", "}")
			return
		default:
			p.next()
		}
	}
}

func (p *parser) parseMethod(class *Node, doc string) {
	p.next()

	if p.peek().is("&") {
		p.next()
	}

	nameTok := p.next()
	node := &Node{
		Kind:       NodeMethod,
		Name:       nameTok.Text,
		NameLine:   nameTok.Line,
		StartLine:  nameTok.Line,
		DocComment: doc,
	}

	p.skipBalanced("(", ")")
	p.skipReturnType()

	if p.peek().is(";") {
		p.next()
	} else {
		node.HasBody = true
		p.parseBody(node)
	}

	node.EndLine = p.prevLine
	class.add(node)
}

func (p *parser) parseFunctionDeclaration(parent *Node, doc string) {
	start := p.next()

	if p.peek().is("&") {
		p.next()
	}

	nameTok := p.next()
	node := &Node{
		Kind:       NodeFunction,
		Name:       nameTok.Text,
		NameLine:   nameTok.Line,
		FQName:     p.names.qualify(nameTok.Text),
		StartLine:  start.Line,
		DocComment: doc,
		HasBody:    true,
	}

	p.skipBalanced("(", ")")
	p.skipReturnType()
	p.parseBody(node)

	node.EndLine = p.prevLine
	parent.add(node)
}

func (p *parser) parseBody(node *Node) {
	p.expect("{")
	p.parseStatements(node, "}")
	p.expect("}")
}

// parseControlBody parses a control structure body in brace, single
// statement or alternative syntax and reports whether the latter was used.
func (p *parser) parseControlBody(node *Node, altTerminators ...string) bool {
	if p.peek().is(":") {
		p.next()
		p.parseStatements(node, altTerminators...)

		return true
	}

	p.parseStatement(node)

	return false
}

func (p *parser) parseIf(parent *Node) {
	start := p.next()
	node := &Node{Kind: NodeIf, StartLine: start.Line}

	p.scanGroup(node, "(", ")")
	alt := p.parseControlBody(node, "elseif", "else", "endif")

	for {
		tok := p.peek()

		if tok.is("elseif") {
			p.next()

			branch := &Node{Kind: NodeElseIf, StartLine: tok.Line}
			p.scanGroup(branch, "(", ")")
			p.parseControlBody(branch, "elseif", "else", "endif")
			branch.EndLine = p.prevLine
			node.add(branch)

			continue
		}

		if tok.is("else") {
			p.next()

			branch := &Node{Kind: NodeElse, StartLine: tok.Line}
			p.parseControlBody(branch, "endif")
			branch.EndLine = p.prevLine
			node.add(branch)
		}

		break
	}

	if alt {
		p.expect("endif")
		p.expectStatementEnd()
	}

	node.EndLine = p.prevLine
	parent.add(node)
}

func (p *parser) parseLoop(parent *Node) {
	start := p.next()
	keyword := strings.ToLower(start.Text)

	kind := NodeWhile

	switch keyword {
	case "foreach":
		kind = NodeForeach
	case "for":
		kind = NodeFor
	}

	node := &Node{Kind: kind, StartLine: start.Line}

	p.scanGroup(node, "(", ")")

	if p.parseControlBody(node, "end"+keyword) {
		p.expect("end" + keyword)
		p.expectStatementEnd()
	}

	node.EndLine = p.prevLine
	parent.add(node)
}

func (p *parser) parseDoWhile(parent *Node) {
	start := p.next()
	node := &Node{Kind: NodeDoWhile, StartLine: start.Line}

	p.parseStatement(node)
	p.expect("while")
	p.scanGroup(node, "(", ")")
	p.expectStatementEnd()

	node.EndLine = p.prevLine
	parent.add(node)
}

func (p *parser) parseSwitch(parent *Node) {
	start := p.next()
	node := &Node{Kind: NodeSwitch, StartLine: start.Line}

	p.scanGroup(node, "(", ")")

	end := "}"
	if p.peek().is(":") {
		end = "endswitch"
		p.next()
	} else {
		p.expect("{")
	}

	for !p.peek().is(end) {
		tok := p.peek()

		switch {
		case tok.Kind == TokenEOF:
			p.fail("line %d: unterminated switch", start.Line)
		case tok.is(";"):
			p.next()
		case tok.is("case"), tok.is("default"):
			p.next()

			arm := &Node{Kind: NodeCase, StartLine: tok.Line}
			if tok.is("case") {
				p.scanExpression(arm, func(t Token) bool { return t.is(":") || t.is(";") })
			}

			if p.peek().is(":") || p.peek().is(";") {
				p.next()
			}

			p.parseStatements(arm, "case", "default", end)
			arm.EndLine = p.prevLine
			node.add(arm)
		default:
			p.fail("line %d: unexpected %q in switch", tok.Line, tok.Text)
		}
	}

	p.next()

	if end == "endswitch" {
		p.expectStatementEnd()
	}

	node.EndLine = p.prevLine
	parent.add(node)
}

func (p *parser) parseTry(parent *Node) {
	start := p.next()
	node := &Node{Kind: NodeTry, StartLine: start.Line}

	p.parseBody(node)

	for p.peek().is("catch") {
		tok := p.next()
		catch := &Node{Kind: NodeCatch, StartLine: tok.Line}

		p.skipBalanced("(", ")")
		p.parseBody(catch)
		catch.EndLine = p.prevLine
		node.add(catch)
	}

	if p.peek().is("finally") {
		tok := p.next()
		finally := &Node{Kind: NodeFinally, StartLine: tok.Line}

		p.parseBody(finally)
		finally.EndLine = p.prevLine
		node.add(finally)
	}

	node.EndLine = p.prevLine
	parent.add(node)
}

func (p *parser) parseDeclare(parent *Node) {
	p.next()
	p.skipBalanced("(", ")")

	switch {
	case p.peek().is("{"):
		p.parseStatement(parent)
	case p.peek().is(":"):
		p.next()
		p.parseStatements(parent, "enddeclare")
		p.next()
		p.expectStatementEnd()
	default:
		p.expectStatementEnd()
	}
}

// scanExpression consumes an expression, recording the constructs embedded
// in it, until stop matches or an unbalanced closing delimiter is reached.
// Neither terminator is consumed.
func (p *parser) scanExpression(parent *Node, stop func(Token) bool) {
	for {
		tok := p.peek()
		if tok.Kind == TokenEOF || tok.is(")") || tok.is("]") || tok.is("}") || stop(tok) {
			return
		}

		p.scanTerm(parent, stop)
	}
}

func neverStop(Token) bool {
	return false
}

//nolint:cyclop // One case per embedded construct.
func (p *parser) scanTerm(parent *Node, stop func(Token) bool) {
	tok := p.peek()
	member := p.afterMemberAccess()

	switch {
	case tok.is("("):
		if p.callableBefore() {
			p.parseCall(parent)
		} else {
			p.scanGroup(parent, "(", ")")
		}
	case tok.is("["):
		p.scanGroup(parent, "[", "]")
	case tok.is("{"):
		p.scanGroup(parent, "{", "}")
	case tok.is("#["):
		p.skipAttributes()
	case member:
		p.next()
	case tok.is("static") && (p.peekAt(1).is("function") || p.peekAt(1).is("fn")):
		p.next()
	case tok.is("function") && (p.peekAt(1).is("(") || p.peekAt(1).is("&")):
		p.parseClosure(parent)
	case tok.is("fn") && (p.peekAt(1).is("(") || p.peekAt(1).is("&")):
		p.parseArrowFunction(parent, stop)
	case tok.is("match") && p.peekAt(1).is("("):
		p.parseMatch(parent)
	case tok.is("new") && p.peekAt(1).is("class"):
		p.parseAnonymousClass(parent)
	case tok.is("throw"):
		p.parseThrow(parent, stop)
	default:
		p.next()
	}
}

// afterMemberAccess reports whether the next token is a member name, where
// keywords lose their meaning.
func (p *parser) afterMemberAccess() bool {
	prev, ok := p.previous()
	if !ok || p.peek().Kind != TokenIdent {
		return false
	}

	return prev.is("->") || prev.is("?->") || prev.is("::")
}

func (p *parser) callableBefore() bool {
	prev, ok := p.previous()
	if !ok {
		return false
	}

	switch prev.Kind {
	case TokenVariable:
		return true
	case TokenIdent:
		if p.pos >= 2 {
			before := p.tokens[p.pos-2]
			if before.is("->") || before.is("?->") || before.is("::") {
				return true
			}
		}

		return !nonCallKeywords[strings.ToLower(prev.Text)]
	case TokenPunct:
		return prev.Text == ")" || prev.Text == "]" || prev.Text == "}"
	default:
		return false
	}
}

func (p *parser) parseCall(parent *Node) {
	callee := ""
	if prev, ok := p.previous(); ok {
		callee = prev.Text
	}

	open := p.next()
	call := &Node{
		Kind:          NodeCall,
		Name:          callee,
		StartLine:     open.Line,
		ArgsStartLine: open.Line,
	}

	p.scanExpression(call, neverStop)
	closing := p.expect(")")

	call.ArgsEndLine = closing.Line
	call.EndLine = closing.Line
	parent.add(call)
}

func (p *parser) scanGroup(parent *Node, open, closing string) {
	p.expect(open)
	p.scanExpression(parent, neverStop)
	p.expect(closing)
}

func (p *parser) parseClosure(parent *Node) {
	start := p.next()
	node := &Node{Kind: NodeClosure, StartLine: start.Line, DocComment: start.Doc, HasBody: true}

	if p.peek().is("&") {
		p.next()
	}

	p.skipBalanced("(", ")")

	if p.peek().is("use") {
		p.next()
		p.skipBalanced("(", ")")
	}

	p.skipReturnType()
	p.parseBody(node)

	node.EndLine = p.prevLine
	parent.add(node)
}

func (p *parser) parseArrowFunction(parent *Node, stop func(Token) bool) {
	start := p.next()
	node := &Node{Kind: NodeArrowFunction, StartLine: start.Line, HasBody: true}

	if p.peek().is("&") {
		p.next()
	}

	p.skipBalanced("(", ")")
	p.skipReturnType()
	p.expect("=>")
	p.scanExpression(node, func(t Token) bool {
		return t.is(",") || t.is(";") || stop(t)
	})

	node.EndLine = p.prevLine
	parent.add(node)
}

func (p *parser) parseMatch(parent *Node) {
	start := p.next()
	node := &Node{Kind: NodeMatch, StartLine: start.Line}

	p.scanGroup(node, "(", ")")
	p.scanGroup(node, "{", "}")

	node.EndLine = p.prevLine
	parent.add(node)
}

func (p *parser) parseThrow(parent *Node, stop func(Token) bool) {
	start := p.next()
	node := &Node{Kind: NodeThrow, StartLine: start.Line}

	if p.peek().is("new") && p.peekAt(1).Kind == TokenIdent && !p.peekAt(1).is("class") {
		node.ThrownClass = p.names.resolveClass(p.peekAt(1).Text)
	}

	p.scanExpression(node, func(t Token) bool {
		return t.is(",") || t.is(";") || stop(t)
	})

	node.EndLine = p.prevLine
	parent.add(node)
}

// skipReturnType skips an optional `: type` declaration.
func (p *parser) skipReturnType() {
	if !p.peek().is(":") {
		return
	}

	p.next()

	for {
		tok := p.peek()

		switch {
		case tok.Kind == TokenEOF, tok.is("{"), tok.is(";"), tok.is("=>"):
			return
		case tok.is("("):
			p.skipBalanced("(", ")")
		default:
			p.next()
		}
	}
}

func (p *parser) skipAttributes() {
	for p.peek().is("#[") {
		start := p.next()
		depth := 1

		for depth > 0 {
			tok := p.next()

			switch {
			case tok.Kind == TokenEOF:
				p.fail("line %d: unterminated attribute", start.Line)
			case tok.is("[") || tok.is("#["):
				depth++
			case tok.is("]"):
				depth--
			}
		}
	}
}

// skipBalanced consumes a delimited region including nested delimiters.
func (p *parser) skipBalanced(open, closing string) {
	start := p.expect(open)
	depth := 1

	for depth > 0 {
		tok := p.next()

		switch {
		case tok.Kind == TokenEOF:
			p.fail("line %d: unbalanced %q", start.Line, open)
		case tok.is("("), tok.is("["), tok.is("{"), tok.is("#["):
			depth++
		case tok.is(")"), tok.is("]"), tok.is("}"):
			depth--
		}
	}

	if !p.tokens[p.pos-1].is(closing) {
		p.fail("line %d: %q closed by %q", start.Line, open, p.tokens[p.pos-1].Text)
	}
}

func (p *parser) skipUntil(text string) {
	for {
		tok := p.peek()
		if tok.Kind == TokenEOF {
			return
		}

		p.next()

		if tok.is(text) {
			return
		}
	}
}
