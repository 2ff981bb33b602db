package parser

import (
	"github.com/antigravity-dev/wdlkit/internal/diag"
	"github.com/antigravity-dev/wdlkit/internal/syntax"
	"github.com/antigravity-dev/wdlkit/internal/syntax/lexer"
)

// atType reports whether the next token can begin a type.
func (p *parser) atType() bool {
	switch p.peek().Kind {
	case syntax.KindBooleanTypeKeyword, syntax.KindIntTypeKeyword,
		syntax.KindFloatTypeKeyword, syntax.KindStringTypeKeyword,
		syntax.KindFileTypeKeyword, syntax.KindDirectoryTypeKeyword,
		syntax.KindArrayTypeKeyword, syntax.KindMapTypeKeyword,
		syntax.KindPairTypeKeyword, syntax.KindObjectTypeKeyword,
		syntax.KindIdent, syntax.KindEnvKeyword:
		return true
	}
	return false
}

// typeRef parses a type. The optional `?` suffix and the `+` non-empty
// qualifier on arrays are part of the type node.
func (p *parser) typeRef() {
	t := p.peek()
	switch t.Kind {
	case syntax.KindBooleanTypeKeyword, syntax.KindIntTypeKeyword,
		syntax.KindFloatTypeKeyword, syntax.KindStringTypeKeyword,
		syntax.KindFileTypeKeyword, syntax.KindDirectoryTypeKeyword:
		p.b.StartNode(syntax.KindPrimitiveTypeNode)
		p.bump()
		p.optionalSuffix()
		p.b.FinishNode()

	case syntax.KindArrayTypeKeyword:
		p.b.StartNode(syntax.KindArrayTypeNode)
		p.bump()
		p.expect(syntax.KindOpenBracket, "`[` after Array")
		p.typeRef()
		p.expect(syntax.KindCloseBracket, "`]` to close the Array type")
		if p.at(syntax.KindPlus) {
			p.bump()
		}
		p.optionalSuffix()
		p.b.FinishNode()

	case syntax.KindMapTypeKeyword:
		p.b.StartNode(syntax.KindMapTypeNode)
		p.bump()
		p.expect(syntax.KindOpenBracket, "`[` after Map")
		p.typeRef()
		p.expect(syntax.KindComma, "`,` between the Map key and value types")
		p.typeRef()
		p.expect(syntax.KindCloseBracket, "`]` to close the Map type")
		p.optionalSuffix()
		p.b.FinishNode()

	case syntax.KindPairTypeKeyword:
		p.b.StartNode(syntax.KindPairTypeNode)
		p.bump()
		p.expect(syntax.KindOpenBracket, "`[` after Pair")
		p.typeRef()
		p.expect(syntax.KindComma, "`,` between the Pair left and right types")
		p.typeRef()
		p.expect(syntax.KindCloseBracket, "`]` to close the Pair type")
		p.optionalSuffix()
		p.b.FinishNode()

	case syntax.KindObjectTypeKeyword:
		p.b.StartNode(syntax.KindObjectTypeNode)
		p.bump()
		p.optionalSuffix()
		p.b.FinishNode()

	case syntax.KindIdent:
		p.b.StartNode(syntax.KindTypeRefNode)
		p.bump()
		p.optionalSuffix()
		p.b.FinishNode()

	default:
		p.diags.Add(diag.Errorf(p.tokenSpan(), "expected a type"))
	}
}

func (p *parser) optionalSuffix() {
	if p.at(syntax.KindQuestion) {
		p.bump()
	}
}

// declaration parses a typed declaration. An initializer is required for
// private declarations and outputs; input declarations may be unbound.
// The `env` modifier marks a declaration exported into the task environment.
func (p *parser) declaration(requireInit bool) {
	cp := p.b.Mark()

	if p.at(syntax.KindEnvKeyword) {
		p.bump()
	}
	p.typeRef()
	p.expect(syntax.KindIdent, "a declaration name")

	if p.at(syntax.KindAssign) {
		p.b.StartNodeAt(cp, syntax.KindBoundDeclNode)
		p.bump()
		p.expression()
		p.b.FinishNode()
		return
	}

	if requireInit {
		p.diags.Add(diag.Errorf(p.tokenSpan(), "this declaration requires an initializer").
			WithFix("add `= <expression>`"))
	}
	p.b.StartNodeAt(cp, syntax.KindUnboundDeclNode)
	p.b.FinishNode()
}

func (p *parser) taskDefinition() {
	p.b.StartNode(syntax.KindTaskDefinitionNode)
	p.bump() // task
	p.expect(syntax.KindIdent, "a task name")
	p.expect(syntax.KindOpenBrace, "`{` to open the task body")

	for {
		t := p.peek()
		switch {
		case t.Kind == syntax.KindCloseBrace || t.Kind == syntax.KindEOF:
			p.expect(syntax.KindCloseBrace, "`}` to close the task body")
			p.b.FinishNode()
			return
		case t.Kind == syntax.KindInputKeyword:
			p.inputSection()
		case t.Kind == syntax.KindOutputKeyword:
			p.outputSection()
		case t.Kind == syntax.KindCommandKeyword:
			p.commandSection()
		case t.Kind == syntax.KindRuntimeKeyword:
			p.keyValueSection(syntax.KindRuntimeSectionNode, syntax.KindRuntimeItemNode)
		case t.Kind == syntax.KindRequirementsKeyword:
			if !p.supports(1, 2) {
				p.diags.Add(diag.Errorf(p.tokenSpan(),
					"requirements sections require WDL version 1.2 or later"))
			}
			p.keyValueSection(syntax.KindRequirementsSectionNode, syntax.KindRequirementsItemNode)
		case t.Kind == syntax.KindHintsKeyword:
			p.keyValueSection(syntax.KindHintsSectionNode, syntax.KindHintsItemNode)
		case t.Kind == syntax.KindMetaKeyword:
			p.metadataSection(syntax.KindMetadataSectionNode)
		case t.Kind == syntax.KindParameterMetaKeyword:
			p.metadataSection(syntax.KindParameterMetadataSectionNode)
		case p.atType():
			p.declaration(true)
		default:
			p.recover("a task item", taskItemAnchors)
		}
	}
}

func (p *parser) inputSection() {
	p.b.StartNode(syntax.KindInputSectionNode)
	p.bump() // input
	p.expect(syntax.KindOpenBrace, "`{` to open the input section")
	for {
		t := p.peek()
		if t.Kind == syntax.KindCloseBrace || t.Kind == syntax.KindEOF {
			break
		}
		if !p.atType() {
			p.recover("an input declaration", declAnchors)
			continue
		}
		p.declaration(false)
	}
	p.expect(syntax.KindCloseBrace, "`}` to close the input section")
	p.b.FinishNode()
}

func (p *parser) outputSection() {
	p.b.StartNode(syntax.KindOutputSectionNode)
	p.bump() // output
	p.expect(syntax.KindOpenBrace, "`{` to open the output section")
	for {
		t := p.peek()
		if t.Kind == syntax.KindCloseBrace || t.Kind == syntax.KindEOF {
			break
		}
		if !p.atType() {
			p.recover("an output declaration", declAnchors)
			continue
		}
		p.declaration(true)
	}
	p.expect(syntax.KindCloseBrace, "`}` to close the output section")
	p.b.FinishNode()
}

// keyValueSection parses runtime, requirements, and hints sections, which
// all share the `name: expr` item shape.
func (p *parser) keyValueSection(sectionKind, itemKind syntax.Kind) {
	p.b.StartNode(sectionKind)
	p.bump() // section keyword
	p.expect(syntax.KindOpenBrace, "`{` to open the section")
	for {
		t := p.peek()
		if t.Kind == syntax.KindCloseBrace || t.Kind == syntax.KindEOF {
			break
		}
		if t.Kind != syntax.KindIdent && !t.Kind.IsKeyword() {
			p.recover("a section item", declAnchors)
			continue
		}
		p.b.StartNode(itemKind)
		// Section keys may collide with keywords; they are recorded as
		// identifiers.
		p.bumpAs(syntax.KindIdent)
		p.expect(syntax.KindColon, "`:` after the item name")
		p.expression()
		p.b.FinishNode()
	}
	p.expect(syntax.KindCloseBrace, "`}` to close the section")
	p.b.FinishNode()
}

// metadataSection parses meta and parameter_meta. Metadata values are a
// JSON-like sublanguage: literals, objects, and arrays, but no expressions.
func (p *parser) metadataSection(kind syntax.Kind) {
	p.b.StartNode(kind)
	p.bump() // meta or parameter_meta
	p.expect(syntax.KindOpenBrace, "`{` to open the metadata section")
	for {
		t := p.peek()
		if t.Kind == syntax.KindCloseBrace || t.Kind == syntax.KindEOF {
			break
		}
		if t.Kind != syntax.KindIdent && !t.Kind.IsKeyword() {
			p.recover("a metadata item", declAnchors)
			continue
		}
		p.b.StartNode(syntax.KindMetadataObjectItemNode)
		p.bumpAs(syntax.KindIdent)
		p.expect(syntax.KindColon, "`:` after the metadata key")
		p.metadataValue()
		p.b.FinishNode()
	}
	p.expect(syntax.KindCloseBrace, "`}` to close the metadata section")
	p.b.FinishNode()
}

func (p *parser) metadataValue() {
	t := p.peek()
	switch t.Kind {
	case syntax.KindIntLiteral:
		p.b.StartNode(syntax.KindLiteralIntNode)
		p.bump()
		p.b.FinishNode()
	case syntax.KindMinus:
		// Negative numeric metadata values.
		p.b.StartNode(syntax.KindNegationExprNode)
		p.bump()
		p.metadataValue()
		p.b.FinishNode()
	case syntax.KindFloatLiteral:
		p.b.StartNode(syntax.KindLiteralFloatNode)
		p.bump()
		p.b.FinishNode()
	case syntax.KindTrueKeyword, syntax.KindFalseKeyword:
		p.b.StartNode(syntax.KindLiteralBoolNode)
		p.bump()
		p.b.FinishNode()
	case syntax.KindNullKeyword:
		p.b.StartNode(syntax.KindLiteralNoneNode)
		p.bump()
		p.b.FinishNode()
	case syntax.KindDoubleQuote, syntax.KindSingleQuote:
		p.stringLiteral()
	case syntax.KindOpenBrace:
		p.b.StartNode(syntax.KindMetadataObjectNode)
		p.bump()
		for {
			t := p.peek()
			if t.Kind == syntax.KindCloseBrace || t.Kind == syntax.KindEOF {
				break
			}
			if t.Kind != syntax.KindIdent && !t.Kind.IsKeyword() {
				p.recover("a metadata object item", declAnchors)
				continue
			}
			p.b.StartNode(syntax.KindMetadataObjectItemNode)
			p.bumpAs(syntax.KindIdent)
			p.expect(syntax.KindColon, "`:` after the metadata key")
			p.metadataValue()
			p.b.FinishNode()
			if p.at(syntax.KindComma) {
				p.bump()
			}
		}
		p.expect(syntax.KindCloseBrace, "`}` to close the metadata object")
		p.b.FinishNode()
	case syntax.KindOpenBracket:
		p.b.StartNode(syntax.KindMetadataArrayNode)
		p.bump()
		for {
			t := p.peek()
			if t.Kind == syntax.KindCloseBracket || t.Kind == syntax.KindEOF {
				break
			}
			p.metadataValue()
			if p.at(syntax.KindComma) {
				p.bump()
			} else if !p.at(syntax.KindCloseBracket) {
				break
			}
		}
		p.expect(syntax.KindCloseBracket, "`]` to close the metadata array")
		p.b.FinishNode()
	default:
		p.diags.Add(diag.Errorf(p.tokenSpan(), "expected a metadata value"))
	}
}

// commandSection parses heredoc and brace command bodies. The body is raw
// text interrupted only by placeholders.
func (p *parser) commandSection() {
	p.b.StartNode(syntax.KindCommandSectionNode)
	p.bump() // command

	t := p.peek()
	switch t.Kind {
	case syntax.KindOpenHeredoc:
		p.bump()
		for {
			t := p.lx.Peek(lexer.ModeHeredoc)
			switch t.Kind {
			case syntax.KindEOF:
				p.diags.Add(diag.Errorf(p.tokenSpan(), "command section is missing a closing `>>>`"))
				p.b.FinishNode()
				return
			case syntax.KindCloseHeredoc:
				p.bumpMode(lexer.ModeHeredoc)
				p.b.FinishNode()
				return
			case syntax.KindPlaceholderOpen:
				p.placeholder(lexer.ModeHeredoc)
			default:
				p.bumpMode(lexer.ModeHeredoc)
			}
		}
	case syntax.KindOpenBrace:
		p.bump()
		for {
			t := p.lx.Peek(lexer.ModeBraceCommand)
			switch t.Kind {
			case syntax.KindEOF:
				p.diags.Add(diag.Errorf(p.tokenSpan(), "command section is missing a closing `}`"))
				p.b.FinishNode()
				return
			case syntax.KindCloseBrace:
				p.bumpMode(lexer.ModeBraceCommand)
				p.b.FinishNode()
				return
			case syntax.KindPlaceholderOpen:
				p.placeholder(lexer.ModeBraceCommand)
			default:
				p.bumpMode(lexer.ModeBraceCommand)
			}
		}
	default:
		p.diags.Add(diag.Errorf(p.tokenSpan(), "expected `<<<` or `{` to open the command body"))
		p.b.FinishNode()
	}
}

func (p *parser) workflowDefinition() {
	p.b.StartNode(syntax.KindWorkflowDefinitionNode)
	p.bump() // workflow
	p.expect(syntax.KindIdent, "a workflow name")
	p.expect(syntax.KindOpenBrace, "`{` to open the workflow body")
	p.workflowBody(true)
	p.expect(syntax.KindCloseBrace, "`}` to close the workflow body")
	p.b.FinishNode()
}

// workflowBody parses statements until the closing brace. Sections are only
// legal at the top level of the workflow, not inside scatter/if bodies.
func (p *parser) workflowBody(topLevel bool) {
	for {
		t := p.peek()
		switch {
		case t.Kind == syntax.KindCloseBrace || t.Kind == syntax.KindEOF:
			return
		case t.Kind == syntax.KindInputKeyword && topLevel:
			p.inputSection()
		case t.Kind == syntax.KindOutputKeyword && topLevel:
			p.outputSection()
		case t.Kind == syntax.KindMetaKeyword && topLevel:
			p.metadataSection(syntax.KindMetadataSectionNode)
		case t.Kind == syntax.KindParameterMetaKeyword && topLevel:
			p.metadataSection(syntax.KindParameterMetadataSectionNode)
		case t.Kind == syntax.KindHintsKeyword && topLevel:
			p.keyValueSection(syntax.KindHintsSectionNode, syntax.KindHintsItemNode)
		case t.Kind == syntax.KindCallKeyword:
			p.callStatement()
		case t.Kind == syntax.KindScatterKeyword:
			p.scatterStatement()
		case t.Kind == syntax.KindIfKeyword:
			p.conditionalStatement()
		case p.atType():
			p.declaration(true)
		default:
			p.recover("a workflow statement", workflowItemAnchors)
		}
	}
}

func (p *parser) callStatement() {
	p.b.StartNode(syntax.KindCallStatementNode)
	p.bump() // call

	p.b.StartNode(syntax.KindCallTargetNode)
	p.expect(syntax.KindIdent, "a task or workflow name")
	for p.at(syntax.KindDot) {
		p.bump()
		p.expect(syntax.KindIdent, "a name after `.`")
	}
	p.b.FinishNode()

	if p.at(syntax.KindAsKeyword) {
		p.b.StartNode(syntax.KindCallAliasNode)
		p.bump()
		p.expect(syntax.KindIdent, "an alias identifier")
		p.b.FinishNode()
	}

	for p.at(syntax.KindAfterKeyword) {
		p.b.StartNode(syntax.KindCallAfterNode)
		p.bump()
		p.expect(syntax.KindIdent, "a call name after `after`")
		p.b.FinishNode()
	}

	if p.at(syntax.KindOpenBrace) {
		p.bump()
		// WDL <=1.1 requires `input:`; 1.2 allows direct items.
		if p.at(syntax.KindInputKeyword) {
			p.bump()
			p.expect(syntax.KindColon, "`:` after `input`")
		}
		for {
			t := p.peek()
			if t.Kind == syntax.KindCloseBrace || t.Kind == syntax.KindEOF {
				break
			}
			if t.Kind != syntax.KindIdent {
				p.recover("a call input", declAnchors)
				continue
			}
			p.b.StartNode(syntax.KindCallInputItemNode)
			p.bump()
			if p.at(syntax.KindAssign) {
				p.bump()
				p.expression()
			}
			p.b.FinishNode()
			if p.at(syntax.KindComma) {
				p.bump()
			}
		}
		p.expect(syntax.KindCloseBrace, "`}` to close the call inputs")
	}

	p.b.FinishNode()
}

func (p *parser) scatterStatement() {
	p.b.StartNode(syntax.KindScatterStatementNode)
	p.bump() // scatter
	p.expect(syntax.KindOpenParen, "`(` after scatter")
	p.expect(syntax.KindIdent, "the scatter variable name")
	p.expect(syntax.KindInKeyword, "the `in` keyword")
	p.expression()
	p.expect(syntax.KindCloseParen, "`)` to close the scatter header")
	p.expect(syntax.KindOpenBrace, "`{` to open the scatter body")
	p.workflowBody(false)
	p.expect(syntax.KindCloseBrace, "`}` to close the scatter body")
	p.b.FinishNode()
}

func (p *parser) conditionalStatement() {
	p.b.StartNode(syntax.KindConditionalStatementNode)
	p.bump() // if
	p.expect(syntax.KindOpenParen, "`(` after if")
	p.expression()
	p.expect(syntax.KindCloseParen, "`)` to close the condition")
	p.expect(syntax.KindOpenBrace, "`{` to open the conditional body")
	p.workflowBody(false)
	p.expect(syntax.KindCloseBrace, "`}` to close the conditional body")
	p.b.FinishNode()
}
