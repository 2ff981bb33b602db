// Package syntax implements the lossless concrete syntax tree for WDL
// documents. The tree has two layers: immutable, structurally shared "green"
// nodes that store kinds, text, and lengths, and lightweight "red" handles
// that add absolute offsets and parent links for navigation.
package syntax

// Kind discriminates every token and node in the syntax tree.
type Kind uint16

const (
	// KindUnknown marks bytes the lexer could not classify. They are kept
	// in the tree so the source always round-trips.
	KindUnknown Kind = iota
	KindEOF

	// Trivia.
	KindWhitespace
	KindComment

	// Literals and identifiers.
	KindIdent
	KindIntLiteral
	KindFloatLiteral

	// Keywords.
	KindVersionKeyword
	KindImportKeyword
	KindAsKeyword
	KindAliasKeyword
	KindStructKeyword
	KindTaskKeyword
	KindWorkflowKeyword
	KindInputKeyword
	KindOutputKeyword
	KindCommandKeyword
	KindRuntimeKeyword
	KindRequirementsKeyword
	KindHintsKeyword
	KindMetaKeyword
	KindParameterMetaKeyword
	KindCallKeyword
	KindScatterKeyword
	KindIfKeyword
	KindThenKeyword
	KindElseKeyword
	KindInKeyword
	KindAfterKeyword
	KindTrueKeyword
	KindFalseKeyword
	KindNoneKeyword
	KindNullKeyword
	KindObjectKeyword
	KindEnvKeyword
	KindBooleanTypeKeyword
	KindIntTypeKeyword
	KindFloatTypeKeyword
	KindStringTypeKeyword
	KindFileTypeKeyword
	KindDirectoryTypeKeyword
	KindArrayTypeKeyword
	KindMapTypeKeyword
	KindPairTypeKeyword
	KindObjectTypeKeyword

	// Punctuation and operators.
	KindOpenBrace
	KindCloseBrace
	KindOpenBracket
	KindCloseBracket
	KindOpenParen
	KindCloseParen
	KindColon
	KindComma
	KindDot
	KindQuestion
	KindPlus
	KindMinus
	KindStar
	KindSlash
	KindPercent
	KindExp
	KindAssign
	KindEqual
	KindNotEqual
	KindLess
	KindLessEqual
	KindGreater
	KindGreaterEqual
	KindLogicalAnd
	KindLogicalOr
	KindExclamation

	// String and command tokens.
	KindSingleQuote
	KindDoubleQuote
	KindOpenHeredoc
	KindCloseHeredoc
	KindPlaceholderOpen
	KindStringText
	KindCommandText
	KindVersionText

	// Nodes.
	KindRootNode
	KindVersionStatementNode
	KindImportStatementNode
	KindImportAliasNode
	KindStructDefinitionNode
	KindTaskDefinitionNode
	KindWorkflowDefinitionNode
	KindInputSectionNode
	KindOutputSectionNode
	KindCommandSectionNode
	KindRuntimeSectionNode
	KindRuntimeItemNode
	KindRequirementsSectionNode
	KindRequirementsItemNode
	KindHintsSectionNode
	KindHintsItemNode
	KindMetadataSectionNode
	KindParameterMetadataSectionNode
	KindMetadataObjectNode
	KindMetadataObjectItemNode
	KindMetadataArrayNode
	KindBoundDeclNode
	KindUnboundDeclNode
	KindPrimitiveTypeNode
	KindArrayTypeNode
	KindMapTypeNode
	KindPairTypeNode
	KindObjectTypeNode
	KindTypeRefNode
	KindCallStatementNode
	KindCallTargetNode
	KindCallAliasNode
	KindCallAfterNode
	KindCallInputItemNode
	KindScatterStatementNode
	KindConditionalStatementNode

	// Expression nodes.
	KindLiteralIntNode
	KindLiteralFloatNode
	KindLiteralBoolNode
	KindLiteralNoneNode
	KindLiteralStringNode
	KindLiteralArrayNode
	KindLiteralPairNode
	KindLiteralMapNode
	KindLiteralMapItemNode
	KindLiteralObjectNode
	KindLiteralObjectItemNode
	KindLiteralStructNode
	KindLiteralStructItemNode
	KindLiteralHintsNode
	KindLiteralHintsItemNode
	KindLiteralInputNode
	KindLiteralInputItemNode
	KindLiteralOutputNode
	KindLiteralOutputItemNode
	KindNameRefNode
	KindParenExprNode
	KindIfExprNode
	KindLogicalNotExprNode
	KindNegationExprNode
	KindLogicalOrExprNode
	KindLogicalAndExprNode
	KindEqualityExprNode
	KindInequalityExprNode
	KindLessExprNode
	KindLessEqualExprNode
	KindGreaterExprNode
	KindGreaterEqualExprNode
	KindAdditionExprNode
	KindSubtractionExprNode
	KindMultiplicationExprNode
	KindDivisionExprNode
	KindModuloExprNode
	KindExponentiationExprNode
	KindCallExprNode
	KindIndexExprNode
	KindAccessExprNode
	KindPlaceholderNode
	KindPlaceholderOptionNode

	// KindErrorNode collects tokens skipped during error recovery.
	KindErrorNode

	kindMax
)

var kindNames = map[Kind]string{
	KindUnknown:                      "Unknown",
	KindEOF:                          "EOF",
	KindWhitespace:                   "Whitespace",
	KindComment:                      "Comment",
	KindIdent:                        "Ident",
	KindIntLiteral:                   "IntLiteral",
	KindFloatLiteral:                 "FloatLiteral",
	KindVersionKeyword:               "VersionKeyword",
	KindImportKeyword:                "ImportKeyword",
	KindAsKeyword:                    "AsKeyword",
	KindAliasKeyword:                 "AliasKeyword",
	KindStructKeyword:                "StructKeyword",
	KindTaskKeyword:                  "TaskKeyword",
	KindWorkflowKeyword:              "WorkflowKeyword",
	KindInputKeyword:                 "InputKeyword",
	KindOutputKeyword:                "OutputKeyword",
	KindCommandKeyword:               "CommandKeyword",
	KindRuntimeKeyword:               "RuntimeKeyword",
	KindRequirementsKeyword:          "RequirementsKeyword",
	KindHintsKeyword:                 "HintsKeyword",
	KindMetaKeyword:                  "MetaKeyword",
	KindParameterMetaKeyword:         "ParameterMetaKeyword",
	KindCallKeyword:                  "CallKeyword",
	KindScatterKeyword:               "ScatterKeyword",
	KindIfKeyword:                    "IfKeyword",
	KindThenKeyword:                  "ThenKeyword",
	KindElseKeyword:                  "ElseKeyword",
	KindInKeyword:                    "InKeyword",
	KindAfterKeyword:                 "AfterKeyword",
	KindTrueKeyword:                  "TrueKeyword",
	KindFalseKeyword:                 "FalseKeyword",
	KindNoneKeyword:                  "NoneKeyword",
	KindNullKeyword:                  "NullKeyword",
	KindObjectKeyword:                "ObjectKeyword",
	KindEnvKeyword:                   "EnvKeyword",
	KindBooleanTypeKeyword:           "BooleanTypeKeyword",
	KindIntTypeKeyword:               "IntTypeKeyword",
	KindFloatTypeKeyword:             "FloatTypeKeyword",
	KindStringTypeKeyword:            "StringTypeKeyword",
	KindFileTypeKeyword:              "FileTypeKeyword",
	KindDirectoryTypeKeyword:         "DirectoryTypeKeyword",
	KindArrayTypeKeyword:             "ArrayTypeKeyword",
	KindMapTypeKeyword:               "MapTypeKeyword",
	KindPairTypeKeyword:              "PairTypeKeyword",
	KindObjectTypeKeyword:            "ObjectTypeKeyword",
	KindOpenBrace:                    "OpenBrace",
	KindCloseBrace:                   "CloseBrace",
	KindOpenBracket:                  "OpenBracket",
	KindCloseBracket:                 "CloseBracket",
	KindOpenParen:                    "OpenParen",
	KindCloseParen:                   "CloseParen",
	KindColon:                        "Colon",
	KindComma:                        "Comma",
	KindDot:                          "Dot",
	KindQuestion:                     "Question",
	KindPlus:                         "Plus",
	KindMinus:                        "Minus",
	KindStar:                         "Star",
	KindSlash:                        "Slash",
	KindPercent:                      "Percent",
	KindExp:                          "Exp",
	KindAssign:                       "Assign",
	KindEqual:                        "Equal",
	KindNotEqual:                     "NotEqual",
	KindLess:                         "Less",
	KindLessEqual:                    "LessEqual",
	KindGreater:                      "Greater",
	KindGreaterEqual:                 "GreaterEqual",
	KindLogicalAnd:                   "LogicalAnd",
	KindLogicalOr:                    "LogicalOr",
	KindExclamation:                  "Exclamation",
	KindSingleQuote:                  "SingleQuote",
	KindDoubleQuote:                  "DoubleQuote",
	KindOpenHeredoc:                  "OpenHeredoc",
	KindCloseHeredoc:                 "CloseHeredoc",
	KindPlaceholderOpen:              "PlaceholderOpen",
	KindStringText:                   "StringText",
	KindCommandText:                  "CommandText",
	KindVersionText:                  "VersionText",
	KindRootNode:                     "RootNode",
	KindVersionStatementNode:         "VersionStatementNode",
	KindImportStatementNode:          "ImportStatementNode",
	KindImportAliasNode:              "ImportAliasNode",
	KindStructDefinitionNode:         "StructDefinitionNode",
	KindTaskDefinitionNode:           "TaskDefinitionNode",
	KindWorkflowDefinitionNode:       "WorkflowDefinitionNode",
	KindInputSectionNode:             "InputSectionNode",
	KindOutputSectionNode:            "OutputSectionNode",
	KindCommandSectionNode:           "CommandSectionNode",
	KindRuntimeSectionNode:           "RuntimeSectionNode",
	KindRuntimeItemNode:              "RuntimeItemNode",
	KindRequirementsSectionNode:      "RequirementsSectionNode",
	KindRequirementsItemNode:         "RequirementsItemNode",
	KindHintsSectionNode:             "HintsSectionNode",
	KindHintsItemNode:                "HintsItemNode",
	KindMetadataSectionNode:          "MetadataSectionNode",
	KindParameterMetadataSectionNode: "ParameterMetadataSectionNode",
	KindMetadataObjectNode:           "MetadataObjectNode",
	KindMetadataObjectItemNode:       "MetadataObjectItemNode",
	KindMetadataArrayNode:            "MetadataArrayNode",
	KindBoundDeclNode:                "BoundDeclNode",
	KindUnboundDeclNode:              "UnboundDeclNode",
	KindPrimitiveTypeNode:            "PrimitiveTypeNode",
	KindArrayTypeNode:                "ArrayTypeNode",
	KindMapTypeNode:                  "MapTypeNode",
	KindPairTypeNode:                 "PairTypeNode",
	KindObjectTypeNode:               "ObjectTypeNode",
	KindTypeRefNode:                  "TypeRefNode",
	KindCallStatementNode:            "CallStatementNode",
	KindCallTargetNode:               "CallTargetNode",
	KindCallAliasNode:                "CallAliasNode",
	KindCallAfterNode:                "CallAfterNode",
	KindCallInputItemNode:            "CallInputItemNode",
	KindScatterStatementNode:         "ScatterStatementNode",
	KindConditionalStatementNode:     "ConditionalStatementNode",
	KindLiteralIntNode:               "LiteralIntNode",
	KindLiteralFloatNode:             "LiteralFloatNode",
	KindLiteralBoolNode:              "LiteralBoolNode",
	KindLiteralNoneNode:              "LiteralNoneNode",
	KindLiteralStringNode:            "LiteralStringNode",
	KindLiteralArrayNode:             "LiteralArrayNode",
	KindLiteralPairNode:              "LiteralPairNode",
	KindLiteralMapNode:               "LiteralMapNode",
	KindLiteralMapItemNode:           "LiteralMapItemNode",
	KindLiteralObjectNode:            "LiteralObjectNode",
	KindLiteralObjectItemNode:        "LiteralObjectItemNode",
	KindLiteralStructNode:            "LiteralStructNode",
	KindLiteralStructItemNode:        "LiteralStructItemNode",
	KindLiteralHintsNode:             "LiteralHintsNode",
	KindLiteralHintsItemNode:         "LiteralHintsItemNode",
	KindLiteralInputNode:             "LiteralInputNode",
	KindLiteralInputItemNode:         "LiteralInputItemNode",
	KindLiteralOutputNode:            "LiteralOutputNode",
	KindLiteralOutputItemNode:        "LiteralOutputItemNode",
	KindNameRefNode:                  "NameRefNode",
	KindParenExprNode:                "ParenExprNode",
	KindIfExprNode:                   "IfExprNode",
	KindLogicalNotExprNode:           "LogicalNotExprNode",
	KindNegationExprNode:             "NegationExprNode",
	KindLogicalOrExprNode:            "LogicalOrExprNode",
	KindLogicalAndExprNode:           "LogicalAndExprNode",
	KindEqualityExprNode:             "EqualityExprNode",
	KindInequalityExprNode:           "InequalityExprNode",
	KindLessExprNode:                 "LessExprNode",
	KindLessEqualExprNode:            "LessEqualExprNode",
	KindGreaterExprNode:              "GreaterExprNode",
	KindGreaterEqualExprNode:         "GreaterEqualExprNode",
	KindAdditionExprNode:             "AdditionExprNode",
	KindSubtractionExprNode:          "SubtractionExprNode",
	KindMultiplicationExprNode:       "MultiplicationExprNode",
	KindDivisionExprNode:             "DivisionExprNode",
	KindModuloExprNode:               "ModuloExprNode",
	KindExponentiationExprNode:       "ExponentiationExprNode",
	KindCallExprNode:                 "CallExprNode",
	KindIndexExprNode:                "IndexExprNode",
	KindAccessExprNode:               "AccessExprNode",
	KindPlaceholderNode:              "PlaceholderNode",
	KindPlaceholderOptionNode:        "PlaceholderOptionNode",
	KindErrorNode:                    "ErrorNode",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Kind(?)"
}

// IsTrivia reports whether the kind is whitespace or a comment.
func (k Kind) IsTrivia() bool {
	return k == KindWhitespace || k == KindComment
}

// IsToken reports whether the kind identifies a token rather than a node.
func (k Kind) IsToken() bool {
	return k < KindRootNode
}

// IsKeyword reports whether the kind is a reserved word token.
func (k Kind) IsKeyword() bool {
	return k >= KindVersionKeyword && k <= KindObjectTypeKeyword
}

// Keywords maps WDL source keywords to their token kinds. Type names are
// included; the parser decides from context whether a keyword is usable as
// an identifier.
var Keywords = map[string]Kind{
	"version":        KindVersionKeyword,
	"import":         KindImportKeyword,
	"as":             KindAsKeyword,
	"alias":          KindAliasKeyword,
	"struct":         KindStructKeyword,
	"task":           KindTaskKeyword,
	"workflow":       KindWorkflowKeyword,
	"input":          KindInputKeyword,
	"output":         KindOutputKeyword,
	"command":        KindCommandKeyword,
	"runtime":        KindRuntimeKeyword,
	"requirements":   KindRequirementsKeyword,
	"hints":          KindHintsKeyword,
	"meta":           KindMetaKeyword,
	"parameter_meta": KindParameterMetaKeyword,
	"call":           KindCallKeyword,
	"scatter":        KindScatterKeyword,
	"if":             KindIfKeyword,
	"then":           KindThenKeyword,
	"else":           KindElseKeyword,
	"in":             KindInKeyword,
	"after":          KindAfterKeyword,
	"true":           KindTrueKeyword,
	"false":          KindFalseKeyword,
	"None":           KindNoneKeyword,
	"null":           KindNullKeyword,
	"object":         KindObjectKeyword,
	"env":            KindEnvKeyword,
	"Boolean":        KindBooleanTypeKeyword,
	"Int":            KindIntTypeKeyword,
	"Float":          KindFloatTypeKeyword,
	"String":         KindStringTypeKeyword,
	"File":           KindFileTypeKeyword,
	"Directory":      KindDirectoryTypeKeyword,
	"Array":          KindArrayTypeKeyword,
	"Map":            KindMapTypeKeyword,
	"Pair":           KindPairTypeKeyword,
	"Object":         KindObjectTypeKeyword,
}
