package lexer

import (
	"strings"
	"testing"

	"github.com/antigravity-dev/wdlkit/internal/syntax"
)

// drain lexes the whole input in default mode, returning the tokens.
func drain(t *testing.T, src string) []Token {
	t.Helper()
	lx := New(src)
	var out []Token
	for i := 0; ; i++ {
		if i > len(src)+16 {
			t.Fatalf("lexer did not terminate on %q", src)
		}
		tok := lx.Next(ModeDefault)
		if tok.Kind == syntax.KindEOF {
			return out
		}
		out = append(out, tok)
	}
}

func TestLexer_Lossless(t *testing.T) {
	inputs := []string{
		"",
		"version 1.1\ntask t { command <<< echo 1 >>> }\n",
		"workflow w { Int x = 1 + 2 * 3 }",
		"# a comment\n\t  \r\n",
		"Array[Int]+ a = []",
		"0x1F 0.5 1e10 2.5e-3 .5",
		"a_b_c <= >= == != && || ** <<<",
		"\x00\x01\xffbinary garbage\x80",
		"unterminated # comment at eof",
	}
	for _, src := range inputs {
		var b strings.Builder
		for _, tok := range drain(t, src) {
			b.WriteString(tok.Text)
		}
		if b.String() != src {
			t.Errorf("tokens do not reproduce input:\n got %q\nwant %q", b.String(), src)
		}
	}
}

func TestLexer_UnknownBytesAreKept(t *testing.T) {
	toks := drain(t, "@ \x00")
	if len(toks) != 3 {
		t.Fatalf("expected 3 tokens, got %d: %v", len(toks), toks)
	}
	if toks[0].Kind != syntax.KindUnknown || toks[2].Kind != syntax.KindUnknown {
		t.Errorf("unexpected kinds: %v %v", toks[0].Kind, toks[2].Kind)
	}
}

func TestLexer_Keywords(t *testing.T) {
	toks := drain(t, "task workflow taskx")
	if toks[0].Kind != syntax.KindTaskKeyword {
		t.Errorf("task: got %v", toks[0].Kind)
	}
	if toks[2].Kind != syntax.KindWorkflowKeyword {
		t.Errorf("workflow: got %v", toks[2].Kind)
	}
	// An identifier with a keyword prefix stays an identifier.
	if toks[4].Kind != syntax.KindIdent {
		t.Errorf("taskx: got %v", toks[4].Kind)
	}
}

func TestLexer_Numbers(t *testing.T) {
	cases := []struct {
		src  string
		kind syntax.Kind
	}{
		{"0", syntax.KindIntLiteral},
		{"42", syntax.KindIntLiteral},
		{"0x1f", syntax.KindIntLiteral},
		{"1.5", syntax.KindFloatLiteral},
		{".5", syntax.KindFloatLiteral},
		{"1e3", syntax.KindFloatLiteral},
		{"2.5e-3", syntax.KindFloatLiteral},
	}
	for _, tc := range cases {
		toks := drain(t, tc.src)
		if len(toks) != 1 || toks[0].Kind != tc.kind || toks[0].Text != tc.src {
			t.Errorf("%q: got %v", tc.src, toks)
		}
	}
}

func TestLexer_StringMode(t *testing.T) {
	lx := New(`"hello ~{name} \"end\""`)
	open := lx.Next(ModeDefault)
	if open.Kind != syntax.KindDoubleQuote {
		t.Fatalf("open: got %v", open.Kind)
	}
	text := lx.Next(ModeDQString)
	if text.Kind != syntax.KindStringText || text.Text != "hello " {
		t.Fatalf("text: got %v %q", text.Kind, text.Text)
	}
	ph := lx.Next(ModeDQString)
	if ph.Kind != syntax.KindPlaceholderOpen {
		t.Fatalf("placeholder: got %v", ph.Kind)
	}
	name := lx.Next(ModeDefault)
	if name.Kind != syntax.KindIdent || name.Text != "name" {
		t.Fatalf("name: got %v %q", name.Kind, name.Text)
	}
	closeBrace := lx.Next(ModeDefault)
	if closeBrace.Kind != syntax.KindCloseBrace {
		t.Fatalf("close: got %v", closeBrace.Kind)
	}
	// Escaped quotes stay inside the text run.
	rest := lx.Next(ModeDQString)
	if rest.Kind != syntax.KindStringText || rest.Text != ` \"end\"` {
		t.Fatalf("rest: got %v %q", rest.Kind, rest.Text)
	}
	end := lx.Next(ModeDQString)
	if end.Kind != syntax.KindDoubleQuote {
		t.Fatalf("end quote: got %v", end.Kind)
	}
}

func TestLexer_HeredocMode(t *testing.T) {
	lx := New("echo ${literal} ~{x} >>>")
	first := lx.Next(ModeHeredoc)
	// In heredoc commands ${ is literal text; only ~{ interpolates.
	if first.Kind != syntax.KindCommandText || !strings.Contains(first.Text, "${literal}") {
		t.Fatalf("first: got %v %q", first.Kind, first.Text)
	}
	ph := lx.Next(ModeHeredoc)
	if ph.Kind != syntax.KindPlaceholderOpen {
		t.Fatalf("placeholder: got %v", ph.Kind)
	}
	lx.Next(ModeDefault) // x
	lx.Next(ModeDefault) // }
	text := lx.Next(ModeHeredoc)
	if text.Kind != syntax.KindCommandText {
		t.Fatalf("text: got %v", text.Kind)
	}
	end := lx.Next(ModeHeredoc)
	if end.Kind != syntax.KindCloseHeredoc {
		t.Fatalf("end: got %v", end.Kind)
	}
}

func TestLexer_VersionMode(t *testing.T) {
	lx := New(" 1.2\n")
	ws := lx.Next(ModeVersion)
	if ws.Kind != syntax.KindWhitespace {
		t.Fatalf("ws: got %v", ws.Kind)
	}
	v := lx.Next(ModeVersion)
	if v.Kind != syntax.KindVersionText || v.Text != "1.2" {
		t.Fatalf("version: got %v %q", v.Kind, v.Text)
	}
}
