package analyzer

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		normalize bool
		want      []string
	}{
		{
			name:      "normalized identifiers and literals",
			code:      "int x = 42; // comment\nreturn \"s\";",
			normalize: true,
			want:      []string{"int", "ID", "=", "NUM", ";", "return", "STR", ";"},
		},
		{
			name:      "raw lexemes",
			code:      "int x = 42; // comment\nreturn \"s\";",
			normalize: false,
			want:      []string{"int", "x", "=", "42", ";", "return", `"s"`, ";"},
		},
		{
			name:      "block and hash comments dropped",
			code:      "a /* one\ntwo */ b # tail\nc",
			normalize: true,
			want:      []string{"ID", "ID", "ID"},
		},
		{
			name:      "multi char operators",
			code:      "a<<=b; c != d && e",
			normalize: true,
			want:      []string{"ID", "<<=", "ID", ";", "ID", "!=", "ID", "&&", "ID"},
		},
		{
			name:      "escaped quote inside string",
			code:      `s = "a\"b"`,
			normalize: true,
			want:      []string{"ID", "=", "STR"},
		},
		{
			name:      "unterminated string is clamped",
			code:      `x = "abc`,
			normalize: false,
			want:      []string{"x", "=", `"abc`},
		},
		{
			name:      "empty",
			code:      "   \n\t ",
			normalize: true,
			want:      []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Texts(Tokenize(tt.code, tt.normalize))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenizeLines(t *testing.T) {
	tokens := Tokenize("a\n/* x\ny */ b\n\nc", true)
	want := []int{1, 3, 5}

	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(tokens), len(want))
	}
	for i, tok := range tokens {
		if tok.Line != want[i] {
			t.Errorf("token %d line = %d, want %d", i, tok.Line, want[i])
		}
	}
}
