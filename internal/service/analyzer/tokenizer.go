package analyzer

import (
	"strings"
	"unicode"
)

// Token is one lexeme of source code together with the line it starts on.
type Token struct {
	Text string
	Line int
}

const (
	identPlaceholder  = "ID"
	numberPlaceholder = "NUM"
	stringPlaceholder = "STR"
)

// keywords shared by the languages students usually submit (C family, Java,
// Kotlin, Python, Go). They survive normalization so that control flow
// still contributes to the score.
var keywords = map[string]struct{}{
	"if": {}, "else": {}, "elif": {}, "for": {}, "while": {}, "do": {}, "switch": {},
	"case": {}, "default": {}, "break": {}, "continue": {}, "return": {}, "goto": {},
	"try": {}, "catch": {}, "finally": {}, "throw": {}, "throws": {}, "except": {},
	"raise": {}, "with": {}, "yield": {}, "lambda": {}, "def": {}, "fun": {},
	"func": {}, "function": {}, "class": {}, "struct": {}, "interface": {}, "enum": {},
	"object": {}, "new": {}, "delete": {}, "this": {}, "self": {}, "super": {},
	"public": {}, "private": {}, "protected": {}, "static": {}, "final": {},
	"const": {}, "var": {}, "val": {}, "let": {}, "void": {}, "int": {}, "long": {},
	"short": {}, "char": {}, "float": {}, "double": {}, "bool": {}, "boolean": {},
	"string": {}, "true": {}, "false": {}, "null": {}, "nil": {}, "None": {},
	"True": {}, "False": {}, "and": {}, "or": {}, "not": {}, "in": {}, "is": {},
	"import": {}, "package": {}, "from": {}, "as": {}, "when": {}, "range": {},
	"go": {}, "defer": {}, "select": {}, "map": {}, "chan": {}, "type": {},
	"unsigned": {}, "signed": {}, "sizeof": {}, "typedef": {}, "include": {},
	"pass": {}, "print": {}, "printf": {}, "println": {}, "main": {},
}

// Tokenize splits source code into tokens. Comments and whitespace are
// dropped. When normalize is set, identifiers become ID, number literals NUM
// and string literals STR so that renaming does not hide copied code.
func Tokenize(code string, normalize bool) []Token {
	src := []rune(code)
	tokens := make([]Token, 0, len(src)/3)
	line := 1

	for i := 0; i < len(src); {
		c := src[i]

		switch {
		case c == '\n':
			line++
			i++

		case unicode.IsSpace(c):
			i++

		case c == '/' && i+1 < len(src) && src[i+1] == '/', c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i += 2
			for i < len(src) && !(src[i] == '*' && i+1 < len(src) && src[i+1] == '/') {
				if src[i] == '\n' {
					line++
				}
				i++
			}
			i += 2

		case c == '"' || c == '\'' || c == '`':
			start, startLine := i, line
			i++
			for i < len(src) && src[i] != c {
				if src[i] == '\\' {
					i++
				} else if src[i] == '\n' {
					line++
				}
				i++
			}
			i++
			if i > len(src) {
				i = len(src)
			}
			text := string(src[start:i])
			if normalize {
				text = stringPlaceholder
			}
			tokens = append(tokens, Token{Text: text, Line: startLine})

		case unicode.IsDigit(c):
			start := i
			for i < len(src) && (unicode.IsDigit(src[i]) || unicode.IsLetter(src[i]) || src[i] == '.' || src[i] == '_') {
				i++
			}
			text := string(src[start:i])
			if normalize {
				text = numberPlaceholder
			}
			tokens = append(tokens, Token{Text: text, Line: line})

		case unicode.IsLetter(c) || c == '_' || c == '$':
			start := i
			for i < len(src) && (unicode.IsLetter(src[i]) || unicode.IsDigit(src[i]) || src[i] == '_' || src[i] == '$') {
				i++
			}
			text := string(src[start:i])
			if normalize {
				if _, ok := keywords[text]; !ok {
					text = identPlaceholder
				}
			}
			tokens = append(tokens, Token{Text: text, Line: line})

		default:
			tokens = append(tokens, Token{Text: operatorAt(src, i), Line: line})
			i += len([]rune(tokens[len(tokens)-1].Text))
		}
	}

	return tokens
}

var multiCharOperators = []string{
	"<<=", ">>=", "...", "**=", "//=",
	"==", "!=", "<=", ">=", "&&", "||", "++", "--", "+=", "-=", "*=", "/=",
	"%=", "&=", "|=", "^=", "<<", ">>", "->", "=>", "::", ":=", "**", "?.", "?:",
}

func operatorAt(src []rune, i int) string {
	rest := string(src[i:min(i+3, len(src))])
	for _, op := range multiCharOperators {
		if strings.HasPrefix(rest, op) {
			return op
		}
	}
	return string(src[i])
}

// Texts returns only the token texts.
func Texts(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}
