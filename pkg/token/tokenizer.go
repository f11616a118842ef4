package token

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Token is a single lexical unit produced by Lex.
type Token struct {
	Text  string
	Kind  kind
	Label bool // true if this word was immediately followed by ':' (a label definition)
}

type kind int

const (
	kindWord kind = iota
	kindNumber
	kindPunct
	kindComment
	kindWhitespace
)

// ErrInvalidUTF8 is returned by Normalize/Tokenize when the input is not
// valid UTF-8 — the one content failure the lexer signals to its caller
// rather than degrading through (spec §4.A).
var ErrInvalidUTF8 = fmt.Errorf("token: input is not valid UTF-8")

// Lex scans code into raw lexical tokens: NASM-style `;` comments extend to
// end of line; identifiers immediately followed by ':' are tagged as
// labels; numeric literals (decimal, 0x hex, 0b binary, trailing-h hex,
// leading-zero octal) are tagged distinctly from words; everything else
// that is not whitespace is single-character punctuation.
func Lex(code string) ([]Token, error) {
	if !utf8.ValidString(code) {
		return nil, ErrInvalidUTF8
	}

	var tokens []Token
	runes := []rune(code)
	n := len(runes)
	i := 0

	for i < n {
		r := runes[i]

		switch {
		case r == ';':
			// Comment: consume to end of line (exclusive).
			j := i
			for j < n && runes[j] != '\n' {
				j++
			}
			tokens = append(tokens, Token{Text: string(runes[i:j]), Kind: kindComment})
			i = j

		case isSpace(r):
			j := i
			for j < n && isSpace(runes[j]) {
				j++
			}
			tokens = append(tokens, Token{Text: string(runes[i:j]), Kind: kindWhitespace})
			i = j

		case isIdentStart(r):
			j := i
			for j < n && isIdentPart(runes[j]) {
				j++
			}
			word := string(runes[i:j])
			label := j < n && runes[j] == ':'
			tokens = append(tokens, Token{Text: word, Kind: kindWord, Label: label})
			i = j
			if label {
				i++ // consume the ':'
			}

		case isDigit(r):
			j := i
			for j < n && isNumberPart(runes[j]) {
				j++
			}
			tokens = append(tokens, Token{Text: string(runes[i:j]), Kind: kindNumber})
			i = j

		default:
			tokens = append(tokens, Token{Text: string(r), Kind: kindPunct})
			i++
		}
	}

	return tokens, nil
}

// Normalize produces the canonical string used for checksumming: the
// whitespace-separated, upper-cased concatenation of every lexical token
// that is neither a comment nor pure whitespace (spec §4.A). It does NOT
// apply the register/immediate/label/size-prefix substitutions — those are
// tokenize(normalize=true)'s job, aimed at fuzzy fingerprinting rather than
// exact content identity.
func Normalize(code string) (string, error) {
	toks, err := Lex(code)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(toks))
	for _, t := range toks {
		if t.Kind == kindComment || t.Kind == kindWhitespace {
			continue
		}
		parts = append(parts, strings.ToUpper(t.Text))
	}
	return strings.Join(parts, " "), nil
}

// Tokenize returns the ordered token list for shingling (spec §4.A). With
// normalize=false it is simply the upper-cased, punctuation-filtered token
// values. With normalize=true, the substitution precedence of §4.A applies:
// registers → REG, numeric literals → IMM, labels → LABEL, size prefixes →
// MEM_SIZE, everything else → its upper-cased value.
func Tokenize(code string, normalize bool) ([]string, error) {
	toks, err := Lex(code)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(toks))
	for _, t := range toks {
		switch t.Kind {
		case kindComment, kindWhitespace, kindPunct:
			continue
		}

		upper := strings.ToUpper(t.Text)

		if !normalize {
			out = append(out, upper)
			continue
		}

		switch {
		case Registers[upper]:
			out = append(out, "REG")
		case t.Kind == kindNumber:
			out = append(out, "IMM")
		case t.Label:
			out = append(out, "LABEL")
		case sizePrefixes[upper]:
			out = append(out, "MEM_SIZE")
		default:
			out = append(out, upper)
		}
	}
	return out, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || r == '.' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigit(r)
}

func isNumberPart(r rune) bool {
	return isDigit(r) ||
		(r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F') ||
		r == 'x' || r == 'X' || r == 'b' || r == 'B' || r == 'h' || r == 'H' || r == 'o' || r == 'O'
}
