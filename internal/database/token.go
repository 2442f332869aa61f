// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package database

import (
	"bufio"
	"fmt"
	"io"
)

// tokens reads whitespace-separated Metamath tokens, skipping comments.
type tokens struct {
	sc *bufio.Scanner
}

func newTokens(r io.Reader) *tokens {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	sc.Split(bufio.ScanWords)
	return &tokens{sc: sc}
}

// next returns the next raw token, or ok=false at EOF.
func (t *tokens) next() (string, bool) {
	if !t.sc.Scan() {
		return "", false
	}
	return t.sc.Text(), true
}

// real returns the next token outside comments.
func (t *tokens) real() (string, bool, error) {
	for {
		tok, ok := t.next()
		if !ok {
			return "", false, t.sc.Err()
		}
		switch tok {
		case "$(":
			for tok != "$)" {
				tok, ok = t.next()
				if !ok {
					return "", false, fmt.Errorf("%w: unterminated comment", ErrParse)
				}
			}
		case "$[":
			return "", false, fmt.Errorf("%w: file inclusion is not supported", ErrParse)
		default:
			return tok, true, nil
		}
	}
}

// statement reads tokens up to the closing "$.".
func (t *tokens) statement() ([]string, error) {
	var stat []string
	for {
		tok, ok, err := t.real()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: end of input before $.", ErrParse)
		}
		if tok == "$." {
			return stat, nil
		}
		stat = append(stat, tok)
	}
}
