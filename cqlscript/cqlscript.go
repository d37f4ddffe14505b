// Copyright 2024 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cqlscript splits a CQL script into individual statements and runs
// them in order. Statements are terminated by semicolons; semicolons inside
// string literals and comments do not terminate a statement. Line comments
// ("--" and "//") and block comments ("/* */") are stripped.
package cqlscript

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Statement is a single executable statement and the 1-based line it starts
// on in the source script.
type Statement struct {
	Text string
	Line int
}

// Executor runs one statement. *delegate.CQLDelegate satisfies this.
type Executor interface {
	Execute(ctx context.Context, statement, source string, line int, continueOnError, ignoreFailedDrops bool) error
}

// SyntaxError reports a structurally malformed script, such as an
// unterminated string literal or block comment.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("malformed script at line %d: %s", e.Line, e.Msg)
}

type splitState int

const (
	stateNormal splitState = iota
	stateLineComment
	stateBlockComment
	stateSingleQuote
	stateDoubleQuote
)

// Split reads a script and returns its statements in file order. A trailing
// statement without a terminating semicolon is included. An unterminated
// string literal or block comment yields a *SyntaxError.
func Split(r io.Reader) ([]Statement, error) {
	br := bufio.NewReader(r)

	var (
		stmts     []Statement
		buf       strings.Builder
		state     = stateNormal
		line      = 1
		startLine = 0 // line of the first non-space rune of the current statement
		openLine  = 0 // line where the current literal or comment opened
		prev      rune
	)

	flush := func() {
		text := strings.TrimSpace(buf.String())
		if text != "" {
			stmts = append(stmts, Statement{Text: text, Line: startLine})
		}
		buf.Reset()
		startLine = 0
	}

	for {
		c, _, err := br.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read script: %w", err)
		}

		switch state {
		case stateNormal:
			switch {
			case c == ';':
				flush()
			case c == '\'':
				state = stateSingleQuote
				openLine = line
				if startLine == 0 {
					startLine = line
				}
				buf.WriteRune(c)
			case c == '"':
				state = stateDoubleQuote
				openLine = line
				if startLine == 0 {
					startLine = line
				}
				buf.WriteRune(c)
			case c == '-' && prev == '-':
				state = stateLineComment
				startLine = trimOpener(&buf, '-', startLine)
			case c == '/' && prev == '/':
				state = stateLineComment
				startLine = trimOpener(&buf, '/', startLine)
			case c == '*' && prev == '/':
				state = stateBlockComment
				openLine = line
				startLine = trimOpener(&buf, '/', startLine)
				c = 0 // "/*" must not close on an immediately following "/"
			default:
				if startLine == 0 && !isSpace(c) {
					startLine = line
				}
				buf.WriteRune(c)
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
				buf.WriteRune('\n')
			}
		case stateBlockComment:
			if c == '/' && prev == '*' {
				state = stateNormal
				c = 0 // "*/" must not rearm on "/*" detection
			}
		case stateSingleQuote:
			buf.WriteRune(c)
			if c == '\'' {
				state = stateNormal
			}
		case stateDoubleQuote:
			buf.WriteRune(c)
			if c == '"' {
				state = stateNormal
			}
		}

		if c == '\n' {
			line++
		}
		prev = c
	}

	switch state {
	case stateSingleQuote, stateDoubleQuote:
		return nil, &SyntaxError{Line: openLine, Msg: "unterminated string literal"}
	case stateBlockComment:
		return nil, &SyntaxError{Line: openLine, Msg: "unterminated block comment"}
	}

	flush()
	return stmts, nil
}

// Run splits the script read from r and executes every statement in file
// order through exec. The first failure aborts the remainder. source labels
// the script in errors.
func Run(ctx context.Context, exec Executor, source string, r io.Reader, continueOnError, ignoreFailedDrops bool) error {
	stmts, err := Split(r)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if err := exec.Execute(ctx, stmt.Text, source, stmt.Line, continueOnError, ignoreFailedDrops); err != nil {
			return err
		}
	}
	return nil
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// trimOpener removes the comment-opening rune that was already buffered
// before the two-rune marker was recognized, and returns the corrected
// statement start line: a comment opener with nothing but whitespace before
// it must not mark the statement start.
func trimOpener(buf *strings.Builder, c rune, startLine int) int {
	s := buf.String()
	if strings.HasSuffix(s, string(c)) {
		s = s[:len(s)-1]
		buf.Reset()
		buf.WriteString(s)
	}
	if strings.TrimSpace(s) == "" {
		return 0
	}
	return startLine
}
