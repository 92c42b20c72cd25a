package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// splitLine tokenizes a script line on runs of spaces. Double-quoted tokens
// may contain spaces; quotes inside an unquoted token are kept as is.
func splitLine(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = ' '
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return r.Read()
}

// runScript executes one command per input line and writes one result
// block per command. Blank lines and lines starting with # are skipped.
// It returns the number of commands that failed.
func runScript(ctx context.Context, in io.Reader, out io.Writer, cmds []command) (int, error) {
	failed := 0
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		res, err := runLine(ctx, line, cmds)
		if err != nil {
			failed++
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, res)
	}
	return failed, sc.Err()
}

func runLine(ctx context.Context, line string, cmds []command) (string, error) {
	tokens, err := splitLine(line)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", line, err)
	}
	if len(tokens) == 0 {
		return "", fmt.Errorf("empty command")
	}
	c, ok := findCommand(cmds, tokens[0])
	if !ok {
		return "", fmt.Errorf("unknown command %q", tokens[0])
	}
	args, err := convertArgs(tokens[1:], c.params)
	if err != nil {
		return "", err
	}
	return c.run(ctx, args)
}
