package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoInputs is returned when neither arguments nor an input file name any product.
var ErrNoInputs = errors.New("no product ids or URLs given")

// parseInputs reads one id or URL per line. Blank lines and lines starting
// with # are skipped.
func parseInputs(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

// collectInputs merges positional args with the contents of path, if set.
func collectInputs(args []string, path string) ([]string, error) {
	inputs := append([]string(nil), args...)
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input file: %w", err)
		}
		defer f.Close()

		fromFile, err := parseInputs(f)
		if err != nil {
			return nil, fmt.Errorf("read input file %s: %w", path, err)
		}
		inputs = append(inputs, fromFile...)
	}
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}
	return inputs, nil
}
