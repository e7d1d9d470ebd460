package generator

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadDialogues reads a plain-text training file: one utterance per line,
// dialogues separated by blank lines. Lines starting with '#' are comments.
func LoadDialogues(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dialogues: %w", err)
	}
	defer f.Close()

	var (
		out     [][]string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			out = append(out, current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "#"):
		default:
			current = append(current, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dialogues: %w", err)
	}
	flush()
	return out, nil
}
