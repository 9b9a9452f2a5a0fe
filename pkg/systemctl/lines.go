package systemctl

import (
	"bufio"
	"bytes"
	"fmt"
)

// eachLine calls fn for each line of out until fn returns false. Line
// terminators ("\n" or "\r\n") are stripped. The scan buffer may grow to the
// size of out, so a single oversized line never truncates the rest.
func eachLine(out []byte, fn func(string) bool) error {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), max(len(out)+1, bufio.MaxScanTokenSize))
	for scanner.Scan() {
		if !fn(scanner.Text()) {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan command output: %w", err)
	}
	return nil
}

// splitLines splits command output into lines. The slice is never nil so
// empty output encodes as an empty JSON array.
func splitLines(out []byte) ([]string, error) {
	lines := []string{}
	err := eachLine(out, func(line string) bool {
		lines = append(lines, line)
		return true
	})
	return lines, err
}
