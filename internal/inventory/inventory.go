package inventory

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/fleetpatch/internal/domain/fleet"
)

// ErrEmpty is returned when the inventory file yields no targets.
var ErrEmpty = errors.New("inventory contains no targets")

// Load reads a newline-delimited host list from the given path.
// Blank lines and lines starting with '#' are skipped; remaining lines are
// parsed as "host" or "host:port". Order is preserved.
func Load(path string) ([]fleet.Target, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open inventory: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	targets, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parse inventory %s: %w", path, err)
	}

	return targets, nil
}

// Parse reads targets from any reader using the same line format as Load.
// A host listed twice (including spellings that collapse to the same
// canonical key, like "h1" and "h1:22") is a configuration error: running
// the edit twice against one host would mutate it twice and the summary
// could only record one of the outcomes.
func Parse(r io.Reader) ([]fleet.Target, error) {
	var (
		targets []fleet.Target
		seen    = make(map[string]int)
		scanner = bufio.NewScanner(r)
		lineNo  int
	)

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		target, err := fleet.ParseTarget(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		key := target.String()
		if firstLine, duplicate := seen[key]; duplicate {
			return nil, fmt.Errorf("line %d: duplicate target %s (first listed on line %d)", lineNo, key, firstLine)
		}

		seen[key] = lineNo

		targets = append(targets, target)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}

	if len(targets) == 0 {
		return nil, ErrEmpty
	}

	return targets, nil
}
