package updater

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/oshokin/fleetpatch/internal/domain/fleet"
)

// backupSuffixLayout is the timestamp appended to backup file names.
const backupSuffixLayout = "20060102_150405"

// errNonNumericCount is returned when the verify command's output cannot be
// parsed as a non-negative integer.
var errNonNumericCount = errors.New("verify output is not a number")

// shellQuote wraps s in single quotes so the remote shell treats it as a
// literal word. Embedded single quotes are closed, escaped and reopened.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// escapeSedPattern escapes characters that are special in a basic regular
// expression (and the s-command delimiter) so the old value only ever
// matches literally.
func escapeSedPattern(s string) string {
	var b strings.Builder

	for _, r := range s {
		if strings.ContainsRune(`\.*[]^$/`, r) {
			b.WriteByte('\\')
		}

		b.WriteRune(r)
	}

	return b.String()
}

// escapeSedReplacement escapes characters that are special on the replacement
// side of a sed s-command.
func escapeSedReplacement(s string) string {
	var b strings.Builder

	for _, r := range s {
		if strings.ContainsRune(`\&/`, r) {
			b.WriteByte('\\')
		}

		b.WriteRune(r)
	}

	return b.String()
}

// backupCommand copies the target file to the exact backup path chosen by the
// workflow. The explicit name is threaded through to restore so a rollback
// never has to rediscover the backup by wildcard.
func backupCommand(filePath, backupPath string) string {
	return fmt.Sprintf("cp -p %s %s", shellQuote(filePath), shellQuote(backupPath))
}

// applyCommand replaces every literal occurrence of the old value with the
// new value in the target file.
func applyCommand(spec fleet.EditSpec) string {
	script := fmt.Sprintf("s/%s/%s/g", escapeSedPattern(spec.OldValue), escapeSedReplacement(spec.NewValue))

	return fmt.Sprintf("sed -i %s %s", shellQuote(script), shellQuote(spec.FilePath))
}

// verifyCommand counts fixed-string occurrences of the new value in the
// target file. grep exits non-zero when the count is zero, so callers must
// judge the printed count, not the exit status.
func verifyCommand(spec fleet.EditSpec) string {
	return fmt.Sprintf("grep -c -F -- %s %s", shellQuote(spec.NewValue), shellQuote(spec.FilePath))
}

// restoreCommand copies the backup back over the target file.
func restoreCommand(filePath, backupPath string) string {
	return fmt.Sprintf("cp -p %s %s", shellQuote(backupPath), shellQuote(filePath))
}

// parseOccurrences parses the verify command's output as a non-negative
// count. Anything non-numeric is an error so a garbled reply is never
// mistaken for "zero occurrences" or for success.
func parseOccurrences(output string) (int, error) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return 0, errNonNumericCount
	}

	count, err := strconv.Atoi(trimmed)
	if err != nil || count < 0 {
		return 0, fmt.Errorf("%w: %q", errNonNumericCount, trimmed)
	}

	return count, nil
}
