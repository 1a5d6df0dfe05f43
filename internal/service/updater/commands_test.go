package updater

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fleetpatch/internal/domain/fleet"
)

// TestShellQuote verifies single-quote wrapping and embedded quote escaping.
func TestShellQuote(t *testing.T) {
	t.Parallel()

	require.Equal(t, "'/etc/app/app.conf'", shellQuote("/etc/app/app.conf"))
	require.Equal(t, `'it'\''s'`, shellQuote("it's"))
	require.Equal(t, "''", shellQuote(""))
}

// TestEscapeSed verifies that regex metacharacters are neutralized so the
// edit is always a literal replacement.
func TestEscapeSed(t *testing.T) {
	t.Parallel()

	require.Equal(t, `pass\.word\*`, escapeSedPattern("pass.word*"))
	require.Equal(t, `a\/b`, escapeSedPattern("a/b"))
	require.Equal(t, `\[x\]\^\$`, escapeSedPattern("[x]^$"))
	require.Equal(t, "plain", escapeSedPattern("plain"))

	require.Equal(t, `a\&b`, escapeSedReplacement("a&b"))
	require.Equal(t, `a\/b`, escapeSedReplacement("a/b"))
	require.Equal(t, `a\\b`, escapeSedReplacement(`a\b`))
}

// TestCommandBuilders pins the remote command shapes.
func TestCommandBuilders(t *testing.T) {
	t.Parallel()

	spec := fleet.EditSpec{
		FilePath: "/etc/app/app.conf",
		OldValue: "password=old",
		NewValue: "password=new",
	}

	require.Equal(t,
		"cp -p '/etc/app/app.conf' '/etc/app/app.conf.backup_20260829_120000'",
		backupCommand(spec.FilePath, spec.FilePath+".backup_20260829_120000"))

	require.Equal(t,
		"sed -i 's/password=old/password=new/g' '/etc/app/app.conf'",
		applyCommand(spec))

	require.Equal(t,
		"grep -c -F -- 'password=new' '/etc/app/app.conf'",
		verifyCommand(spec))

	require.Equal(t,
		"cp -p '/etc/app/app.conf.backup_20260829_120000' '/etc/app/app.conf'",
		restoreCommand(spec.FilePath, spec.FilePath+".backup_20260829_120000"))
}

// TestParseOccurrences verifies strict numeric parsing of the verify reply.
func TestParseOccurrences(t *testing.T) {
	t.Parallel()

	count, err := parseOccurrences("3\n")
	require.NoError(t, err)
	require.Equal(t, 3, count)

	count, err = parseOccurrences("  0 ")
	require.NoError(t, err)
	require.Zero(t, count)

	_, err = parseOccurrences("")
	require.ErrorIs(t, err, errNonNumericCount)

	_, err = parseOccurrences("grep: no such file")
	require.ErrorIs(t, err, errNonNumericCount)

	_, err = parseOccurrences("-1")
	require.ErrorIs(t, err, errNonNumericCount)
}
