// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alessio/shellescape"
)

// newNonce returns a fresh marker prefix. Markers are "NONCE word":
// they contain a space, which base64 never emits, and the nonce is
// unpredictable to anything on the far side.
func newNonce() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	return "he" + hex.EncodeToString(raw[:]), nil
}

// buildRequest renders the sh text that runs command in the innermost
// shell and reports its outcome.
//
// The script and its stdin travel as base64 in quoted heredocs and
// are decoded into a private temporary directory. The whole request is
// one if-compound, so the shell parses all of it before running any
// of it: a request cut off in transit is a syntax error and nothing
// runs. The byte counts are checked before the command starts.
func buildRequest(nonce, shell string, command Command) []byte {
	script := []byte(command.Script)
	delimiter := "__" + strings.ToUpper(nonce)

	var b strings.Builder
	b.WriteString("if __he_t=$(mktemp -d 2>/dev/null || mktemp -d -t hopedit.XXXXXX); then\n")
	writeHeredoc(&b, `"$__he_t/cmd"`, delimiter+"_C", script)
	writeHeredoc(&b, `"$__he_t/in"`, delimiter+"_I", command.Stdin)
	fmt.Fprintf(&b, "if [ \"$(wc -c <\"$__he_t/cmd\" | tr -d ' ')\" = %d ] && [ \"$(wc -c <\"$__he_t/in\" | tr -d ' ')\" = %d ]; then\n", len(script), len(command.Stdin))
	fmt.Fprintf(&b, "%s \"$__he_t/cmd\" <\"$__he_t/in\" >\"$__he_t/out\" 2>\"$__he_t/err\"\n", shellescape.Quote(shell))
	b.WriteString("__he_s=$?\n")
	b.WriteString("else\n__he_s=124\nprintf 'request arrived truncated\\n' >\"$__he_t/err\"\nfi\n")
	fmt.Fprintf(&b, "printf '\\n%%s %%s\\n' '%s begin' \"$__he_s\"\n", nonce)
	b.WriteString("base64 <\"$__he_t/out\"\n")
	fmt.Fprintf(&b, "printf '\\n%%s\\n' '%s stderr'\n", nonce)
	b.WriteString("base64 <\"$__he_t/err\"\n")
	fmt.Fprintf(&b, "printf '\\n%%s\\n' '%s end'\n", nonce)
	b.WriteString("rm -rf \"$__he_t\"\n")
	b.WriteString("else\n")
	fmt.Fprintf(&b, "printf '\\n%%s %%s\\n' '%s begin' 125\n", nonce)
	fmt.Fprintf(&b, "printf '\\n%%s\\n' '%s stderr'\n", nonce)
	b.WriteString("printf 'cannot create a temporary directory\\n' | base64\n")
	fmt.Fprintf(&b, "printf '\\n%%s\\n' '%s end'\n", nonce)
	b.WriteString("fi\n")
	return []byte(b.String())
}

// base64LineLength matches what base64(1) emits by default.
const base64LineLength = 76

func writeHeredoc(b *strings.Builder, destination, delimiter string, data []byte) {
	fmt.Fprintf(b, "base64 -d >%s <<'%s'\n", destination, delimiter)
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > base64LineLength {
		b.WriteString(encoded[:base64LineLength])
		b.WriteByte('\n')
		encoded = encoded[base64LineLength:]
	}
	if encoded != "" {
		b.WriteString(encoded)
		b.WriteByte('\n')
	}
	b.WriteString(delimiter)
	b.WriteByte('\n')
}

// Exit status of a request whose payload failed its byte count.
const statusTruncated = 124

var errFraming = errors.New("malformed response")

// readResponse reads one framed response. Lines before the begin
// marker are stray output and are skipped; blank lines are ignored.
func readResponse(reader *bufio.Reader, nonce string) (*CommandOutput, error) {
	begin := nonce + " begin "
	stderrMarker := nonce + " stderr"
	endMarker := nonce + " end"

	const (
		waiting = iota
		inStdout
		inStderr
	)
	state := waiting
	status := 0
	var stdout, stderr strings.Builder
	for {
		raw, err := reader.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
		line := string(trimEOL(raw))
		switch state {
		case waiting:
			if rest, ok := strings.CutPrefix(line, begin); ok {
				status, err = strconv.Atoi(rest)
				if err != nil {
					return nil, fmt.Errorf("%w: status %q", errFraming, rest)
				}
				state = inStdout
			}
		case inStdout:
			if line == stderrMarker {
				state = inStderr
			} else {
				stdout.WriteString(line)
			}
		case inStderr:
			if line != endMarker {
				stderr.WriteString(line)
				continue
			}
			output := &CommandOutput{ExitCode: status}
			if output.Stdout, err = base64.StdEncoding.DecodeString(stdout.String()); err != nil {
				return nil, fmt.Errorf("%w: stdout: %v", errFraming, err)
			}
			if output.Stderr, err = base64.StdEncoding.DecodeString(stderr.String()); err != nil {
				return nil, fmt.Errorf("%w: stderr: %v", errFraming, err)
			}
			return output, nil
		}
	}
}

// Exit statuses the file scripts use to report filesystem conditions.
const (
	statusNotFound         = 44
	statusNotAFile         = 45
	statusPermissionDenied = 46
	statusWriteFailed      = 47
	statusNotADirectory    = 48
)

func statusKind(status int) IOErrorKind {
	switch status {
	case statusNotFound:
		return NotFound
	case statusNotAFile:
		return NotAFile
	case statusPermissionDenied:
		return PermissionDenied
	case statusNotADirectory:
		return NotADirectory
	default:
		return Other
	}
}

// fileScript substitutes the quoted path for @PATH@.
func fileScript(template, path string) string {
	return strings.ReplaceAll(template, "@PATH@", shellescape.Quote(path))
}

const readScript = `p=@PATH@
[ -e "$p" ] || exit 44
[ -f "$p" ] || exit 45
[ -r "$p" ] || exit 46
exec cat "$p"
`

// writeScript stages stdin next to the target (after resolving
// symbolic links), copies the target's owner and mode, and renames
// over it. When the directory is not writable, or the staged file
// cannot take the target's owner, it overwrites the target in place.
const writeScript = `p=@PATH@
[ -d "$p" ] && exit 45
t=$(readlink -f "$p" 2>/dev/null) || t=
[ -n "$t" ] || t=$p
d=$(dirname "$t")
[ -d "$d" ] || exit 44
if [ -e "$t" ] && [ ! -w "$t" ]; then exit 46; fi
if s=$(mktemp "$d/.hopedit.XXXXXX" 2>/dev/null); then
  o=
  if [ -e "$t" ]; then
    m=$(stat -L -c %a "$t" 2>/dev/null || stat -L -f %Lp "$t" 2>/dev/null)
    o=$(stat -L -c %u:%g "$t" 2>/dev/null || stat -L -f %u:%g "$t" 2>/dev/null)
  else
    m=$(printf '%o' $(( 0666 & ~$(umask) )))
  fi
  if [ -z "$o" ] || [ "$(stat -c %u:%g "$s" 2>/dev/null || stat -f %u:%g "$s" 2>/dev/null)" = "$o" ] || chown "$o" "$s" 2>/dev/null; then
    if cat >"$s" && { [ -z "$m" ] || chmod "$m" "$s"; } && mv -f "$s" "$t"; then
      exit 0
    fi
    rm -f "$s"
    exit 47
  fi
  rm -f "$s"
fi
if [ -e "$t" ]; then
  cat >"$t" || exit 47
  exit 0
fi
[ -w "$d" ] && exit 47
exit 46
`

// listScript prints "d\t-\tNAME\0" or "f\tSIZE\tNAME\0" per entry.
const listScript = `p=@PATH@
[ -e "$p" ] || exit 44
[ -d "$p" ] || exit 48
[ -r "$p" ] && [ -x "$p" ] || exit 46
cd "$p" || exit 46
for f in * .[!.]* ..?*; do
  [ -e "$f" ] || [ -L "$f" ] || continue
  if [ -d "$f" ]; then
    printf 'd\t-\t%s\0' "$f"
  elif [ -f "$f" ] && n=$(wc -c <"$f" 2>/dev/null); then
    printf 'f\t%s\t%s\0' $n "$f"
  else
    printf 'f\t-\t%s\0' "$f"
  fi
done
`

// statScript prints "KIND SIZE MODE MTIME" with KIND d or f, MODE in
// octal and MTIME in Unix seconds.
const statScript = `p=@PATH@
[ -e "$p" ] || exit 44
if [ -d "$p" ]; then k=d; else k=f; fi
o=$(stat -L -c '%s %a %Y' "$p" 2>/dev/null || stat -L -f '%z %Lp %m' "$p" 2>/dev/null) || exit 46
printf '%s %s\n' "$k" "$o"
`
