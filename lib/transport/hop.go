// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alessio/shellescape"

	"github.com/bureau-foundation/hopedit/lib/address"
)

// errAskPassword is the cause attached to hops that carry askpw.
var errAskPassword = errors.New("hop needs an interactive password (askpw), which hopedit does not prompt for; configure key or passwordless access")

// startupScript is what a hop's shell runs first: it announces itself
// on stdout and then becomes the interactive shell that reads requests.
// The announcement comes from the new shell, not from anything read
// off the stream, so a parent that reads ahead cannot swallow it.
func startupScript(nonce, shell string) string {
	return fmt.Sprintf("printf '\\n%%s\\n' '%s ready'; exec %s", nonce, shellescape.Quote(shell))
}

// hopArgv returns the command that starts a shell at hop and runs
// startup in it.
func hopArgv(hop address.Hop, options Options, startup string) ([]string, error) {
	switch hop.Kind {
	case address.KindSudo:
		argv := []string{options.SudoProgram, "-n"}
		argv = append(argv, options.SudoArgs...)
		return append(argv, "--", options.Shell, "-c", startup), nil

	case address.KindSSH:
		argv := []string{options.SSHProgram, "-T", "-o", "BatchMode=yes"}
		if hop.Port != 0 {
			argv = append(argv, "-p", strconv.Itoa(int(hop.Port)))
		}
		if hop.User != "" {
			argv = append(argv, "-l", hop.User)
		}
		argv = append(argv, options.SSHArgs...)
		// The remote side joins its arguments and hands them to the
		// login shell, so the command travels as one quoted string.
		return append(argv, "--", hop.Host, remoteCommand(options.Shell, startup)), nil

	case address.KindContainer:
		program := options.DockerProgram
		if hop.Engine == address.EnginePodman {
			program = options.PodmanProgram
		}
		return []string{program, "exec", "-i", hop.Name, options.Shell, "-c", startup}, nil

	default:
		return nil, fmt.Errorf("%s hops start no shell", hop.Kind)
	}
}

func remoteCommand(shell, startup string) string {
	return shellescape.QuoteCommand([]string{shell, "-c", startup})
}

// Diagnostics that identify why a hop program gave up. Matched case
// insensitively against the hop's stderr.
var (
	authenticationPatterns = []string{
		"permission denied",
		"authentication failed",
		"a password is required",
		"a terminal is required",
		"incorrect password",
		"is not in the sudoers file",
		"not allowed to execute",
		"too many authentication failures",
	}
	unreachablePatterns = []string{
		"connection refused",
		"could not resolve",
		"name or service not known",
		"no route to host",
		"network is unreachable",
		"connection timed out",
		"operation timed out",
		"connection closed by",
		"no such container",
		"is not running",
		"cannot connect to the docker daemon",
	}
)

// classify decides why a hop failed from its diagnostics and exit
// status.
func classify(stderr string, status int) ConnectErrorKind {
	lower := strings.ToLower(stderr)
	switch {
	case containsAny(lower, authenticationPatterns):
		return AuthenticationFailed
	case containsAny(lower, unreachablePatterns):
		return Unreachable
	case status == 255:
		// ssh reserves 255 for its own failures, nearly all of which
		// are about reaching the host.
		return Unreachable
	default:
		return HopRefused
	}
}

func containsAny(text string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(text, pattern) {
			return true
		}
	}
	return false
}
