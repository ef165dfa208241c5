// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/bureau-foundation/hopedit/lib/address"
)

// dialNative opens the first ssh hop in-process. It authenticates with
// the keys held by the agent at SSH_AUTH_SOCK and then with the
// unencrypted identity files, and verifies the host key against the
// known_hosts file. The returned kind classifies a failure.
func dialNative(ctx context.Context, hop address.Hop, options Options, startup string) (*rootConn, ConnectErrorKind, error) {
	hostKeys, err := knownhosts.New(options.KnownHosts)
	if err != nil {
		return nil, HopRefused, fmt.Errorf("loading known hosts: %w", err)
	}

	login := hop.User
	if login == "" {
		current, err := user.Current()
		if err != nil {
			return nil, HopRefused, fmt.Errorf("determining login name: %w", err)
		}
		login = current.Username
	}

	auth, closeAgent := nativeAuthMethods(options)
	config := &ssh.ClientConfig{
		User:            login,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         options.ConnectTimeout,
	}

	port := 22
	if hop.Port != 0 {
		port = int(hop.Port)
	}
	destination := net.JoinHostPort(hop.Host, strconv.Itoa(port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", destination)
	if err != nil {
		closeAgent()
		return nil, Unreachable, err
	}

	// ClientConfig.Timeout only covers ssh.Dial. Until the remote shell
	// has started, the connection is bounded by the connect timeout
	// (socket deadlines run on the wall clock) and closed when ctx ends.
	conn.SetDeadline(time.Now().Add(options.ConnectTimeout))
	stopWatching := context.AfterFunc(ctx, func() { conn.Close() })
	abandoned := func(err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ssh handshake with %s: %w", destination, ctxErr)
		}
		return err
	}

	clientConn, channels, requests, err := ssh.NewClientConn(conn, destination, config)
	closeAgent()
	if err != nil {
		stopWatching()
		conn.Close()
		if ctx.Err() != nil || isTimeout(err) {
			return nil, Unreachable, abandoned(err)
		}
		return nil, classifyHandshake(err), err
	}
	client := ssh.NewClient(clientConn, channels, requests)

	session, stdin, stdout, stderr, err := startRemoteShell(client, remoteCommand(options.Shell, startup))
	if !stopWatching() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		client.Close()
		if ctx.Err() != nil || isTimeout(err) {
			return nil, Unreachable, abandoned(err)
		}
		return nil, HopRefused, err
	}
	conn.SetDeadline(time.Time{})

	return &rootConn{
		stdin:  stdin,
		stdout: io.NopCloser(stdout),
		stderr: io.NopCloser(stderr),
		kill:   func() { client.Close() },
		wait: func() int {
			err := session.Wait()
			client.Close()
			if err == nil {
				return 0
			}
			var exitError *ssh.ExitError
			if errors.As(err, &exitError) {
				return exitError.ExitStatus()
			}
			return -1
		},
	}, 0, nil
}

// startRemoteShell opens a session on client with pipes on all three
// streams and starts command in it.
func startRemoteShell(client *ssh.Client, command string) (*ssh.Session, io.WriteCloser, io.Reader, io.Reader, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("opening session: %w", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := session.Start(command); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("starting remote shell: %w", err)
	}
	return session, stdin, stdout, stderr, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// nativeAuthMethods collects the agent's signers and the identity
// files' keys. Passphrase-protected keys are skipped: prompting is not
// something hopedit does.
func nativeAuthMethods(options Options) ([]ssh.AuthMethod, func()) {
	var methods []ssh.AuthMethod
	closeAgent := func() {}
	if socket := os.Getenv("SSH_AUTH_SOCK"); socket != "" {
		if conn, err := net.Dial("unix", socket); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			closeAgent = func() { conn.Close() }
		} else {
			options.Logger.Debug("ssh agent unavailable", "socket", socket, "error", err)
		}
	}

	var signers []ssh.Signer
	for _, path := range options.IdentityFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			options.Logger.Debug("skipping identity file", "path", path, "error", err)
			continue
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			var missing *ssh.PassphraseMissingError
			if errors.As(err, &missing) {
				options.Logger.Debug("skipping passphrase-protected identity file", "path", path)
			} else {
				options.Logger.Warn("unreadable identity file", "path", path, "error", err)
			}
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}
	return methods, closeAgent
}

func classifyHandshake(err error) ConnectErrorKind {
	var keyErr *knownhosts.KeyError
	switch {
	case errors.As(err, &keyErr), strings.Contains(err.Error(), "knownhosts: key"):
		return HopRefused
	case strings.Contains(err.Error(), "unable to authenticate"):
		return AuthenticationFailed
	default:
		return Unreachable
	}
}
