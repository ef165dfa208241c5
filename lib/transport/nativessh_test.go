// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/bureau-foundation/hopedit/lib/address"
	"github.com/bureau-foundation/hopedit/lib/testutil"
)

// sshServer is an in-process ssh server that runs every exec request
// with /bin/sh on this machine, the way sshd hands a command to the
// login shell.
type sshServer struct {
	listener net.Listener
	hostKey  ssh.Signer
	config   *ssh.ServerConfig
}

func newSigner(t *testing.T) (ssh.Signer, ed25519.PrivateKey) {
	t.Helper()
	_, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(private)
	if err != nil {
		t.Fatal(err)
	}
	return signer, private
}

// startSSHServer serves until the test ends, accepting only the
// authorized key.
func startSSHServer(t *testing.T, authorized ssh.PublicKey) *sshServer {
	t.Helper()
	hostKey, _ := newSigner(t)
	config := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if bytes.Equal(key.Marshal(), authorized.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("key not authorized")
		},
	}
	config.AddHostKey(hostKey)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { listener.Close() })
	server := &sshServer{listener: listener, hostKey: hostKey, config: config}
	go server.serve()
	return server
}

func (s *sshServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *sshServer) handle(conn net.Conn) {
	defer conn.Close()
	serverConn, channels, requests, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		return
	}
	defer serverConn.Close()
	go ssh.DiscardRequests(requests)
	for newChannel := range channels {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "only sessions")
			continue
		}
		channel, channelRequests, err := newChannel.Accept()
		if err != nil {
			return
		}
		go runSession(channel, channelRequests)
	}
}

func runSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()
	for request := range requests {
		if request.Type != "exec" {
			request.Reply(false, nil)
			continue
		}
		var payload struct{ Command string }
		if err := ssh.Unmarshal(request.Payload, &payload); err != nil {
			request.Reply(false, nil)
			continue
		}
		request.Reply(true, nil)

		cmd := exec.Command("/bin/sh", "-c", payload.Command)
		cmd.Stdin = channel
		cmd.Stdout = channel
		cmd.Stderr = channel.Stderr()
		cmd.WaitDelay = time.Second
		status := uint32(0)
		if err := cmd.Run(); err != nil {
			status = 255
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				status = uint32(exitErr.ExitCode())
			}
		}
		channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
		return
	}
}

func (s *sshServer) hop(user string) address.Hop {
	port := s.listener.Addr().(*net.TCPAddr).Port
	return address.SSH(user, "127.0.0.1", uint16(port))
}

// writeKnownHosts records key as the host key of the server's address.
func (s *sshServer) writeKnownHosts(t *testing.T, key ssh.PublicKey) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize(s.listener.Addr().String())}, key)
	if err := os.WriteFile(path, []byte(line+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeIdentity(t *testing.T, private ed25519.PrivateKey) string {
	t.Helper()
	block, err := ssh.MarshalPrivateKey(private, "")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// nativeOptions returns Options that reach server with the identity
// in private and trust knownHostsKey for it.
func nativeOptions(t *testing.T, server *sshServer, private ed25519.PrivateKey, knownHostsKey ssh.PublicKey) Options {
	t.Helper()
	t.Setenv("SSH_AUTH_SOCK", "")
	return Options{
		NativeSSH:       true,
		KnownHosts:      server.writeKnownHosts(t, knownHostsKey),
		IdentityFiles:   []string{writeIdentity(t, private)},
		ConnectTimeout:  10 * time.Second,
		CommandTimeout:  10 * time.Second,
		TeardownTimeout: 2 * time.Second,
	}
}

func TestNativeSSHFileRoundTrip(t *testing.T) {
	testutil.RequireShell(t)
	client, private := newSigner(t)
	server := startSSHServer(t, client.PublicKey())
	options := nativeOptions(t, server, private, server.hostKey.PublicKey())
	options.SudoProgram = testutil.FakeHopProgram(t, "sudo", "")

	path := filepath.Join(t.TempDir(), "motd")
	for _, hops := range [][]address.Hop{
		{server.hop("tester")},
		{server.hop("tester"), address.Sudo()},
	} {
		chain := connectFake(t, options, hops...)
		payload := []byte("line one\n\x00binary\xff tail")
		if err := chain.WriteFile(t.Context(), path, payload); err != nil {
			t.Fatalf("WriteFile over %v: %v", hops, err)
		}
		data, err := chain.ReadFile(t.Context(), path)
		if err != nil {
			t.Fatalf("ReadFile over %v: %v", hops, err)
		}
		if !bytes.Equal(data, payload) {
			t.Errorf("ReadFile over %v = %q, want %q", hops, data, payload)
		}
		if err := chain.Close(); err != nil {
			t.Errorf("Close over %v: %v", hops, err)
		}
	}
}

func TestNativeSSHConnectFailures(t *testing.T) {
	testutil.RequireShell(t)
	client, private := newSigner(t)
	stranger, strangerPrivate := newSigner(t)
	server := startSSHServer(t, client.PublicKey())

	tests := []struct {
		name    string
		options Options
		want    error
	}{
		{
			name:    "key not authorized",
			options: nativeOptions(t, server, strangerPrivate, server.hostKey.PublicKey()),
			want:    ErrAuthenticationFailed,
		},
		{
			name:    "unknown host key",
			options: nativeOptions(t, server, private, stranger.PublicKey()),
			want:    ErrHopRefused,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Connect(t.Context(), []address.Hop{server.hop("tester")}, test.options)
			var connectErr *ConnectError
			if !errors.As(err, &connectErr) {
				t.Fatalf("Connect error = %v, want *ConnectError", err)
			}
			if !errors.Is(err, test.want) {
				t.Errorf("Connect error = %v (kind %s), want %v", err, connectErr.Kind, test.want)
			}
		})
	}
}

// silentListener accepts connections and never says anything.
func silentListener(t *testing.T) address.Hop {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { listener.Close() })
	go func() {
		var held []net.Conn
		defer func() {
			for _, conn := range held {
				conn.Close()
			}
		}()
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			held = append(held, conn)
		}
	}()
	return address.SSH("tester", "127.0.0.1", uint16(listener.Addr().(*net.TCPAddr).Port))
}

func TestNativeSSHStalledHandshake(t *testing.T) {
	_, private := newSigner(t)
	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	if err := os.WriteFile(knownHosts, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SSH_AUTH_SOCK", "")

	tests := []struct {
		name           string
		connectTimeout time.Duration
		ctxTimeout     time.Duration
	}{
		{"connect timeout", 300 * time.Millisecond, time.Minute},
		{"context deadline", time.Minute, 300 * time.Millisecond},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			hop := silentListener(t)
			options := Options{
				NativeSSH:       true,
				KnownHosts:      knownHosts,
				IdentityFiles:   []string{writeIdentity(t, private)},
				ConnectTimeout:  test.connectTimeout,
				TeardownTimeout: time.Second,
			}
			ctx, cancel := context.WithTimeout(t.Context(), test.ctxTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				_, err := Connect(ctx, []address.Hop{hop}, options)
				done <- err
			}()
			err := testutil.RequireReceive(t, done, 5*time.Second, "Connect blocked on a silent server")
			if !errors.Is(err, ErrUnreachable) {
				t.Errorf("Connect error = %v, want ErrUnreachable", err)
			}
		})
	}
}
