// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/bureau-foundation/hopedit/lib/address"
)

func TestConnectErrorMessage(t *testing.T) {
	err := &ConnectError{
		Hop:     1,
		HopInfo: address.SSH("bob", "db", 0),
		Total:   3,
		Kind:    AuthenticationFailed,
		Stderr:  "Warning: something\nbob@db: Permission denied (publickey).\n",
	}
	want := "hop 2 of 3 (ssh bob@db): authentication failed: bob@db: Permission denied (publickey)."
	if err.Error() != want {
		t.Errorf("Error() = %q\nwant %q", err.Error(), want)
	}
	if !errors.Is(err, ErrAuthenticationFailed) || errors.Is(err, ErrUnreachable) {
		t.Error("ConnectError matches the wrong sentinel")
	}

	refused := &ConnectError{Hop: 0, HopInfo: address.Sudo(), Total: 1, Kind: HopRefused, Err: errAskPassword}
	if !errors.Is(refused, ErrHopRefused) || !errors.Is(refused, errAskPassword) {
		t.Error("askpw refusal does not match both its kind and its cause")
	}
}

func TestIOErrorMatching(t *testing.T) {
	notFound := &IOError{Op: "read", Path: "/etc/nope", Kind: NotFound}
	if !errors.Is(notFound, fs.ErrNotExist) || errors.Is(notFound, fs.ErrPermission) {
		t.Error("NotFound does not map onto fs.ErrNotExist alone")
	}
	if notFound.Error() != "read /etc/nope: not found" {
		t.Errorf("Error() = %q", notFound.Error())
	}

	lost := &IOError{Op: "write", Path: "/x", Kind: TransportLost, Err: errors.New("ssh exited")}
	if !errors.Is(lost, ErrTransportLost) || KindOf(lost) != TransportLost {
		t.Error("TransportLost IOError does not match ErrTransportLost")
	}

	remote := &IOError{Op: "read", Path: "/x", Kind: Other, Err: &remoteError{status: 1, stderr: "cat: /x: I/O error\n"}}
	if remote.Error() != "read /x: failed: exit status 1: cat: /x: I/O error" {
		t.Errorf("Error() = %q", remote.Error())
	}

	if KindOf(errors.New("plain")) != Other {
		t.Error("KindOf(plain error) != Other")
	}
}
