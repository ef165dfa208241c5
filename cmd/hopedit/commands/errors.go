// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"

	"github.com/bureau-foundation/hopedit/cmd/hopedit/cli"
	"github.com/bureau-foundation/hopedit/lib/address"
	"github.com/bureau-foundation/hopedit/lib/buffer"
	"github.com/bureau-foundation/hopedit/lib/content"
	"github.com/bureau-foundation/hopedit/lib/transport"
)

// classify wraps err in a *cli.ToolError whose category and hint
// follow from the library error it carries. Errors that are already
// categorized, and context errors, pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var toolErr *cli.ToolError
	if errors.As(err, &toolErr) || errors.Is(err, context.Canceled) {
		return err
	}

	categorized := func(category cli.ErrorCategory, hint string) error {
		return &cli.ToolError{Category: category, Err: err, Hint: hint}
	}

	var connectErr *transport.ConnectError
	if errors.As(err, &connectErr) {
		switch connectErr.Kind {
		case transport.AuthenticationFailed:
			return categorized(cli.CategoryForbidden,
				"Check that your ssh-agent holds a key the host accepts, or that sudo is allowed without a password.")
		case transport.Unreachable:
			return categorized(cli.CategoryTransient, "")
		case transport.HopRefused:
			if connectErr.HopInfo.AskPassword {
				return categorized(cli.CategoryForbidden,
					"hopedit does not prompt for passwords. Remove the askpw option and configure key or NOPASSWD access.")
			}
			return categorized(cli.CategoryForbidden, "")
		}
	}

	switch {
	case errors.Is(err, address.ErrEmptyChain), errors.Is(err, address.ErrMalformedHop):
		return categorized(cli.CategoryValidation,
			"Addresses look like 'ssh:user@host:port|sudo:/path'. Run 'hopedit parse --help' for the grammar.")
	case errors.Is(err, content.ErrMalformed):
		return categorized(cli.CategoryValidation, "Pass --mode hex to see the raw bytes.")
	case errors.Is(err, buffer.ErrTooLarge):
		return categorized(cli.CategoryValidation, "Raise editor.max_file_size in the configuration file.")
	case errors.Is(err, context.DeadlineExceeded):
		return categorized(cli.CategoryTransient, "")
	}

	switch transport.KindOf(err) {
	case transport.NotFound:
		return categorized(cli.CategoryNotFound, "")
	case transport.PermissionDenied:
		return categorized(cli.CategoryForbidden, "Add a sudo hop to the address to act as root.")
	case transport.NotAFile, transport.NotADirectory:
		return categorized(cli.CategoryConflict, "")
	case transport.TransportLost:
		return categorized(cli.CategoryTransient, "")
	case transport.OutcomeUnknown:
		return categorized(cli.CategoryTransient, "The operation may or may not have taken effect; check the file before retrying.")
	}
	return categorized(cli.CategoryInternal, "")
}
