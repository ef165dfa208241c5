// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/hopedit/cmd/hopedit/cli"
	"github.com/bureau-foundation/hopedit/lib/address"
)

type parseParams struct {
	cli.JSONOutput
}

// hopView is the JSON shape of one hop.
type hopView struct {
	Kind        string `json:"kind"`
	Label       string `json:"label"`
	User        string `json:"user,omitempty"`
	Host        string `json:"host,omitempty"`
	Port        uint16 `json:"port,omitempty"`
	Engine      string `json:"engine,omitempty"`
	Name        string `json:"name,omitempty"`
	AskPassword bool   `json:"askpw,omitempty"`
}

type parseResult struct {
	Address string    `json:"address"`
	Hops    []hopView `json:"hops"`
	Path    string    `json:"path"`
}

func parseCommand(env *Environment) *cli.Command {
	var params parseParams
	return &cli.Command{
		Name:    "parse",
		Summary: "Show the hops and path an address names",
		Description: `Parse an address and print its hops in order, followed by the path
at the last hop. Nothing is connected.

Hop forms:
  local:                  this machine (the default for a bare path)
  sudo:[askpw]            root via sudo on the current host
  ssh:[user@]host[:port][:askpw]
  ssh:[user@][ipv6][:port]
  docker:NAME, podman:NAME`,
		Usage: "hopedit parse <address> [--json]",
		Examples: []cli.Example{
			{
				Description: "Two ssh hops and a file",
				Command:     "hopedit parse 'ssh:user1@host1|ssh:user2@host2:file'",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("parse", &params)
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			t, err := target(args, "hopedit parse <address>")
			if err != nil {
				return err
			}
			result := parseResult{Address: t.String(), Path: t.Path}
			for _, hop := range t.Hops {
				result.Hops = append(result.Hops, viewHop(hop))
			}
			if done, err := params.EmitJSON(env.Stdout, result); done {
				return err
			}

			tw := tabwriter.NewWriter(env.Stdout, 2, 0, 2, ' ', 0)
			for i, hop := range result.Hops {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, hop.Kind, hop.Label)
			}
			path := t.Path
			if path == "" {
				path = "(working directory)"
			}
			fmt.Fprintf(tw, "path\t\t%s\n", path)
			return tw.Flush()
		},
	}
}

func viewHop(hop address.Hop) hopView {
	return hopView{
		Kind:        hop.Kind.String(),
		Label:       hop.Label(),
		User:        hop.User,
		Host:        hop.Host,
		Port:        hop.Port,
		Engine:      hop.Engine,
		Name:        hop.Name,
		AskPassword: hop.AskPassword,
	}
}
