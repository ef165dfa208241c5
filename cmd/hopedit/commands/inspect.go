// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/hopedit/cmd/hopedit/cli"
	"github.com/bureau-foundation/hopedit/lib/codec"
	"github.com/bureau-foundation/hopedit/lib/content"
	"github.com/bureau-foundation/hopedit/lib/nbt"
)

type detectParams struct {
	cli.JSONOutput
}

type detectResult struct {
	Mode     string `json:"mode"`
	Language string `json:"language,omitempty"`
	Framing  string `json:"framing,omitempty"`
	Size     int    `json:"size"`
}

func detectCommand(env *Environment) *cli.Command {
	var params detectParams
	return &cli.Command{
		Name:    "detect",
		Summary: "Print the mode a file would open in",
		Description: `Read a file and print the mode the editor would choose for it: text,
hex, or tagtree. Text files also report the syntax the viewer would
highlight them as, and tag trees report their compression.`,
		Usage: "hopedit detect <address> [--json]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("detect", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			t, err := target(args, "hopedit detect <address>")
			if err != nil {
				return err
			}
			data, err := env.readTarget(ctx, t, logger)
			if err != nil {
				return err
			}

			kind := content.Detect(data, t.Path)
			result := detectResult{Mode: kind.String(), Size: len(data)}
			switch kind {
			case content.Text:
				result.Language = content.DetectLanguage(t.Path, data)
			case content.TagTree:
				document, err := decodeTagTree(data)
				if err != nil {
					return err
				}
				result.Framing = document.Frame().Framing.String()
			}
			if done, err := params.EmitJSON(env.Stdout, result); done {
				return err
			}

			line := result.Mode
			switch {
			case result.Language != "":
				line += " (" + result.Language + ")"
			case result.Framing != "":
				line += " (" + result.Framing + ")"
			}
			_, err = fmt.Fprintln(env.Stdout, line)
			return err
		},
	}
}

type hexParams struct {
	Width int `flag:"width,w" desc:"bytes per row (default: editor.hex_width from the configuration)"`
}

func hexCommand(env *Environment) *cli.Command {
	var params hexParams
	return &cli.Command{
		Name:    "hex",
		Summary: "Print a hex dump of a file",
		Usage:   "hopedit hex <address> [--width N]",
		Examples: []cli.Example{
			{Command: "hopedit hex --width 8 'docker:cache|/data/dump.rdb'"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("hex", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			t, err := target(args, "hopedit hex <address>")
			if err != nil {
				return err
			}
			width := params.Width
			if width == 0 {
				width = env.Config.Editor.HexWidth
			}
			if width < 1 || width > 64 {
				return cli.Validation("--width must be between 1 and 64, got %d", width)
			}
			data, err := env.readTarget(ctx, t, logger)
			if err != nil {
				return err
			}
			document, err := content.HexCodec{}.Decode(data)
			if err != nil {
				return classify(err)
			}
			for _, row := range document.(*content.HexDocument).Render(width) {
				if _, err := fmt.Fprintln(env.Stdout, row); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

type nbtParams struct {
	Format string `flag:"format,f" desc:"output format: tree, json, cbor, or diag" default:"tree"`
}

func nbtCommand(env *Environment) *cli.Command {
	var params nbtParams
	return &cli.Command{
		Name:    "nbt",
		Summary: "Print a tag tree (NBT) file",
		Description: `Decode a tag tree file, compressed or not, and print it.

  tree   one tag per line, indented by depth
  json   every tag as {"name", "type", "value"}, types kept explicit
  cbor   the same structure, deterministically encoded as CBOR
  diag   that CBOR in RFC 8949 diagnostic notation`,
		Usage: "hopedit nbt <address> [--format tree|json|cbor|diag]",
		Examples: []cli.Example{
			{
				Description: "Dump a world's level data as JSON",
				Command:     "hopedit nbt --format json ssh:mc@games:/srv/world/level.dat",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("nbt", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			t, err := target(args, "hopedit nbt <address>")
			if err != nil {
				return err
			}
			switch params.Format {
			case "tree", "json", "cbor", "diag":
			default:
				return cli.Validation("unknown format %q (want tree, json, cbor, or diag)", params.Format)
			}
			data, err := env.readTarget(ctx, t, logger)
			if err != nil {
				return err
			}
			document, err := decodeTagTree(data)
			if err != nil {
				return err
			}

			switch params.Format {
			case "json":
				return cli.WriteJSON(env.Stdout, nbt.Export(document.Name(), document.Root()))
			case "cbor", "diag":
				encoded, err := codec.Marshal(nbt.Export(document.Name(), document.Root()))
				if err != nil {
					return cli.Internal("encoding CBOR: %w", err)
				}
				if params.Format == "cbor" {
					_, err = env.Stdout.Write(encoded)
					return err
				}
				diagnostic, err := codec.Diagnose(encoded)
				if err != nil {
					return cli.Internal("rendering CBOR diagnostics: %w", err)
				}
				_, err = fmt.Fprintln(env.Stdout, diagnostic)
				return err
			}
			return nbt.Format(env.Stdout, document.Name(), document.Root())
		},
	}
}

func decodeTagTree(data []byte) (*content.TagTreeDocument, error) {
	document, err := content.TagTreeCodec{Limit: content.DefaultDecompressionLimit}.Decode(data)
	if err != nil {
		return nil, classify(err)
	}
	return document.(*content.TagTreeDocument), nil
}
