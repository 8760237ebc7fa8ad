package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/buffer"
	"github.com/goliatone/go-settings/config"
	"github.com/goliatone/go-settings/pkg/state"
)

func addPartFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "part", "settings", "Section to operate on (settings, styles, instruments, qualities, scales, library)")
}

func newGetCommand(ctx *commandContext) *cobra.Command {
	var part string
	var local bool
	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print the resolved value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePart(part)
			if err != nil {
				return err
			}
			stack, _, err := ctx.resolve(cmd.Context())
			if err != nil {
				return err
			}
			value, err := stack.User.Member(p).Get(args[0], !local)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
	addPartFlag(cmd, &part)
	cmd.Flags().BoolVar(&local, "local", false, "Only look at the User level")
	return cmd
}

func newSetCommand(ctx *commandContext) *cobra.Command {
	var part string
	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a key on the User level",
		Long:  "Set a key on the User level. A blank value clears the override instead.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePart(part)
			if err != nil {
				return err
			}
			meta, err := ctx.edit(cmd.Context(), p, func(b *buffer.Buffer) error {
				return b.SetClearable(args[0], args[1])
			})
			if err != nil {
				return err
			}
			return printSaved(cmd.OutOrStdout(), meta)
		},
	}
	addPartFlag(cmd, &part)
	return cmd
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	var part string
	cmd := &cobra.Command{
		Use:   "clear KEY...",
		Short: "Remove User overrides so keys inherit again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePart(part)
			if err != nil {
				return err
			}
			meta, err := ctx.edit(cmd.Context(), p, func(b *buffer.Buffer) error {
				for _, key := range args {
					if err := b.Clear(key); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			return printSaved(cmd.OutOrStdout(), meta)
		},
	}
	addPartFlag(cmd, &part)
	return cmd
}

func newClearPrefixCommand(ctx *commandContext) *cobra.Command {
	var part string
	cmd := &cobra.Command{
		Use:   "clear-prefix PREFIX",
		Short: "Remove every User override starting with PREFIX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePart(part)
			if err != nil {
				return err
			}
			meta, err := ctx.edit(cmd.Context(), p, func(b *buffer.Buffer) error {
				return b.ClearPrefix(args[0])
			})
			if err != nil {
				return err
			}
			return printSaved(cmd.OutOrStdout(), meta)
		},
	}
	addPartFlag(cmd, &part)
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var part string
	var local bool
	cmd := &cobra.Command{
		Use:   "list [PREFIX]",
		Short: "List keys with the level each value resolves from",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePart(part)
			if err != nil {
				return err
			}
			stack, _, err := ctx.resolve(cmd.Context())
			if err != nil {
				return err
			}
			prefix := ""
			if len(args) == 1 {
				prefix = settings.NormalizeKey(args[0])
			}
			var rows [][]string
			for _, desc := range stack.User.Member(p).Describe(!local) {
				if !strings.HasPrefix(desc.Key, prefix) {
					continue
				}
				rows = append(rows, []string{desc.Key, desc.Value, desc.Level, yesNo(desc.Local), strconv.Itoa(desc.Shadowed)})
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no keys")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Key", "Value", "Level", "Local", "Shadowed"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	addPartFlag(cmd, &part)
	cmd.Flags().BoolVar(&local, "local", false, "Only list User overrides")
	return cmd
}

func newTraceCommand(ctx *commandContext) *cobra.Command {
	var part string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "trace KEY",
		Short: "Show every level visited when resolving KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePart(part)
			if err != nil {
				return err
			}
			stack, _, err := ctx.resolve(cmd.Context())
			if err != nil {
				return err
			}
			trace := stack.User.Member(p).Trace(args[0])
			if asJSON {
				payload, err := trace.ToJSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(payload))
				return nil
			}
			effective, _ := trace.Effective()
			rows := make([][]string, 0, len(trace.Levels))
			for _, level := range trace.Levels {
				marker := ""
				if level.Found && level.Depth == effective.Depth {
					marker = "*"
				}
				rows = append(rows, []string{marker, level.Level, strconv.Itoa(level.Depth), yesNo(level.ReadOnly), yesNo(level.Found), level.Value})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"", "Level", "Depth", "Read-only", "Found", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	addPartFlag(cmd, &part)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the trace as JSON")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var levelName, partsValue, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the local keys of one level as an XML document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := config.ParseLevel(levelName)
			if level == config.LevelUnknown {
				return fmt.Errorf("unknown level %q", levelName)
			}
			parts, err := config.ParseParts(partsValue)
			if err != nil {
				return err
			}
			stack, _, err := ctx.resolve(cmd.Context())
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return stack.File(level).Save(cmd.OutOrStdout(), parts)
			}
			file, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := stack.File(level).Save(file, parts); err != nil {
				_ = file.Close()
				return err
			}
			return file.Close()
		},
	}
	cmd.Flags().StringVar(&levelName, "level", "user", "Level to export (default, app, user)")
	cmd.Flags().StringVar(&partsValue, "parts", "all", "Sections to export, e.g. settings,styles")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var partsValue string
	var replace bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Load an XML document into the User level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parts, err := config.ParseParts(partsValue)
			if err != nil {
				return err
			}
			meta, err := ctx.mutate(cmd.Context(), func(user *config.File) error {
				file, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				doc, err := config.Decode(file)
				if err != nil {
					return fmt.Errorf("decode %s: %w", args[0], err)
				}
				if replace {
					if err := user.ClearParts(parts); err != nil {
						return err
					}
				}
				return user.Apply(doc, parts)
			})
			if err != nil {
				return err
			}
			return printSaved(cmd.OutOrStdout(), meta)
		},
	}
	cmd.Flags().StringVar(&partsValue, "parts", "all", "Sections to import, e.g. settings,styles")
	cmd.Flags().BoolVar(&replace, "replace", false, "Drop existing overrides in the imported sections first")
	return cmd
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload the User level whenever its file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base := cmd.Context()
			if base == nil {
				base = context.Background()
			}
			runCtx, stop := signal.NotifyContext(base, os.Interrupt)
			defer stop()

			stack, _, err := ctx.resolve(runCtx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			path, _ := ctx.store.Path(ctx.userRef())
			fmt.Fprintf(out, "watching %s\n", path)
			err = ctx.store.Watch(runCtx, ctx.userRef(), func(doc config.Document, meta state.Meta, ok bool) error {
				if err := state.Replace(stack.User, doc); err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "removed; User level is empty")
					return nil
				}
				fmt.Fprintf(out, "reloaded %d keys (snapshot %s)\n", doc.Len(), meta.SnapshotID)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	return cmd
}

func printSaved(w io.Writer, meta state.Meta) error {
	_, err := fmt.Fprintf(w, "saved snapshot %s\n", meta.SnapshotID)
	return err
}
