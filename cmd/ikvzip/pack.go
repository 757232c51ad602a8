package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/ikv"
)

func (a *app) packCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack <dir> <archive>",
		Short: "Pack the regular files under a directory into an archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, target := args[0], args[1]
			opts, err := a.createOptions()
			if err != nil {
				return err
			}
			keep, err := ikv.ExcludePatterns(a.v.GetStringSlice("exclude")...)
			if err != nil {
				return err
			}
			if err := ikv.PackDir(cmd.Context(), target, dir, keep, opts...); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "packed %s into %s\n", dir, target)
			return nil
		},
	}
	f := cmd.Flags()
	f.Int("level", ikv.DefaultCompression, "deflate level, 0 stores everything")
	f.Bool("crc", true, "record CRC-32 checksums")
	f.String("dirs", ikv.DirNone.String(), "directory entries to write: none, resource or all")
	f.Bool("mapped", false, "write through a memory-mapped output")
	f.StringSlice("exclude", nil, "gitignore-style patterns to leave out")
	f.Bool("overwrite", true, "replace an existing archive")
	f.Bool("atomic", false, "write to a temporary file and rename it into place")
	f.Bool("index", true, "embed the lookup index")
	f.Bool("skip-precompressed", true, "store files with already-compressed extensions")
	return cmd
}

func (a *app) createOptions() ([]ikv.CreateOption, error) {
	mode, ok := ikv.ParseDirMode(a.v.GetString("dirs"))
	if !ok {
		return nil, fmt.Errorf("unknown directory mode %q", a.v.GetString("dirs"))
	}
	opts := []ikv.CreateOption{
		ikv.CreateWithCompression(a.v.GetInt("level")),
		ikv.CreateWithCRC(a.v.GetBool("crc")),
		ikv.CreateWithDirMode(mode),
		ikv.CreateWithMapped(a.v.GetBool("mapped")),
		ikv.CreateWithOverwrite(a.v.GetBool("overwrite")),
		ikv.CreateWithAtomicReplace(a.v.GetBool("atomic")),
		ikv.CreateWithIndex(a.v.GetBool("index")),
		ikv.CreateWithLogger(a.logger),
	}
	if a.v.GetBool("skip-precompressed") {
		opts = append(opts, ikv.CreateWithSkipCompression(ikv.DefaultSkipCompression()))
	}
	return opts, nil
}
