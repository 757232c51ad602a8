package main

import (
	_ "crypto/sha256" // registers digest.Canonical
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
)

func (a *app) inspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Summarize an archive and its index",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := args[0]
			arc, err := a.open(path)
			if err != nil {
				return err
			}
			defer arc.Close()

			dgst, err := fileDigest(path)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "path:\t%s\n", path)
			fmt.Fprintf(tw, "size:\t%d\n", arc.Size())
			fmt.Fprintf(tw, "digest:\t%s\n", dgst)
			fmt.Fprintf(tw, "records:\t%d\n", arc.Records())
			fmt.Fprintf(tw, "files:\t%d\n", arc.Len())
			fmt.Fprintf(tw, "directories:\t%d\n", len(arc.Dirs()))
			fmt.Fprintf(tw, "zip64:\t%t\n", arc.Zip64())
			if stats, ok := arc.Index(); ok {
				fmt.Fprintf(tw, "index entries:\t%d\n", stats.Entries)
				fmt.Fprintf(tw, "class packages:\t%d\n", stats.ClassPackages)
				fmt.Fprintf(tw, "resource packages:\t%d\n", stats.ResourcePackages)
				fmt.Fprintf(tw, "index end:\t%d\n", stats.End)
			} else {
				fmt.Fprintf(tw, "index:\tnone\n")
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Bool("use-index", true, "resolve entries through the embedded index")
	return cmd
}

// fileDigest returns the sha256 digest of the file at path.
func fileDigest(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	dgst, err := digest.Canonical.FromReader(f)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	if err := dgst.Validate(); err != nil {
		return "", err
	}
	return dgst, nil
}
