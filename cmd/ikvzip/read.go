package main

import (
	"fmt"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/meigma/ikv"
)

func (a *app) open(path string) (*ikv.Archive, error) {
	return ikv.Open(path, ikv.OpenWithIndex(a.v.GetBool("use-index")), ikv.OpenWithLogger(a.logger))
}

func (a *app) lsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls <archive>",
		Short: "List the file entries of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			arc, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer arc.Close()

			long := a.v.GetBool("long")
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
			for e := range arc.Entries() {
				if !long {
					fmt.Fprintln(a.out, e.Name)
					continue
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%08x\t %s\n", e.Method, e.Size, e.CompressedSize, e.CRC, e.Name)
			}
			if long {
				return tw.Flush()
			}
			return nil
		},
	}
	cmd.Flags().BoolP("long", "l", false, "show method, sizes and CRC")
	cmd.Flags().Bool("use-index", true, "resolve entries through the embedded index")
	return cmd
}

func (a *app) catCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat <archive> <path>",
		Short: "Write the contents of an entry to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			arc, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer arc.Close()

			e, ok := arc.Lookup(args[1])
			if !ok {
				return fmt.Errorf("%s: no such entry in %s", args[1], args[0])
			}
			data, err := arc.Bytes(e, nil)
			if err != nil {
				return err
			}
			if err := ikv.CheckCRC(e, data); err != nil {
				return err
			}
			_, err = a.out.Write(data)
			return err
		},
	}
	cmd.Flags().Bool("use-index", true, "resolve entries through the embedded index")
	return cmd
}

func (a *app) verifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <archive>",
		Short: "Decode every entry and check its CRC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arc, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer arc.Close()

			if err := arc.Verify(cmd.Context(), a.v.GetInt("workers")); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "ok: %d entries\n", arc.Len())
			return nil
		},
	}
	cmd.Flags().Int("workers", runtime.NumCPU(), "number of concurrent decoders")
	cmd.Flags().Bool("use-index", true, "resolve entries through the embedded index")
	return cmd
}
