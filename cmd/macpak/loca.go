package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/CyberDeco/MacPak-sub002/loca"
)

func newLocaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loca",
		Short: "Inspect localized-string archives",
	}
	cmd.AddCommand(newLocaDumpCmd())
	cmd.AddCommand(newLocaSearchCmd())
	return cmd
}

func newLocaDumpCmd() *cobra.Command {
	var format string
	var out string

	cmd := &cobra.Command{
		Use:   "dump <file.loca>",
		Short: "Export every entry to CSV or TSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := openLoca(args[0])
			if err != nil {
				return err
			}

			f := loca.FormatCSV
			if format == "tsv" {
				f = loca.FormatTSV
			}

			w := os.Stdout
			if out != "" {
				file, err := os.Create(out)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}

			count, err := res.Export(w, f)
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(os.Stderr, "wrote %d entries to %s\n", count, out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv or tsv")
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (default stdout)")
	return cmd
}

func newLocaSearchCmd() *cobra.Command {
	var byText bool
	var limit int

	cmd := &cobra.Command{
		Use:   "search <file.loca> <query>",
		Short: "Search entries by key or text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := openLoca(args[0])
			if err != nil {
				return err
			}
			var results []*loca.Entry
			if byText {
				results = res.SearchByText(args[1], limit)
			} else {
				results = res.SearchByKey(args[1], limit)
			}
			for _, e := range results {
				fmt.Printf("%s\t%d\t%s\n", e.Key, e.Version, e.Text)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&byText, "text", false, "search entry text instead of key")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results")
	return cmd
}

func openLoca(path string) (*loca.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return loca.Read(data)
}
