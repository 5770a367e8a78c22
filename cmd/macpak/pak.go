package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/CyberDeco/MacPak-sub002/pak"
)

func newPakCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pak",
		Short: "Build, list, and extract multi-part archives",
	}
	cmd.AddCommand(newPakBuildCmd())
	cmd.AddCommand(newPakListCmd())
	cmd.AddCommand(newPakExtractCmd())
	return cmd
}

func newPakBuildCmd() *cobra.Command {
	var out string
	var method string
	var maxPartSizeMB int

	cmd := &cobra.Command{
		Use:   "build <srcdir>",
		Short: "Pack every file under srcdir into one or more archive parts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := pak.MethodLZ4
			switch method {
			case "none":
				m = pak.MethodNone
			case "zlib":
				m = pak.MethodZlib
			}

			written, err := pak.Create(args[0], out, &pak.WriteOptions{
				Method:      m,
				MaxPartSize: uint64(maxPartSizeMB) * 1024 * 1024,
				ComputeCRC:  true,
			})
			if err != nil {
				return err
			}
			for _, name := range written {
				fmt.Fprintf(os.Stderr, "wrote %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "out.pak", "primary part output path")
	cmd.Flags().StringVar(&method, "method", "lz4", "none, lz4, or zlib")
	cmd.Flags().IntVar(&maxPartSizeMB, "max-part-mb", 0, "split into parts of this size (0 = one part)")
	return cmd
}

func newPakListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <file.pak>",
		Short: "List every entry in an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := pak.Open(args[0], nil)
			if err != nil {
				return err
			}
			defer a.Close()
			for _, e := range a.Entries() {
				fmt.Printf("%s\t%d\t%d\n", e.Path, e.CompressedSize, e.UncompressedSize)
			}
			return nil
		},
	}
	return cmd
}

func newPakExtractCmd() *cobra.Command {
	var destDir string
	var verifyCRC bool

	cmd := &cobra.Command{
		Use:   "extract <file.pak>",
		Short: "Extract every entry to a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := pak.Open(args[0], nil)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.ExtractAll(destDir, &pak.ExtractOptions{
				VerifyCRC: verifyCRC,
				OnItem: func(path string, index, total int) {
					fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", index, total, path)
				},
			})
		},
	}
	cmd.Flags().StringVarP(&destDir, "output", "o", ".", "destination directory")
	cmd.Flags().BoolVar(&verifyCRC, "verify-crc", false, "verify each entry's CRC-32 after extraction")
	return cmd
}
