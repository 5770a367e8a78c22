package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/CyberDeco/MacPak-sub002/gr2"
)

func newGR2Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gr2",
		Short: "Inspect mesh containers",
	}
	cmd.AddCommand(newGR2InfoCmd())
	cmd.AddCommand(newGR2ExportCmd())
	cmd.AddCommand(newGR2DecompressCmd())
	return cmd
}

func newGR2InfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <file.gr2>",
		Short: "Print header, section table, and collection counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			info, err := gr2.Inspect(data, nil)
			if err != nil {
				return err
			}
			fmt.Printf("version: %d\n", info.Version)
			fmt.Printf("tag: 0x%08x\n", info.Tag)
			fmt.Printf("types: %d\n", info.NumTypes)
			fmt.Printf("skeletons: %d meshes: %d models: %d\n",
				info.NumSkeletons, info.NumMeshes, info.NumModels)
			fmt.Printf("sections: %d\n", len(info.Sections))
			for i, s := range info.Sections {
				fmt.Printf("  [%d] compression=%d compressed=%d uncompressed=%d relocations=%d\n",
					i, s.Compression, s.CompressedSize, s.UncompressedSize, s.NumRelocations)
			}
			return nil
		},
	}
	return cmd
}

func newGR2DecompressCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "decompress <file.gr2>",
		Short: "Rewrite a mesh container with every section stored raw",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			raw, err := gr2.Decompress(data, nil)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, raw, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", out, len(raw))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "out.gr2", "output path")
	return cmd
}

func newGR2ExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file.gr2>",
		Short: "Export the mesh model as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			f, err := gr2.Parse(data, nil)
			if err != nil {
				return err
			}
			mesh, err := f.Export()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(mesh)
		},
	}
	return cmd
}
