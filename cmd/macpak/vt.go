package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/CyberDeco/MacPak-sub002/compress"
	"github.com/CyberDeco/MacPak-sub002/progress"
	"github.com/CyberDeco/MacPak-sub002/vt"
)

func newVTCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vt",
		Short: "Inspect, extract, and build virtual textures",
	}
	cmd.AddCommand(newVTInfoCmd())
	cmd.AddCommand(newVTExtractCmd())
	cmd.AddCommand(newVTBuildCmd())
	return cmd
}

func newVTInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <file.gts>",
		Short: "Print layer, level, and page-file counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gts, err := readGTS(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("version: %d\n", gts.Version)
			fmt.Printf("tile: %dx%d border=%d page_size=%d\n", gts.TileWidth, gts.TileHeight, gts.TileBorder, gts.PageSize)
			fmt.Printf("layers: %d\n", len(gts.Layers))
			for i, l := range gts.Layers {
				fmt.Printf("  [%d] %s\n", i, l.DataType)
			}
			fmt.Printf("levels: %d\n", len(gts.Levels))
			fmt.Printf("page files: %d\n", len(gts.PageFiles))
			for _, pf := range gts.PageFiles {
				fmt.Printf("  %s (%d pages)\n", pf.Filename, pf.NumPages)
			}
			fmt.Printf("flat tiles: %d\n", len(gts.FlatTileInfos))
			return nil
		},
	}
	return cmd
}

func newVTExtractCmd() *cobra.Command {
	var destDir string

	cmd := &cobra.Command{
		Use:   "extract <file.gts>",
		Short: "Decode every tile and write one DDS per layer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gts, err := readGTS(args[0])
			if err != nil {
				return err
			}
			sink := progress.Func{
				Phase: func(p progress.Phase) { fmt.Fprintf(os.Stderr, "[%s]\n", p) },
				Item: func(current, total int, name string) {
					if total > 0 {
						fmt.Fprintf(os.Stderr, "  %d/%d %s\n", current, total, name)
					} else {
						fmt.Fprintf(os.Stderr, "  %s\n", name)
					}
				},
			}
			return vt.ExtractAll(gts, filepath.Dir(args[0]), destDir, sink)
		},
	}
	cmd.Flags().StringVarP(&destDir, "output", "o", ".", "destination directory")
	return cmd
}

func newVTBuildCmd() *cobra.Command {
	var name, destDir, method string
	var tileWidth, tileHeight, tileBorder int
	var pageSizeKB int
	var embedMip bool

	cmd := &cobra.Command{
		Use:   "build <layer-name>=<file.dds> [<layer-name>=<file.dds>...]",
		Short: "Construct a GTS+GTP pair from up to three source DDS layers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := make([]vt.SourceLayer, 0, len(args))
			for _, a := range args {
				layerName, path, ok := splitLayerArg(a)
				if !ok {
					return fmt.Errorf("vt build: expected <layer-name>=<file.dds>, got %q", a)
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				sources = append(sources, vt.SourceLayer{Name: layerName, DDS: data})
			}

			m := compress.MethodNone
			if method == "lz4" {
				m = compress.MethodLZ4Block
			}

			opts := &vt.BuildOptions{
				TileWidth:  int32(tileWidth),
				TileHeight: int32(tileHeight),
				TileBorder: int32(tileBorder),
				PageSize:   uint32(pageSizeKB) * 1024,
				EmbedMip:   embedMip,
				Method:     m,
			}

			sink := progress.Func{
				Phase: func(p progress.Phase) { fmt.Fprintf(os.Stderr, "[%s]\n", p) },
				Item: func(current, total int, itemName string) {
					if total > 0 {
						fmt.Fprintf(os.Stderr, "  %d/%d %s\n", current, total, itemName)
					}
				},
			}

			result, err := vt.Build(name, sources, opts, destDir, sink)
			if err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", result.GTSPath)
			for _, p := range result.GTPPaths {
				fmt.Printf("wrote %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "VirtualTexture", "virtual texture name")
	cmd.Flags().StringVarP(&destDir, "output", "o", ".", "destination directory")
	cmd.Flags().StringVar(&method, "method", "lz4", "none or lz4")
	cmd.Flags().IntVar(&tileWidth, "tile-width", 128, "tile width in pixels")
	cmd.Flags().IntVar(&tileHeight, "tile-height", 128, "tile height in pixels")
	cmd.Flags().IntVar(&tileBorder, "tile-border", 8, "border pixels sampled from adjacent content")
	cmd.Flags().IntVar(&pageSizeKB, "page-size-kb", 1024, "page size in KB before starting a new page")
	cmd.Flags().BoolVar(&embedMip, "embed-mip", false, "append the next mip's quarter-tile to each tile")
	return cmd
}

func readGTS(path string) (*vt.GTS, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return vt.ReadGTS(data)
}

func splitLayerArg(s string) (name, path string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
