package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CyberDeco/MacPak-sub002/pak"
	"github.com/CyberDeco/MacPak-sub002/resolver"
)

func newResolverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolver",
		Short: "Ingest merged asset documents and resolve mesh-to-texture references",
	}
	cmd.AddCommand(newResolverStatsCmd())
	cmd.AddCommand(newResolverLookupCmd())
	cmd.AddCommand(newResolverBundleCmd())
	return cmd
}

func newResolverBundleCmd() *cobra.Command {
	var destDir string
	var texturesPak string

	cmd := &cobra.Command{
		Use:   "bundle <meshes.pak> <merged-doc>...",
		Short: "Extract every .gr2 in meshes.pak along with the textures it references",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ingestDocuments(args[1:])
			if err != nil {
				return err
			}
			db.ResolveReferences()

			meshes, err := pak.Open(args[0], nil)
			if err != nil {
				return err
			}
			defer meshes.Close()

			texPakPath := texturesPak
			if texPakPath == "" {
				texPakPath = filepath.Join(filepath.Dir(args[0]), db.PakPaths.Textures)
			}
			textures, err := pak.Open(texPakPath, nil)
			if err != nil {
				return err
			}
			defer textures.Close()

			var gr2Entries []*pak.Entry
			for _, e := range meshes.Entries() {
				if strings.ToLower(filepath.Ext(e.Path)) == ".gr2" {
					gr2Entries = append(gr2Entries, e)
				}
			}

			bundler := resolver.NewGR2Bundler(db, resolver.NewArchiveTextureSource(textures))
			return meshes.ExtractWithBundler(gr2Entries, destDir, bundler, &pak.ExtractOptions{
				OnItem: func(path string, index, total int) {
					fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", index, total, path)
				},
			})
		},
	}
	cmd.Flags().StringVarP(&destDir, "output", "o", ".", "destination directory")
	cmd.Flags().StringVar(&texturesPak, "textures", "", "textures archive path (defaults to PakPaths.Textures next to meshes.pak)")
	return cmd
}

func newResolverStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <merged-doc>...",
		Short: "Ingest one or more merged documents and print database totals",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ingestDocuments(args)
			if err != nil {
				return err
			}
			db.ResolveReferences()
			s := db.Stats()
			fmt.Printf("visuals: %d\nmaterials: %d\ntextures: %d\nvirtual textures: %d\ndangling references: %d\n",
				s.VisualCount, s.MaterialCount, s.TextureCount, s.VirtualTextureCount, s.DanglingReferences)
			return nil
		},
	}
	return cmd
}

func newResolverLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <gr2-filename> <merged-doc>...",
		Short: "Resolve the textures a mesh file needs after ingesting the given documents",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ingestDocuments(args[1:])
			if err != nil {
				return err
			}
			db.ResolveReferences()
			visuals := db.VisualsForGR2(args[0])
			if len(visuals) == 0 {
				fmt.Println("no visuals reference this file")
				return nil
			}
			for _, v := range visuals {
				fmt.Printf("visual %s (%s)\n", v.Name, v.ID)
				for _, t := range v.Textures {
					fmt.Printf("  texture %-12s %s\n", t.ParameterName, t.DDSPath)
				}
				for _, vt := range v.VirtualTextures {
					fmt.Printf("  virtual texture %s -> %s\n", vt.Name, db.PakPaths.GTPPathFromHash(vt.GTexHash))
				}
			}
			return nil
		},
	}
	return cmd
}

func ingestDocuments(paths []string) (*resolver.Database, error) {
	db, report, err := resolver.IngestFiles(paths, nil)
	if err != nil {
		return nil, err
	}
	for _, fe := range report.Failed {
		fmt.Fprintf(os.Stderr, "skipping %s: %v\n", fe.Path, fe.Err)
	}
	return db, nil
}
