// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Command macpak is a CLI front-end over this module's codecs: the
// hierarchical container (hc), localized-string archive (loca),
// multi-part archive (pak), mesh container (gr2), virtual texture (vt),
// and merged asset database (resolver) packages.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "macpak",
		Short: "Asset pipeline toolchain",
		Long:  "Inspect, build, and extract this project's binary asset formats.",
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("macpak 0.1.0")
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newLocaCmd())
	rootCmd.AddCommand(newPakCmd())
	rootCmd.AddCommand(newGR2Cmd())
	rootCmd.AddCommand(newVTCmd())
	rootCmd.AddCommand(newResolverCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
