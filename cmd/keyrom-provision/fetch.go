// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/f-secure-foundry/armory-keyrom/internal/atomicfile"
	"github.com/f-secure-foundry/armory-keyrom/internal/ledger"
	"github.com/f-secure-foundry/armory-keyrom/internal/release"
)

type fetchOptions struct {
	version string
	dir     string
}

func newFetchCommand(root *rootOptions) *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download a gateware release",
		Long: `Download the compiled image and ledger of a gateware release from GitHub,
GITHUB_TOKEN is used for authentication when set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(root, opts, cmd)
		},
	}

	flags := cmd.Flags()

	flags.StringVarP(&opts.version, "release", "r", "latest", "release version")
	flags.StringVarP(&opts.dir, "dir", "d", ".", "output directory")

	return cmd
}

func runFetch(root *rootOptions, opts *fetchOptions, cmd *cobra.Command) (err error) {
	ctx := cmd.Context()

	f := &release.Fetcher{
		Client: release.NewClient(ctx, os.Getenv("GITHUB_TOKEN")),
		Owner:  root.profile.Release.Owner,
		Repo:   root.profile.Release.Repo,
		Log:    root.log,
	}

	a, err := f.Fetch(ctx, opts.version)

	if err != nil {
		return
	}

	// refuse releases carrying a malformed ledger
	if _, err = ledger.Read(bytes.NewReader(a.Ledger)); err != nil {
		return
	}

	imagePath := filepath.Join(opts.dir, a.Tag+release.ImageSuffix)
	ledgerPath := filepath.Join(opts.dir, a.Tag+release.LedgerSuffix)

	if err = atomicfile.WriteFile(imagePath, a.Image, 0644); err != nil {
		return
	}

	if err = atomicfile.WriteFile(ledgerPath, a.Ledger, 0644); err != nil {
		return
	}

	fmt.Fprintf(cmd.OutOrStdout(), "image  %s\nledger %s\n", imagePath, ledgerPath)

	return
}
