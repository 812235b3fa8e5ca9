// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/f-secure-foundry/armory-keyrom/assets"
	"github.com/f-secure-foundry/armory-keyrom/internal/ledger"
	"github.com/f-secure-foundry/armory-keyrom/internal/locate"
)

type locateOptions struct {
	ledger string
	image  string
	probe  string
}

func newLocateCommand(root *rootOptions) *cobra.Command {
	opts := &locateOptions{}

	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Locate the key ROM placeholders within a compiled image",
		Long: `Search the compiled image for every ledger placeholder and print the offset
of each cell. Every placeholder must occur exactly once, otherwise all
unresolved cells are reported and the build must be regenerated.

With --probe the regions differing from a probe build are listed as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocate(root, opts, cmd)
		},
	}

	flags := cmd.Flags()

	flags.StringVarP(&opts.ledger, "ledger", "l", "keyrom.ledger", "build ledger")
	flags.StringVarP(&opts.image, "image", "i", "", "compiled image")
	flags.StringVar(&opts.probe, "probe", "", "probe build image (optional)")

	return cmd
}

// locateImage reads a ledger and an image and locates every cell.
func locateImage(root *rootOptions, ledgerPath string, imagePath string) (l *ledger.Ledger, image []byte, m *locate.OffsetMap, err error) {
	if l, err = root.readLedger(ledgerPath); err != nil {
		return
	}

	if image, err = readFile("image", imagePath); err != nil {
		return
	}

	order, err := root.profile.Order()

	if err != nil {
		return
	}

	loc := &locate.Locator{
		Order: order,
		Log:   root.log,
	}

	if m, err = loc.Locate(l, image); err != nil {
		return
	}

	root.log.WithField("image", fmt.Sprintf("%x", m.ImageDigest)).Info("located all cells")

	return
}

func runLocate(root *rootOptions, opts *locateOptions, cmd *cobra.Command) (err error) {
	l, image, m, err := locateImage(root, opts.ledger, opts.image)

	if err != nil {
		return
	}

	out := cmd.OutOrStdout()

	if err = m.WriteReport(out, l); err != nil {
		return
	}

	if len(opts.probe) == 0 {
		return
	}

	probe, err := readFile("probe image", opts.probe)

	if err != nil {
		return
	}

	order, err := root.profile.Order()

	if err != nil {
		return
	}

	// every cell of a probe build carries the probe pattern
	if n := bytes.Count(probe, locate.Needle(assets.ProbeINIT, order)); n != len(l.Cells) {
		root.log.WithFields(logrus.Fields{
			"found":    n,
			"expected": len(l.Cells),
		}).Warn("unexpected number of probe cells")
	}

	regions := locate.Diff(image, probe)

	fmt.Fprintf(out, "probe  %x\n", sha256.Sum256(probe))

	for _, r := range regions {
		fmt.Fprintf(out, "%#08x %d\n", r.Offset, r.Length)
	}

	return
}
