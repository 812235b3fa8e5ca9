// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/f-secure-foundry/armory-keyrom/internal/atomicfile"
	"github.com/f-secure-foundry/armory-keyrom/internal/placement"
)

type generateOptions struct {
	ledger      string
	constraints string
	probe       string
	probeImage  string
	seed        string
}

func newGenerateCommand(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the key ROM placeholders of a new build",
		Long: `Draw a unique random placeholder for every key ROM cell and write the
ledger, followed by the placement constraints to be sourced by the FPGA
compiler. The ledger is written before anything else.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(root, opts, cmd)
		},
	}

	flags := cmd.Flags()

	flags.StringVarP(&opts.ledger, "ledger", "l", "keyrom.ledger", "ledger output")
	flags.StringVarP(&opts.constraints, "constraints", "o", "keyrom.tcl", "placement constraints output")
	flags.StringVar(&opts.probe, "probe", "", "probe build constraints output (optional)")
	flags.StringVar(&opts.probeImage, "probe-image", "keyrom-probe.bin", "image written by the probe build")
	flags.StringVar(&opts.seed, "seed", "", "hex encoded seed for reproducible builds (default random)")

	return cmd
}

func runGenerate(root *rootOptions, opts *generateOptions, cmd *cobra.Command) (err error) {
	layout := root.profile.PlacementLayout()

	g := &placement.Generator{
		Bits:       root.profile.Bits,
		Layout:     layout,
		MaxRedraws: root.profile.MaxRedraws,
	}

	if len(opts.seed) > 0 {
		seed, err := hex.DecodeString(opts.seed)

		if err != nil || len(seed) == 0 {
			return usageError("invalid seed")
		}

		g.Entropy = placement.SeededEntropy(seed)
	}

	l, err := g.Generate()

	if err != nil {
		return
	}

	if err = l.WriteFile(opts.ledger); err != nil {
		return
	}

	root.log.WithFields(logrus.Fields{
		"build":   l.BuildID,
		"bits":    l.Bits,
		"cells":   len(l.Cells),
		"redraws": g.Redraws,
		"ledger":  opts.ledger,
	}).Info("generated ledger")

	buf := new(bytes.Buffer)

	if err = placement.WriteConstraints(buf, l, layout); err != nil {
		return
	}

	if err = atomicfile.WriteFile(opts.constraints, buf.Bytes(), 0644); err != nil {
		return
	}

	if len(opts.probe) > 0 {
		buf.Reset()

		if err = placement.WriteProbeConstraints(buf, l, layout, opts.probeImage); err != nil {
			return
		}

		if err = atomicfile.WriteFile(opts.probe, buf.Bytes(), 0644); err != nil {
			return
		}
	}

	digest := l.Digest()
	fmt.Fprintf(cmd.OutOrStdout(), "build  %s\nledger %x\n", l.BuildID, digest)

	return
}
