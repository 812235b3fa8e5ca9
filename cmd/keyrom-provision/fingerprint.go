// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/f-secure-foundry/armory-keyrom/internal/atomicfile"
	"github.com/f-secure-foundry/armory-keyrom/internal/ledger"
)

const fingerprintCodeSize = 256

type fingerprintOptions struct {
	ledger string
	qr     string
}

func newFingerprintCommand(root *rootOptions) *cobra.Command {
	opts := &fingerprintOptions{}

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the build fingerprint of a ledger",
		Long: `Print the build identifier and digest of a ledger, optionally as a QR code
image to be attached to the build records.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprint(root, opts, cmd)
		},
	}

	flags := cmd.Flags()

	flags.StringVarP(&opts.ledger, "ledger", "l", "keyrom.ledger", "build ledger")
	flags.StringVar(&opts.qr, "qr", "", "QR code PNG output (optional)")

	return cmd
}

func fingerprint(l *ledger.Ledger) string {
	return fmt.Sprintf("keyrom:%s:%x", l.BuildID, l.Digest())
}

func runFingerprint(root *rootOptions, opts *fingerprintOptions, cmd *cobra.Command) (err error) {
	l, err := root.readLedger(opts.ledger)

	if err != nil {
		return
	}

	fp := fingerprint(l)

	fmt.Fprintln(cmd.OutOrStdout(), fp)

	if len(opts.qr) == 0 {
		return
	}

	qr, err := qrcode.New(fp, qrcode.Medium)

	if err != nil {
		return
	}

	png, err := qr.PNG(fingerprintCodeSize)

	if err != nil {
		return
	}

	return atomicfile.WriteFile(opts.qr, png, 0644)
}
