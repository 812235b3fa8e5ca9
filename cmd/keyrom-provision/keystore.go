// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/f-secure-foundry/armory-keyrom/internal/atomicfile"
	"github.com/f-secure-foundry/armory-keyrom/internal/keystore"
)

type keystoreOptions struct {
	devKey  string
	version string
	out     string
}

func newKeystoreCommand(root *rootOptions) *cobra.Command {
	opts := &keystoreOptions{}

	cmd := &cobra.Command{
		Use:   "keystore",
		Short: "Build a keystore ROM image",
		Long: `Build a 1024 bytes keystore ROM image, for use with patch --rom, holding
the Ed25519 developer public key at word 0x18 and the version word at 0xff.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeystore(root, opts, cmd)
		},
	}

	flags := cmd.Flags()

	flags.StringVar(&opts.devKey, "dev-pubkey", "devkey/dev-x509.crt", "developer public key (X.509 Ed25519 certificate, PEM)")
	flags.StringVar(&opts.version, "version", "0x0001", "ROM version word")
	flags.StringVarP(&opts.out, "out", "o", "keystore.bin", "keystore output")

	return cmd
}

func runKeystore(root *rootOptions, opts *keystoreOptions, cmd *cobra.Command) (err error) {
	version, err := strconv.ParseUint(opts.version, 0, 32)

	if err != nil {
		return usageError("invalid version %q", opts.version)
	}

	if root.profile.Bits != keystore.WordSize*8 {
		return usageError("keystore images require a %d bits wide ROM", keystore.WordSize*8)
	}

	crt, err := readFile("developer certificate", opts.devKey)

	if err != nil {
		return
	}

	pub, err := keystore.ParseCertificate(crt)

	if err != nil {
		return
	}

	image, err := keystore.Build(pub, uint32(version))

	if err != nil {
		return
	}

	if err = atomicfile.WriteFile(opts.out, image, 0644); err != nil {
		return
	}

	root.log.WithField("out", opts.out).Info("wrote keystore")

	fmt.Fprintf(cmd.OutOrStdout(), "using public key: %x\nwrote %d bytes to %s\n", []byte(pub), len(image), opts.out)

	return
}
