// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/f-secure-foundry/armory-keyrom/internal/atomicfile"
	"github.com/f-secure-foundry/armory-keyrom/internal/manifest"
)

// key generation entropy
var keygenRand io.Reader = rand.Reader

type keygenOptions struct {
	name string
	out  string
}

func newKeygenCommand(root *rootOptions) *cobra.Command {
	opts := &keygenOptions{}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a manifest signing key pair",
		Long: `Generate the note signing key used to sign provisioning manifests, written
to <out>.key (owner readable only) along with the verification key in
<out>.pub.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(root, opts, cmd)
		},
	}

	flags := cmd.Flags()

	flags.StringVarP(&opts.name, "name", "n", "keyrom-provisioning", "key name")
	flags.StringVarP(&opts.out, "out", "o", "keyrom-manifest", "key pair output prefix")

	return cmd
}

func runKeygen(root *rootOptions, opts *keygenOptions, cmd *cobra.Command) (err error) {
	skey, vkey, err := manifest.GenerateKey(keygenRand, opts.name)

	if err != nil {
		return usageError("invalid key name %q, %v", opts.name, err)
	}

	if err = atomicfile.WriteFile(opts.out+".key", []byte(skey+"\n"), 0600); err != nil {
		return
	}

	if err = atomicfile.WriteFile(opts.out+".pub", []byte(vkey+"\n"), 0644); err != nil {
		return
	}

	root.log.WithField("name", opts.name).Info("generated manifest key pair")

	fmt.Fprintln(cmd.OutOrStdout(), vkey)

	return
}
