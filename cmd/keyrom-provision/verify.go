// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/f-secure-foundry/armory-keyrom/internal/keystore"
	"github.com/f-secure-foundry/armory-keyrom/internal/ledger"
	"github.com/f-secure-foundry/armory-keyrom/internal/locate"
	"github.com/f-secure-foundry/armory-keyrom/internal/manifest"
	"github.com/f-secure-foundry/armory-keyrom/internal/patch"
)

type verifyOptions struct {
	ledger string
	image  string
	patch  string
	key    string
	rom    string

	manifest string
	verifier string
}

func newVerifyCommand(root *rootOptions) *cobra.Command {
	opts := &verifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a patch set or a provisioning manifest",
		Long: `Apply a patch set to the compiled image and check that the key ROM reads
back the expected secret (--patch with --key or --rom), and/or check the
signature of a provisioning manifest and that it refers to the argument
build (--manifest with --verifier).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(root, opts, cmd)
		},
	}

	flags := cmd.Flags()

	flags.StringVarP(&opts.ledger, "ledger", "l", "keyrom.ledger", "build ledger")
	flags.StringVarP(&opts.image, "image", "i", "", "compiled image")
	flags.StringVarP(&opts.patch, "patch", "p", "", "patch set")
	flags.StringVarP(&opts.key, "key", "k", "", "secret key file")
	flags.StringVar(&opts.rom, "rom", "", "keystore ROM image")
	flags.StringVarP(&opts.manifest, "manifest", "m", "", "signed manifest")
	flags.StringVar(&opts.verifier, "verifier", "", "manifest verification key file")

	cmd.MarkFlagsMutuallyExclusive("key", "rom")
	cmd.MarkFlagsRequiredTogether("manifest", "verifier")

	return cmd
}

func runVerify(root *rootOptions, opts *verifyOptions, cmd *cobra.Command) (err error) {
	if len(opts.patch) == 0 && len(opts.manifest) == 0 {
		return usageError("either --patch or --manifest is required")
	}

	if len(opts.patch) > 0 && len(opts.key) == 0 && len(opts.rom) == 0 {
		return usageError("--patch requires --key or --rom")
	}

	l, image, m, err := locateImage(root, opts.ledger, opts.image)

	if err != nil {
		return
	}

	out := cmd.OutOrStdout()

	if len(opts.patch) > 0 {
		if err = verifyPatch(root, opts, cmd, l, image, m); err != nil {
			return
		}

		fmt.Fprintf(out, "patch set %s verified\n", opts.patch)
	}

	if len(opts.manifest) > 0 {
		var mf *manifest.Manifest

		if mf, err = verifyManifest(opts, l, m); err != nil {
			return
		}

		root.log.WithFields(logrus.Fields{
			"device": mf.Device,
			"build":  mf.BuildID,
			"time":   mf.Time,
		}).Info("verified manifest")

		fmt.Fprintf(out, "manifest %s verified for device %s\n", opts.manifest, mf.Device)
	}

	return
}

func verifyPatch(root *rootOptions, opts *verifyOptions, cmd *cobra.Command, l *ledger.Ledger, image []byte, m *locate.OffsetMap) (err error) {
	ps, err := patch.ReadPatchSetFile(opts.patch)

	if err != nil {
		return
	}
	defer ps.Wipe()

	if ps.LedgerDigest != m.LedgerDigest {
		return fmt.Errorf("%w: patch set is for ledger %x", patch.ErrStaleOffsetMap, ps.LedgerDigest)
	}

	patched, err := patch.Apply(image, ps)

	if err != nil {
		return
	}
	defer patch.Wipe(patched)

	policy, err := root.profile.Policy()

	if err != nil {
		return
	}

	order, err := root.profile.Order()

	if err != nil {
		return
	}

	p := &patch.Patcher{
		Policy: policy,
		Order:  order,
	}

	if len(opts.rom) > 0 {
		data, err := readFile("keystore", opts.rom)

		if err != nil {
			return err
		}
		defer patch.Wipe(data)

		if err = p.VerifyROM(l, m, patched, data); err != nil {
			return err
		}

		return reportKeystore(root, cmd, data)
	}

	raw, err := readFile("key", opts.key)

	if err != nil {
		return
	}
	defer patch.Wipe(raw)

	key, err := patch.ParseSecretKey(raw, l.Bits)

	if err != nil {
		return
	}
	defer key.Wipe()

	return p.Verify(l, m, patched, key)
}

// reportKeystore prints the public fields of a verified keystore ROM.
func reportKeystore(root *rootOptions, cmd *cobra.Command, data []byte) (err error) {
	devKey, err := keystore.DevKey(data)

	if err != nil {
		return
	}

	version, err := keystore.Version(data)

	if err != nil {
		return
	}

	root.log.WithField("version", fmt.Sprintf("%#04x", version)).Info("verified keystore")

	fmt.Fprintf(cmd.OutOrStdout(), "keystore version %#04x, developer key %x\n", version, []byte(devKey))

	return
}

func verifyManifest(opts *verifyOptions, l *ledger.Ledger, m *locate.OffsetMap) (mf *manifest.Manifest, err error) {
	vkey, err := os.ReadFile(opts.verifier)

	if err != nil {
		return nil, &ExitError{Code: exitUsage, Err: err}
	}

	verifier, err := manifest.NewVerifier(string(vkey))

	if err != nil {
		return nil, &ExitError{Code: exitUsage, Err: err}
	}

	msg, err := readFile("manifest", opts.manifest)

	if err != nil {
		return
	}

	if mf, err = manifest.Open(msg, verifier); err != nil {
		return nil, &ExitError{Code: exitProvisioning, Err: err}
	}

	switch {
	case mf.BuildID != l.BuildID:
		err = fmt.Errorf("manifest is for build %s", mf.BuildID)
	case mf.LedgerDigest != m.LedgerDigest:
		err = fmt.Errorf("manifest is for ledger %x", mf.LedgerDigest)
	case mf.ImageDigest != m.ImageDigest:
		err = fmt.Errorf("manifest is for image %x", mf.ImageDigest)
	}

	if err != nil {
		return nil, &ExitError{Code: exitProvisioning, Err: err}
	}

	return
}
