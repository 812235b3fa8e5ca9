// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/mod/sumdb/note"

	"github.com/f-secure-foundry/armory-keyrom/internal/atomicfile"
	"github.com/f-secure-foundry/armory-keyrom/internal/ledger"
	"github.com/f-secure-foundry/armory-keyrom/internal/locate"
	"github.com/f-secure-foundry/armory-keyrom/internal/manifest"
	"github.com/f-secure-foundry/armory-keyrom/internal/patch"
)

type patchOptions struct {
	ledger string
	image  string
	key    string
	rom    string
	out    string

	manifest   string
	signingKey string
	device     string
}

func newPatchCommand(root *rootOptions) *cobra.Command {
	opts := &patchOptions{}

	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Compute the patch set embedding a device secret",
		Long: `Locate the key ROM within the compiled image and compute the LUT contents
which make it read back the device secret, the patch set is verified in
memory before being written.

The secret is either a raw key (--key, packed little-endian bits) read back
at the canonical address, or a full keystore ROM image (--rom).

` + secretNotice,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatch(root, opts, cmd)
		},
	}

	flags := cmd.Flags()

	flags.StringVarP(&opts.ledger, "ledger", "l", "keyrom.ledger", "build ledger")
	flags.StringVarP(&opts.image, "image", "i", "", "compiled image")
	flags.StringVarP(&opts.key, "key", "k", "", "secret key file")
	flags.StringVar(&opts.rom, "rom", "", "keystore ROM image")
	flags.StringVarP(&opts.out, "out", "o", "keyrom.patch", "patch set output")

	flags.StringVarP(&opts.manifest, "manifest", "m", "", "signed manifest output (optional)")
	flags.StringVar(&opts.signingKey, "signing-key", "", "manifest signing key file")
	flags.StringVar(&opts.device, "device", "", "device identifier for the manifest")

	cmd.MarkFlagsMutuallyExclusive("key", "rom")

	return cmd
}

func runPatch(root *rootOptions, opts *patchOptions, cmd *cobra.Command) (err error) {
	if len(opts.key) == 0 && len(opts.rom) == 0 {
		return usageError("either --key or --rom is required")
	}

	if len(opts.manifest) > 0 && (len(opts.signingKey) == 0 || len(opts.device) == 0) {
		return usageError("--manifest requires --signing-key and --device")
	}

	var signer note.Signer

	// a bad signing key must fail the run before any secret is processed
	if len(opts.manifest) > 0 {
		if signer, err = readSigner(opts.signingKey); err != nil {
			return
		}
	}

	l, image, m, err := locateImage(root, opts.ledger, opts.image)

	if err != nil {
		return
	}

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

	imageDigest := sha256.Sum256(image)

	var ps *patch.PatchSet

	if len(opts.rom) > 0 {
		ps, err = patchROM(p, l, m, imageDigest, image, opts.rom)
	} else {
		ps, err = patchKey(p, l, m, imageDigest, image, opts.key)
	}

	if err != nil {
		return
	}
	defer ps.Wipe()

	if err = ps.WriteFile(opts.out); err != nil {
		return
	}

	root.log.WithFields(logrus.Fields{
		"build":   l.BuildID,
		"entries": len(ps.Entries),
		"address": fmt.Sprintf("%#02x", policy.Address),
		"decoys":  policy.Decoys,
		"out":     opts.out,
	}).Info("wrote patch set")

	if len(opts.manifest) == 0 {
		return
	}

	if err = writeManifest(opts, signer, l, m, policy); err != nil {
		// no patch set survives a failed run
		os.Remove(opts.out)
	}

	return
}

func patchKey(p *patch.Patcher, l *ledger.Ledger, m *locate.OffsetMap, imageDigest [sha256.Size]byte, image []byte, name string) (ps *patch.PatchSet, err error) {
	raw, err := readFile("key", name)

	if err != nil {
		return
	}
	defer patch.Wipe(raw)

	key, err := patch.ParseSecretKey(raw, l.Bits)

	if err != nil {
		return
	}
	defer key.Wipe()

	if ps, err = p.Patch(l, m, imageDigest, key); err != nil {
		return
	}

	patched, err := patch.Apply(image, ps)

	if err == nil {
		err = p.Verify(l, m, patched, key)
		patch.Wipe(patched)
	}

	if err != nil {
		ps.Wipe()
		return nil, err
	}

	return
}

func patchROM(p *patch.Patcher, l *ledger.Ledger, m *locate.OffsetMap, imageDigest [sha256.Size]byte, image []byte, name string) (ps *patch.PatchSet, err error) {
	data, err := readFile("keystore", name)

	if err != nil {
		return
	}
	defer patch.Wipe(data)

	if ps, err = p.PatchROM(l, m, imageDigest, data); err != nil {
		return
	}

	patched, err := patch.Apply(image, ps)

	if err == nil {
		err = p.VerifyROM(l, m, patched, data)
		patch.Wipe(patched)
	}

	if err != nil {
		ps.Wipe()
		return nil, err
	}

	return
}

func readSigner(name string) (signer note.Signer, err error) {
	skey, err := os.ReadFile(name)

	if err != nil {
		return nil, &ExitError{Code: exitUsage, Err: err}
	}
	defer patch.Wipe(skey)

	if signer, err = manifest.NewSigner(string(skey)); err != nil {
		return nil, &ExitError{Code: exitUsage, Err: fmt.Errorf("invalid signing key, %v", err)}
	}

	return
}

func writeManifest(opts *patchOptions, signer note.Signer, l *ledger.Ledger, m *locate.OffsetMap, policy patch.Policy) (err error) {
	msg, err := manifest.Sign(&manifest.Manifest{
		Device:       opts.device,
		BuildID:      l.BuildID,
		Bits:         l.Bits,
		LedgerDigest: m.LedgerDigest,
		ImageDigest:  m.ImageDigest,
		Address:      policy.Address,
		Decoys:       policy.Decoys.String(),
		Time:         time.Now().UTC().Truncate(time.Second),
	}, signer)

	if err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}

	return atomicfile.WriteFile(opts.manifest, msg, 0644)
}
