// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/f-secure-foundry/armory-keyrom/internal/config"
	"github.com/f-secure-foundry/armory-keyrom/internal/ledger"
)

type rootOptions struct {
	configPath string
	verbose    bool
	logFormat  string

	// profile overrides
	bits      int
	byteOrder string
	address   string
	decoys    string

	profile *config.Profile
	log     *logrus.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "keyrom-provision",
		Short:         "FPGA key ROM provisioning",
		Long:          long,
		Version:       fmt.Sprintf("%s (%s)", Revision, Build),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd)
		},
	}

	flags := cmd.PersistentFlags()

	flags.StringVarP(&opts.configPath, "config", "c", "", "provisioning profile (YAML)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.logFormat, "log-format", "text", "log format (text|json)")

	flags.IntVar(&opts.bits, "bits", 0, "ROM word width, overrides the profile")
	flags.StringVar(&opts.byteOrder, "byte-order", "", "image byte order (big|little), overrides the profile")
	flags.StringVar(&opts.address, "address", "", "canonical read-back address, overrides the profile")
	flags.StringVar(&opts.decoys, "decoys", "", "non-live slot policy (decoy|retain), overrides the profile")

	cmd.AddCommand(newGenerateCommand(opts))
	cmd.AddCommand(newLocateCommand(opts))
	cmd.AddCommand(newPatchCommand(opts))
	cmd.AddCommand(newVerifyCommand(opts))
	cmd.AddCommand(newKeystoreCommand(opts))
	cmd.AddCommand(newFetchCommand(opts))
	cmd.AddCommand(newFingerprintCommand(opts))
	cmd.AddCommand(newKeygenCommand(opts))
	cmd.AddCommand(newProfileCommand(opts))

	return cmd
}

func (opts *rootOptions) init(cmd *cobra.Command) (err error) {
	opts.log = logrus.New()
	opts.log.SetOutput(cmd.ErrOrStderr())

	switch opts.logFormat {
	case "text":
		opts.log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	case "json":
		opts.log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return usageError("invalid log format %q", opts.logFormat)
	}

	if opts.verbose {
		opts.log.SetLevel(logrus.DebugLevel)
	}

	if opts.profile, err = config.LoadFile(opts.configPath); err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}

	flags := cmd.Flags()

	if flags.Changed("bits") {
		opts.profile.Bits = opts.bits
	}

	if flags.Changed("byte-order") {
		opts.profile.ByteOrder = opts.byteOrder
	}

	if flags.Changed("address") {
		addr, err := strconv.ParseUint(opts.address, 0, 8)

		if err != nil {
			return usageError("invalid read-back address %q", opts.address)
		}

		opts.profile.ReadBackAddress = uint8(addr)
	}

	if flags.Changed("decoys") {
		opts.profile.Decoys = opts.decoys
	}

	if err = opts.profile.Validate(); err != nil {
		return &ExitError{Code: exitUsage, Err: err}
	}

	opts.log.WithFields(logrus.Fields{
		"bits":       opts.profile.Bits,
		"byte_order": opts.profile.ByteOrder,
		"address":    fmt.Sprintf("%#02x", opts.profile.ReadBackAddress),
		"decoys":     opts.profile.Decoys,
	}).Debug("profile")

	return
}

// readLedger loads a ledger and checks it against the profile width.
func (opts *rootOptions) readLedger(name string) (l *ledger.Ledger, err error) {
	if len(name) == 0 {
		return nil, usageError("missing ledger path")
	}

	if l, err = ledger.ReadFile(name); err != nil {
		return
	}

	if l.Bits != opts.profile.Bits {
		return nil, fmt.Errorf("%w: ledger is %d bits wide, profile expects %d", ledger.ErrInvalidLedger, l.Bits, opts.profile.Bits)
	}

	opts.log.WithFields(logrus.Fields{
		"build": l.BuildID,
		"bits":  l.Bits,
	}).Info("loaded ledger")

	return
}

func readFile(kind string, name string) ([]byte, error) {
	if len(name) == 0 {
		return nil, usageError("missing %s path", kind)
	}

	buf, err := os.ReadFile(name)

	if err != nil {
		return nil, &ExitError{Code: exitUsage, Err: err}
	}

	return buf, nil
}
