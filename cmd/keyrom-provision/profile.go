// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"github.com/spf13/cobra"
)

func newProfileCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Print the effective provisioning profile",
		Long: `Print the provisioning profile, after command line overrides are applied,
in a form suitable for --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			buf, err := root.profile.Marshal()

			if err != nil {
				return
			}

			_, err = cmd.OutOrStdout().Write(buf)

			return
		},
	}
}
