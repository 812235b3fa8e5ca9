// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

// initialized at compile time (-ldflags -X)
var Build string
var Revision string

const long = `keyrom-provision embeds device secrets into compiled FPGA images.

A provisioning run is split in separate invocations:

  generate  draw the placeholders of a new build, before compilation
  locate    find the placeholders within the compiled image
  patch     compute the patch set which embeds a device secret
  verify    check a patch set, or a signed manifest, against the build

The ledger written by generate must be kept alongside the compiled image,
every later step refuses images which do not match it.`

const secretNotice = `The secret key file is read once and wiped from memory after use, it is
never logged. The patch set allows to recover the secret and must be handled
with the same care.`
