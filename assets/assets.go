// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package assets

// ProbeINIT represents a known LUT INIT value, given to all key ROM cells of
// a probe build, to allow identification of the LUT frames within the
// bitstream by diffing it against a regular build.
const ProbeINIT uint64 = 0xA6C355555555A6C3
