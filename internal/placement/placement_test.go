// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package placement

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f-secure-foundry/armory-keyrom/assets"
	"github.com/f-secure-foundry/armory-keyrom/internal/rom"
)

// counter yields consecutive byte values.
type counter struct {
	n byte
}

func (c *counter) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = c.n
		c.n++
	}

	return len(p), nil
}

// words yields the argument 64-bit words, big-endian, then falls back to a
// counter.
type words struct {
	queue []uint64
	rest  counter
}

func (w *words) Read(p []byte) (int, error) {
	if len(w.queue) == 0 || len(p) != 8 {
		return w.rest.Read(p)
	}

	binary.BigEndian.PutUint64(p, w.queue[0])
	w.queue = w.queue[1:]

	return 8, nil
}

func TestGenerateDefaults(t *testing.T) {
	g := &Generator{}

	l, err := g.Generate()
	require.NoError(t, err)

	assert.Equal(t, rom.MaxBits, l.Bits)
	assert.Len(t, l.Cells, rom.MaxBits*rom.Slots)
	assert.NoError(t, l.Validate())

	seen := map[uint64]bool{}

	for _, c := range l.Cells {
		assert.False(t, seen[c.Placeholder])
		seen[c.Placeholder] = true
	}

	assert.Equal(t, "SLICE_X36Y50/A6LUT", l.Cells[0].Label)
	assert.Equal(t, "SLICE_X37Y65/D6LUT", l.Cells[len(l.Cells)-1].Label)
}

func TestGenerateDeterministic(t *testing.T) {
	g := &Generator{Bits: 2, Entropy: &counter{}}

	l, err := g.Generate()
	require.NoError(t, err)

	assert.Equal(t, "40414243-4445-4647-8849-4a4b4c4d4e4f", l.BuildID.String())
	assert.Equal(t, uint64(0x0001020304050607), l.Cells[0].Placeholder)
	assert.Equal(t, uint64(0x38393a3b3c3d3e3f), l.Cells[7].Placeholder)
	assert.Equal(t, "SLICE_X37Y50/B6LUT", l.Cells[5].Label)
	assert.Equal(t, 0, g.Redraws)
}

func TestGenerateSeeded(t *testing.T) {
	seed := []byte("reproducible build")

	a, err := (&Generator{Entropy: SeededEntropy(seed)}).Generate()
	require.NoError(t, err)

	b, err := (&Generator{Entropy: SeededEntropy(seed)}).Generate()
	require.NoError(t, err)

	c, err := (&Generator{Entropy: SeededEntropy([]byte("other build"))}).Generate()
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, a.Digest(), b.Digest())
	assert.NotEqual(t, a.Digest(), c.Digest())
}

func TestGenerateRedrawsDuplicates(t *testing.T) {
	src := &words{
		queue: []uint64{
			0x1111111111111111,
			0x1111111111111111, // duplicate
			0,                  // not distinctive
			assets.ProbeINIT,   // reserved
			^uint64(0),         // not distinctive
			0x2222222222222222,
			0x3333333333333333,
			0x2222222222222222, // duplicate
			0x4444444444444444,
		},
	}

	g := &Generator{Bits: 1, Entropy: src}

	l, err := g.Generate()
	require.NoError(t, err)

	assert.Equal(t, 5, g.Redraws)
	assert.Equal(t, uint64(0x1111111111111111), l.Cells[0].Placeholder)
	assert.Equal(t, uint64(0x2222222222222222), l.Cells[1].Placeholder)
	assert.Equal(t, uint64(0x3333333333333333), l.Cells[2].Placeholder)
	assert.Equal(t, uint64(0x4444444444444444), l.Cells[3].Placeholder)
}

func TestGenerateGivesUpOnStuckEntropy(t *testing.T) {
	stuck := bytes.NewReader(bytes.Repeat([]byte{0x5a}, 8*1024))

	_, err := (&Generator{Bits: 4, Entropy: stuck, MaxRedraws: 8}).Generate()

	assert.True(t, errors.Is(err, ErrDuplicatePlaceholder), "%v", err)
}

func TestGenerateEntropyFailure(t *testing.T) {
	_, err := (&Generator{Bits: 4, Entropy: io.LimitReader(&counter{}, 20)}).Generate()
	assert.Error(t, err)
}

func TestGenerateInvalidWidth(t *testing.T) {
	_, err := (&Generator{Bits: 33}).Generate()
	assert.Error(t, err)

	_, err = (&Generator{Bits: -1}).Generate()
	assert.Error(t, err)
}

func TestLayout(t *testing.T) {
	y := DefaultLayout()

	assert.Equal(t, "SLICE_X36Y50", y.Site(0))
	assert.Equal(t, "SLICE_X37Y50", y.Site(1))
	assert.Equal(t, "SLICE_X36Y51", y.Site(2))
	assert.Equal(t, "SLICE_X37Y65", y.Site(31))
	assert.Equal(t, "C6LUT", y.BEL(2))
	assert.Equal(t, "KEYROM17D", y.CellName(17, 3))
	assert.Equal(t, "SLICE_X36Y50:SLICE_X37Y65", y.Range(32))
	assert.Equal(t, "SLICE_X36Y50:SLICE_X37Y50", y.Range(1))

	labels := map[string]bool{}

	for bit := 0; bit < rom.MaxBits; bit++ {
		for slot := 0; slot < rom.Slots; slot++ {
			label := y.Label(bit, slot)
			assert.False(t, labels[label], label)
			labels[label] = true
		}
	}
}

func TestWriteConstraintsGolden(t *testing.T) {
	l, err := (&Generator{Bits: 2, Entropy: &counter{}}).Generate()
	require.NoError(t, err)

	buf := new(bytes.Buffer)
	require.NoError(t, WriteConstraints(buf, l, DefaultLayout()))

	g := goldie.New(t)
	g.Assert(t, "constraints", buf.Bytes())
}

func TestWriteConstraintsMalformedLabel(t *testing.T) {
	l, err := (&Generator{Bits: 1, Entropy: &counter{}}).Generate()
	require.NoError(t, err)

	l.Cells[2].Label = "SLICE_X36Y50"

	assert.Error(t, WriteConstraints(io.Discard, l, DefaultLayout()))
}

func TestWriteProbeConstraints(t *testing.T) {
	l, err := (&Generator{Bits: 2, Entropy: &counter{}}).Generate()
	require.NoError(t, err)

	buf := new(bytes.Buffer)
	require.NoError(t, WriteProbeConstraints(buf, l, DefaultLayout(), "top-mod.bit"))

	out := buf.String()

	assert.Equal(t, 8, strings.Count(out, "set_property INIT 64'hA6C355555555A6C3"))
	assert.Contains(t, out, "[get_cells KEYROM1D]")
	assert.True(t, strings.HasSuffix(out, "write_bitstream -bin_file -force top-mod.bit\n"))
}
