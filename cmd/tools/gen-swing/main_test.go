package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/swing.report/internal/oscillation"
	"github.com/banshee-data/swing.report/internal/samplefile"
)

func TestParseFlags_Defaults(t *testing.T) {
	o, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "swing.tsv", o.output)
	assert.Equal(t, 50.0, o.rate)
	assert.Equal(t, 1.2, o.swing.Period)
	assert.Equal(t, uint64(7), o.swing.Seed)
}

func TestParseFlags_Invalid(t *testing.T) {
	_, err := parseFlags([]string{"-rate", "0"})
	assert.Error(t, err)

	_, err = parseFlags([]string{"-period", "abc"})
	assert.Error(t, err)
}

func TestGenerate_TracksBackToPeriod(t *testing.T) {
	o, err := parseFlags([]string{"-o", "-", "-d", "20", "-noise", "0.01"})
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := generate(&buf, o)
	require.NoError(t, err)
	assert.Equal(t, 1001, n)

	samples, err := samplefile.ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, samples, n)
	assert.InDelta(t, 0.02, samples[1].T, 1e-9)

	tracker, err := oscillation.New(oscillation.DefaultConfig())
	require.NoError(t, err)
	for _, s := range samples {
		_, err := tracker.AddSample(s.T, s.Value)
		require.NoError(t, err)
	}
	assert.InDelta(t, 1.2, tracker.State().Period, 0.05)
}

func TestGenerate_InvalidSwing(t *testing.T) {
	o, err := parseFlags([]string{"-period", "-1"})
	require.NoError(t, err)
	_, err = generate(&bytes.Buffer{}, o)
	assert.Error(t, err)
}
