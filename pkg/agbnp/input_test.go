package agbnp

import (
	"context"
	"strings"
	"testing"

	"github.com/kpotier/agbnp/pkg/watersite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waterInput = `
[options]
workers = 1
diel_out = 78.5

[[atoms]]
radius = 1.6
charge = -0.8
alpha = -0.07
gamma = 0.11
heavy = true
hb_type = "tetrahedral"
hb_corr = -0.5
pos = [0.0, 0.0, 0.0]
bonds = [1, 2]

[[atoms]]
radius = 1.15
charge = 0.4
hb_type = "polar-h"
hb_corr = -0.3
pos = [0.9572, 0.0, 0.0]
bonds = [0]

[[atoms]]
radius = 1.15
charge = 0.4
hb_type = "polar-h"
hb_corr = -0.3
pos = [-0.24, 0.927, 0.0]
bonds = [0]
`

func TestReadInput(t *testing.T) {
	in, err := ReadInput(strings.NewReader(waterInput))
	require.NoError(t, err)

	require.Len(t, in.Atoms, 3)
	assert.Equal(t, Atom{
		Radius: 1.6, Charge: -0.8, Alpha: -0.07, Gamma: 0.11,
		HBType: watersite.Tetrahedral, HBCorr: -0.5, Heavy: true,
	}, in.Atoms[0])
	assert.Equal(t, watersite.PolarH, in.Atoms[2].HBType)
	assert.Equal(t, Connectivity{{1, 2}, {0}, {0}}, in.Conn)
	assert.Equal(t, [3]float64{-0.24, 0.927, 0}, in.Pos[2])
	assert.Equal(t, 1, in.Options.Workers)
	assert.Equal(t, 78.5, in.Options.DielOut)
	assert.Equal(t, DefaultOptions().HBLength, in.Options.HBLength)

	// two lone pair sites on the oxygen and one on each hydrogen
	s := newStructure(t, in.Atoms, in.Conn, in.Options)
	res, err := s.Evaluate(context.Background(), in.Pos)
	require.NoError(t, err)
	assert.Len(t, res.FreeVolume, 4)
	assert.Less(t, res.HB, 0.0)
}

func TestReadInputErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no atoms", "[options]\nworkers = 1"},
		{"hb type", "[[atoms]]\nradius = 1.5\nhb_type = \"sp4\"\npos = [0.0, 0.0, 0.0]"},
		{"pos", "[[atoms]]\nradius = 1.5\npos = [0.0, 0.0]"},
		{"options", "[options]\ntable_size = 1\n[[atoms]]\nradius = 1.5\npos = [0.0, 0.0, 0.0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadInput(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, ErrInput)
		})
	}
}
