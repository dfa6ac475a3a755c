package util

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dump = `ITEM: TIMESTEP
0
ITEM: NUMBER OF ATOMS
2
ITEM: BOX BOUNDS pp pp pp
-10 10
-10 10
0 30
ITEM: ATOMS id type xu yu zu
1 1 0.0 0.5 1.0
2 2 3.0 -0.5 1.0
ITEM: TIMESTEP
100
ITEM: NUMBER OF ATOMS
2
ITEM: BOX BOUNDS pp pp pp
-10 10
-10 10
0 30
ITEM: ATOMS id type xu yu zu
1 1 0.1 0.5 1.0
2 2 3.2 -0.5 1.0
`

func TestTrajectory(t *testing.T) {
	tr := NewTrajectory(strings.NewReader(dump))

	pos, err := tr.Next(nil)
	require.NoError(t, err)
	assert.Equal(t, [][3]float64{{0, 0.5, 1}, {3, -0.5, 1}}, pos)
	assert.Equal(t, [3]float64{20, 20, 30}, tr.Box)

	pos, err = tr.Next(pos)
	require.NoError(t, err)
	assert.Equal(t, 100, tr.Timestep)
	assert.Equal(t, [3]float64{3.2, -0.5, 1}, pos[1])

	_, err = tr.Next(pos)
	assert.ErrorIs(t, err, io.EOF)
}

func TestTrajectorySkip(t *testing.T) {
	tr := NewTrajectory(strings.NewReader(dump))
	require.NoError(t, tr.Skip(1))
	pos, err := tr.Next(nil)
	require.NoError(t, err)
	assert.Equal(t, 100, tr.Timestep)
	assert.Len(t, pos, 2)

	assert.Error(t, NewTrajectory(strings.NewReader(dump)).Skip(3))
}

func TestTrajectoryErrors(t *testing.T) {
	truncated := dump[:strings.Index(dump, "2 2 3.0")]
	_, err := NewTrajectory(strings.NewReader(truncated)).Next(nil)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	noCols := strings.Replace(dump, "xu yu zu", "vx vy vz", 1)
	_, err = NewTrajectory(strings.NewReader(noCols)).Next(nil)
	assert.Error(t, err)

	wrapped := strings.ReplaceAll(dump, "xu yu zu", "x y z")
	pos, err := NewTrajectory(strings.NewReader(wrapped)).Next(nil)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{3, -0.5, 1}, pos[1])
}

func TestWrite(t *testing.T) {
	type params struct {
		FileIn string  `toml:"energy.file_in"`
		Step   float64 `toml:"energy.step"`
	}
	path := filepath.Join(t.TempDir(), "out")
	f, err := Write(path, params{FileIn: "in.toml", Step: 0.5})
	require.NoError(t, err)
	f.WriteString("cfg etot\n")
	require.NoError(t, f.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "Date: "))
	assert.Contains(t, string(b), "in.toml")
	assert.True(t, strings.HasSuffix(string(b), "cfg etot\n"))
}

func TestPow(t *testing.T) {
	assert.Equal(t, 8.0, Pow(2, 3))
	assert.Equal(t, 1.5, Pow(1.5, 1))
}
