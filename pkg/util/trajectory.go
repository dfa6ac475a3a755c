package util

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Trajectory reads the configurations of a LAMMPS dump file one after the
// other. The atoms must be listed in the same order in every configuration.
// Unwrapped coordinates (xu, yu, zu) are used when present, x, y and z
// otherwise.
type Trajectory struct {
	r *bufio.Reader

	// Header of the last configuration read.
	Timestep int
	Atoms    int
	Box      [3]float64

	cols    [3]int
	colsLen int
}

// NewTrajectory returns a reader of the dump file r.
func NewTrajectory(r io.Reader) *Trajectory {
	return &Trajectory{r: bufio.NewReader(r)}
}

func (t *Trajectory) line() (string, error) {
	b, err := t.r.ReadString('\n')
	if err != nil && (err != io.EOF || len(b) == 0) {
		return "", err
	}
	return strings.TrimSpace(b), nil
}

// Next reads the next configuration into pos, grown or shrunk to the number
// of atoms, and returns it. It returns io.EOF when there is no configuration
// left.
func (t *Trajectory) Next(pos [][3]float64) ([][3]float64, error) {
	if err := t.header(); err != nil {
		return pos, err
	}

	if cap(pos) < t.Atoms {
		pos = make([][3]float64, t.Atoms)
	}
	pos = pos[:t.Atoms]
	for i := range pos {
		l, err := t.line()
		if err != nil {
			return pos, fmt.Errorf("atom %d: %w", i, noEOF(err))
		}
		fields := strings.Fields(l)
		if len(fields) != t.colsLen {
			return pos, fmt.Errorf("atom %d: number of columns don't match: %d (expected %d)", i, len(fields), t.colsLen)
		}
		for k := 0; k < 3; k++ {
			pos[i][k], err = strconv.ParseFloat(fields[t.cols[k]], 64)
			if err != nil {
				return pos, fmt.Errorf("atom %d: %w", i, err)
			}
		}
	}
	return pos, nil
}

// Skip discards x configurations.
func (t *Trajectory) Skip(x int) error {
	var pos [][3]float64
	for i := 0; i < x; i++ {
		var err error
		pos, err = t.Next(pos)
		if err != nil {
			return fmt.Errorf("configuration %d: %w", i, err)
		}
	}
	return nil
}

// header reads the lines before the atoms: timestep, number of atoms, box
// bounds and the names of the columns.
func (t *Trajectory) header() error {
	if _, err := t.line(); err != nil {
		return err
	}

	var (
		l   string
		err error
	)
	if l, err = t.line(); err == nil {
		t.Timestep, err = strconv.Atoi(l)
	}
	if err != nil {
		return fmt.Errorf("timestep: %w", noEOF(err))
	}

	t.line()
	if l, err = t.line(); err == nil {
		t.Atoms, err = strconv.Atoi(l)
	}
	if err != nil {
		return fmt.Errorf("number of atoms: %w", noEOF(err))
	}

	t.line()
	for k := 0; k < 3; k++ {
		l, err = t.line()
		if err != nil {
			return fmt.Errorf("box: %w", noEOF(err))
		}
		fields := strings.Fields(l)
		if len(fields) < 2 {
			return errors.New("unable to get the size of the box")
		}
		lmin, _ := strconv.ParseFloat(fields[0], 64)
		lmax, _ := strconv.ParseFloat(fields[1], 64)
		t.Box[k] = lmax - lmin
	}

	l, err = t.line()
	if err != nil {
		return fmt.Errorf("columns: %w", noEOF(err))
	}
	return t.columns(l)
}

func (t *Trajectory) columns(l string) error {
	fields := strings.Fields(l)
	if len(fields) <= 2 {
		return fmt.Errorf("not enough columns (at least 3; got %d)", len(fields))
	}
	fields = fields[2:]
	t.colsLen = len(fields)

	for _, names := range [][3]string{{"xu", "yu", "zu"}, {"x", "y", "z"}} {
		found := 0
		for k, v := range fields {
			for c, name := range names {
				if v == name {
					t.cols[c] = k
					found++
				}
			}
		}
		if found == 3 {
			return nil
		}
	}
	return errors.New("cannot find the columns xu, yu, and zu")
}

// noEOF turns an end of file in the middle of a configuration into an
// unexpected one.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
