// Package audiodev defines the narrow audio-capture contract named as
// out-of-scope in spec §1/§4.11: device enumeration and the capture
// device itself are opaque external collaborators.
package audiodev

import (
	"context"
	"errors"
)

// ErrExhausted is returned by a FixtureEnumerator's Device once its
// canned buffer sequence is exhausted.
var ErrExhausted = errors.New("audiodev: fixture buffers exhausted")

// Info describes one capturable audio input device.
type Info struct {
	Index      int
	Name       string
	SampleRate int
}

// Device streams fixed-size mono float64 buffers in [-1.0, 1.0].
type Device interface {
	Read(ctx context.Context) ([]float64, error)
	Close() error
}

// Enumerator lists available capture devices.
type Enumerator interface {
	Devices() ([]Info, error)
	Open(index int, bufferSize int) (Device, error)
}

// FixtureEnumerator is an in-memory Enumerator over pre-recorded buffers,
// used by `list`, `run` and tests.
type FixtureEnumerator struct {
	infos   []Info
	buffers map[int][][]float64
}

// NewFixtureEnumerator builds an Enumerator over the given device
// descriptions and their canned buffer sequences.
func NewFixtureEnumerator(infos []Info, buffers map[int][][]float64) *FixtureEnumerator {
	return &FixtureEnumerator{infos: infos, buffers: buffers}
}

// Devices implements Enumerator.
func (f *FixtureEnumerator) Devices() ([]Info, error) {
	return f.infos, nil
}

// Open implements Enumerator, returning a fixtureDevice that replays the
// canned buffer sequence for index, then reports ErrExhausted.
func (f *FixtureEnumerator) Open(index int, bufferSize int) (Device, error) {
	return &fixtureDevice{buffers: f.buffers[index]}, nil
}

type fixtureDevice struct {
	buffers [][]float64
	pos     int
}

func (d *fixtureDevice) Read(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.pos >= len(d.buffers) {
		return nil, ErrExhausted
	}
	buf := d.buffers[d.pos]
	d.pos++
	return buf, nil
}

func (d *fixtureDevice) Close() error { return nil }
