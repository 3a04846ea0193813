// Copyright 2024 The passconv Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package pkpass extracts a validated model from an Apple Wallet pass.
//
// Extraction is all-or-nothing: any missing or mistyped required key aborts
// with a *passerr.Error. The only tolerated gaps are the reconstructed
// boarding and departure times of a flight, which report absence instead.
package pkpass

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/walletpass/passconv/container"
)

// PkPass is a validated Apple Wallet pass.
type PkPass struct {
	Base    BaseMetadata `json:"base"`
	Barcode Barcode      `json:"barcode"`
	Subtype Subtype      `json:"subtype"`

	// Barcodes holds the well-formed elements of "barcodes", or the legacy
	// barcode when there are none.
	Barcodes []Barcode `json:"barcodes"`

	container *container.Container
}

// Container returns the archive the pass was read from.
func (p *PkPass) Container() *container.Container {
	return p.container
}

// Flight returns the flight view when the pass is a boarding pass.
func (p *PkPass) Flight() (*Flight, bool) {
	f, ok := p.Subtype.(*Flight)
	return f, ok
}

// Option configures Read and Extract.
type Option func(*options)

type options struct {
	location  *time.Location
	registry  *Registry
	container []container.Option
}

// WithLocation sets the fixed zone used to reconstruct flight times.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.location = loc
	}
}

// WithUTCOffset is WithLocation for a fixed offset east of UTC.
func WithUTCOffset(d time.Duration) Option {
	return WithLocation(FixedLocation(d))
}

// WithRegistry replaces the subtype registry.
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithContainerOptions forwards options to the container reader.
func WithContainerOptions(opts ...container.Option) Option {
	return func(o *options) {
		o.container = append(o.container, opts...)
	}
}

// FixedLocation returns a zone at a fixed offset east of UTC.
func FixedLocation(d time.Duration) *time.Location {
	return time.FixedZone(formatOffset(d), int(d/time.Second))
}

func formatOffset(d time.Duration) string {
	if d == 0 {
		return "UTC"
	}
	sign := "+"
	if d < 0 {
		sign = "-"
		d = -d
	}
	s := fmt.Sprintf("UTC%s%d", sign, int(d/time.Hour))
	if m := int((d % time.Hour) / time.Minute); m != 0 {
		s += fmt.Sprintf(":%02d", m)
	}
	return s
}

func newOptions(opts []Option) *options {
	o := &options{
		location: DefaultLocation,
		registry: DefaultRegistry(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Read reads a .pkpass archive from r and extracts it. year resolves dates
// that carry no year.
func Read(r io.Reader, year int, opts ...Option) (*PkPass, error) {
	o := newOptions(opts)
	c, err := container.Read(r, o.container...)
	if err != nil {
		return nil, err
	}
	return extract(c, year, o)
}

// Open reads and extracts the .pkpass archive at path.
func Open(path string, year int, opts ...Option) (*PkPass, error) {
	o := newOptions(opts)
	c, err := container.Open(path, o.container...)
	if err != nil {
		return nil, err
	}
	return extract(c, year, o)
}

// Extract validates an already opened container.
func Extract(c *container.Container, year int, opts ...Option) (*PkPass, error) {
	return extract(c, year, newOptions(opts))
}

func extract(c *container.Container, year int, o *options) (*PkPass, error) {
	manifest := c.Manifest()
	params := Params{Year: year, Location: o.location}

	var (
		base    BaseMetadata
		barcode Barcode
		subtype Subtype
	)

	// The three sections only read the manifest. Wait returns whichever
	// failure came first, so the per-section errors are kept to report
	// them in a fixed order.
	errs := make([]error, 3)
	var g errgroup.Group
	g.Go(func() error {
		base, errs[0] = ExtractBase(manifest)
		return errs[0]
	})
	g.Go(func() error {
		subtype, errs[1] = o.registry.Extract(manifest, params)
		return errs[1]
	})
	g.Go(func() error {
		barcode, errs[2] = ExtractBarcode(manifest)
		return errs[2]
	})
	if err := g.Wait(); err != nil {
		for _, e := range errs {
			if e != nil {
				return nil, e
			}
		}
		return nil, err
	}

	return &PkPass{
		Base:      base,
		Barcode:   barcode,
		Subtype:   subtype,
		Barcodes:  ExtractBarcodes(manifest),
		container: c,
	}, nil
}
