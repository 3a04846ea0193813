// Copyright 2024 The passconv Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package pass defines the format-agnostic pass model every source format
// converts into.
package pass

import (
	"time"

	"github.com/walletpass/passconv/passerr"
	"github.com/walletpass/passconv/pkpass"
)

// Field is one labeled value shown on a pass face.
type Field struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Barcode is a machine-readable payload.
type Barcode struct {
	Format   string `json:"format"`
	Message  string `json:"message"`
	Encoding string `json:"encoding"`
}

// Flight holds the semantic attributes of a boarding pass. Absent attributes
// are empty strings; absent times are nil.
type Flight struct {
	FlightNumber     string     `json:"flightNumber,omitempty"`
	CarrierCode      string     `json:"carrierCode,omitempty"`
	CarrierFlight    string     `json:"carrierFlightNumber,omitempty"`
	Origin           string     `json:"origin,omitempty"`
	Destination      string     `json:"destination,omitempty"`
	Passenger        string     `json:"passenger,omitempty"`
	Seat             string     `json:"seat,omitempty"`
	BookingClass     string     `json:"bookingClass,omitempty"`
	BoardingGroup    string     `json:"boardingGroup,omitempty"`
	Status           string     `json:"status,omitempty"`
	ConfirmationCode string     `json:"confirmationCode,omitempty"`
	Ticket           string     `json:"ticket,omitempty"`
	FrequentFlyer    string     `json:"frequentFlyer,omitempty"`
	Sequence         string     `json:"sequence,omitempty"`
	Details          string     `json:"details,omitempty"`
	BoardingTime     *time.Time `json:"boardingTime,omitempty"`
	DepartureTime    *time.Time `json:"departureTime,omitempty"`
	TransitType      string     `json:"transitType"`
}

// Pass is the unified pass model.
type Pass struct {
	ID              string    `json:"id"`
	TypeID          string    `json:"typeId"`
	Title           string    `json:"title,omitempty"`
	Description     string    `json:"description"`
	Issuer          string    `json:"issuer"`
	Barcodes        []Barcode `json:"barcodes"`
	BackgroundColor string    `json:"backgroundColor"`
	ForegroundColor string    `json:"foregroundColor"`

	// FrontContent holds the non-empty front groups in display order.
	FrontContent [][]Field `json:"frontContent"`
	BackContent  []Field   `json:"backContent"`

	Files   map[string][]byte            `json:"-"`
	Strings map[string]map[string]string `json:"strings,omitempty"`

	Flight *Flight `json:"flight,omitempty"`
}

// FromPkPass maps an extracted Apple Wallet pass onto the unified model.
// It fails only when a localized pass.strings resource cannot be decoded.
func FromPkPass(p *pkpass.PkPass) (*Pass, error) {
	out := &Pass{
		ID:              p.Base.SerialNumber,
		TypeID:          p.Base.PassTypeIdentifier,
		Title:           p.Base.LogoText,
		Description:     p.Base.Description,
		Issuer:          p.Base.OrganizationName,
		BackgroundColor: p.Base.BackgroundColor,
		ForegroundColor: p.Base.ForegroundColor,
		FrontContent:    [][]Field{},
		BackContent:     []Field{},
	}

	for _, b := range p.Barcodes {
		out.Barcodes = append(out.Barcodes, Barcode{Format: b.Format, Message: b.Message, Encoding: b.MessageEncoding})
	}
	if len(out.Barcodes) == 0 {
		out.Barcodes = []Barcode{{Format: p.Barcode.Format, Message: p.Barcode.Message, Encoding: p.Barcode.MessageEncoding}}
	}

	if c := p.Container(); c != nil {
		out.Files = c.Entries()
		for _, locale := range c.Locales() {
			strs, err := c.Strings(locale)
			if err != nil {
				return nil, err
			}
			if strs == nil {
				continue
			}
			if out.Strings == nil {
				out.Strings = map[string]map[string]string{}
			}
			out.Strings[locale] = strs
		}
	}

	if f, ok := p.Flight(); ok {
		for _, kind := range []pkpass.GroupKind{pkpass.GroupHeader, pkpass.GroupPrimary, pkpass.GroupSecondary, pkpass.GroupAuxiliary} {
			if fields := convertGroup(f.Fields(kind)); len(fields) > 0 {
				out.FrontContent = append(out.FrontContent, fields)
			}
		}
		out.BackContent = convertGroup(f.Fields(pkpass.GroupBack))
		out.Flight = flightFromPkPass(f)
	}

	return out, nil
}

// FromGoogleWallet is reserved for Google Wallet input, which has no field
// mapping yet.
func FromGoogleWallet(_ []byte) (*Pass, error) {
	return nil, passerr.Newf(passerr.NotImplementedErr, "google wallet input is not supported")
}

func convertGroup(g pkpass.FieldGroup) []Field {
	out := make([]Field, 0, len(g))
	for _, e := range g {
		out = append(out, Field{Key: e.Key, Label: e.Label, Value: e.Value})
	}
	return out
}

func flightFromPkPass(f *pkpass.Flight) *Flight {
	get := func(fn func() (string, bool)) string {
		s, _ := fn()
		return s
	}

	out := &Flight{
		FlightNumber:     get(f.FlightNumber),
		CarrierCode:      get(f.CarrierCode),
		CarrierFlight:    get(f.CarrierFlightNumber),
		Origin:           get(f.BoardPoint),
		Destination:      get(f.OffPoint),
		Passenger:        get(f.Passenger),
		Seat:             get(f.Seat),
		BookingClass:     get(f.BookingClass),
		BoardingGroup:    get(f.Group),
		Status:           get(f.Status),
		ConfirmationCode: get(f.Recloc),
		Ticket:           get(f.Ticket),
		FrequentFlyer:    get(f.FrequentFlyer),
		Sequence:         get(f.Sequence),
		Details:          get(f.Details),
		TransitType:      f.TransitType().String(),
	}
	if t, ok := f.BoardingDateTime(); ok {
		out.BoardingTime = &t
	}
	if t, ok := f.DepartureDateTime(); ok {
		out.DepartureTime = &t
	}
	return out
}
