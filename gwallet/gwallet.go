// Package gwallet renders an extracted boarding pass as a Google Wallet
// flight class and object.
package gwallet

import (
	"github.com/walletpass/passconv/passerr"
	"github.com/walletpass/passconv/pkpass"
)

const (
	// BarcodeType is the symbology written into every preview object.
	BarcodeType = "AZTEC"

	// DepartureLayout formats localScheduledDepartureDateTime. Google expects
	// an ISO 8601 local date-time without offset.
	DepartureLayout = "2006-01-02T15:04"
)

// FromPkPass builds the preview for a flight pass. Any other subtype is
// rejected.
func FromPkPass(p *pkpass.PkPass) (*Preview, error) {
	if p == nil {
		return nil, passerr.Newf(passerr.NotImplementedErr, "no pass to convert")
	}
	f, ok := p.Flight()
	if !ok {
		return nil, passerr.Newf(passerr.NotImplementedErr, "subtype %v has no google wallet mapping", subtypeName(p.Subtype))
	}

	class := FlightClass{
		ID:          p.Base.SerialNumber,
		Origin:      airport(f.BoardPoint),
		Destination: airport(f.OffPoint),
	}

	code, _ := f.CarrierCode()
	number, _ := f.CarrierFlightNumber()
	if code != "" || number != "" {
		header := &FlightHeader{FlightNumber: number}
		if code != "" {
			header.Carrier = &Carrier{CarrierIataCode: code}
		}
		class.FlightHeader = header
	}

	if t, ok := f.DepartureDateTime(); ok {
		class.LocalScheduledDepartureDateTime = t.Format(DepartureLayout)
	}

	object := FlightObject{
		ID:      p.Base.SerialNumber,
		ClassID: p.Base.PassTypeIdentifier,
		Barcode: &Barcode{Type: BarcodeType, Value: p.Barcode.Message},
	}
	object.PassengerName, _ = f.Passenger()

	seat, _ := f.Seat()
	seatClass, _ := f.BookingClass()
	group, _ := f.Group()
	if seat != "" || seatClass != "" || group != "" {
		object.BoardingAndSeatingInfo = &BoardingAndSeatingInfo{SeatNumber: seat, SeatClass: seatClass, BoardingGroup: group}
	}

	recloc, _ := f.Recloc()
	ticket, _ := f.Ticket()
	if recloc != "" || ticket != "" {
		object.ReservationInfo = &ReservationInfo{ConfirmationCode: recloc, ETicketNumber: ticket}
	}

	return &Preview{
		FlightClasses: []FlightClass{class},
		FlightObjects: []FlightObject{object},
	}, nil
}

func airport(fn func() (string, bool)) *Airport {
	code, ok := fn()
	if !ok {
		return nil
	}
	return &Airport{AirportIataCode: code}
}

func subtypeName(s pkpass.Subtype) string {
	if s == nil {
		return "none"
	}
	return s.Tag().String()
}
