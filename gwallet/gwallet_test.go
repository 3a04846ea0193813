package gwallet

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/walletpass/passconv/internal/passtest"
	"github.com/walletpass/passconv/passerr"
	"github.com/walletpass/passconv/pkpass"
)

func readPass(t *testing.T, manifest map[string]interface{}, opts ...pkpass.Option) *pkpass.PkPass {
	t.Helper()
	p, err := pkpass.Read(bytes.NewReader(passtest.Pass(t, manifest)), 2024, opts...)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return p
}

func TestFromPkPass(t *testing.T) {
	preview, err := FromPkPass(readPass(t, passtest.FlightManifest()))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(preview.FlightClasses) != 1 || len(preview.FlightObjects) != 1 {
		t.Fatalf("Expected one class and one object, got %+v", preview)
	}

	class := preview.FlightClasses[0]
	if class.ID != "ABC123" {
		t.Errorf("Expected class id ABC123 but got %q", class.ID)
	}
	if class.Origin == nil || class.Origin.AirportIataCode != "SFO" {
		t.Errorf("Expected origin SFO but got %+v", class.Origin)
	}
	if class.Destination == nil || class.Destination.AirportIataCode != "LAX" {
		t.Errorf("Expected destination LAX but got %+v", class.Destination)
	}
	if class.FlightHeader == nil || class.FlightHeader.FlightNumber != "123" || class.FlightHeader.Carrier.CarrierIataCode != "XX" {
		t.Errorf("Expected flight header XX 123 but got %+v", class.FlightHeader)
	}
	if class.LocalScheduledDepartureDateTime != "2024-06-15T15:05" {
		t.Errorf("Expected departure 2024-06-15T15:05 but got %q", class.LocalScheduledDepartureDateTime)
	}

	object := preview.FlightObjects[0]
	if object.ClassID != "pass.com.example.boarding" {
		t.Errorf("Expected class id reference but got %q", object.ClassID)
	}
	if object.Barcode == nil || object.Barcode.Type != BarcodeType || object.Barcode.Value == "" {
		t.Errorf("Unexpected barcode %+v", object.Barcode)
	}
	if object.PassengerName != "JANE DOE" {
		t.Errorf("Expected passenger JANE DOE but got %q", object.PassengerName)
	}
	exp := BoardingAndSeatingInfo{SeatNumber: "12A", SeatClass: "Y", BoardingGroup: "3"}
	if object.BoardingAndSeatingInfo == nil || *object.BoardingAndSeatingInfo != exp {
		t.Errorf("Expected %+v but got %+v", exp, object.BoardingAndSeatingInfo)
	}
	if object.ReservationInfo == nil || object.ReservationInfo.ConfirmationCode != "ABC123" || object.ReservationInfo.ETicketNumber != "0011234567890" {
		t.Errorf("Unexpected reservation %+v", object.ReservationInfo)
	}
}

func TestFromPkPassSparseFlight(t *testing.T) {
	m := passtest.FlightManifest()
	bp := passtest.BoardingPass(m)
	bp["headerFields"] = passtest.Fields()
	bp["secondaryFields"] = passtest.Fields(passtest.Field("passenger", "PASSENGER", "JANE DOE"))
	bp["auxiliaryFields"] = passtest.Fields()
	bp["backFields"] = passtest.Fields()

	preview, err := FromPkPass(readPass(t, m))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	class, object := preview.FlightClasses[0], preview.FlightObjects[0]
	if class.FlightHeader != nil {
		t.Errorf("Expected no flight header but got %+v", class.FlightHeader)
	}
	if class.LocalScheduledDepartureDateTime != "" {
		t.Errorf("Expected no departure but got %q", class.LocalScheduledDepartureDateTime)
	}
	if object.BoardingAndSeatingInfo != nil || object.ReservationInfo != nil {
		t.Errorf("Expected empty sections to be omitted, got %+v", object)
	}

	bs, err := json.Marshal(preview)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if bytes.Contains(bs, []byte("boardingAndSeatingInfo")) || bytes.Contains(bs, []byte("flightHeader")) {
		t.Fatalf("Expected omitted sections to be absent from JSON: %s", bs)
	}
}

type eventTicket struct{}

func (eventTicket) Tag() pkpass.SubtypeTag { return pkpass.SubtypeTag(7) }

func TestFromPkPassRejectsOtherSubtypes(t *testing.T) {
	registry := pkpass.NewRegistry(pkpass.Registration{
		Tag:   pkpass.SubtypeTag(7),
		Probe: pkpass.SignatureProbe("eventTicket", "kind", "concert"),
		Extract: func(map[string]interface{}, interface{}, pkpass.Params) (pkpass.Subtype, error) {
			return eventTicket{}, nil
		},
	})

	m := passtest.FlightManifest()
	delete(m, "boardingPass")
	m["eventTicket"] = map[string]interface{}{"kind": "concert"}

	_, err := FromPkPass(readPass(t, m, pkpass.WithRegistry(registry)))
	if !errors.Is(err, passerr.ErrNotImplemented) {
		t.Fatalf("Expected not implemented error, got %v", err)
	}

	_, err = FromPkPass(nil)
	if !errors.Is(err, passerr.ErrNotImplemented) {
		t.Fatalf("Expected not implemented error for nil pass, got %v", err)
	}
}
