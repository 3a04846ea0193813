package pass

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletpass/passconv/internal/passtest"
	"github.com/walletpass/passconv/passerr"
	"github.com/walletpass/passconv/pkpass"
)

func readPass(t *testing.T, manifest map[string]interface{}, extra ...passtest.File) *pkpass.PkPass {
	t.Helper()
	p, err := pkpass.Read(bytes.NewReader(passtest.Pass(t, manifest, extra...)), 2024)
	require.NoError(t, err)
	return p
}

func TestFromPkPass(t *testing.T) {
	src := readPass(t, passtest.FlightManifest(),
		passtest.File{Name: "icon.png", Data: []byte{0x89, 'P', 'N', 'G'}},
		passtest.File{Name: "en.lproj/pass.strings", Data: []byte(`"BOARDING" = "Boarding";`)},
		passtest.File{Name: "fr.lproj/logo.png", Data: []byte{1}},
	)

	p, err := FromPkPass(src)
	require.NoError(t, err)

	assert.Equal(t, "ABC123", p.ID)
	assert.Equal(t, "pass.com.example.boarding", p.TypeID)
	assert.Equal(t, "Example Air", p.Title)
	assert.Equal(t, "Boarding pass", p.Description)
	assert.Equal(t, "Example Air", p.Issuer)
	assert.Equal(t, "rgb(0,0,0)", p.BackgroundColor)
	assert.Equal(t, "rgb(255,255,255)", p.ForegroundColor)

	assert.Equal(t, []Barcode{{
		Format:   "PKBarcodeFormatAztec",
		Message:  "M1DOE/JANE EABC123 SFOLAXXX 0123 167Y012A0001 100",
		Encoding: "iso-8859-1",
	}}, p.Barcodes)

	require.Len(t, p.FrontContent, 4)
	assert.Equal(t, Field{Key: "seat", Label: "SEAT", Value: "12A"}, p.FrontContent[0][0])
	assert.Equal(t, "boardPoint", p.FrontContent[1][0].Key)
	assert.Equal(t, "passenger", p.FrontContent[2][0].Key)
	assert.Equal(t, "Date", p.FrontContent[3][0].Key)
	require.Len(t, p.BackContent, 5)
	assert.Equal(t, "departureTime", p.BackContent[4].Key)

	assert.Len(t, p.Files, 4)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, p.Files["icon.png"])
	assert.Equal(t, map[string]map[string]string{"en": {"BOARDING": "Boarding"}}, p.Strings)

	require.NotNil(t, p.Flight)
	f := p.Flight
	assert.Equal(t, "XX123", f.FlightNumber)
	assert.Equal(t, "XX", f.CarrierCode)
	assert.Equal(t, "123", f.CarrierFlight)
	assert.Equal(t, "SFO", f.Origin)
	assert.Equal(t, "LAX", f.Destination)
	assert.Equal(t, "JANE DOE", f.Passenger)
	assert.Equal(t, "12A", f.Seat)
	assert.Equal(t, "Y", f.BookingClass)
	assert.Equal(t, "3", f.BoardingGroup)
	assert.Equal(t, "OK", f.Status)
	assert.Equal(t, "ABC123", f.ConfirmationCode)
	assert.Equal(t, "0011234567890", f.Ticket)
	assert.Equal(t, "XX 12345678", f.FrequentFlyer)
	assert.Equal(t, "001", f.Sequence)
	assert.Equal(t, "Gate closes 15 min before departure", f.Details)
	assert.Equal(t, "PKTransitTypeAir", f.TransitType)

	require.NotNil(t, f.BoardingTime)
	assert.True(t, f.BoardingTime.Equal(time.Date(2024, time.June, 15, 21, 30, 0, 0, time.UTC)))
	require.NotNil(t, f.DepartureTime)
	assert.True(t, f.DepartureTime.Equal(time.Date(2024, time.June, 15, 22, 5, 0, 0, time.UTC)))
}

func TestFromPkPassSkipsEmptyGroups(t *testing.T) {
	m := passtest.FlightManifest()
	bp := passtest.BoardingPass(m)
	bp["headerFields"] = passtest.Fields()
	bp["auxiliaryFields"] = passtest.Fields()

	p, err := FromPkPass(readPass(t, m))
	require.NoError(t, err)

	require.Len(t, p.FrontContent, 2)
	assert.Equal(t, "boardPoint", p.FrontContent[0][0].Key)
	assert.Equal(t, "passenger", p.FrontContent[1][0].Key)

	assert.Empty(t, p.Flight.Seat)
	assert.Nil(t, p.Flight.BoardingTime)
	assert.Nil(t, p.Flight.DepartureTime)
}

func TestFromPkPassBarcodes(t *testing.T) {
	m := passtest.FlightManifest()
	m["barcodes"] = []interface{}{
		map[string]interface{}{"format": "PKBarcodeFormatQR", "message": "qr", "messageEncoding": "utf-8"},
		map[string]interface{}{"format": "PKBarcodeFormatPDF417", "message": "pdf", "messageEncoding": "utf-8"},
	}

	p, err := FromPkPass(readPass(t, m))
	require.NoError(t, err)

	require.Len(t, p.Barcodes, 2)
	assert.Equal(t, "PKBarcodeFormatQR", p.Barcodes[0].Format)
	assert.Equal(t, "pdf", p.Barcodes[1].Message)
}

func TestFromPkPassInvalidStrings(t *testing.T) {
	src := readPass(t, passtest.FlightManifest(),
		passtest.File{Name: "de.lproj/pass.strings", Data: []byte(`"gate" = `)},
	)

	_, err := FromPkPass(src)
	require.Error(t, err)
	assert.True(t, errors.Is(err, passerr.ErrInvalidStrings))
}

func TestPassJSON(t *testing.T) {
	p, err := FromPkPass(readPass(t, passtest.FlightManifest(), passtest.File{Name: "icon.png", Data: []byte{1}}))
	require.NoError(t, err)

	bs, err := json.Marshal(p)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(bs, &doc))

	assert.NotContains(t, doc, "files")
	assert.NotContains(t, doc, "strings")
	assert.Equal(t, "ABC123", doc["id"])

	flight, ok := doc["flight"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "2024-06-15T14:30:00-07:00", flight["boardingTime"])
}

func TestFromGoogleWallet(t *testing.T) {
	_, err := FromGoogleWallet([]byte(`{"flightObjects": []}`))
	assert.True(t, errors.Is(err, passerr.ErrNotImplemented))
}
