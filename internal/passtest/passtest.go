// Package passtest builds .pkpass archives and manifests for tests.
package passtest

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/klauspost/compress/zip"
)

// File is one archive entry. Entries are written in slice order, which
// allows duplicate names.
type File struct {
	Name string
	Data []byte
	// Stored writes the entry uncompressed so its payload appears verbatim
	// in the archive.
	Stored bool
}

// Archive zips files in order.
func Archive(t testing.TB, files ...File) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		method := zip.Deflate
		if f.Stored {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: method})
		if err != nil {
			t.Fatalf("create %s: %v", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			t.Fatalf("write %s: %v", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return buf.Bytes()
}

// Pass zips manifest as pass.json followed by extra files.
func Pass(t testing.TB, manifest interface{}, extra ...File) []byte {
	t.Helper()
	return Archive(t, append([]File{{Name: "pass.json", Data: JSON(t, manifest)}}, extra...)...)
}

// JSON marshals v or fails the test.
func JSON(t testing.TB, v interface{}) []byte {
	t.Helper()
	bs, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bs
}

// Field returns a field entry object.
func Field(key, label, value string) map[string]interface{} {
	return map[string]interface{}{"key": key, "label": label, "value": value}
}

// Fields wraps entries as a JSON array.
func Fields(entries ...map[string]interface{}) []interface{} {
	out := make([]interface{}, len(entries))
	for i, e := range entries {
		out[i] = e
	}
	return out
}

// FlightManifest returns a complete boarding pass manifest: flight XX123
// from SFO to LAX on 15 Jun, boarding 14:30, departing 15:05.
func FlightManifest() map[string]interface{} {
	return map[string]interface{}{
		"serialNumber":       "ABC123",
		"formatVersion":      1,
		"passTypeIdentifier": "pass.com.example.boarding",
		"organizationName":   "Example Air",
		"teamIdentifier":     "TEAM123456",
		"description":        "Boarding pass",
		"backgroundColor":    "rgb(0,0,0)",
		"foregroundColor":    "rgb(255,255,255)",
		"logoText":           "Example Air",
		"barcode": map[string]interface{}{
			"format":          "PKBarcodeFormatAztec",
			"message":         "M1DOE/JANE EABC123 SFOLAXXX 0123 167Y012A0001 100",
			"messageEncoding": "iso-8859-1",
		},
		"boardingPass": map[string]interface{}{
			"transitType": "PKTransitTypeAir",
			"headerFields": Fields(
				Field("seat", "SEAT", "12A"),
				Field("flightNb", "FLIGHT", "XX123"),
			),
			"primaryFields": Fields(
				Field("boardPoint", "SAN FRANCISCO", "SFO"),
				Field("offPoint", "LOS ANGELES", "LAX"),
			),
			"secondaryFields": Fields(
				Field("passenger", "PASSENGER", "JANE DOE"),
				Field("bookingClass", "CLASS", "Y"),
				Field("group", "GROUP", "3"),
				Field("status", "STATUS", "OK"),
			),
			"auxiliaryFields": Fields(
				Field("Date", "DATE", "15 Jun"),
				Field("boardingTime", "BOARDING", "14:30"),
				Field("Details", "DETAILS", "Gate closes 15 min before departure"),
				Field("subsidiaryCarrier", "OPERATED BY", "XX123"),
			),
			"backFields": Fields(
				Field("ticket", "TICKET", "0011234567890"),
				Field("recloc", "BOOKING", "ABC123"),
				Field("fqtv", "FREQUENT FLYER", "XX 12345678"),
				Field("seq", "SEQUENCE", "001"),
				Field("departureTime", "DEPARTURE", "15:05"),
			),
		},
	}
}

// BoardingPass returns the boardingPass object of m.
func BoardingPass(m map[string]interface{}) map[string]interface{} {
	return m["boardingPass"].(map[string]interface{})
}
