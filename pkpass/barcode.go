package pkpass

import (
	"fmt"

	"github.com/walletpass/passconv/passerr"
)

const barcodeStruct = "Barcode"

// Barcode is the machine-readable payload of a pass.
type Barcode struct {
	Format          string `json:"format"`
	Message         string `json:"message"`
	MessageEncoding string `json:"messageEncoding"`
}

// ExtractBarcode validates the manifest's barcode. The legacy "barcode"
// object is preferred; when it is absent the first element of "barcodes" is
// used instead.
func ExtractBarcode(manifest interface{}) (Barcode, error) {
	obj, err := requireObject(manifest, "manifest")
	if err != nil {
		return Barcode{}, err
	}

	if v, ok := obj["barcode"].(map[string]interface{}); ok {
		return extractBarcode(v, barcodeStruct)
	}
	if arr, ok := obj["barcodes"].([]interface{}); ok && len(arr) > 0 {
		return extractBarcode(arr[0], "barcodes[0]")
	}
	return Barcode{}, passerr.Schema("manifest", "barcode")
}

// ExtractBarcodes returns every well-formed element of "barcodes", falling
// back to the legacy "barcode" object. Malformed elements are skipped.
func ExtractBarcodes(manifest interface{}) []Barcode {
	obj, ok := manifest.(map[string]interface{})
	if !ok {
		return nil
	}

	var out []Barcode
	if arr, ok := obj["barcodes"].([]interface{}); ok {
		for i, v := range arr {
			if b, err := extractBarcode(v, fmt.Sprintf("barcodes[%d]", i)); err == nil {
				out = append(out, b)
			}
		}
	}
	if len(out) == 0 {
		if b, err := extractBarcode(obj["barcode"], barcodeStruct); err == nil {
			out = append(out, b)
		}
	}
	return out
}

func extractBarcode(v interface{}, structName string) (Barcode, error) {
	obj, err := requireObject(v, structName)
	if err != nil {
		return Barcode{}, err
	}

	var b Barcode
	if b.Format, err = requireString(obj, structName, "format"); err != nil {
		return Barcode{}, err
	}
	if b.Message, err = requireString(obj, structName, "message"); err != nil {
		return Barcode{}, err
	}
	if b.Message == "" {
		return Barcode{}, passerr.Schema(structName, "message").Wrap(fmt.Errorf("message is empty"))
	}
	if b.MessageEncoding, err = requireString(obj, structName, "messageEncoding"); err != nil {
		return Barcode{}, err
	}
	return b, nil
}
