// Copyright 2024 The passconv Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package passerr defines the error taxonomy shared by the container reader
// and the pass extractors.
package passerr

import (
	"errors"
	"fmt"
)

// Error is the error type returned while reading and extracting a pass.
type Error struct {
	Code   string `json:"code"`
	Struct string `json:"struct,omitempty"`
	Key    string `json:"key,omitempty"`
	Entry  string `json:"entry,omitempty"`
	err    error  `json:"-"`
}

const (

	// ContainerErr error code returned when the archive or one of its entries cannot be read
	ContainerErr string = "container_error"

	// MissingManifestErr error code returned when the archive has no pass.json entry
	MissingManifestErr string = "missing_manifest"

	// InvalidJSONErr error code returned when pass.json is not a JSON object
	InvalidJSONErr string = "invalid_json"

	// SchemaErr error code returned when a required key is absent or has the wrong JSON type
	SchemaErr string = "schema_error"

	// NoSubtypeErr error code returned when no subtype signature matches the manifest
	NoSubtypeErr string = "no_subtype_detected"

	// AmbiguousSubtypeErr error code returned when more than one subtype signature matches
	AmbiguousSubtypeErr string = "ambiguous_subtype"

	// UnknownTransitTypeErr error code returned when boardingPass.transitType is not recognized
	UnknownTransitTypeErr string = "unknown_transit_type"

	// InvalidStringsErr error code returned when a localized pass.strings file cannot be decoded
	InvalidStringsErr string = "invalid_strings"

	// NotImplementedErr error code returned by conversions that have no field mapping yet
	NotImplementedErr string = "not_implemented"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrContainer          = &Error{Code: ContainerErr}
	ErrMissingManifest    = &Error{Code: MissingManifestErr}
	ErrInvalidJSON        = &Error{Code: InvalidJSONErr}
	ErrSchema             = &Error{Code: SchemaErr}
	ErrNoSubtype          = &Error{Code: NoSubtypeErr}
	ErrAmbiguousSubtype   = &Error{Code: AmbiguousSubtypeErr}
	ErrUnknownTransitType = &Error{Code: UnknownTransitTypeErr}
	ErrInvalidStrings     = &Error{Code: InvalidStringsErr}
	ErrNotImplemented     = &Error{Code: NotImplementedErr}
)

// Is allows matching pass errors using errors.Is. A target with an empty Key
// matches any key.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if t.Code != "" && e.Code != t.Code {
		return false
	}
	return t.Key == "" || t.Key == e.Key
}

// Error allows converting Error to string type
func (e *Error) Error() string {
	msg := e.Code
	switch {
	case e.Struct != "" && e.Key != "":
		msg = fmt.Sprintf("%s: %s is missing key %q", msg, e.Struct, e.Key)
	case e.Key != "":
		msg = fmt.Sprintf("%s: key %q", msg, e.Key)
	}
	if e.Entry != "" {
		msg = fmt.Sprintf("%s: entry %q", msg, e.Entry)
	}
	if e.err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.err)
	}
	return msg
}

// Wrap wraps err as the cause of the pass error
func (e *Error) Wrap(err error) *Error {
	e.err = err
	return e
}

// Unwrap gets the error wrapped in the pass error
func (e *Error) Unwrap() error {
	return e.err
}

// New returns an Error with the given code wrapping err, which may be nil.
func New(code string, err error) *Error {
	return &Error{Code: code, err: err}
}

// Newf is New with a formatted cause.
func Newf(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, err: fmt.Errorf(format, args...)}
}

// Schema reports a required key that is absent or mistyped in the named struct.
func Schema(structName, key string) *Error {
	return &Error{Code: SchemaErr, Struct: structName, Key: key}
}

// Entry reports a failure reading a single archive entry.
func Entry(name string, err error) *Error {
	return &Error{Code: ContainerErr, Entry: name, err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "" when
// there is none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
