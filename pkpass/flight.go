package pkpass

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/walletpass/passconv/passerr"
)

const (
	flightStruct = "Flight"

	boardingPassKey   = "boardingPass"
	transitTypeKey    = "transitType"
	transitTypeAirStr = "PKTransitTypeAir"

	// dateTimeLayout parses "<year> <day> <abbreviated month> <hour>:<minute>".
	dateTimeLayout = "2006 2 Jan 15:04"
)

// DefaultLocation is the zone boarding and departure times are read in when
// none is configured. It stands in for the departure airport's local time,
// which the pass does not carry.
var DefaultLocation = time.FixedZone("UTC-7", -7*60*60)

// TransitType is the closed set of recognized boardingPass.transitType values.
type TransitType int

const (
	TransitAir TransitType = iota + 1
)

var transitTypes = map[string]TransitType{
	transitTypeAirStr: TransitAir,
}

// ParseTransitType maps a manifest transitType string to a TransitType.
func ParseTransitType(s string) (TransitType, error) {
	t, ok := transitTypes[s]
	if !ok {
		e := passerr.Newf(passerr.UnknownTransitTypeErr, "%q is not a supported transit type", s)
		e.Key = transitTypeKey
		return 0, e
	}
	return t, nil
}

func (t TransitType) String() string {
	switch t {
	case TransitAir:
		return transitTypeAirStr
	default:
		return "unknown"
	}
}

var flightRegistration = Registration{
	Tag:     SubtypeFlight,
	Probe:   SignatureProbe(boardingPassKey, transitTypeKey, transitTypeAirStr),
	Extract: extractFlightSubtype,
}

// Flight is the read-only view of an air boarding pass.
type Flight struct {
	header      FieldGroup
	primary     FieldGroup
	secondary   FieldGroup
	auxiliary   FieldGroup
	back        FieldGroup
	transitType TransitType

	year     int
	location *time.Location
}

// Tag implements Subtype.
func (*Flight) Tag() SubtypeTag { return SubtypeFlight }

func extractFlightSubtype(manifest map[string]interface{}, sub interface{}, p Params) (Subtype, error) {
	return ExtractFlight(manifest, sub, p)
}

// ExtractFlight validates the boardingPass object. All five groups and the
// transit type are mandatory.
func ExtractFlight(_ map[string]interface{}, sub interface{}, p Params) (*Flight, error) {
	obj, err := requireObject(sub, boardingPassKey)
	if err != nil {
		return nil, err
	}

	groups := map[GroupKind]FieldGroup{}
	for _, kind := range []GroupKind{GroupAuxiliary, GroupBack, GroupHeader, GroupPrimary, GroupSecondary} {
		arr, err := requireArray(obj, flightStruct, kind.JSONKey())
		if err != nil {
			return nil, err
		}
		g, err := extractFieldGroup(arr, flightStruct+"."+kind.JSONKey())
		if err != nil {
			return nil, err
		}
		groups[kind] = g
	}

	raw, err := requireString(obj, flightStruct, transitTypeKey)
	if err != nil {
		return nil, err
	}
	tt, err := ParseTransitType(raw)
	if err != nil {
		return nil, err
	}

	loc := p.Location
	if loc == nil {
		loc = DefaultLocation
	}

	return &Flight{
		header:      groups[GroupHeader],
		primary:     groups[GroupPrimary],
		secondary:   groups[GroupSecondary],
		auxiliary:   groups[GroupAuxiliary],
		back:        groups[GroupBack],
		transitType: tt,
		year:        p.Year,
		location:    loc,
	}, nil
}

// MarshalJSON renders the flight in the shape of the boardingPass object it
// was read from, tagged with its subtype.
func (f *Flight) MarshalJSON() ([]byte, error) {
	doc := map[string]interface{}{
		"type":         SubtypeFlight.String(),
		transitTypeKey: f.transitType.String(),
	}
	for _, kind := range GroupKinds {
		g := f.group(kind)
		if g == nil {
			g = FieldGroup{}
		}
		doc[kind.JSONKey()] = g
	}
	return json.Marshal(doc)
}

// Fields returns a copy of one field group.
func (f *Flight) Fields(kind GroupKind) FieldGroup {
	return f.group(kind).clone()
}

func (f *Flight) group(kind GroupKind) FieldGroup {
	switch kind {
	case GroupHeader:
		return f.header
	case GroupPrimary:
		return f.primary
	case GroupSecondary:
		return f.secondary
	case GroupAuxiliary:
		return f.auxiliary
	case GroupBack:
		return f.back
	default:
		return nil
	}
}

// Field looks key up in one group.
func (f *Flight) Field(kind GroupKind, key string) (string, bool) {
	return f.group(kind).Lookup(key)
}

// TransitType returns the boarding pass transit type.
func (f *Flight) TransitType() TransitType { return f.transitType }

// Year returns the reference year used for date reconstruction.
func (f *Flight) Year() int { return f.year }

// Location returns the zone used for date reconstruction.
func (f *Flight) Location() *time.Location { return f.location }

func (f *Flight) Date() (string, bool) { return f.auxiliary.Lookup("Date") }

func (f *Flight) BoardingTime() (string, bool) { return f.auxiliary.Lookup("boardingTime") }

func (f *Flight) Details() (string, bool) { return f.auxiliary.Lookup("Details") }

func (f *Flight) SubsidiaryCarrier() (string, bool) { return f.auxiliary.Lookup("subsidiaryCarrier") }

func (f *Flight) Ticket() (string, bool) { return f.back.Lookup("ticket") }

// Recloc is the booking confirmation code.
func (f *Flight) Recloc() (string, bool) { return f.back.Lookup("recloc") }

func (f *Flight) FrequentFlyer() (string, bool) { return f.back.Lookup("fqtv") }

func (f *Flight) Sequence() (string, bool) { return f.back.Lookup("seq") }

func (f *Flight) DepartureTime() (string, bool) { return f.back.Lookup("departureTime") }

func (f *Flight) Seat() (string, bool) { return f.header.Lookup("seat") }

func (f *Flight) FlightNumber() (string, bool) { return f.header.Lookup("flightNb") }

// BoardPoint is the origin airport code.
func (f *Flight) BoardPoint() (string, bool) { return f.primary.Lookup("boardPoint") }

// OffPoint is the destination airport code.
func (f *Flight) OffPoint() (string, bool) { return f.primary.Lookup("offPoint") }

func (f *Flight) Passenger() (string, bool) { return f.secondary.Lookup("passenger") }

func (f *Flight) BookingClass() (string, bool) { return f.secondary.Lookup("bookingClass") }

func (f *Flight) Status() (string, bool) { return f.secondary.Lookup("status") }

// Group is the boarding group.
func (f *Flight) Group() (string, bool) { return f.secondary.Lookup("group") }

// CarrierCode returns the two-letter airline code leading subsidiaryCarrier.
func (f *Flight) CarrierCode() (string, bool) {
	s, ok := f.carrier()
	if !ok {
		return "", false
	}
	return s[:2], true
}

// CarrierFlightNumber returns subsidiaryCarrier without its airline code.
func (f *Flight) CarrierFlightNumber() (string, bool) {
	s, ok := f.carrier()
	if !ok {
		return "", false
	}
	return s[2:], true
}

// carrier returns subsidiaryCarrier when it starts with a two character
// ASCII designator followed by at least one more character.
func (f *Flight) carrier() (string, bool) {
	s, ok := f.SubsidiaryCarrier()
	if !ok || len(s) < 3 || !isDesignatorChar(s[0]) || !isDesignatorChar(s[1]) {
		return "", false
	}
	return s, true
}

// IATA designators mix letters and digits, as in "U2" or "9W".
func isDesignatorChar(c byte) bool {
	return ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z') || ('0' <= c && c <= '9')
}

// BoardingDateTime combines Date and BoardingTime with the reference year.
// It reports false when either field is missing or does not parse.
func (f *Flight) BoardingDateTime() (time.Time, bool) {
	clock, ok := f.BoardingTime()
	if !ok {
		return time.Time{}, false
	}
	return f.reconstruct(clock)
}

// DepartureDateTime combines Date and DepartureTime with the reference year.
// It reports false when either field is missing or does not parse.
func (f *Flight) DepartureDateTime() (time.Time, bool) {
	clock, ok := f.DepartureTime()
	if !ok {
		return time.Time{}, false
	}
	return f.reconstruct(clock)
}

func (f *Flight) reconstruct(clock string) (time.Time, bool) {
	date, ok := f.Date()
	if !ok {
		return time.Time{}, false
	}
	return ReconstructDateTime(f.year, date, clock, f.location)
}

// ReconstructDateTime parses "<year> <dayMonth> <clock>" (for example
// "2024 15 Jun 14:30") in loc.
func ReconstructDateTime(year int, dayMonth, clock string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = DefaultLocation
	}
	composite := strconv.Itoa(year) + " " + dayMonth + " " + clock
	t, err := time.ParseInLocation(dateTimeLayout, composite, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
