package gwallet

// Airport is an origin or destination airport.
type Airport struct {
	Gate            string `json:"gate,omitempty"`
	AirportIataCode string `json:"airportIataCode,omitempty"`
}

// Carrier identifies the operating airline.
type Carrier struct {
	CarrierIataCode string `json:"carrierIataCode,omitempty"`
	AirlineLogo     string `json:"airlineLogo,omitempty"`
}

// Barcode is the scannable payload shown on the pass.
type Barcode struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// BoardingAndSeatingInfo places the passenger on the aircraft.
type BoardingAndSeatingInfo struct {
	SeatNumber    string `json:"seatNumber,omitempty"`
	SeatClass     string `json:"seatClass,omitempty"`
	BoardingGroup string `json:"boardingGroup,omitempty"`
}

// ReservationInfo references the booking.
type ReservationInfo struct {
	ConfirmationCode string `json:"confirmationCode,omitempty"`
	ETicketNumber    string `json:"eticketNumber,omitempty"`
}

// FlightHeader names the flight and its carrier.
type FlightHeader struct {
	FlightNumber string   `json:"flightNumber,omitempty"`
	Carrier      *Carrier `json:"carrier,omitempty"`
}

// FlightClass holds what every passenger of one flight shares.
type FlightClass struct {
	ID                              string        `json:"id"`
	Origin                          *Airport      `json:"origin,omitempty"`
	Destination                     *Airport      `json:"destination,omitempty"`
	FlightHeader                    *FlightHeader `json:"flightHeader,omitempty"`
	LocalScheduledDepartureDateTime string        `json:"localScheduledDepartureDateTime,omitempty"`
}

// FlightObject is one passenger's boarding pass.
type FlightObject struct {
	ID                     string                  `json:"id"`
	ClassID                string                  `json:"classId"`
	Barcode                *Barcode                `json:"barcode,omitempty"`
	PassengerName          string                  `json:"passengerName,omitempty"`
	BoardingAndSeatingInfo *BoardingAndSeatingInfo `json:"boardingAndSeatingInfo,omitempty"`
	ReservationInfo        *ReservationInfo        `json:"reservationInfo,omitempty"`
}

// Preview is a Google Wallet flight payload.
type Preview struct {
	FlightClasses []FlightClass  `json:"flightClasses"`
	FlightObjects []FlightObject `json:"flightObjects"`
}
