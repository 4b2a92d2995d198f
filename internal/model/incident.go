// Package model defines the incident records shared across the ingestion pipeline.
package model

import "time"

// RawIncident mirrors one record from the upstream public-access feed.
// Field values arrive untrimmed and the timestamp is a naive local string.
// Raw records are ephemeral: they exist only between fetch and normalization.
type RawIncident struct {
	ID         string `json:"Incident_Id"`
	CallType   string `json:"Call_Type"`
	ReceivedAt string `json:"Received_Dtm"`
	Address    string `json:"Address"`
	Area       string `json:"Area"`
	Station    string `json:"Cd_Station"`
	Dispo      string `json:"Dispo"`
}

// Incident is one normalized dispatch record. Lat and Lon are either both
// nil or both set; ReceivedAt is always a valid instant.
type Incident struct {
	ID          string    `json:"incident_id"`
	CallType    string    `json:"call_type"`
	Category    string    `json:"call_category"`
	Priority    int       `json:"priority"`
	ReceivedAt  time.Time `json:"received_at"`
	AddressRaw  *string   `json:"address_raw"`
	Area        *string   `json:"area"`
	Disposition *string   `json:"disposition"`
	Lat         *float64  `json:"lat"`
	Lon         *float64  `json:"lon"`
	Approximate bool      `json:"location_approximate"`
}

// HasAddress reports whether the incident carries a usable address text.
func (i Incident) HasAddress() bool {
	return i.AddressRaw != nil && *i.AddressRaw != ""
}

// SetLocation attaches coordinates to the incident in place.
func (i *Incident) SetLocation(lat, lon float64, approximate bool) {
	i.Lat = &lat
	i.Lon = &lon
	i.Approximate = approximate
}
