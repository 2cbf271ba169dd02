package normalize

import (
	"bytes"
	"encoding/json"
	"testing"

	gateway "github.com/skyward-io/skygate/internal"
)

const aviationstackPayload = `{
	"pagination": {"limit": 100, "offset": 0, "count": 1, "total": 1},
	"data": [{
		"flight_date": "2026-08-27",
		"flight_status": "active",
		"departure": {"airport": "Denver Intl", "iata": "DEN", "scheduled": "2026-08-27T14:30:00+00:00"},
		"arrival": {"airport": "O'Hare Intl", "iata": "ORD", "scheduled": "2026-08-27T17:55:00+00:00"},
		"airline": {"name": "United Airlines", "iata": "UA"},
		"flight": {"number": "100", "iata": "UA100"}
	}]
}`

const openskyPayload = `{
	"time": 1756300000,
	"states": [
		["aab1c2", "UAL100  ", "United States", 1756299998, 1756300000, -104.67, 39.85, 10972.8, false, 231.5, 86.3, 0, null, 11277.6, "2354", false, 0]
	]
}`

func TestWeatherWrapping(t *testing.T) {
	t.Parallel()
	raw := json.RawMessage(`{"main":{"temp":21.5},"wind":{"speed":4.2}}`)

	out, err := ForCategory(gateway.CategoryWeather)("openweathermap", raw)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatal(err)
	}
	if string(doc["weather"]) != string(raw) {
		t.Errorf("weather = %s", doc["weather"])
	}
}

func TestWeatherWrapping_EmptyPayload(t *testing.T) {
	t.Parallel()
	out, err := ForCategory(gateway.CategoryWeather)("aviationweather", nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"weather":{}}` {
		t.Errorf("out = %s", out)
	}
}

func TestGeoWrapping(t *testing.T) {
	t.Parallel()
	raw := json.RawMessage(`[{"lat":"39.85","lon":"-104.67","display_name":"Denver International Airport"}]`)

	out, err := ForCategory(gateway.CategoryGeo)("openstreetmap", raw)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatal(err)
	}
	if string(doc["result"]) != string(raw) {
		t.Errorf("result = %s", doc["result"])
	}
}

func TestFlightRecords(t *testing.T) {
	t.Parallel()
	out, err := ForCategory(gateway.CategoryFlight)("aviationstack", json.RawMessage(aviationstackPayload))
	if err != nil {
		t.Fatal(err)
	}
	var info gateway.FlightInfo
	if err := json.Unmarshal(out, &info); err != nil {
		t.Fatal(err)
	}

	want := map[string]*string{
		"FlightNumber": info.FlightNumber,
		"Airline":      info.Airline,
		"DepIata":      info.DepIata,
		"ArrIata":      info.ArrIata,
		"Status":       info.Status,
	}
	for field, got := range want {
		if got == nil {
			t.Fatalf("%s is nil", field)
		}
	}
	if *info.FlightNumber != "UA100" {
		t.Errorf("flightNumber = %q", *info.FlightNumber)
	}
	if *info.Airline != "United Airlines" {
		t.Errorf("airline = %q", *info.Airline)
	}
	if *info.DepIata != "DEN" || *info.ArrIata != "ORD" {
		t.Errorf("route = %q -> %q", *info.DepIata, *info.ArrIata)
	}
	if *info.Status != "active" {
		t.Errorf("status = %q", *info.Status)
	}
	if *info.DepTime != "2026-08-27T14:30:00+00:00" {
		t.Errorf("depTime = %q", *info.DepTime)
	}
	if len(info.Raw) == 0 {
		t.Error("raw payload must be preserved")
	}

	// Normalizing the same raw payload again must yield identical bytes.
	again, err := ForCategory(gateway.CategoryFlight)("aviationstack", json.RawMessage(aviationstackPayload))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, again) {
		t.Errorf("repeated normalization diverged:\n%s\n%s", out, again)
	}
}

func TestFlightRecords_EmptyData(t *testing.T) {
	t.Parallel()
	out, err := ForCategory(gateway.CategoryFlight)("aviationstack", json.RawMessage(`{"data":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	var info gateway.FlightInfo
	if err := json.Unmarshal(out, &info); err != nil {
		t.Fatal(err)
	}
	if info.FlightNumber != nil || info.Status != nil {
		t.Error("missing fields must stay null, not be fabricated")
	}
}

func TestFlightStates(t *testing.T) {
	t.Parallel()
	out, err := ForCategory(gateway.CategoryFlight)("opensky", json.RawMessage(openskyPayload))
	if err != nil {
		t.Fatal(err)
	}
	var info gateway.FlightInfo
	if err := json.Unmarshal(out, &info); err != nil {
		t.Fatal(err)
	}
	if info.FlightNumber == nil || *info.FlightNumber != "UAL100" {
		t.Errorf("flightNumber = %v, want trimmed callsign", info.FlightNumber)
	}
	if info.Status == nil || *info.Status != "airborne" {
		t.Errorf("status = %v", info.Status)
	}
	if info.Airline != nil || info.DepIata != nil || info.ArrIata != nil {
		t.Error("state vectors carry no airline or route data")
	}
}

func TestFlightStates_Empty(t *testing.T) {
	t.Parallel()
	out, err := ForCategory(gateway.CategoryFlight)("opensky", json.RawMessage(`{"time":1756300000,"states":null}`))
	if err != nil {
		t.Fatal(err)
	}
	var info gateway.FlightInfo
	if err := json.Unmarshal(out, &info); err != nil {
		t.Fatal(err)
	}
	if info.Status != nil {
		t.Error("no states means no airborne status")
	}
}

func TestUnknownCategoryIdentity(t *testing.T) {
	t.Parallel()
	raw := json.RawMessage(`{"anything":1}`)
	out, err := ForCategory(gateway.Category("unknown"))("x", raw)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != string(raw) {
		t.Errorf("out = %s", out)
	}
}
