// Package normalize shapes raw provider payloads into the canonical
// response forms served to clients. Raw payloads are stored in the cache
// untouched; normalization runs on every serve, hit or miss, so cached
// and live responses always share a shape.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	gateway "github.com/skyward-io/skygate/internal"
)

// Func transforms a raw provider payload into the canonical shape for its
// category.
type Func func(provider string, raw json.RawMessage) (json.RawMessage, error)

// byCategory is the single strategy table. Adding a category means adding
// a row here, not a type.
var byCategory = map[gateway.Category]Func{
	gateway.CategoryWeather: wrapWeather,
	gateway.CategoryGeo:     wrapGeo,
	gateway.CategoryFlight:  normalizeFlight,
}

// ForCategory returns the normalizer for cat. Unknown categories get the
// identity function.
func ForCategory(cat gateway.Category) Func {
	if f, ok := byCategory[cat]; ok {
		return f
	}
	return func(_ string, raw json.RawMessage) (json.RawMessage, error) { return raw, nil }
}

// wrapWeather nests the provider payload under a "weather" key.
func wrapWeather(_ string, raw json.RawMessage) (json.RawMessage, error) {
	return wrap("weather", raw)
}

// wrapGeo nests the provider payload under a "result" key.
func wrapGeo(_ string, raw json.RawMessage) (json.RawMessage, error) {
	return wrap("result", raw)
}

func wrap(field string, raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	out, err := json.Marshal(map[string]json.RawMessage{field: raw})
	if err != nil {
		return nil, fmt.Errorf("wrap %s payload: %w", field, err)
	}
	return out, nil
}

// normalizeFlight extracts the provider-agnostic flight fields. Each
// provider reports a different subset; missing fields stay null.
func normalizeFlight(provider string, raw json.RawMessage) (json.RawMessage, error) {
	var info gateway.FlightInfo
	switch provider {
	case "opensky":
		info = flightFromStates(raw)
	default:
		info = flightFromRecords(raw)
	}
	info.Raw = raw
	out, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshal flight info: %w", err)
	}
	return out, nil
}

// flightFromRecords handles the record-list shape: a "data" array of
// objects with nested flight, airline, departure and arrival documents.
func flightFromRecords(raw json.RawMessage) gateway.FlightInfo {
	first := gjson.GetBytes(raw, "data.0")
	return gateway.FlightInfo{
		FlightNumber: strField(first.Get("flight.iata")),
		Airline:      strField(first.Get("airline.name")),
		DepIata:      strField(first.Get("departure.iata")),
		ArrIata:      strField(first.Get("arrival.iata")),
		Status:       strField(first.Get("flight_status")),
		DepTime:      strField(first.Get("departure.scheduled")),
		ArrTime:      strField(first.Get("arrival.scheduled")),
	}
}

// flightFromStates handles the state-vector shape: a "states" array of
// positional rows where index 1 is the padded callsign. Only the callsign
// and an airborne marker can be derived from it.
func flightFromStates(raw json.RawMessage) gateway.FlightInfo {
	var info gateway.FlightInfo
	states := gjson.GetBytes(raw, "states")
	if !states.IsArray() || len(states.Array()) == 0 {
		return info
	}
	status := "airborne"
	info.Status = &status

	callsign := strings.TrimSpace(states.Get("0.1").String())
	if callsign != "" {
		info.FlightNumber = &callsign
	}
	return info
}

// strField converts a gjson string result to a nullable field. Empty and
// non-string values (including JSON null) map to nil.
func strField(r gjson.Result) *string {
	if r.Type != gjson.String || r.Str == "" {
		return nil
	}
	s := r.Str
	return &s
}
