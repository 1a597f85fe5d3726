package fare

import (
	"errors"
	"testing"

	"fare-monitor/faults"
)

const samplePayload = `{
  "intervalle": [
    {"preis": {"betrag": 19.99}, "verbindungen": [
      {"abPreis": {"betrag": 39.9}, "verbindung": {"umstiegsAnzahl": 1, "verbindungsAbschnitte": [
        {"abfahrtsZeitpunkt": "2026-11-02T06:00:00", "ankunftsZeitpunkt": "2026-11-02T08:00:00",
         "abfahrtsOrt": "Berlin Hbf", "ankunftsOrt": "Leipzig Hbf",
         "verkehrsmittel": {"produktGattung": "ICE", "kategorie": "ICE", "name": "ICE 1001"}},
        {"abfahrtsZeitpunkt": "2026-11-02T08:15:00", "ankunftsZeitpunkt": "2026-11-02T11:00:00",
         "abfahrtsOrt": "Leipzig Hbf", "ankunftsOrt": "München Hbf"}
      ]}},
      {"abPreis": {"betrag": 19.99}, "verbindung": {"umstiegsAnzahl": 0, "verbindungsAbschnitte": [
        {"abfahrtsZeitpunkt": "2026-11-02T09:00:00", "ankunftsZeitpunkt": "2026-11-02T13:00:00",
         "abfahrtsOrt": "Berlin Hbf", "ankunftsOrt": "München Hbf"}
      ]}},
      {"verbindung": {"umstiegsAnzahl": 0, "verbindungsAbschnitte": []}}
    ]},
    {"verbindungen": []}
  ]
}`

func TestParseBestPrice(t *testing.T) {
	day, err := ParseBestPrice([]byte(samplePayload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(day.Intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(day.Intervals))
	}
	cheapest := day.Intervals[0]
	if cheapest.Price != 19.99 || cheapest.Transfers != 0 {
		t.Fatalf("expected cheapest direct interval first, got %+v", cheapest)
	}
	second := day.Intervals[1]
	if second.Info != "Berlin Hbf → Leipzig Hbf | Leipzig Hbf → München Hbf" {
		t.Fatalf("unexpected route description %q", second.Info)
	}
	if second.Departure != "2026-11-02T06:00:00" || second.Arrival != "2026-11-02T11:00:00" {
		t.Fatalf("unexpected endpoints %s -> %s", second.Departure, second.Arrival)
	}
	if second.Legs[0].Vehicle == nil || second.Legs[0].Vehicle.Name != "ICE 1001" {
		t.Fatalf("expected vehicle on first leg")
	}
}

func TestParseBestPrice_NoFareMarker(t *testing.T) {
	day, err := ParseBestPrice([]byte(`{"fehler":"Preisauskunft nicht möglich"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if day.Info != InfoNoBestPrice || len(day.Intervals) != 0 {
		t.Fatalf("unexpected day %+v", day)
	}
}

func TestParseBestPrice_NoIntervals(t *testing.T) {
	day, err := ParseBestPrice([]byte(`{}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if day.Info != InfoNoIntervals {
		t.Fatalf("unexpected info %q", day.Info)
	}
}

func TestParseBestPrice_MalformedIsDecodeError(t *testing.T) {
	_, err := ParseBestPrice([]byte(`{"intervalle": [`))
	if !errors.Is(err, faults.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestParseStations(t *testing.T) {
	stations, err := ParseStations([]byte(`[
	  {"extId": "8011160", "id": "A=1@O=Berlin Hbf@p=1700000000@", "name": "Berlin Hbf"},
	  {"extId": "8000261", "name": "München Hbf"},
	  {"extId": "", "name": "broken"},
	  {"extId": "1", "name": ""}
	]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(stations) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(stations))
	}
	if stations[0].NormalizedID != "A=1@O=Berlin Hbf@" {
		t.Fatalf("unexpected normalized id %q", stations[0].NormalizedID)
	}
	if stations[1].ID != "8000261" {
		t.Fatalf("expected id fallback to extId, got %q", stations[1].ID)
	}
}
