package fare

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"fare-monitor/faults"
)

const (
	InfoNoBestPrice = "no best price available"
	InfoNoIntervals = "no intervals found"
)

// marcador que o upstream devolve quando não há tarifa para a data
var noFareMarker = []byte("Preisauskunft nicht möglich")

type bestPriceResponse struct {
	Intervals []struct {
		Price       *amount `json:"preis"`
		Connections []struct {
			FromPrice  *amount `json:"abPreis"`
			Connection *struct {
				Transfers int `json:"umstiegsAnzahl"`
				Sections  []struct {
					Departure        string `json:"abfahrtsZeitpunkt"`
					Arrival          string `json:"ankunftsZeitpunkt"`
					Origin           string `json:"abfahrtsOrt"`
					Destination      string `json:"ankunftsOrt"`
					OriginExtID      string `json:"abfahrtsOrtExtId"`
					DestinationExtID string `json:"ankunftsOrtExtId"`
					Vehicle          *struct {
						Product  string `json:"produktGattung"`
						Category string `json:"kategorie"`
						Name     string `json:"name"`
					} `json:"verkehrsmittel"`
				} `json:"verbindungsAbschnitte"`
			} `json:"verbindung"`
		} `json:"verbindungen"`
	} `json:"intervalle"`
}

type amount struct {
	Value *float64 `json:"betrag"`
}

func (a *amount) ok() bool { return a != nil && a.Value != nil }

// ParseBestPrice decodifica a resposta de melhor preço do upstream para um dia.
// O dia devolvido contém TODOS os intervalos (ordenados por preço), sem filtros;
// preço/info do dia ficam para quem aplica os filtros.
func ParseBestPrice(payload []byte) (Day, error) {
	if bytes.Contains(payload, noFareMarker) {
		return Day{Info: InfoNoBestPrice}, nil
	}

	var resp bestPriceResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return Day{}, faults.Decode("best price payload", err)
	}
	if resp.Intervals == nil {
		return Day{Info: InfoNoIntervals}, nil
	}

	var out []Interval
	for _, iv := range resp.Intervals {
		if !iv.Price.ok() {
			continue
		}
		for _, c := range iv.Connections {
			if !c.FromPrice.ok() || c.Connection == nil || len(c.Connection.Sections) == 0 {
				continue
			}
			legs := make([]Leg, 0, len(c.Connection.Sections))
			route := make([]string, 0, len(c.Connection.Sections))
			for _, s := range c.Connection.Sections {
				leg := Leg{
					Departure:        s.Departure,
					Arrival:          s.Arrival,
					Origin:           s.Origin,
					Destination:      s.Destination,
					OriginExtID:      s.OriginExtID,
					DestinationExtID: s.DestinationExtID,
				}
				if s.Vehicle != nil {
					leg.Vehicle = &Vehicle{Product: s.Vehicle.Product, Category: s.Vehicle.Category, Name: s.Vehicle.Name}
				}
				legs = append(legs, leg)
				route = append(route, s.Origin+" → "+s.Destination)
			}
			first, last := legs[0], legs[len(legs)-1]
			out = append(out, Interval{
				Price:       *c.FromPrice.Value,
				Legs:        legs,
				Departure:   first.Departure,
				Arrival:     last.Arrival,
				Origin:      first.Origin,
				Destination: last.Destination,
				Info:        strings.Join(route, " | "),
				Transfers:   c.Connection.Transfers,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return Day{Intervals: out}, nil
}

type stationResponse []struct {
	ExtID    string   `json:"extId"`
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Type     string   `json:"type"`
	Products []string `json:"products"`
}

// ParseStations decodifica a resposta da busca de estações. Entradas sem extId
// ou sem nome são descartadas.
func ParseStations(payload []byte) ([]Station, error) {
	var resp stationResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, faults.Decode("station payload", err)
	}
	out := make([]Station, 0, len(resp))
	for _, s := range resp {
		if s.ExtID == "" || s.Name == "" {
			continue
		}
		id := s.ID
		if id == "" {
			id = s.ExtID
		}
		out = append(out, Station{
			ID:           id,
			NormalizedID: NormalizeStationID(id),
			ExtID:        s.ExtID,
			Name:         s.Name,
			Lat:          s.Lat,
			Lon:          s.Lon,
			Type:         s.Type,
			Products:     s.Products,
		})
	}
	return out, nil
}
