package fare

import "time"

// TimestampLayout é o formato (hora local, sem fuso) usado pelo upstream.
const TimestampLayout = "2006-01-02T15:04:05"

// DateLayout é o formato dos dias de viagem.
const DateLayout = "2006-01-02"

// FareParams são os parâmetros de tarifa de uma observação de preço.
type FareParams struct {
	AgeCategory   string `json:"ageCategory"`
	DiscountType  string `json:"discountType"`
	DiscountClass string `json:"discountClass"`
	FareClass     string `json:"fareClass"`
}

// ConnectionIdentity identifica uma conexão concreta. Os campos são carregados
// explicitamente de ponta a ponta; o hash só existe como chave de armazenamento.
type ConnectionIdentity struct {
	Origin      string
	Destination string
	Date        string
	Departure   string
	Arrival     string
	Transfers   int
}

func (c ConnectionIdentity) RouteHash() string {
	return RouteHash(c.Origin, c.Destination, c.Date, c.Departure, c.Arrival)
}

type PricePoint struct {
	Price      float64   `json:"price"`
	RecordedAt time.Time `json:"recordedAt"`
}

type Vehicle struct {
	Product  string `json:"product,omitempty"`
	Category string `json:"category,omitempty"`
	Name     string `json:"name,omitempty"`
}

type Leg struct {
	Departure        string   `json:"departure"`
	Arrival          string   `json:"arrival"`
	Origin           string   `json:"origin"`
	Destination      string   `json:"destination"`
	OriginExtID      string   `json:"originExtId,omitempty"`
	DestinationExtID string   `json:"destinationExtId,omitempty"`
	Vehicle          *Vehicle `json:"vehicle,omitempty"`
}

// Interval é uma alternativa concreta de viagem dentro de um dia.
type Interval struct {
	Price          float64      `json:"price"`
	Legs           []Leg        `json:"legs"`
	Departure      string       `json:"departure"`
	Arrival        string       `json:"arrival"`
	Origin         string       `json:"origin"`
	Destination    string       `json:"destination"`
	Info           string       `json:"info"`
	Transfers      int          `json:"transfers"`
	CheapestInSlot bool         `json:"cheapestInSlot,omitempty"`
	History        []PricePoint `json:"history,omitempty"`
}

// Day é o resultado agregado (melhor preço) de uma data.
type Day struct {
	Price     float64      `json:"price"`
	Info      string       `json:"info"`
	Departure string       `json:"departure"`
	Arrival   string       `json:"arrival"`
	Intervals []Interval   `json:"intervals,omitempty"`
	History   []PricePoint `json:"history,omitempty"`
}

// Days indexa dias de tarifa pela data (YYYY-MM-DD).
type Days map[string]Day

// Station é um resultado da busca de estações.
type Station struct {
	ID           string   `json:"id"`
	NormalizedID string   `json:"normalizedId"`
	ExtID        string   `json:"extId"`
	Name         string   `json:"name"`
	Lat          *float64 `json:"lat,omitempty"`
	Lon          *float64 `json:"lon,omitempty"`
	Type         string   `json:"type,omitempty"`
	Products     []string `json:"products,omitempty"`
}
