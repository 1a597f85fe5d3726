package fare

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
)

const (
	DefaultDiscountType  = "KEINE_ERMAESSIGUNG"
	DefaultDiscountClass = "KLASSENLOS"
	// DefaultTransferTime é o valor do upstream que equivale a "sem tempo mínimo".
	DefaultTransferTime = "normal"
)

// Query são os parâmetros que determinam uma consulta de melhor preço de um dia.
// Campos opcionais vazios são tratados como ausentes.
type Query struct {
	OriginID        string
	DestinationID   string
	Date            string
	AgeCategory     string
	DiscountType    string
	DiscountClass   string
	FareClass       string
	FastConnections bool
	MinTransferTime string
}

// canonicalQuery fixa a ordem dos campos; opcionais são omitidos, nunca nulos.
type canonicalQuery struct {
	OriginID        string `json:"startStationId"`
	DestinationID   string `json:"zielStationId"`
	Date            string `json:"date"`
	AgeCategory     string `json:"alter"`
	DiscountType    string `json:"ermaessigungArt"`
	DiscountClass   string `json:"ermaessigungKlasse"`
	FareClass       string `json:"klasse"`
	FastConnections bool   `json:"schnelleVerbindungen"`
	MinTransferTime string `json:"umstiegszeit,omitempty"`
}

// Normalize devolve a consulta com defaults aplicados e ids de estação normalizados.
func (q Query) Normalize() Query {
	q.OriginID = NormalizeStationID(strings.TrimSpace(q.OriginID))
	q.DestinationID = NormalizeStationID(strings.TrimSpace(q.DestinationID))
	q.Date = strings.TrimSpace(q.Date)
	q.AgeCategory = strings.TrimSpace(q.AgeCategory)
	q.FareClass = strings.TrimSpace(q.FareClass)
	q.DiscountType = orDefault(q.DiscountType, DefaultDiscountType)
	q.DiscountClass = orDefault(q.DiscountClass, DefaultDiscountClass)
	q.MinTransferTime = optional(q.MinTransferTime)
	if q.MinTransferTime == DefaultTransferTime {
		q.MinTransferTime = ""
	}
	return q
}

// Key é a impressão digital canônica da consulta. É pura: consultas logicamente
// iguais produzem bytes idênticos.
func (q Query) Key() string {
	n := q.Normalize()
	b, _ := json.Marshal(canonicalQuery{
		OriginID:        n.OriginID,
		DestinationID:   n.DestinationID,
		Date:            n.Date,
		AgeCategory:     n.AgeCategory,
		DiscountType:    n.DiscountType,
		DiscountClass:   n.DiscountClass,
		FareClass:       n.FareClass,
		FastConnections: n.FastConnections,
		MinTransferTime: n.MinTransferTime,
	})
	return string(b)
}

func (q Query) FareParams() FareParams {
	n := q.Normalize()
	return FareParams{
		AgeCategory:   n.AgeCategory,
		DiscountType:  n.DiscountType,
		DiscountClass: n.DiscountClass,
		FareClass:     n.FareClass,
	}
}

// Connection monta a identidade de um intervalo desta consulta.
func (q Query) Connection(iv Interval) ConnectionIdentity {
	n := q.Normalize()
	return ConnectionIdentity{
		Origin:      n.OriginID,
		Destination: n.DestinationID,
		Date:        n.Date,
		Departure:   iv.Departure,
		Arrival:     iv.Arrival,
		Transfers:   iv.Transfers,
	}
}

func orDefault(v, def string) string {
	if v = optional(v); v == "" {
		return def
	}
	return v
}

func optional(v string) string {
	v = strings.TrimSpace(v)
	if v == "undefined" || v == "null" {
		return ""
	}
	return v
}

var stationTimestamp = regexp.MustCompile(`@p=\d+@`)

// NormalizeStationID remove o parâmetro "@p=<timestamp>@" que o upstream embute
// nos ids, para que a mesma estação física sempre tenha o mesmo id.
func NormalizeStationID(id string) string {
	return stationTimestamp.ReplaceAllString(id, "@")
}

// RouteHash é o hash estável (sha256, hex) de (origem, destino, data, partida, chegada).
// Os ids de estação são normalizados antes; cada campo é prefixado pelo tamanho
// para que fronteiras entre campos não colidam.
func RouteHash(origin, destination, date, departure, arrival string) string {
	h := sha256.New()
	var n [4]byte
	for _, f := range []string{
		NormalizeStationID(origin),
		NormalizeStationID(destination),
		date,
		departure,
		arrival,
	} {
		binary.BigEndian.PutUint32(n[:], uint32(len(f)))
		h.Write(n[:])
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}
