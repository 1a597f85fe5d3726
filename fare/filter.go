package fare

import (
	"strconv"
	"strings"
	"time"
)

// Filter restringe intervalos já obtidos. Os filtros são aplicados sobre os dados
// do cache, que guarda sempre o dia inteiro sem filtro.
type Filter struct {
	// DepartAfter e ArriveBy no formato "HH:MM"; vazio desliga o filtro.
	DepartAfter string
	ArriveBy    string
	// MaxTransfers nil permite qualquer número de baldeações; 0 só diretas.
	MaxTransfers *int
}

func (f Filter) Apply(in []Interval) []Interval {
	out := make([]Interval, 0, len(in))
	for _, iv := range in {
		if f.Matches(iv) {
			out = append(out, iv)
		}
	}
	return out
}

func (f Filter) Matches(iv Interval) bool {
	if f.MaxTransfers != nil && iv.Transfers > *f.MaxTransfers {
		return false
	}
	return f.matchesTime(iv.Departure, iv.Arrival)
}

func (f Filter) matchesTime(departure, arrival string) bool {
	from, hasFrom := clockMinutes(f.DepartAfter)
	to, hasTo := clockMinutes(f.ArriveBy)
	if !hasFrom && !hasTo {
		return true
	}

	dep, err1 := time.Parse(TimestampLayout, departure)
	arr, err2 := time.Parse(TimestampLayout, arrival)
	if err1 != nil || err2 != nil {
		return false
	}
	depMin := dep.Hour()*60 + dep.Minute()
	arrMin := arr.Hour()*60 + arr.Minute()
	sameDay := sameDate(dep, arr)
	nextDay := sameDate(dep.AddDate(0, 0, 1), arr)

	switch {
	case hasFrom && hasTo:
		if from < to {
			return sameDay && depMin >= from && arrMin <= to
		}
		// janela atravessa a meia-noite (ex.: 22:00-06:00)
		if sameDay {
			return depMin >= from
		}
		if nextDay {
			return depMin >= from && arrMin <= to
		}
		return false
	case hasFrom:
		return depMin >= from
	default:
		if sameDay {
			return arrMin <= to
		}
		if nextDay {
			return arrMin <= to && depMin > arrMin
		}
		return false
	}
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func clockMinutes(v string) (int, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	hh, mm, _ := strings.Cut(v, ":")
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, false
	}
	m := 0
	if mm != "" {
		if m, err = strconv.Atoi(mm); err != nil {
			return 0, false
		}
	}
	return h*60 + m, true
}
