package fare

import "testing"

func TestKey_DefaultEqualOptionalsYieldSameKey(t *testing.T) {
	a := Query{
		OriginID:      "A=1@O=Berlin Hbf@X=1@p=1700000000@",
		DestinationID: "A=1@O=München Hbf@",
		Date:          "2026-11-02",
		AgeCategory:   "ERWACHSENER",
		FareClass:     "KLASSE_2",
	}
	b := a
	b.OriginID = "A=1@O=Berlin Hbf@X=1@p=1800000000@"
	b.DiscountType = DefaultDiscountType
	b.DiscountClass = DefaultDiscountClass
	b.MinTransferTime = "normal"

	if a.Key() != b.Key() {
		t.Fatalf("expected identical keys:\n%s\n%s", a.Key(), b.Key())
	}
}

func TestKey_UndefinedOptionalIsOmitted(t *testing.T) {
	q := Query{OriginID: "a", DestinationID: "b", Date: "2026-11-02", MinTransferTime: "undefined"}
	want := `{"startStationId":"a","zielStationId":"b","date":"2026-11-02","alter":"","ermaessigungArt":"KEINE_ERMAESSIGUNG","ermaessigungKlasse":"KLASSENLOS","klasse":"","schnelleVerbindungen":false}`
	if got := q.Key(); got != want {
		t.Fatalf("unexpected key:\n got %s\nwant %s", got, want)
	}
}

func TestKey_DifferentTransferTimeChangesKey(t *testing.T) {
	q := Query{OriginID: "a", DestinationID: "b", Date: "2026-11-02"}
	r := q
	r.MinTransferTime = "15"
	if q.Key() == r.Key() {
		t.Fatalf("expected different keys when min transfer time is set")
	}
}

func TestNormalizeStationID(t *testing.T) {
	got := NormalizeStationID("A=1@O=Köln Hbf@X=6958730@Y=50943029@U=80@L=8000207@B=1@p=1753870931@")
	want := "A=1@O=Köln Hbf@X=6958730@Y=50943029@U=80@L=8000207@B=1@"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestRouteHash_StableAndNormalized(t *testing.T) {
	h1 := RouteHash("A@p=1@", "B", "2026-11-02", "2026-11-02T08:00:00", "2026-11-02T12:00:00")
	h2 := RouteHash("A@p=2@", "B", "2026-11-02", "2026-11-02T08:00:00", "2026-11-02T12:00:00")
	if h1 != h2 {
		t.Fatalf("expected hash to ignore station timestamp token")
	}
	if len(h1) != 64 {
		t.Fatalf("expected hex sha256, got %q", h1)
	}
	h3 := RouteHash("A", "B", "2026-11-02", "2026-11-02T08:00:00", "2026-11-02T12:01:00")
	if h1 == h3 {
		t.Fatalf("expected different arrival to change hash")
	}
}

func TestRouteHash_FieldBoundaries(t *testing.T) {
	if RouteHash("ab", "c", "", "", "") == RouteHash("a", "bc", "", "", "") {
		t.Fatalf("expected shifted field boundaries to hash differently")
	}
}

func TestQuery_ConnectionUsesNormalizedStations(t *testing.T) {
	q := Query{OriginID: "X@p=9@", DestinationID: "Y", Date: "2026-11-02"}
	c := q.Connection(Interval{Departure: "2026-11-02T08:00:00", Arrival: "2026-11-02T10:00:00", Transfers: 1})
	if c.Origin != "X@" || c.Transfers != 1 || c.Date != "2026-11-02" {
		t.Fatalf("unexpected identity: %+v", c)
	}
}
