package seed

import (
	"reflect"
	"testing"
	"time"
)

func TestGeneratorDeterministicForSeed(t *testing.T) {
	fixedNow := time.Date(2026, 2, 19, 7, 30, 0, 0, time.UTC)

	g1 := NewGenerator(DefaultConfig())
	g2 := NewGenerator(DefaultConfig())
	g1.now = func() time.Time { return fixedNow }
	g2.now = func() time.Time { return fixedNow }

	if !reflect.DeepEqual(g1.Generate(), g2.Generate()) {
		t.Fatal("datasets differ for the same seed")
	}
}

func TestGeneratorForeignKeysResolve(t *testing.T) {
	cfg := DefaultConfig()
	ds := NewGenerator(cfg).Generate()

	if len(ds.BusStops) != len(punjabStops) || len(ds.Routes) != len(punjabRoutes) {
		t.Fatalf("stops=%d routes=%d", len(ds.BusStops), len(ds.Routes))
	}
	if len(ds.Buses) != len(punjabRoutes)*cfg.BusesPerRoute || len(ds.Drivers) != len(ds.Buses) {
		t.Fatalf("buses=%d drivers=%d", len(ds.Buses), len(ds.Drivers))
	}
	if len(ds.Users) != cfg.Users || len(ds.Tickets) != cfg.Tickets || len(ds.Notifications) != cfg.Notifications {
		t.Fatalf("users=%d tickets=%d notifications=%d", len(ds.Users), len(ds.Tickets), len(ds.Notifications))
	}

	stopIDs := map[int64]bool{}
	for _, stop := range ds.BusStops {
		stopIDs[stop.ID] = true
	}
	numbers := map[string]bool{}
	for _, bus := range ds.Buses {
		if numbers[bus.Number] {
			t.Fatalf("duplicate bus number %s", bus.Number)
		}
		numbers[bus.Number] = true
		if bus.RouteID < 1 || bus.RouteID > int64(len(ds.Routes)) {
			t.Fatalf("bus %d route %d", bus.ID, bus.RouteID)
		}
	}
	for _, rs := range ds.RouteStops {
		if !stopIDs[rs.StopID] {
			t.Fatalf("routestop %d refers to stop %d", rs.ID, rs.StopID)
		}
	}
	for _, ticket := range ds.Tickets {
		if !stopIDs[ticket.SourceStopID] || !stopIDs[ticket.DestinationStopID] || ticket.SourceStopID == ticket.DestinationStopID {
			t.Fatalf("ticket %d stops %d -> %d", ticket.ID, ticket.SourceStopID, ticket.DestinationStopID)
		}
		if ticket.UserID < 1 || ticket.UserID > int64(len(ds.Users)) || ticket.Fare <= 0 {
			t.Fatalf("ticket = %+v", ticket)
		}
	}
}

func TestRoutesStartAndEndAtTheirFirstAndLastStops(t *testing.T) {
	ds := NewGenerator(DefaultConfig()).Generate()
	for _, route := range ds.Routes {
		var first, last RouteStop
		for _, rs := range ds.RouteStops {
			if rs.RouteID != route.ID {
				continue
			}
			if first.ID == 0 || rs.StopOrder < first.StopOrder {
				first = rs
			}
			if rs.StopOrder > last.StopOrder {
				last = rs
			}
		}
		if first.StopID != route.StartStopID || last.StopID != route.EndStopID {
			t.Fatalf("route %q: start %d/%d end %d/%d", route.Name, first.StopID, route.StartStopID, last.StopID, route.EndStopID)
		}
	}
}
