package seed

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

type User struct {
	ID              int64
	Name            string
	Age             int
	MobileNo        string
	Email           string
	RegionOfCommute string
	CreatedAt       time.Time
}

type BusStop struct {
	ID       int64
	Name     string
	Location string
	Region   string
}

type Route struct {
	ID          int64
	Name        string
	StartStopID int64
	EndStopID   int64
	DistanceKM  float64
}

type RouteStop struct {
	ID        int64
	RouteID   int64
	StopID    int64
	StopOrder int
}

type Bus struct {
	ID              int64
	Number          string
	Capacity        int
	CurrentLocation string
	RouteID         int64
	Status          string
}

type Driver struct {
	ID         int64
	Name       string
	MobileNo   string
	BusID      int64
	Location   string
	ShiftStart string
	ShiftEnd   string
}

type Ticket struct {
	ID                int64
	UserID            int64
	BusID             int64
	RouteID           int64
	SourceStopID      int64
	DestinationStopID int64
	Fare              float64
	PurchaseTime      time.Time
}

type Notification struct {
	ID      int64
	UserID  int64
	Type    string
	Message string
	SentAt  time.Time
}

// Dataset is one consistent set of transit rows. Ids start at 1 in every
// table and foreign keys refer to rows in the same dataset.
type Dataset struct {
	Users         []User
	BusStops      []BusStop
	Routes        []Route
	RouteStops    []RouteStop
	Buses         []Bus
	Drivers       []Driver
	Tickets       []Ticket
	Notifications []Notification
}

type stopSeed struct {
	name     string
	location string
	region   string
}

var punjabStops = []stopSeed{
	{"ISBT Chandigarh Sector 43", "Sector 43, Chandigarh", "Chandigarh"},
	{"ISBT Ludhiana", "Ferozepur Road, Ludhiana", "Malwa"},
	{"Amritsar Bus Stand", "GT Road, Amritsar", "Majha"},
	{"Jalandhar Bus Stand", "Nakodar Road, Jalandhar", "Doaba"},
	{"Patiala Bus Stand", "Sirhind Road, Patiala", "Malwa"},
	{"Bathinda Bus Stand", "Goniana Road, Bathinda", "Malwa"},
	{"Mohali Phase 8 Bus Stand", "Phase 8, Mohali", "Chandigarh"},
	{"Pathankot Bus Stand", "Dalhousie Road, Pathankot", "Majha"},
	{"Hoshiarpur Bus Stand", "Jalandhar Road, Hoshiarpur", "Doaba"},
	{"Phagwara Bus Stand", "GT Road, Phagwara", "Doaba"},
	{"Khanna Bus Stand", "GT Road, Khanna", "Malwa"},
	{"Moga Bus Stand", "GT Road, Moga", "Malwa"},
	{"Firozpur Bus Stand", "Cantt Road, Firozpur", "Malwa"},
	{"Sangrur Bus Stand", "Patiala Road, Sangrur", "Malwa"},
	{"Rajpura Bus Stand", "Patiala Road, Rajpura", "Malwa"},
}

// Each route lists stop indexes into punjabStops, in travel order.
var punjabRoutes = []struct {
	name  string
	stops []int
}{
	{"Chandigarh - Ludhiana Express", []int{0, 6, 10, 1}},
	{"Ludhiana - Amritsar", []int{1, 9, 3, 2}},
	{"Chandigarh - Patiala", []int{0, 14, 4}},
	{"Amritsar - Pathankot", []int{2, 7}},
	{"Jalandhar - Hoshiarpur", []int{3, 8}},
	{"Ludhiana - Bathinda", []int{1, 11, 5}},
	{"Patiala - Sangrur", []int{4, 13}},
	{"Ludhiana - Firozpur", []int{1, 11, 12}},
}

var (
	firstNames  = []string{"Gurpreet", "Harpreet", "Simran", "Manpreet", "Jaspreet", "Amandeep", "Navjot", "Kuldeep", "Rajinder", "Baljit", "Sukhwinder", "Parminder", "Ravneet", "Inderjit", "Arshdeep"}
	lastNames   = []string{"Singh", "Kaur", "Sandhu", "Gill", "Dhillon", "Brar", "Sidhu", "Grewal", "Bajwa", "Randhawa"}
	busStatuses = []string{"Running", "Running", "Running", "Delayed", "In Depot"}
	shifts      = [][2]string{{"05:00:00", "13:00:00"}, {"06:00:00", "14:00:00"}, {"13:00:00", "21:00:00"}, {"14:00:00", "22:00:00"}}
	districts   = []string{"PB-01", "PB-02", "PB-08", "PB-10", "PB-11", "PB-65"}
)

type Generator struct {
	rnd *rand.Rand
	cfg Config
	now func() time.Time
}

func NewGenerator(cfg Config) *Generator {
	return &Generator{
		rnd: rand.New(rand.NewSource(cfg.Seed)),
		cfg: cfg,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Generate builds the full dataset. Two generators with the same config and
// clock produce identical datasets.
func (g *Generator) Generate() Dataset {
	now := g.now().Truncate(time.Second)
	var ds Dataset

	for i, stop := range punjabStops {
		ds.BusStops = append(ds.BusStops, BusStop{ID: int64(i + 1), Name: stop.name, Location: stop.location, Region: stop.region})
	}

	for i, route := range punjabRoutes {
		routeID := int64(i + 1)
		first := int64(route.stops[0] + 1)
		last := int64(route.stops[len(route.stops)-1] + 1)
		ds.Routes = append(ds.Routes, Route{
			ID:          routeID,
			Name:        route.name,
			StartStopID: first,
			EndStopID:   last,
			DistanceKM:  round2(float64(len(route.stops)-1)*35 + g.rnd.Float64()*40),
		})
		for order, stopIndex := range route.stops {
			ds.RouteStops = append(ds.RouteStops, RouteStop{
				ID:        int64(len(ds.RouteStops) + 1),
				RouteID:   routeID,
				StopID:    int64(stopIndex + 1),
				StopOrder: order + 1,
			})
		}
		for b := 0; b < g.cfg.BusesPerRoute; b++ {
			busID := int64(len(ds.Buses) + 1)
			at := punjabStops[pickIndex(g.rnd, route.stops)]
			ds.Buses = append(ds.Buses, Bus{
				ID:              busID,
				Number:          fmt.Sprintf("%s-%04d", pickOne(g.rnd, districts), 1000+int(busID)*37%9000),
				Capacity:        pickOneInt(g.rnd, []int{32, 40, 52}),
				CurrentLocation: at.name,
				RouteID:         routeID,
				Status:          pickOne(g.rnd, busStatuses),
			})
			shift := shifts[g.rnd.Intn(len(shifts))]
			ds.Drivers = append(ds.Drivers, Driver{
				ID:         busID,
				Name:       g.personName(),
				MobileNo:   g.mobile(),
				BusID:      busID,
				Location:   at.location,
				ShiftStart: shift[0],
				ShiftEnd:   shift[1],
			})
		}
	}

	for i := 0; i < g.cfg.Users; i++ {
		name := g.personName()
		userID := int64(i + 1)
		ds.Users = append(ds.Users, User{
			ID:              userID,
			Name:            name,
			Age:             18 + g.rnd.Intn(55),
			MobileNo:        g.mobile(),
			Email:           fmt.Sprintf("rider%03d@example.in", userID),
			RegionOfCommute: pickOne(g.rnd, []string{"Chandigarh", "Malwa", "Majha", "Doaba"}),
			CreatedAt:       now.Add(-time.Duration(g.rnd.Intn(365*24)) * time.Hour),
		})
	}

	for i := 0; i < g.cfg.Tickets; i++ {
		bus := ds.Buses[g.rnd.Intn(len(ds.Buses))]
		stops := punjabRoutes[bus.RouteID-1].stops
		from := g.rnd.Intn(len(stops) - 1)
		to := from + 1 + g.rnd.Intn(len(stops)-from-1)
		ds.Tickets = append(ds.Tickets, Ticket{
			ID:                int64(i + 1),
			UserID:            int64(g.rnd.Intn(len(ds.Users)) + 1),
			BusID:             bus.ID,
			RouteID:           bus.RouteID,
			SourceStopID:      int64(stops[from] + 1),
			DestinationStopID: int64(stops[to] + 1),
			Fare:              round2(float64(to-from)*45 + g.rnd.Float64()*30),
			PurchaseTime:      now.Add(-time.Duration(g.rnd.Intn(30*24*60)) * time.Minute),
		})
	}

	for i := 0; i < g.cfg.Notifications; i++ {
		bus := ds.Buses[g.rnd.Intn(len(ds.Buses))]
		kind, message := g.notification(bus, ds.Routes[bus.RouteID-1])
		ds.Notifications = append(ds.Notifications, Notification{
			ID:      int64(i + 1),
			UserID:  int64(g.rnd.Intn(len(ds.Users)) + 1),
			Type:    kind,
			Message: message,
			SentAt:  now.Add(-time.Duration(g.rnd.Intn(7*24*60)) * time.Minute),
		})
	}

	return ds
}

func (g *Generator) notification(bus Bus, route Route) (string, string) {
	switch g.rnd.Intn(3) {
	case 0:
		return "delay", fmt.Sprintf("Bus %s on %s is running %d minutes late.", bus.Number, route.Name, 5+g.rnd.Intn(40))
	case 1:
		return "arrival", fmt.Sprintf("Bus %s is arriving at %s.", bus.Number, bus.CurrentLocation)
	default:
		return "booking", fmt.Sprintf("Your ticket on %s is confirmed.", route.Name)
	}
}

func (g *Generator) personName() string {
	return pickOne(g.rnd, firstNames) + " " + pickOne(g.rnd, lastNames)
}

func (g *Generator) mobile() string {
	return fmt.Sprintf("98%08d", g.rnd.Intn(100000000))
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}

func pickOneInt(r *rand.Rand, values []int) int {
	return values[r.Intn(len(values))]
}

func pickIndex(r *rand.Rand, values []int) int {
	return values[r.Intn(len(values))]
}
