package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/busassist/busassist/internal/db"
)

// ErrAlreadySeeded is returned when the transit tables already hold rows.
var ErrAlreadySeeded = errors.New("transit tables already contain data")

type Counts struct {
	Users         int
	BusStops      int
	Routes        int
	RouteStops    int
	Buses         int
	Drivers       int
	Tickets       int
	Notifications int
}

type Loader struct {
	db      *sql.DB
	dialect db.Dialect
	logger  *slog.Logger
}

func NewLoader(handle *sql.DB, dialect db.Dialect, logger *slog.Logger) *Loader {
	return &Loader{db: handle, dialect: dialect, logger: logger}
}

// Load inserts ds in one transaction with explicit ids.
func (l *Loader) Load(ctx context.Context, ds Dataset) (Counts, error) {
	if l.db == nil {
		return Counts{}, fmt.Errorf("db is required")
	}

	var existing int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM busstops`).Scan(&existing); err != nil {
		return Counts{}, fmt.Errorf("count busstops: %w", err)
	}
	if existing > 0 {
		return Counts{}, ErrAlreadySeeded
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Counts{}, fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stop := range ds.BusStops {
		if err := l.exec(ctx, tx, `INSERT INTO busstops (stop_id, stop_name, location, region) VALUES ($1, $2, $3, $4)`,
			stop.ID, stop.Name, stop.Location, stop.Region); err != nil {
			return Counts{}, fmt.Errorf("insert busstop %d: %w", stop.ID, err)
		}
	}
	for _, route := range ds.Routes {
		if err := l.exec(ctx, tx, `INSERT INTO routes (route_id, route_name, start_stop_id, end_stop_id, distance_km) VALUES ($1, $2, $3, $4, $5)`,
			route.ID, route.Name, route.StartStopID, route.EndStopID, route.DistanceKM); err != nil {
			return Counts{}, fmt.Errorf("insert route %d: %w", route.ID, err)
		}
	}
	for _, rs := range ds.RouteStops {
		if err := l.exec(ctx, tx, `INSERT INTO routestops (id, route_id, stop_id, stop_order) VALUES ($1, $2, $3, $4)`,
			rs.ID, rs.RouteID, rs.StopID, rs.StopOrder); err != nil {
			return Counts{}, fmt.Errorf("insert routestop %d: %w", rs.ID, err)
		}
	}
	for _, bus := range ds.Buses {
		if err := l.exec(ctx, tx, `INSERT INTO buses (bus_id, bus_number, capacity, current_location, route_id, status) VALUES ($1, $2, $3, $4, $5, $6)`,
			bus.ID, bus.Number, bus.Capacity, bus.CurrentLocation, bus.RouteID, bus.Status); err != nil {
			return Counts{}, fmt.Errorf("insert bus %d: %w", bus.ID, err)
		}
	}
	for _, driver := range ds.Drivers {
		if err := l.exec(ctx, tx, `INSERT INTO drivers (driver_id, name, mobile_no, bus_id, location, shift_start, shift_end) VALUES ($1, $2, $3, $4, $5, CAST($6 AS TIME), CAST($7 AS TIME))`,
			driver.ID, driver.Name, driver.MobileNo, driver.BusID, driver.Location, driver.ShiftStart, driver.ShiftEnd); err != nil {
			return Counts{}, fmt.Errorf("insert driver %d: %w", driver.ID, err)
		}
	}
	for _, user := range ds.Users {
		if err := l.exec(ctx, tx, `INSERT INTO users (user_id, name, age, mobile_no, email, region_of_commute, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			user.ID, user.Name, user.Age, user.MobileNo, user.Email, user.RegionOfCommute, user.CreatedAt); err != nil {
			return Counts{}, fmt.Errorf("insert user %d: %w", user.ID, err)
		}
	}
	for _, ticket := range ds.Tickets {
		if err := l.exec(ctx, tx, `INSERT INTO tickets (ticket_id, user_id, bus_id, route_id, source_stop_id, destination_stop_id, fare, purchase_time) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			ticket.ID, ticket.UserID, ticket.BusID, ticket.RouteID, ticket.SourceStopID, ticket.DestinationStopID, ticket.Fare, ticket.PurchaseTime); err != nil {
			return Counts{}, fmt.Errorf("insert ticket %d: %w", ticket.ID, err)
		}
	}
	for _, n := range ds.Notifications {
		if err := l.exec(ctx, tx, `INSERT INTO notifications (notification_id, user_id, type, message, sent_at) VALUES ($1, $2, $3, $4, $5)`,
			n.ID, n.UserID, n.Type, n.Message, n.SentAt); err != nil {
			return Counts{}, fmt.Errorf("insert notification %d: %w", n.ID, err)
		}
	}

	if l.dialect == db.DialectPostgres {
		if err := resyncSerials(ctx, tx); err != nil {
			return Counts{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Counts{}, fmt.Errorf("commit seed tx: %w", err)
	}

	counts := Counts{
		Users:         len(ds.Users),
		BusStops:      len(ds.BusStops),
		Routes:        len(ds.Routes),
		RouteStops:    len(ds.RouteStops),
		Buses:         len(ds.Buses),
		Drivers:       len(ds.Drivers),
		Tickets:       len(ds.Tickets),
		Notifications: len(ds.Notifications),
	}
	if l.logger != nil {
		l.logger.InfoContext(ctx, "seeded transit data",
			slog.String("dialect", l.dialect.String()),
			slog.Int("busstops", counts.BusStops),
			slog.Int("routes", counts.Routes),
			slog.Int("buses", counts.Buses),
			slog.Int("users", counts.Users),
			slog.Int("tickets", counts.Tickets),
		)
	}
	return counts, nil
}

func (l *Loader) exec(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	_, err := tx.ExecContext(ctx, l.dialect.Rebind(query), args...)
	return err
}

var serialColumns = [][2]string{
	{"users", "user_id"},
	{"busstops", "stop_id"},
	{"routes", "route_id"},
	{"buses", "bus_id"},
	{"drivers", "driver_id"},
	{"tickets", "ticket_id"},
	{"notifications", "notification_id"},
	{"routestops", "id"},
}

// resyncSerials moves postgres sequences past the explicit ids just written.
func resyncSerials(ctx context.Context, tx *sql.Tx) error {
	for _, pair := range serialColumns {
		query := fmt.Sprintf(`SELECT setval(pg_get_serial_sequence('%s', '%s'), COALESCE(MAX(%s), 0) + 1, false) FROM %s`,
			pair[0], pair[1], pair[1], pair[0])
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("resync %s sequence: %w", pair[0], err)
		}
	}
	return nil
}
