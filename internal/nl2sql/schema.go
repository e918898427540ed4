package nl2sql

// Table is one relation the model may query.
type Table struct {
	Name    string
	Columns []string
}

// TransitTables lists the relations described to the model, in prompt order.
var TransitTables = []Table{
	{Name: "users", Columns: []string{"user_id", "name", "age", "mobile_no", "email", "region_of_commute", "created_at"}},
	{Name: "busstops", Columns: []string{"stop_id", "stop_name", "location", "region"}},
	{Name: "routes", Columns: []string{"route_id", "route_name", "start_stop_id", "end_stop_id", "distance_km"}},
	{Name: "buses", Columns: []string{"bus_id", "bus_number", "capacity", "current_location", "route_id", "status"}},
	{Name: "drivers", Columns: []string{"driver_id", "name", "mobile_no", "bus_id", "location", "shift_start", "shift_end"}},
	{Name: "tickets", Columns: []string{"ticket_id", "user_id", "bus_id", "route_id", "source_stop_id", "destination_stop_id", "fare", "purchase_time"}},
	{Name: "notifications", Columns: []string{"notification_id", "user_id", "type", "message", "sent_at"}},
	{Name: "chatlogs", Columns: []string{"chat_id", "user_id", "message_text", "response_text", "created_at"}},
	{Name: "routestops", Columns: []string{"id", "route_id", "stop_id", "stop_order"}},
}

// SchemaPrompt is sent ahead of every SQL generation request.
const SchemaPrompt = `
You are a SQL assistant for a Punjab transport database.
Rules:
- Only use these tables and columns:
  users(user_id, name, age, mobile_no, email, region_of_commute, created_at)
  busstops(stop_id, stop_name, location, region)
  routes(route_id, route_name, start_stop_id, end_stop_id, distance_km)
  buses(bus_id, bus_number, capacity, current_location, route_id, status)
  drivers(driver_id, name, mobile_no, bus_id, location, shift_start, shift_end)
  tickets(ticket_id, user_id, bus_id, route_id, source_stop_id, destination_stop_id, fare, purchase_time)
  notifications(notification_id, user_id, type, message, sent_at)
  chatlogs(chat_id, user_id, message_text, response_text, created_at)
  routestops(id, route_id, stop_id, stop_order)

- Do NOT use columns that don't exist.
- Always use LIKE instead of = when filtering stop_name or location.
- For bus availability queries, return bus_number, route_name, current_location, and status.
- If data is not found, return an empty result (do not invent).
- Always include LIMIT 3 to avoid large results.

Examples:

User: Next bus from ISBT Chandigarh to Ludhiana?
SQL:
SELECT b.bus_number, r.route_name, b.current_location, b.status
FROM routes r
JOIN buses b ON r.route_id = b.route_id
JOIN routestops rs1 ON r.route_id = rs1.route_id
JOIN busstops bs1 ON rs1.stop_id = bs1.stop_id
JOIN routestops rs2 ON r.route_id = rs2.route_id
JOIN busstops bs2 ON rs2.stop_id = bs2.stop_id
WHERE bs1.stop_name LIKE '%Chandigarh%'
  AND bs2.stop_name LIKE '%Ludhiana%'
  AND b.status = 'Running'
LIMIT 3;

User: Show all buses from Chandigarh
SQL:
SELECT b.bus_number, r.route_name, b.current_location, b.status
FROM buses b
JOIN routes r ON b.route_id = r.route_id
JOIN routestops rs ON r.route_id = rs.route_id
JOIN busstops bs ON rs.stop_id = bs.stop_id
WHERE bs.stop_name LIKE '%Chandigarh%'
LIMIT 3;
`
