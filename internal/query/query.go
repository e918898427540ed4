package query

import (
	"bytes"
	"encoding/json"
	"time"
)

// Row is one result row whose JSON object keeps the column order of the query.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value of column name.
func (r Row) Get(name string) (any, bool) {
	for i, column := range r.Columns {
		if column == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

func (r Row) MarshalJSON() ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	buf.WriteByte('{')
	for i, column := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(column)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Result is either a list of rows or an error description. It is a value the
// formatting stage consumes, never a Go error.
type Result struct {
	Rows     []Row
	Error    string
	Duration time.Duration
}

func (r Result) Failed() bool {
	return r.Error != ""
}

// MarshalJSON renders a JSON array of row objects, or {"error": "..."}.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(map[string]string{"error": r.Error})
	}
	rows := r.Rows
	if rows == nil {
		rows = []Row{}
	}
	return json.Marshal(rows)
}

// ErrorResult wraps a failure message as a result value.
func ErrorResult(message string) Result {
	return Result{Error: message}
}
