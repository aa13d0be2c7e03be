package meteo

import (
	"fmt"
)

// isoLayout is ISO-8601 with the UTC-offset suffix of the output zone.
const isoLayout = "2006-01-02T15:04:05-07:00"

// Row is one serialized response record: station name, localized
// timestamp, and the requested weather parameters.
type Row map[string]any

// AssembleRows projects records onto the requested data types, defaulting
// to all of them. A record missing a value for any selected core column
// is dropped rather than emitted with nulls; genuinely optional columns
// outside the selection never cause a drop. An empty result is the
// caller's no-content signal.
func AssembleRows(records []Observation, types []DataType) ([]Row, error) {
	if len(types) == 0 {
		types = []DataType{DataTypeTemperature, DataTypePressure, DataTypeSpeed}
	}

	columns := make([]string, 0, len(types))
	for _, dt := range types {
		col, ok := dt.Column()
		if !ok {
			return nil, fmt.Errorf("%w: unsupported data type %q", ErrInvalidInput, string(dt))
		}
		columns = append(columns, col)
	}

	rows := make([]Row, 0, len(records))
	for i := range records {
		rec := &records[i]
		if missesCoreColumn(rec, columns) {
			continue
		}

		row := Row{
			"nombre": rec.Name,
			"fhora":  rec.Time.Format(isoLayout),
		}
		for _, col := range columns {
			if v := rec.Column(col); v != nil {
				row[col] = *v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func missesCoreColumn(rec *Observation, selected []string) bool {
	for _, col := range selected {
		if !isCoreColumn(col) {
			continue
		}
		if rec.Column(col) == nil {
			return true
		}
	}
	return false
}

func isCoreColumn(col string) bool {
	for _, core := range coreColumns {
		if col == core {
			return true
		}
	}
	return false
}
