// Package model holds one typed record per table and the translation
// boundary between backing-store rows (column name -> string) and those
// records. Decoding never fails on a bad cell: numbers that do not parse read
// as 0 and symptom maps that do not parse read as empty.
package model

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/aicare/casemgr/internal/schema"
)

// JSONMap represents a generic JSON object
type JSONMap map[string]interface{}

// Record is implemented by every typed table record.
type Record interface {
	TableName() string
}

// lenientHook converts raw cell strings into the Go types of the target
// fields. Blank cells leave optional (pointer) fields nil.
func lenientHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	raw := strings.TrimSpace(data.(string))

	switch to.Kind() {
	case reflect.Ptr:
		if raw == "" {
			return nil, nil
		}
		return raw, nil
	case reflect.Int, reflect.Int64, reflect.Int32:
		return parseInt(raw), nil
	case reflect.Float64, reflect.Float32:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0.0, nil
		}
		return f, nil
	case reflect.Map:
		m := map[string]interface{}{}
		if raw == "" {
			return m, nil
		}
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return map[string]interface{}{}, nil
		}
		return m, nil
	}
	return data, nil
}

func parseInt(raw string) int64 {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int64(f)
	}
	return 0
}

// FromRow decodes a row into out, which must be a pointer to a record.
func FromRow(row map[string]string, out Record) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: lenientHook,
		Result:     out,
		TagName:    "mapstructure",
	})
	if err != nil {
		return err
	}
	in := make(map[string]interface{}, len(row))
	for k, v := range row {
		in[k] = v
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("decode %s row: %w", out.TableName(), err)
	}
	return nil
}

// ToRow encodes rec into a row. Nil optional fields and blank strings are
// left out so the repository can apply table defaults.
func ToRow(rec Record) (map[string]string, error) {
	fields := map[string]interface{}{}
	if err := mapstructure.Decode(rec, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", rec.TableName(), err)
	}

	t, err := schema.Lookup(rec.TableName())
	if err != nil {
		return nil, err
	}
	row := make(map[string]string, len(fields))
	for k, v := range fields {
		if !t.Has(k) {
			continue
		}
		s, ok, err := cell(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s.%s: %w", rec.TableName(), k, err)
		}
		if ok && s != "" {
			row[k] = s
		}
	}
	return row, nil
}

func cell(v interface{}) (string, bool, error) {
	switch x := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return x, true, nil
	case int:
		return strconv.Itoa(x), true, nil
	case *int:
		if x == nil {
			return "", false, nil
		}
		return strconv.Itoa(*x), true, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true, nil
	case *float64:
		if x == nil {
			return "", false, nil
		}
		return strconv.FormatFloat(*x, 'f', -1, 64), true, nil
	case map[string]interface{}:
		if x == nil {
			return "", false, nil
		}
		b, err := json.Marshal(x)
		if err != nil {
			return "", false, err
		}
		return string(b), true, nil
	}
	return fmt.Sprint(v), true, nil
}

// New returns an empty record for table.
func New(table string) (Record, error) {
	switch table {
	case schema.Patients:
		return &Patient{}, nil
	case schema.Reports:
		return &Report{}, nil
	case schema.Education:
		return &EducationPush{}, nil
	case schema.Interventions:
		return &Intervention{}, nil
	case schema.Schedules:
		return &Schedule{}, nil
	case schema.LabResults:
		return &LabResult{}, nil
	case schema.FunctionalAssessments:
		return &FunctionalAssessment{}, nil
	case schema.Problems:
		return &Problem{}, nil
	}
	return nil, fmt.Errorf("no record type for table %q", table)
}

// Decode is New followed by FromRow.
func Decode(table string, row map[string]string) (Record, error) {
	rec, err := New(table)
	if err != nil {
		return nil, err
	}
	if err := FromRow(row, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
