package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is one raw form submission: an open-ended key/value mapping as it comes
// off a tablet upload. Values are strings, numbers or nil depending on the
// decoder that produced them.
type Row map[string]interface{}

// GetString returns the value under key rendered as a string. The second
// return is false when the key is absent or the value is nil.
func (r Row) GetString(key string) (string, bool) {
	value, ok := r[key]
	if !ok || value == nil {
		return "", false
	}
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return fmt.Sprint(v), true
	}
}

// String is like GetString but collapses absent values to "".
func (r Row) String(key string) string {
	s, _ := r.GetString(key)
	return s
}

func (r Row) Has(key string) bool {
	value, ok := r[key]
	return ok && value != nil
}

// Clone returns a shallow copy so pipeline steps can rewrite rows without
// touching the caller's batch.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RawRecord tags a row with the form it was submitted under. This is the unit
// that flows through the processing pipeline.
type RawRecord struct {
	Form string `json:"form"`
	Data Row    `json:"data"`
}

// RawBatch is the Kafka payload: a chunk of raw records sent to the pipeline
// worker in one message.
type RawBatch struct {
	ID      string      `json:"id"`
	Source  string      `json:"source"`
	Records []RawRecord `json:"records"`
	SentAt  time.Time   `json:"sent_at"`
}

// CodedRecord is the structured output of running one raw row through the
// variable catalog. District and Region are location ids; 0 means the clinic
// could not be resolved to that level.
type CodedRecord struct {
	Date        time.Time              `json:"date"`
	UUID        string                 `json:"uuid"`
	Clinic      int                    `json:"clinic"`
	ClinicType  string                 `json:"clinic_type"`
	Country     int                    `json:"country"`
	Geolocation string                 `json:"geolocation"`
	District    int                    `json:"district"`
	Region      int                    `json:"region"`
	Variables   map[string]interface{} `json:"variables"`
}

// Alert is raised when an alert-flagged variable matches a row. ID is the
// short alert id (a suffix of the row uuid) and is assigned at insertion
// time, not when the alert is built.
type Alert struct {
	ID     string                 `json:"id"`
	UUIDs  string                 `json:"uuids"`
	Clinic int                    `json:"clinic"`
	Region int                    `json:"region"`
	Reason string                 `json:"reason"`
	Data   map[string]interface{} `json:"data"`
	Date   time.Time              `json:"date"`
}

// StepFailure captures one record that a pipeline step could not process.
type StepFailure struct {
	Form     string `json:"form"`
	StepName string `json:"step_name"`
	Error    string `json:"error"`
	Data     Row    `json:"data"`
}

// Link associates a to-side row with a from-side row under a link
// definition. (LinkDef, LinkValue) is the unique key.
type Link struct {
	LinkDef   string                 `json:"link_def"`
	LinkValue string                 `json:"link_value"`
	ToID      string                 `json:"to_id"`
	ToDate    time.Time              `json:"to_date"`
	FromDate  time.Time              `json:"from_date"`
	Data      map[string]interface{} `json:"data"`
}

// NormalizeKey lower-cases and trims a lookup key the same way everywhere.
func NormalizeKey(key string) string {
	return strings.TrimSpace(strings.ToLower(key))
}
