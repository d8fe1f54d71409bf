/*
Expiration records and their wire format.

SCOPE:
- Build a record from "now + duration" (write side) or from untrusted custom metadata (read side)
- Serialize a record back into custom metadata

The wire format is an ISO-8601 timestamp without any UTC offset followed by a literal "Z",
e.g. "2022-08-08T09:49:41.415869Z". Fractional seconds are written with six digits and only
when non-zero. Records already stored in Vault use this shape, keep it stable.
*/

package expiration

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MatteoMori/vaultmonitor/pkg/shared"
)

const wireLayout = "2006-01-02T15:04:05"

// Layouts accepted when decoding, tried in order. Parsing tolerates fractional seconds
// after the seconds field even when the layout does not mention them.
var decodeLayouts = []string{
	wireLayout,
	time.RFC3339Nano, // older records carry an explicit "+00:00" before the trailing Z
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Epoch is the value a missing or malformed timestamp resolves to.
var Epoch = time.Unix(0, 0).UTC()

var now = time.Now

// Record is an immutable pair of timestamps plus the metadata keys they are stored under.
type Record struct {
	LastRenewed time.Time
	Expires     time.Time
	Fields      shared.FieldNames
}

// Duration is the human friendly way the write tool expresses a lifetime.
type Duration struct {
	Weeks   int
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

const secondsPerDay = 24 * 60 * 60

// AddTo returns t moved forward by d. Whole days go through the calendar, so lifetimes longer
// than a time.Duration can hold do not wrap around.
func (d Duration) AddTo(t time.Time) time.Time {
	seconds := int64(d.Hours)*3600 + int64(d.Minutes)*60 + int64(d.Seconds)
	days := int64(d.Weeks)*7 + int64(d.Days) + seconds/secondsPerDay
	return t.AddDate(0, 0, int(days)).Add(time.Duration(seconds%secondsPerDay) * time.Second)
}

// FromDuration returns a record renewed now and expiring after d.
func FromDuration(d Duration, fields shared.FieldNames) Record {
	lastRenewed := now().UTC().Truncate(time.Microsecond)
	return Record{
		LastRenewed: lastRenewed,
		Expires:     d.AddTo(lastRenewed),
		Fields:      fields,
	}
}

// FromMetadata decodes both timestamps from raw. It never fails: each field that is absent
// or does not parse falls back to Epoch independently and the problem is logged.
func FromMetadata(raw map[string]string, fields shared.FieldNames) Record {
	return Record{
		LastRenewed: decodeField(raw, fields.LastRenewal),
		Expires:     decodeField(raw, fields.Expiration),
		Fields:      fields,
	}
}

func decodeField(raw map[string]string, field string) time.Time {
	value, ok := raw[field]
	if !ok || value == "" {
		slog.Error("Expiration metadata field is missing, falling back to epoch", slog.String("field", field))
		return Epoch
	}

	t, err := parseTimestamp(value)
	if err != nil {
		slog.Error("Expiration metadata field is malformed, falling back to epoch",
			slog.String("field", field),
			slog.String("value", value),
			slog.Any("error", err))
		return Epoch
	}
	return t
}

func parseTimestamp(value string) (time.Time, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(value), "Z")
	for _, layout := range decodeLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return t.UTC().Truncate(time.Microsecond), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}

// FormatTimestamp renders t in the wire format.
func FormatTimestamp(t time.Time) string {
	t = t.UTC()
	s := t.Format(wireLayout)
	if micros := t.Nanosecond() / int(time.Microsecond); micros != 0 {
		s += fmt.Sprintf(".%06d", micros)
	}
	return s + "Z"
}

// Serialize returns the custom metadata entries describing r.
func (r Record) Serialize() map[string]string {
	return map[string]string{
		r.Fields.LastRenewal: FormatTimestamp(r.LastRenewed),
		r.Fields.Expiration:  FormatTimestamp(r.Expires),
	}
}

func (r Record) LastRenewedEpochSeconds() float64 {
	return epochSeconds(r.LastRenewed)
}

func (r Record) ExpiresEpochSeconds() float64 {
	return epochSeconds(r.Expires)
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}
