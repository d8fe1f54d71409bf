package expiration

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MatteoMori/vaultmonitor/pkg/shared"
)

var defaultFields = shared.FieldNames{
	LastRenewal: "last_renewed_timestamp",
	Expiration:  "expiration_timestamp",
}

func TestFromDuration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		duration Duration
		want     func(lastRenewed time.Time) time.Time
	}{
		{
			name: "zero",
			want: func(lr time.Time) time.Time { return lr },
		},
		{
			name:     "small",
			duration: Duration{Weeks: 1, Days: 1, Hours: 1, Minutes: 2, Seconds: 4},
			want: func(lr time.Time) time.Time {
				return lr.Add(8*24*time.Hour + time.Hour + 2*time.Minute + 4*time.Second)
			},
		},
		{
			name:     "large",
			duration: Duration{Weeks: 8, Days: 10, Hours: 1105, Minutes: 20, Seconds: 4444},
			want: func(lr time.Time) time.Time {
				return lr.Add(66*24*time.Hour + 1105*time.Hour + 20*time.Minute + 4444*time.Second)
			},
		},
		{
			// Longer than a time.Duration can represent.
			name:     "centuries",
			duration: Duration{Weeks: 20000},
			want:     func(lr time.Time) time.Time { return lr.AddDate(0, 0, 140000) },
		},
		{
			name:     "hours_past_duration_range",
			duration: Duration{Hours: 3000000, Seconds: 1},
			want:     func(lr time.Time) time.Time { return lr.AddDate(0, 0, 125000).Add(time.Second) },
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			captured := time.Now().UTC()
			record := FromDuration(tc.duration, defaultFields)

			if drift := record.LastRenewed.Sub(captured); drift < -time.Millisecond || drift > 50*time.Millisecond {
				t.Errorf("last renewed %s is %s away from capture time %s", record.LastRenewed, drift, captured)
			}
			if got, want := record.Expires, tc.want(record.LastRenewed); !got.Equal(want) {
				t.Errorf("expected expiry %s, got %s", want, got)
			}
			if record.Expires.Before(record.LastRenewed) {
				t.Errorf("expiry %s is before renewal %s", record.Expires, record.LastRenewed)
			}
			if got, want := record.LastRenewed.Location(), time.UTC; got != want {
				t.Errorf("expected location %s, got %s", want, got)
			}
		})
	}
}

func TestDuration_AddTo(t *testing.T) {
	t.Parallel()

	start := time.Date(2022, 5, 2, 9, 49, 41, 415869000, time.UTC)

	cases := []struct {
		name     string
		duration Duration
		want     time.Time
	}{
		{
			name:     "mixed_units",
			duration: Duration{Weeks: 1, Days: 2, Hours: 3, Minutes: 4, Seconds: 5},
			want:     time.Date(2022, 5, 11, 12, 53, 46, 415869000, time.UTC),
		},
		{
			name:     "seconds_carry_into_days",
			duration: Duration{Hours: 23, Minutes: 60, Seconds: 1},
			want:     time.Date(2022, 5, 3, 9, 49, 42, 415869000, time.UTC),
		},
		{
			name:     "twenty_thousand_weeks",
			duration: Duration{Weeks: 20000},
			want:     time.Date(2405, 8, 22, 9, 49, 41, 415869000, time.UTC),
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := tc.duration.AddTo(start); !got.Equal(tc.want) {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestFromMetadata(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input map[string]string
		exp   map[string]string
	}{
		{
			name: "well_formed",
			input: map[string]string{
				"expiration_timestamp":   "2022-08-08T09:49:41.415869Z",
				"last_renewed_timestamp": "2022-05-02T09:49:41.415869Z",
			},
			exp: map[string]string{
				"expiration_timestamp":   "2022-08-08T09:49:41.415869Z",
				"last_renewed_timestamp": "2022-05-02T09:49:41.415869Z",
			},
		},
		{
			name: "missing_last_renewed",
			input: map[string]string{
				"expiration_timestamp": "2022-08-08T09:49:41.415869Z",
			},
			exp: map[string]string{
				"expiration_timestamp":   "2022-08-08T09:49:41.415869Z",
				"last_renewed_timestamp": "1970-01-01T00:00:00Z",
			},
		},
		{
			name: "missing_expiration",
			input: map[string]string{
				"last_renewed_timestamp": "2022-08-08T09:49:41.415869Z",
			},
			exp: map[string]string{
				"last_renewed_timestamp": "2022-08-08T09:49:41.415869Z",
				"expiration_timestamp":   "1970-01-01T00:00:00Z",
			},
		},
		{
			name:  "missing_both",
			input: map[string]string{},
			exp: map[string]string{
				"last_renewed_timestamp": "1970-01-01T00:00:00Z",
				"expiration_timestamp":   "1970-01-01T00:00:00Z",
			},
		},
		{
			name: "malformed_expiration",
			input: map[string]string{
				"last_renewed_timestamp": "2022-08-08T09:49:41.415869Z",
				"expiration_timestamp":   "2022-08-008T09:49:41.415869Z",
			},
			exp: map[string]string{
				"last_renewed_timestamp": "2022-08-08T09:49:41.415869Z",
				"expiration_timestamp":   "1970-01-01T00:00:00Z",
			},
		},
		{
			name: "malformed_last_renewed",
			input: map[string]string{
				"last_renewed_timestamp": "2022-08-008T09:49:41.415869Z",
				"expiration_timestamp":   "2022-08-08T09:49:41.415869Z",
			},
			exp: map[string]string{
				"last_renewed_timestamp": "1970-01-01T00:00:00Z",
				"expiration_timestamp":   "2022-08-08T09:49:41.415869Z",
			},
		},
		{
			name: "legacy_offset",
			input: map[string]string{
				"last_renewed_timestamp": "1970-01-01T00:00:00+00:00Z",
				"expiration_timestamp":   "2022-08-08T09:49:41+00:00Z",
			},
			exp: map[string]string{
				"last_renewed_timestamp": "1970-01-01T00:00:00Z",
				"expiration_timestamp":   "2022-08-08T09:49:41Z",
			},
		},
		{
			name: "unrelated_keys_ignored",
			input: map[string]string{
				"owner":                  "team-a",
				"last_renewed_timestamp": "2022-08-08T09:49:41Z",
				"expiration_timestamp":   "2022-09-08T09:49:41.000001Z",
			},
			exp: map[string]string{
				"last_renewed_timestamp": "2022-08-08T09:49:41Z",
				"expiration_timestamp":   "2022-09-08T09:49:41.000001Z",
			},
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			record := FromMetadata(tc.input, defaultFields)
			if diff := cmp.Diff(tc.exp, record.Serialize()); diff != "" {
				t.Errorf("mismatch (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestFromMetadata_Values(t *testing.T) {
	t.Parallel()

	record := FromMetadata(map[string]string{"expiration_timestamp": "2022-08-08T09:49:41.415869Z"}, defaultFields)

	if got, want := record.LastRenewed, Epoch; !got.Equal(want) {
		t.Errorf("expected last renewed %s, got %s", want, got)
	}
	if got, want := record.LastRenewedEpochSeconds(), 0.0; got != want {
		t.Errorf("expected last renewed epoch seconds %v, got %v", want, got)
	}

	wantExpires := time.Date(2022, 8, 8, 9, 49, 41, 415869000, time.UTC)
	if got := record.Expires; !got.Equal(wantExpires) {
		t.Errorf("expected expires %s, got %s", wantExpires, got)
	}
	if got, want := record.ExpiresEpochSeconds(), float64(wantExpires.UnixMicro())/1e6; got != want {
		t.Errorf("expected expires epoch seconds %v, got %v", want, got)
	}
}

func TestFromMetadata_RoundTrip(t *testing.T) {
	t.Parallel()

	inputs := []map[string]string{
		{"last_renewed_timestamp": "2022-05-02T09:49:41.415869Z", "expiration_timestamp": "2022-08-08T09:49:41.415869Z"},
		{"last_renewed_timestamp": "2022-05-02T09:49:41Z", "expiration_timestamp": "2022-08-08T09:49:41.123456789Z"},
		{"last_renewed_timestamp": "2022-05-02T09:49:41.5Z"},
		{"expiration_timestamp": "2022-05-02"},
	}

	for _, input := range inputs {
		first := FromMetadata(input, defaultFields)
		second := FromMetadata(first.Serialize(), defaultFields)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("round trip of %v changed the record (-first, +second):\n%s", input, diff)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   time.Time
		exp  string
	}{
		{name: "epoch", in: Epoch, exp: "1970-01-01T00:00:00Z"},
		{name: "micros", in: time.Date(2022, 8, 8, 9, 49, 41, 415869000, time.UTC), exp: "2022-08-08T09:49:41.415869Z"},
		{name: "padded_micros", in: time.Date(2022, 8, 8, 9, 49, 41, 1000, time.UTC), exp: "2022-08-08T09:49:41.000001Z"},
		{name: "sub_micro_dropped", in: time.Date(2022, 8, 8, 9, 49, 41, 999, time.UTC), exp: "2022-08-08T09:49:41Z"},
		{name: "converted_to_utc", in: time.Date(2022, 8, 8, 11, 49, 41, 0, time.FixedZone("CEST", 2*60*60)), exp: "2022-08-08T09:49:41Z"},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got, want := FormatTimestamp(tc.in), tc.exp; got != want {
				t.Errorf("expected %q to be %q", got, want)
			}
		})
	}
}
