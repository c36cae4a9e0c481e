package codec

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_Roundtrip(t *testing.T) {
	in := "2025-01-01T00:00:00.5Z"
	got, err := ParseTimestamp(in)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if !got.Equal(time.Date(2025, 1, 1, 0, 0, 0, 5e8, time.UTC)) {
		t.Fatalf("unexpected time: %v", got)
	}
	if out := FormatTimestamp(got); out != in {
		t.Fatalf("roundtrip mismatch: %s != %s", out, in)
	}
}

func TestTimestamp_NormalizesToUTC(t *testing.T) {
	got, err := ParseTimestamp("2025-01-01T09:00:00+09:00")
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if out := FormatTimestamp(got); out != "2025-01-01T00:00:00Z" {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestTimestamp_Invalid(t *testing.T) {
	for _, s := range []string{"", "2025-01-01", "yesterday", "2025-13-01T00:00:00Z"} {
		if _, err := ParseTimestamp(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestDuration_Roundtrip(t *testing.T) {
	cases := []time.Duration{
		0,
		time.Second,
		1500 * time.Millisecond,
		26*time.Hour + 3*time.Minute + 3500*time.Millisecond,
		-250 * time.Millisecond,
		time.Nanosecond,
	}
	for _, d := range cases {
		s := FormatDuration(d)
		got, err := ParseDuration(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if got != d {
			t.Fatalf("roundtrip %v -> %q -> %v", d, s, got)
		}
	}
}

func TestDuration_Format(t *testing.T) {
	if got := FormatDuration(26*time.Hour + 3500*time.Millisecond); got != "P1DT2H0M3.5S" {
		t.Fatalf("unexpected format: %s", got)
	}
	if got := FormatDuration(-time.Minute); got != "-P0DT0H1M0S" {
		t.Fatalf("unexpected format: %s", got)
	}
}

func TestDuration_ParseForms(t *testing.T) {
	cases := map[string]time.Duration{
		"PT1S":      time.Second,
		"PT1,5S":    1500 * time.Millisecond,
		"P1W":       7 * 24 * time.Hour,
		"P2D":       48 * time.Hour,
		"PT2H30M":   150 * time.Minute,
		"-PT0.001S": -time.Millisecond,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q = %v, want %v", in, got, want)
		}
	}
}

func TestDuration_Invalid(t *testing.T) {
	for _, s := range []string{"", "P", "PT", "1S", "P1Y", "P1M", "PT1D", "P1DT", "PTS", "P1H"} {
		if _, err := ParseDuration(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}

func TestDuration_LargeMagnitudes(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
	}{
		{"200 days and a nanosecond", 200*24*time.Hour + time.Nanosecond},
		{"negative decade", -(3650*24*time.Hour + 7*time.Nanosecond)},
		{"max", math.MaxInt64},
		{"negated max", -math.MaxInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := FormatDuration(tt.d)
			got, err := ParseDuration(s)
			require.NoError(t, err, s)
			assert.Equal(t, tt.d, got, s)
		})
	}
}

func TestDuration_Bounds(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "PT9223372036.854775807S", want: math.MaxInt64},
		{in: "-PT9223372036.854775808S", want: math.MinInt64},
		{in: "PT0.5H", want: 30 * time.Minute},
		{in: "PT1.0000000009S", want: time.Second},
		{in: "PT9223372036.854775808S", wantErr: true},
		{in: "P106752D", wantErr: true},
		{in: "P1DT9223372036S", wantErr: true},
		{in: "PT99999999999999999999S", wantErr: true},
		{in: "P1.2.3D", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
