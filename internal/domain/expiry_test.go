package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseExpiry_Durations(t *testing.T) {
	from := time.Date(2024, time.March, 15, 9, 30, 45, 0, time.UTC)

	tests := []struct {
		name   string
		expiry string
		want   time.Time
	}{
		{"hours", "2H", time.Date(2024, time.March, 15, 11, 30, 45, 0, time.UTC)},
		{"days", "10D", time.Date(2024, time.March, 25, 9, 30, 45, 0, time.UTC)},
		{"months", "3M", time.Date(2024, time.June, 15, 9, 30, 45, 0, time.UTC)},
		{"years", "1Y", time.Date(2025, time.March, 15, 9, 30, 45, 0, time.UTC)},
		{"lowercase", "2h", time.Date(2024, time.March, 15, 11, 30, 45, 0, time.UTC)},
		{"surrounding whitespace", " 10D ", time.Date(2024, time.March, 25, 9, 30, 45, 0, time.UTC)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseExpiry(tc.expiry, from)
			if err != nil {
				t.Fatalf("ParseExpiry(%q) returned error: %v", tc.expiry, err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("ParseExpiry(%q) = %v, want %v", tc.expiry, got, tc.want)
			}
		})
	}
}

func TestParseExpiry_MonthEndClamping(t *testing.T) {
	tests := []struct {
		name   string
		from   time.Time
		expiry string
		want   time.Time
	}{
		{
			"jan 31 plus one month clamps to leap february",
			time.Date(2024, time.January, 31, 12, 0, 0, 0, time.UTC),
			"1M",
			time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC),
		},
		{
			"jan 31 plus one month clamps to non-leap february",
			time.Date(2025, time.January, 31, 12, 0, 0, 0, time.UTC),
			"1M",
			time.Date(2025, time.February, 28, 12, 0, 0, 0, time.UTC),
		},
		{
			"month arithmetic rolls over the year",
			time.Date(2024, time.November, 30, 8, 0, 0, 0, time.UTC),
			"3M",
			time.Date(2025, time.February, 28, 8, 0, 0, 0, time.UTC),
		},
		{
			"feb 29 plus one year clamps to feb 28",
			time.Date(2024, time.February, 29, 23, 59, 59, 0, time.UTC),
			"1Y",
			time.Date(2025, time.February, 28, 23, 59, 59, 0, time.UTC),
		},
		{
			"feb 29 plus four years stays feb 29",
			time.Date(2024, time.February, 29, 6, 15, 0, 0, time.UTC),
			"4Y",
			time.Date(2028, time.February, 29, 6, 15, 0, 0, time.UTC),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseExpiry(tc.expiry, tc.from)
			if err != nil {
				t.Fatalf("ParseExpiry(%q) returned error: %v", tc.expiry, err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("ParseExpiry(%q) from %v = %v, want %v", tc.expiry, tc.from, got, tc.want)
			}
		})
	}
}

func TestParseExpiry_RejectsMalformedInput(t *testing.T) {
	from := time.Now().UTC()

	for _, expiry := range []string{"", "10", "D", "10W", "1.5D", "-3D", "3 D", "D10", "10DD"} {
		if _, err := ParseExpiry(expiry, from); !errors.Is(err, ErrInvalidExpiryFormat) {
			t.Fatalf("ParseExpiry(%q) = %v, want ErrInvalidExpiryFormat", expiry, err)
		}
	}
}
