package utils

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestRound(t *testing.T) {
	tests := []struct {
		in     float64
		places int32
		want   float64
	}{
		{9.445, 2, 9.45},
		{24.45 - 15.0, 2, 9.45},
		{-1.005, 2, -1.01},
		{0.1234565, 6, 0.123457},
		{25609.449999999, 2, 25609.45},
	}
	for _, tt := range tests {
		if got := Round(tt.in, tt.places); got != tt.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.in, tt.places, got, tt.want)
		}
	}
	if !math.IsInf(Round(math.Inf(1), 2), 1) {
		t.Error("Round should pass +Inf through")
	}
}

func TestStepRounding(t *testing.T) {
	if got := TruncateTo(24987, 50); got != 24950 {
		t.Errorf("TruncateTo = %v, want 24950", got)
	}
	if got := NearestTo(24987, 50); got != 25000 {
		t.Errorf("NearestTo = %v, want 25000", got)
	}
	if got := FloorTo(22500.5, 100); got != 22500 {
		t.Errorf("FloorTo = %v, want 22500", got)
	}
}

func TestFormatPrice(t *testing.T) {
	tests := map[float64]string{
		25609.45: "25,609.45",
		1250000:  "12,50,000",
		-708.75:  "-708.75",
		100:      "100",
	}
	for in, want := range tests {
		if got := FormatPrice(in); got != want {
			t.Errorf("FormatPrice(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatIndianCurrency(t *testing.T) {
	tests := map[float64]string{
		1234567.5: "₹12,34,567.50",
		123456789: "₹12,34,56,789.00",
		-708.75:   "-₹708.75",
		0:         "₹0.00",
	}
	for in, want := range tests {
		if got := FormatIndianCurrency(in); got != want {
			t.Errorf("FormatIndianCurrency(%v) = %q, want %q", in, got, want)
		}
	}
	if got := FormatPnL(140); got != "+₹140.00" {
		t.Errorf("FormatPnL = %q", got)
	}
	if got := FormatQuantity(-150000); got != "-1,50,000" {
		t.Errorf("FormatQuantity = %q", got)
	}
}

// TestProperty_IndianCurrencyFormatting verifies the Indian grouping.
// Property: the digits of FormatIndianCurrency parse back to the rounded amount.
func TestProperty_IndianCurrencyFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("formatted currency preserves the value", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatIndianCurrency(amount)
			if !strings.HasPrefix(strings.TrimPrefix(formatted, "-"), "₹") {
				return false
			}
			digits := strings.NewReplacer("₹", "", ",", "").Replace(formatted)
			parsed, err := strconv.ParseFloat(digits, 64)
			if err != nil {
				return false
			}
			return math.Abs(parsed-amount) <= 0.005+1e-9
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.TestingRun(t)
}

func TestRetryWithResult(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2}

	calls := 0
	got, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil || got != 42 || calls != 3 {
		t.Fatalf("got %d, %v after %d calls", got, err, calls)
	}

	permanent := errors.New("permanent")
	cfg.RetryableErrors = []error{errors.New("other")}
	calls = 0
	_, err = RetryWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("non-retryable error retried: calls=%d err=%v", calls, err)
	}

	cfg.RetryableErrors = nil
	cfg.PermanentErrors = []error{permanent}
	calls = 0
	_, err = RetryWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, fmt.Errorf("lookup: %w", permanent)
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("permanent error retried: calls=%d err=%v", calls, err)
	}
}

func TestPreviousTradingDay(t *testing.T) {
	monday := time.Date(2025, 7, 7, 10, 0, 0, 0, IndiaLocation)
	if got := PreviousTradingDay(monday); got.Weekday() != time.Friday || got.Day() != 4 {
		t.Errorf("PreviousTradingDay(Mon) = %v, want Fri 4th", got)
	}
	if DaysBetween(monday, monday.AddDate(0, 0, 10)) != 10 {
		t.Error("DaysBetween mismatch")
	}
}
