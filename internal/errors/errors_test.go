package errors

import (
	"fmt"
	"testing"
)

func TestInvalidInputError_Is(t *testing.T) {
	err := Wrap(NewInvalidInputError("volatility", -0.2, "must be positive"), "price")
	if !Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput in chain: %v", err)
	}
	var iie *InvalidInputError
	if !As(err, &iie) || iie.Field != "volatility" {
		t.Fatalf("As failed: %v", err)
	}
}

func TestLegError_Unwrap(t *testing.T) {
	err := fmt.Errorf("payoff: %w", NewLegError(2, "BUY:CE:25600:75", ErrMissingPremium))
	if !Is(err, ErrMissingPremium) {
		t.Fatalf("expected ErrMissingPremium in chain: %v", err)
	}
	want := "payoff: leg 2 [BUY:CE:25600:75]: premium not resolved"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "x") != nil || Wrapf(nil, "x %d", 1) != nil {
		t.Fatal("wrapping nil must return nil")
	}
}
