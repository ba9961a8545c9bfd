package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfUnwrapsWrappedSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{fmt.Errorf("restore: %w", ErrGracePeriodExpired), KindGracePeriodExpired},
		{fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", ErrTerminalState)), KindTerminalState},
		{PaymentError{Err: ErrSlotsFull, Cost: 99}, KindSlotsFull},
		{errors.New("connection refused"), KindInternal},
	}

	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v): got %s want %s", tc.err, got, tc.want)
		}
	}
}

func TestIsPaymentExposesCost(t *testing.T) {
	err := fmt.Errorf("share contact: %w", PaymentError{Err: ErrInsufficientFunds, Cost: 199, Balance: 40})

	pe, ok := IsPayment(err)
	if !ok {
		t.Fatalf("expected payment error")
	}
	if pe.Cost != 199 || pe.Balance != 40 {
		t.Fatalf("unexpected payment error payload: %+v", pe)
	}
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("payment error should unwrap to its sentinel")
	}
}
