package strategy

import (
	"errors"
	"testing"
)

func TestSizePrecision(t *testing.T) {
	cases := map[string]int32{
		"0.001":  3,
		"0.0001": 4,
		"0.005":  2,
		"0.5":    0,
		"1":      0,
		"10":     -1,
	}
	for inc, want := range cases {
		if got := SizePrecision(dec(inc)); got != want {
			t.Fatalf("increment %s: expected %d, got %d", inc, want, got)
		}
	}
}

func TestOpenSize(t *testing.T) {
	got, err := OpenSize(dec("300"), dec("1000"), dec("100"), dec("0.001"), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(dec("3")) {
		t.Fatalf("expected 3, got %s", got)
	}
}

func TestOpenSizeRoundsDown(t *testing.T) {
	got, err := OpenSize(dec("100"), dec("1000"), dec("3"), dec("0.01"), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(dec("33.33")) {
		t.Fatalf("expected 33.33, got %s", got)
	}
}

func TestOpenSizeClampsIncreaseToBuyingPower(t *testing.T) {
	got, err := OpenSize(dec("300"), dec("150"), dec("100"), dec("0.001"), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(dec("1.5")) {
		t.Fatalf("expected 1.5, got %s", got)
	}

	got, err = OpenSize(dec("300"), dec("150"), dec("100"), dec("0.001"), false)
	if err != nil || !got.Equal(dec("3")) {
		t.Fatalf("reduce must ignore buying power: got %s err %v", got, err)
	}
}

func TestOpenSizeTooSmall(t *testing.T) {
	_, err := OpenSize(dec("0.05"), dec("1000"), dec("50000"), dec("0.0001"), true)
	if !errors.Is(err, ErrOpenSizeTooSmall) {
		t.Fatalf("expected ErrOpenSizeTooSmall, got %v", err)
	}
	var sizeErr *OpenSizeError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("expected *OpenSizeError, got %T", err)
	}
	if sizeErr.Precision != 4 || !sizeErr.BaseSize.IsZero() {
		t.Fatalf("unexpected error detail: %+v", sizeErr)
	}
}

func TestOpenSizeRejectsBadPrice(t *testing.T) {
	if _, err := OpenSize(dec("100"), dec("100"), dec("0"), dec("0.001"), true); err == nil {
		t.Fatalf("expected error for zero price")
	}
}
