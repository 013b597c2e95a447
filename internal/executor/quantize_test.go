package executor

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFloorToStep(t *testing.T) {
	cases := []struct {
		name  string
		value float64
		step  string
		want  float64
	}{
		{"floors partial step", 0.0037, "0.001", 0.003},
		{"exact multiple unchanged", 0.003, "0.001", 0.003},
		{"coarse step", 7.9, "0.5", 7.5},
		{"step larger than value", 0.4, "1", 0},
		{"price tick", 100.456, "0.01", 100.45},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			step := decimal.RequireFromString(tc.step)
			got := FloorToStep(tc.value, step)
			if got != tc.want {
				t.Errorf("FloorToStep(%v, %s) = %v, want %v", tc.value, tc.step, got, tc.want)
			}
		})
	}
}

func TestFloorToStepZeroStepPassesThrough(t *testing.T) {
	if got := FloorToStep(0.0037, decimal.Zero); got != 0.0037 {
		t.Errorf("Expected passthrough 0.0037, got %v", got)
	}
}

func TestFloorToStepIdempotent(t *testing.T) {
	step := decimal.RequireFromString("0.001")
	once := FloorToStep(0.123456, step)
	twice := FloorToStep(once, step)
	if once != twice {
		t.Errorf("Quantization not idempotent: %v then %v", once, twice)
	}
}

func TestMeetsNotional(t *testing.T) {
	min := decimal.RequireFromString("10")
	if meetsNotional(0.05, 100, min) {
		t.Error("Expected 5 USDT to fail a 10 USDT minimum")
	}
	if !meetsNotional(0.2, 100, min) {
		t.Error("Expected 20 USDT to clear a 10 USDT minimum")
	}
	if !meetsNotional(0.0001, 1, decimal.Zero) {
		t.Error("Expected zero minimum to disable the check")
	}
}
