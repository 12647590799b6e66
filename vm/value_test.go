package vm

import (
	"math"
	"testing"
)

func TestValueTruthiness(t *testing.T) {
	tests := []struct {
		value Value
		want  bool
	}{
		{BoolValue(true), true},
		{BoolValue(false), false},
		{Null, false},
		{NumberValue(0), true},
		{NumberValue(1), true},
		{StringValue(""), true},
		{StringValue("x"), true},
	}
	for _, tc := range tests {
		if got := tc.value.Truthy(); got != tc.want {
			t.Errorf("Truthy(%v) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestValueEquality(t *testing.T) {
	tests := []struct {
		a, b Value
		want bool
	}{
		{NumberValue(1), NumberValue(1), true},
		{NumberValue(1), NumberValue(2), false},
		{StringValue("a"), StringValue("a"), true},
		{BoolValue(true), BoolValue(true), true},
		{Null, Null, true},
		// No implicit coercion across kinds
		{NumberValue(1), StringValue("1"), false},
		{BoolValue(false), Null, false},
		{NumberValue(0), BoolValue(false), false},
		// IEEE-754: NaN is not equal to itself
		{NumberValue(math.NaN()), NumberValue(math.NaN()), false},
	}
	for _, tc := range tests {
		if got := tc.a.Equals(tc.b); got != tc.want {
			t.Errorf("Equals(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestValueRendering(t *testing.T) {
	tests := []struct {
		value Value
		want  string
	}{
		{NumberValue(30), "30"},
		{NumberValue(3.5), "3.5"},
		{NumberValue(-0.25), "-0.25"},
		{NumberValue(math.Inf(1)), "+Inf"},
		{NumberValue(math.Inf(-1)), "-Inf"},
		{BoolValue(true), "true"},
		{BoolValue(false), "false"},
		{StringValue("Hello World!"), "Hello World!"},
		{Null, "nil"},
		// Shortest round-trip decimal
		{NumberValue(0.1), "0.1"},
		{NumberValue(1e21), "1e+21"},
	}
	for _, tc := range tests {
		if got := tc.value.String(); got != tc.want {
			t.Errorf("String(%#v) = %q, want %q", tc.value, got, tc.want)
		}
	}
}
