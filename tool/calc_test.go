package tool

import (
	"strings"
	"testing"
)

func TestCalculateBasicArithmetic(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		want       string
	}{
		{name: "addition", expression: "2+2", want: "Result: 4"},
		{name: "precedence", expression: "2+3*4", want: "Result: 14"},
		{name: "parentheses", expression: "(2+3)*4", want: "Result: 20"},
		{name: "division", expression: "10/4", want: "Result: 2.5"},
		{name: "modulo", expression: "10%3", want: "Result: 1"},
		{name: "unary minus", expression: "-5+3", want: "Result: -2"},
		{name: "parenthesized unary minus", expression: "2*(-3)", want: "Result: -6"},
		{name: "decimals", expression: "1.5*2", want: "Result: 3"},
		{name: "whitespace ignored", expression: " 2 + 2 ", want: "Result: 4"},
		{name: "nested parens", expression: "((1+2)*(3+4))", want: "Result: 21"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.expression)
			if got != tt.want {
				t.Errorf("Calculate(%q) = %q, want %q", tt.expression, got, tt.want)
			}
		})
	}
}

func TestCalculateRejectsUnsafeInput(t *testing.T) {
	tests := []struct {
		name       string
		expression string
	}{
		{name: "code injection", expression: "import os"},
		{name: "letters", expression: "2+abc"},
		{name: "shell metacharacters", expression: "2+2; rm -rf /"},
		{name: "empty", expression: ""},
		{name: "only spaces", expression: "   "},
		{name: "unbalanced open", expression: "(2+3"},
		{name: "unbalanced close", expression: "2+3)"},
		{name: "consecutive operators", expression: "2++3"},
		{name: "division by zero", expression: "10/0"},
		{name: "modulo by zero", expression: "10%0"},
		{name: "too long", expression: strings.Repeat("1+", 150) + "1"},
		{name: "trailing garbage", expression: "2+3("},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.expression)
			if !strings.HasPrefix(got, "Error:") {
				t.Errorf("Calculate(%q) = %q, want an Error string", tt.expression, got)
			}
		})
	}
}

func TestCalculateNeverReturnsInfinity(t *testing.T) {
	got := Calculate("1/0")
	if strings.Contains(got, "Inf") || strings.Contains(got, "inf") {
		t.Fatalf("Calculate(1/0) leaked a non-finite value: %q", got)
	}
	if !strings.HasPrefix(got, "Error:") {
		t.Fatalf("Calculate(1/0) = %q, want an Error string", got)
	}
}
