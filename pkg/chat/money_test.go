package chat

import "testing"

func TestEuros(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want Money
	}{
		{0, 0},
		{0.01, Cent},
		{1, Euro},
		{0.0000004, 0},
		{0.0000006, MicroEuro},
		{-2.5, -2_500_000},
	}
	for _, tt := range tests {
		if got := Euros(tt.in); got != tt.want {
			t.Errorf("Euros(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMoney_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   Money
		want string
	}{
		{0, "€0.0000"},
		{Cent * 2, "€0.0200"},
		{1_234_500, "€1.2345"},
		{-Cent, "-€0.0100"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("Money(%d).String() = %q, want %q", tt.in, got, tt.want)
		}
	}
}
