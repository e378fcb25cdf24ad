package host

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Position
		want float64
	}{
		{"Same", Position{World: "overworld", X: 1, Y: 64, Z: 1}, Position{World: "overworld", X: 1, Y: 64, Z: 1}, 0},
		{"Axis", Position{World: "overworld"}, Position{World: "overworld", Y: 0.4}, 0.4},
		{"Diagonal", Position{World: "overworld"}, Position{World: "overworld", X: 3, Z: 4}, 5},
		{"OtherWorld", Position{World: "overworld"}, Position{World: "nether"}, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if math.IsInf(tt.want, 1) {
				if !math.IsInf(got, 1) {
					t.Errorf("Distance() = %v, want +Inf", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Distance() = %v, want %v", got, tt.want)
			}
		})
	}
}
