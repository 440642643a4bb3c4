package weather

import (
	"math/rand"
	"testing"
)

type fixedRand []float64

func (f *fixedRand) Float64() float64 {
	v := (*f)[0]
	*f = (*f)[1:]
	return v
}

func TestMockRanges(t *testing.T) {
	p := NewProvider(rand.New(rand.NewSource(7)))
	for i := 0; i < 500; i++ {
		r := p.Mock(51.5, -0.12)
		if r.Temperature < 15 || r.Temperature > 35 {
			t.Fatalf("temperature out of range: %v", r.Temperature)
		}
		if r.Humidity < 40 || r.Humidity > 80 {
			t.Fatalf("humidity out of range: %v", r.Humidity)
		}
		if r.WindSpeed < 0 || r.WindSpeed > 15 {
			t.Fatalf("wind speed out of range: %v", r.WindSpeed)
		}
		if r.Description == "" || r.Main == "" {
			t.Fatalf("missing text fields: %+v", r)
		}
	}
}

func TestMockFormula(t *testing.T) {
	rnd := fixedRand{0.5, 0.25, 0.123, 0.99, 0}
	r := NewProvider(&rnd).Mock(0, 0)
	want := Report{Temperature: 25, Humidity: 50, WindSpeed: 1.8, Description: "rain", Main: "Clear"}
	if r != want {
		t.Fatalf("got %+v, want %+v", r, want)
	}
}

func TestAdvisory(t *testing.T) {
	cases := map[float64]string{
		100: "Humid",
		86:  "Optimal",
		72:  "Cleaning Alert",
		30:  "Dry",
		90:  "Optimal", // tie between Optimal and Humid
	}
	for h, want := range cases {
		if got := Advisory(h).Condition; got != want {
			t.Errorf("Advisory(%v) = %s, want %s", h, got, want)
		}
	}
}
