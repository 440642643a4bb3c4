// Package weather serves mock outdoor readings and the ant-scale conditions
// derived from them.
package weather

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Rand is the source of the mock readings.
type Rand interface {
	Float64() float64
}

// Report is the JSON body of the weather endpoint.
type Report struct {
	Temperature float64 `json:"temperature"` // °C
	Humidity    float64 `json:"humidity"`    // %
	WindSpeed   float64 `json:"windSpeed"`   // m/s
	Description string  `json:"description"`
	Main        string  `json:"main"`
}

var descriptions = []string{"clear sky", "few clouds", "scattered clouds", "broken clouds", "shower rain", "rain"}

var mains = []string{"Clear", "Clouds", "Rain"}

// Provider produces mock reports. It is safe for concurrent use.
type Provider struct {
	mu   sync.Mutex
	Rand Rand
}

func NewProvider(rnd Rand) *Provider {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Provider{Rand: rnd}
}

// Mock returns a random report. The coordinates are accepted but not used.
func (p *Provider) Mock(lat, lon float64) Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Report{
		Temperature: math.Round(15 + p.Rand.Float64()*20),
		Humidity:    math.Round(40 + p.Rand.Float64()*40),
		WindSpeed:   math.Round(p.Rand.Float64()*15*10) / 10,
		Description: pick(descriptions, p.Rand.Float64()),
		Main:        pick(mains, p.Rand.Float64()),
	}
}

func pick(options []string, r float64) string {
	i := int(math.Floor(r * float64(len(options))))
	if i >= len(options) {
		i = len(options) - 1
	}
	if i < 0 {
		i = 0
	}
	return options[i]
}

// Condition 蚂蚁视角的天气
type Condition struct {
	Condition   string  `json:"condition"`
	Humidity    float64 `json:"humidity"` // %
	Temp        float64 `json:"temp"`     // °F
	Description string  `json:"description"`
}

// AntConditions lists the known ant weather conditions.
var AntConditions = []Condition{
	{Condition: "Optimal", Humidity: 85, Temp: 72, Description: "Perfect for pheromone trails!"},
	{Condition: "Dry", Humidity: 45, Temp: 78, Description: "Trails fading quickly. Stay hydrated!"},
	{Condition: "Humid", Humidity: 95, Temp: 68, Description: "Slippery surfaces. Extra grip recommended."},
	{Condition: "Cleaning Alert", Humidity: 70, Temp: 75, Description: "⚠️ DANGER: Broom sweep detected nearby!"},
}

// Advisory returns the condition whose humidity is closest to humidity. Ties
// go to the earlier entry.
func Advisory(humidity float64) Condition {
	best := AntConditions[0]
	if math.IsNaN(humidity) {
		return best
	}
	bestDist := math.Abs(best.Humidity - humidity)
	for _, c := range AntConditions[1:] {
		if d := math.Abs(c.Humidity - humidity); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
