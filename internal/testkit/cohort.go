package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"sedentarism/domain/core"
	"sedentarism/domain/weekly"
)

// CohortConfig configures the synthetic weekly cohort generator
type CohortConfig struct {
	Groups        int       `json:"groups"`
	WeeksPerGroup int       `json:"weeks_per_group"`
	StartDate     time.Time `json:"start_date"`
	// Persistence is the probability of staying in the same latent level
	// from one week to the next.
	Persistence float64 `json:"persistence"`
	// Noise scales the gaussian noise added to every feature.
	Noise float64 `json:"noise"`
	// MissingRate is the probability that a single reading is missing.
	MissingRate float64 `json:"missing_rate"`
	// GapRate is the probability that a week is skipped entirely.
	GapRate float64 `json:"gap_rate"`
	Seed    int64   `json:"seed"`
}

// DefaultCohortConfig returns a small, well-separated cohort
func DefaultCohortConfig() CohortConfig {
	return CohortConfig{
		Groups:        6,
		WeeksPerGroup: 20,
		StartDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Persistence:   0.75,
		Noise:         0.05,
		Seed:          42,
	}
}

// Cohort is a generated feature feed with its ground-truth feed.
type Cohort struct {
	Vectors []weekly.Vector
	Labels  []weekly.Label
	// Levels holds the latent sedentarism level (0 low, 1 medium, 2 high)
	// of every vector, in the same order.
	Levels []int
}

// CohortGenerator produces deterministic weekly cohorts
type CohortGenerator struct {
	config CohortConfig
	rng    *rand.Rand
}

// NewCohortGenerator creates a generator seeded from config
func NewCohortGenerator(config CohortConfig) *CohortGenerator {
	return &CohortGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate builds the cohort. Labels mark latent level 2 as class 1 and
// everything else as class 0.
func (g *CohortGenerator) Generate() Cohort {
	var c Cohort
	for i := 0; i < g.config.Groups; i++ {
		group := core.GroupID(fmt.Sprintf("user_%03d", i+1))
		level := g.rng.Intn(3)
		week := g.config.StartDate
		for w := 0; w < g.config.WeeksPerGroup; w++ {
			if w > 0 {
				level = g.nextLevel(level)
				week = week.AddDate(0, 0, 7)
				if g.rng.Float64() < g.config.GapRate {
					week = week.AddDate(0, 0, 7)
				}
			}
			v := g.vector(group, week, level)
			c.Vectors = append(c.Vectors, v)
			c.Levels = append(c.Levels, level)
			class := 0
			if level == 2 {
				class = 1
			}
			c.Labels = append(c.Labels, weekly.Label{Group: group, WeekStart: week, Class: class})
		}
	}
	return c
}

func (g *CohortGenerator) nextLevel(level int) int {
	if g.rng.Float64() < g.config.Persistence {
		return level
	}
	// move one step towards a neighbour
	switch level {
	case 0:
		return 1
	case 2:
		return 1
	default:
		if g.rng.Intn(2) == 0 {
			return 0
		}
		return 2
	}
}

// vector maps a latent level to feature values: higher sedentarism lowers
// activity, caloric surplus and variability and raises cardiac delta.
func (g *CohortGenerator) vector(group core.GroupID, week time.Time, level int) weekly.Vector {
	s := float64(level) / 2
	means := [weekly.NumFeatures]float64{
		1 - 0.8*s,   // activity level (relative)
		900 - 600*s, // caloric surplus over basal (kcal)
		70 - 40*s,   // HRV SDNN (ms)
		10 + 25*s,   // cardiac delta (bpm)
	}
	scales := [weekly.NumFeatures]float64{1, 600, 40, 25}

	v := weekly.Vector{Group: group, WeekStart: week}
	for f := range v.Features {
		if g.rng.Float64() < g.config.MissingRate {
			v.Features[f] = weekly.Missing()
			continue
		}
		x := means[f] + g.rng.NormFloat64()*g.config.Noise*scales[f]
		v.Features[f] = weekly.Present(math.Round(x*1000) / 1000)
	}
	return v
}
