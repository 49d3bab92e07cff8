package dashboard

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"ibkr-reporter/internal/sections"
)

const (
	DefaultScenarios = 1500
	DefaultDays      = 252
	// MinScenarios is the smallest sample with one path in the 5% tail.
	MinScenarios = 20
)

// Percentiles reported for every forecast day.
var Percentiles = []float64{5, 25, 50, 75, 95}

var ErrTooFewScenarios = errors.New("too few scenarios")

// Returns is a dated series of fractional periodic returns.
type Returns struct {
	Dates  []time.Time
	Values []float64
}

// ReturnsFrom reads a percent return column of the benchmark comparison
// section as fractions. Rows without a date or a number are dropped.
func ReturnsFrom(t *sections.Table, column string) (Returns, error) {
	var r Returns
	if t == nil {
		return r, ErrNoSection
	}
	dateIdx := t.Index("Date")
	if dateIdx < 0 {
		return r, missingColumn(PerformanceSection, "Date")
	}
	if column == "" {
		column = guessPortfolioColumn(t.Columns, "BM1Return")
	}
	colIdx := t.Index(column)
	if colIdx < 0 {
		return r, missingColumn(PerformanceSection, column)
	}

	type point struct {
		date time.Time
		v    float64
	}
	var pts []point
	for _, row := range t.Rows {
		d, ok := parseDate(row[dateIdx])
		if !ok {
			continue
		}
		v, ok := parseNumber(row[colIdx])
		if !ok {
			continue
		}
		pts = append(pts, point{d, v / 100})
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].date.Before(pts[j].date) })
	for _, p := range pts {
		r.Dates = append(r.Dates, p.date)
		r.Values = append(r.Values, p.v)
	}
	return r, nil
}

// SimulationOptions configures the Monte Carlo projection. A zero Seed draws
// one from the clock.
type SimulationOptions struct {
	Scenarios int
	Days      int
	Seed      int64
}

// Projection holds the realized NAV of the last three months and the
// percentile bands of the simulated paths. Bands[i][d] is the Percentiles[i]
// value on forecast day d.
type Projection struct {
	RealizedDates []time.Time
	RealizedNAV   []float64
	LastNAV       float64
	Mean          float64
	StdDev        float64
	Dates         []time.Time
	Bands         [][]float64
}

// Band returns the series of one reported percentile.
func (p Projection) Band(percentile float64) ([]float64, bool) {
	for i, q := range Percentiles {
		if q == percentile {
			return p.Bands[i], true
		}
	}
	return nil, false
}

// Simulate compounds the returns into a NAV starting at 1 and projects it
// forward with normally distributed daily returns that share the mean and
// sample standard deviation of the history.
func Simulate(r Returns, opts SimulationOptions) (Projection, error) {
	var p Projection
	if opts.Scenarios == 0 {
		opts.Scenarios = DefaultScenarios
	}
	if opts.Days == 0 {
		opts.Days = DefaultDays
	}
	if opts.Scenarios < MinScenarios {
		return p, fmt.Errorf("%w: %d < %d", ErrTooFewScenarios, opts.Scenarios, MinScenarios)
	}
	if opts.Days < 1 {
		return p, fmt.Errorf("forecast days must be positive, got %d", opts.Days)
	}
	if len(r.Values) < 2 {
		return p, fmt.Errorf("%w: need at least two returns", ErrNoData)
	}

	nav := make([]float64, len(r.Values))
	growth := 1.0
	for i, v := range r.Values {
		growth *= 1 + v
		nav[i] = growth
	}
	p.LastNAV = nav[len(nav)-1]
	last := r.Dates[len(r.Dates)-1]
	from := addMonths(last, -3)
	for i, d := range r.Dates {
		if !d.Before(from) {
			p.RealizedDates = append(p.RealizedDates, d)
			p.RealizedNAV = append(p.RealizedNAV, nav[i])
		}
	}

	var err error
	if p.Mean, err = stats.Mean(r.Values); err != nil {
		return p, fmt.Errorf("mean return: %w", err)
	}
	if p.StdDev, err = stats.StandardDeviationSample(r.Values); err != nil {
		return p, fmt.Errorf("return deviation: %w", err)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	// paths[d][s] is the NAV of scenario s on day d.
	paths := make([][]float64, opts.Days)
	for d := range paths {
		paths[d] = make([]float64, opts.Scenarios)
	}
	for s := 0; s < opts.Scenarios; s++ {
		paths[0][s] = p.LastNAV
		for d := 1; d < opts.Days; d++ {
			ret := rng.NormFloat64()*p.StdDev + p.Mean
			paths[d][s] = paths[d-1][s] * (1 + ret)
		}
	}

	p.Bands = make([][]float64, len(Percentiles))
	for i := range p.Bands {
		p.Bands[i] = make([]float64, opts.Days)
	}
	for d := 0; d < opts.Days; d++ {
		p.Dates = append(p.Dates, last.AddDate(0, 0, d+1))
		for i, q := range Percentiles {
			v, err := bandValue(paths[d], q)
			if err != nil {
				return p, fmt.Errorf("percentile %v day %d: %w", q, d, err)
			}
			p.Bands[i][d] = v
		}
	}
	return p, nil
}

// bandValue is the nearest-rank percentile q of one simulated day.
func bandValue(day []float64, q float64) (float64, error) {
	return stats.PercentileNearestRank(day, q)
}
