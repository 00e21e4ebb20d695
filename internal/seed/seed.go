// Package seed generates synthetic HR datasets for local runs and for
// populating the SQLite and workbook record sources.
package seed

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/pkg/logger"
)

const (
	defaultPeople      = 50
	maxEvaluations     = 6
	evaluationSpacing  = 90 // days between evaluations
	attendanceDays     = 120
	unassignedPermille = 50
)

// DefaultUnits are the organizational units people are spread across.
var DefaultUnits = []string{"Engineering", "Sales", "Operations", "Support"}

// profile shapes one person's history.
type profile int

const (
	profileSteady profile = iota
	profileDeclining
	profileImproving
	profileNewHire
	profileStruggling
	profileVeteran
	profileCount
)

// Config controls generation.
type Config struct {
	People int
	Units  []string
	Seed   uint64
	Now    time.Time
}

// Option configures a Config.
type Option func(*Config)

// WithPeople sets how many people are generated.
func WithPeople(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.People = n
		}
	}
}

// WithUnits sets the organizational units.
func WithUnits(units ...string) Option {
	return func(c *Config) {
		if len(units) > 0 {
			c.Units = units
		}
	}
}

// WithSeed makes generation reproducible.
func WithSeed(seed uint64) Option {
	return func(c *Config) { c.Seed = seed }
}

// WithNow anchors generated dates.
func WithNow(now time.Time) Option {
	return func(c *Config) { c.Now = now }
}

// Generate builds a dataset. Output is reproducible for a fixed seed and now.
func Generate(ctx context.Context, opts ...Option) (model.Dataset, error) {
	cfg := Config{People: defaultPeople, Units: DefaultUnits, Seed: uint64(time.Now().UnixNano()), Now: time.Now().UTC()}
	for _, opt := range opts {
		opt(&cfg)
	}

	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], cfg.Seed)
	src := rand.NewChaCha8(key)
	rng := rand.New(src)
	ids := func() string {
		id, err := uuid.NewRandomFromReader(src)
		if err != nil {
			return uuid.NewString()
		}
		return id.String()
	}
	today := cfg.Now.Truncate(24 * time.Hour)

	var data model.Dataset
	for i := range cfg.People {
		if err := ctx.Err(); err != nil {
			return model.Dataset{}, fmt.Errorf("generate: %w", err)
		}

		p := profile(rng.IntN(int(profileCount)))
		person := model.Person{
			ID:   ids(),
			Name: fmt.Sprintf("Employee %03d", i+1),
		}
		if rng.IntN(1000) >= unassignedPermille {
			person.OrganizationUnit = cfg.Units[rng.IntN(len(cfg.Units))]
		}
		hire := today.AddDate(0, -tenureMonths(rng, p), -rng.IntN(28))
		person.HireDate = &hire
		data.People = append(data.People, person)

		for n, score := range history(rng, p) {
			data.Evaluations = append(data.Evaluations, model.EvaluationRecord{
				ID:           ids(),
				PersonID:     person.ID,
				EvaluatedAt:  today.AddDate(0, 0, -(n*evaluationSpacing + rng.IntN(30))),
				OverallScore: score,
			})
		}

		absent, late := attendanceRates(p)
		for d := range attendanceDays {
			status := model.StatusPresent
			switch r := rng.Float64(); {
			case r < absent:
				status = model.StatusAbsent
			case r < absent+late:
				status = model.StatusLate
			case r < absent+late+0.02:
				status = model.StatusLeave
			}
			if status == model.StatusPresent {
				continue
			}
			data.Attendance = append(data.Attendance, model.AttendanceRecord{
				ID:         ids(),
				EmployeeID: person.ID,
				Date:       today.AddDate(0, 0, -d),
				Status:     status,
			})
		}
	}

	logger.GetOrDiscard().Named("seed").Debug(ctx, "dataset generated",
		logger.Int("people", len(data.People)),
		logger.Int("evaluations", len(data.Evaluations)),
		logger.Int("attendance", len(data.Attendance)),
	)
	return data, nil
}

func tenureMonths(rng *rand.Rand, p profile) int {
	switch p {
	case profileNewHire:
		return 1 + rng.IntN(6)
	case profileVeteran:
		return 60 + rng.IntN(120)
	default:
		return 12 + rng.IntN(48)
	}
}

// history returns evaluation scores, most recent first.
func history(rng *rand.Rand, p profile) []float64 {
	n := 2 + rng.IntN(maxEvaluations-1)
	switch p {
	case profileNewHire:
		n = rng.IntN(3) // some have no usable history yet
	case profileStruggling:
		n = 2 + rng.IntN(2)
	}

	base := 3 + rng.Float64()*4
	step := 0.0
	switch p {
	case profileDeclining:
		step = -(0.5 + rng.Float64())
	case profileImproving:
		step = 0.5 + rng.Float64()
	case profileStruggling:
		base = 1 + rng.Float64()*2
	case profileVeteran:
		base = 6 + rng.Float64()*3
	}

	scores := make([]float64, n)
	for i := range scores {
		// i counts back in time from the latest score.
		s := base - step*float64(i) + (rng.Float64()-0.5)*0.6
		scores[i] = math.Round(clamp(s, 0, 10)*10) / 10
	}
	return scores
}

// attendanceRates returns per-day absence and lateness probabilities.
func attendanceRates(p profile) (absent, late float64) {
	switch p {
	case profileDeclining:
		return 0.05, 0.08
	case profileStruggling:
		return 0.08, 0.1
	case profileVeteran:
		return 0.01, 0.01
	default:
		return 0.02, 0.03
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
