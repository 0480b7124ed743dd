// Package mockdata synthesises call-center entities within configurable bounds.
// It stands in for a real backend when the PBX integration is unavailable.
package mockdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charlesng35/veloigp/internal/models"
)

// Bounds are the inclusive ranges random values are drawn from.
type Bounds struct {
	CallDurationMin int     `mapstructure:"call_duration_min"`
	CallDurationMax int     `mapstructure:"call_duration_max"`
	WaitTimeMin     int     `mapstructure:"wait_time_min"`
	WaitTimeMax     int     `mapstructure:"wait_time_max"`
	SatisfactionMin float64 `mapstructure:"satisfaction_min"`
	SatisfactionMax float64 `mapstructure:"satisfaction_max"`
	EfficiencyMin   float64 `mapstructure:"efficiency_min"`
	EfficiencyMax   float64 `mapstructure:"efficiency_max"`
	ServiceLevelMin float64 `mapstructure:"service_level_min"`
	ServiceLevelMax float64 `mapstructure:"service_level_max"`
}

// DefaultBounds returns the ranges used by the dashboard demo data.
func DefaultBounds() Bounds {
	return Bounds{
		CallDurationMin: 30,
		CallDurationMax: 600,
		WaitTimeMin:     0,
		WaitTimeMax:     180,
		SatisfactionMin: 3.0,
		SatisfactionMax: 5.0,
		EfficiencyMin:   70,
		EfficiencyMax:   100,
		ServiceLevelMin: 60,
		ServiceLevelMax: 100,
	}
}

// Validate checks every range is ordered and non-negative.
func (b Bounds) Validate() error {
	var errs []error
	checkInt := func(name string, lo, hi int) {
		if lo < 0 || hi < lo {
			errs = append(errs, fmt.Errorf("%s range [%d,%d] is invalid", name, lo, hi))
		}
	}
	checkFloat := func(name string, lo, hi float64) {
		if lo < 0 || hi < lo || math.IsNaN(lo) || math.IsNaN(hi) {
			errs = append(errs, fmt.Errorf("%s range [%g,%g] is invalid", name, lo, hi))
		}
	}
	checkInt("call duration", b.CallDurationMin, b.CallDurationMax)
	checkInt("wait time", b.WaitTimeMin, b.WaitTimeMax)
	checkFloat("satisfaction", b.SatisfactionMin, b.SatisfactionMax)
	checkFloat("efficiency", b.EfficiencyMin, b.EfficiencyMax)
	checkFloat("service level", b.ServiceLevelMin, b.ServiceLevelMax)
	if b.EfficiencyMax > 100 || b.ServiceLevelMax > 100 {
		errs = append(errs, errors.New("percentages must not exceed 100"))
	}
	return errors.Join(errs...)
}

var (
	firstNames = []string{"Ana", "Carlos", "Lucía", "Miguel", "Sofía", "Javier", "Elena", "Diego", "Marta", "Pablo", "Laura", "Andrés"}
	lastNames  = []string{"García", "Martínez", "López", "Sánchez", "Pérez", "Gómez", "Fernández", "Díaz", "Ruiz", "Torres"}
	queueNames = []string{"Ventas", "Soporte", "Facturación", "Retención", "General"}
	statuses   = []models.OperatorStatus{models.OperatorAvailable, models.OperatorBusy, models.OperatorPaused, models.OperatorOffline}
)

// Generator produces random dashboard entities. It is safe for concurrent use.
type Generator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	bounds Bounds
	now    func() time.Time
}

// Option customises a Generator.
type Option func(*Generator)

// WithBounds overrides the default value ranges.
func WithBounds(b Bounds) Option {
	return func(g *Generator) {
		g.bounds = b
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// New builds a generator seeded with seed. A zero seed derives one from the clock,
// making output non-reproducible.
func New(seed uint64, opts ...Option) (*Generator, error) {
	g := &Generator{
		bounds: DefaultBounds(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.bounds.Validate(); err != nil {
		return nil, fmt.Errorf("mockdata: %w", err)
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return g, nil
}

// Bounds returns the ranges the generator draws from.
func (g *Generator) Bounds() Bounds {
	return g.bounds
}

func (g *Generator) intBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *Generator) floatBetween(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	v := math.Round((lo+g.rng.Float64()*(hi-lo))*100) / 100
	return math.Min(hi, math.Max(lo, v))
}

// Operators returns n synthetic agents.
func (g *Generator) Operators(n int) []models.Operator {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]models.Operator, 0, max(n, 0))
	for i := 0; i < n; i++ {
		out = append(out, models.Operator{
			ID:            fmt.Sprintf("op-%03d", i+1),
			Name:          firstNames[g.rng.IntN(len(firstNames))] + " " + lastNames[g.rng.IntN(len(lastNames))],
			Extension:     fmt.Sprintf("%d", 1001+i),
			Status:        statuses[g.rng.IntN(len(statuses))],
			CallsHandled:  g.intBetween(0, 120),
			AvgHandleTime: g.intBetween(g.bounds.CallDurationMin, g.bounds.CallDurationMax),
			Satisfaction:  g.floatBetween(g.bounds.SatisfactionMin, g.bounds.SatisfactionMax),
			Efficiency:    g.floatBetween(g.bounds.EfficiencyMin, g.bounds.EfficiencyMax),
		})
	}
	return out
}

// Calls returns n calls spread over the last hour and assigned to operatorIDs.
func (g *Generator) Calls(n int, operatorIDs []string) []models.Call {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	out := make([]models.Call, 0, max(n, 0))
	for i := 0; i < n; i++ {
		status := models.CallAnswered
		switch roll := g.rng.IntN(100); {
		case roll < 8:
			status = models.CallAbandoned
		case roll < 12:
			status = models.CallMissed
		}

		direction := "inbound"
		if g.rng.IntN(4) == 0 {
			direction = "outbound"
		}

		operatorID := ""
		if len(operatorIDs) > 0 && status == models.CallAnswered {
			operatorID = operatorIDs[g.rng.IntN(len(operatorIDs))]
		}

		out = append(out, models.Call{
			ID:         fmt.Sprintf("call-%06d", i+1),
			OperatorID: operatorID,
			Queue:      queueNames[g.rng.IntN(len(queueNames))],
			Direction:  direction,
			Number:     fmt.Sprintf("+34 6%02d %03d %03d", g.rng.IntN(100), g.rng.IntN(1000), g.rng.IntN(1000)),
			StartedAt:  now.Add(-time.Duration(g.rng.IntN(3600)) * time.Second),
			Duration:   g.intBetween(g.bounds.CallDurationMin, g.bounds.CallDurationMax),
			WaitTime:   g.intBetween(g.bounds.WaitTimeMin, g.bounds.WaitTimeMax),
			Status:     status,
		})
	}
	return out
}

// Metrics returns aggregate KPIs.
func (g *Generator) Metrics() models.Metrics {
	g.mu.Lock()
	defer g.mu.Unlock()

	total := g.intBetween(200, 1500)
	abandoned := total * g.intBetween(2, 12) / 100
	return models.Metrics{
		TotalCalls:     total,
		AnsweredCalls:  total - abandoned,
		AbandonedCalls: abandoned,
		AvgWaitTime:    float64(g.intBetween(g.bounds.WaitTimeMin, g.bounds.WaitTimeMax)),
		AvgDuration:    float64(g.intBetween(g.bounds.CallDurationMin, g.bounds.CallDurationMax)),
		ServiceLevel:   g.floatBetween(g.bounds.ServiceLevelMin, g.bounds.ServiceLevelMax),
		Satisfaction:   g.floatBetween(g.bounds.SatisfactionMin, g.bounds.SatisfactionMax),
		Efficiency:     g.floatBetween(g.bounds.EfficiencyMin, g.bounds.EfficiencyMax),
		GeneratedAt:    g.now(),
	}
}

// Queues returns one entry per known call queue.
func (g *Generator) Queues() []models.Queue {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]models.Queue, 0, len(queueNames))
	for i, name := range queueNames {
		avg := g.intBetween(g.bounds.WaitTimeMin, g.bounds.WaitTimeMax)
		out = append(out, models.Queue{
			ID:           fmt.Sprintf("q-%d", i+1),
			Name:         name,
			Waiting:      g.intBetween(0, 15),
			ActiveAgents: g.intBetween(1, 12),
			AvgWaitTime:  avg,
			LongestWait:  g.intBetween(avg, max(avg, g.bounds.WaitTimeMax)),
			ServiceLevel: g.floatBetween(g.bounds.ServiceLevelMin, g.bounds.ServiceLevelMax),
		})
	}
	return out
}

type reportRow struct {
	Queue     string  `json:"queue"`
	Agent     string  `json:"agent,omitempty"`
	Calls     int     `json:"calls"`
	Answered  int     `json:"answered"`
	Abandoned int     `json:"abandoned"`
	AvgWait   int     `json:"avg_wait"`
	AvgTalk   int     `json:"avg_talk"`
	SLA       float64 `json:"sla"`
}

type report struct {
	DateStart string      `json:"date_start"`
	DateEnd   string      `json:"date_end"`
	Rows      []reportRow `json:"rows"`
}

// Report builds a payload shaped like the PBX queue report for the given range.
func (g *Generator) Report(start, end time.Time) (models.Report, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rows := make([]reportRow, 0, len(queueNames))
	for _, name := range queueNames {
		calls := g.intBetween(20, 400)
		abandoned := calls * g.intBetween(1, 15) / 100
		rows = append(rows, reportRow{
			Queue:     name,
			Calls:     calls,
			Answered:  calls - abandoned,
			Abandoned: abandoned,
			AvgWait:   g.intBetween(g.bounds.WaitTimeMin, g.bounds.WaitTimeMax),
			AvgTalk:   g.intBetween(g.bounds.CallDurationMin, g.bounds.CallDurationMax),
			SLA:       g.floatBetween(g.bounds.ServiceLevelMin, g.bounds.ServiceLevelMax),
		})
	}

	payload, err := json.Marshal(report{
		DateStart: start.Format(time.DateOnly),
		DateEnd:   end.Format(time.DateOnly),
		Rows:      rows,
	})
	if err != nil {
		return nil, fmt.Errorf("mockdata: encode report: %w", err)
	}
	return payload, nil
}
