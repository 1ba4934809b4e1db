// Package simulator provides a synthetic alert feed for development and
// demos: a dataset generator that plants fraud rings in a population of
// accounts, and a WebSocket server that replays the scored dataset the way
// the real inference service would.
package simulator

import (
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fraudmonitor/internal/model"
)

// DefaultThreshold is the risk score above which an account flags its
// transactions.
const DefaultThreshold = 0.75

// GeneratorConfig controls the shape of the synthetic dataset.
type GeneratorConfig struct {
	// Nodes is the account population size. Zero selects the default.
	Nodes int

	// Transactions is the total event count. Zero selects the default.
	Transactions int

	// FraudNodeRatio is the fraction of accounts that are fraudulent.
	// Zero selects the default.
	FraudNodeRatio float64

	// FraudRings is the number of dense fraud subgraphs. Zero selects the
	// default.
	FraudRings int

	// Threshold is the alerting risk threshold. Zero selects DefaultThreshold.
	Threshold float64

	// Seed fixes the random source for reproducible datasets. Zero seeds
	// from the clock.
	Seed int64
}

const (
	defaultNodes          = 1000
	defaultTransactions   = 5000
	defaultFraudNodeRatio = 0.07
	defaultFraudRings     = 5

	// The dataset spans this many days, ending now.
	timeRangeDays = 100
)

// Generator produces synthetic scored transactions.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// NewGenerator creates a Generator, applying defaults for zero fields.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.Nodes <= 0 {
		cfg.Nodes = defaultNodes
	}
	if cfg.Transactions <= 0 {
		cfg.Transactions = defaultTransactions
	}
	if cfg.FraudNodeRatio <= 0 {
		cfg.FraudNodeRatio = defaultFraudNodeRatio
	}
	if cfg.FraudRings <= 0 {
		cfg.FraudRings = defaultFraudRings
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Dataset builds the full synthetic event stream, sorted by timestamp with
// IDs assigned in stream order.
//
// The temporal structure mirrors how fraud actually unfolds: rings of
// fraudulent accounts activate mid-timeline and transact densely among
// themselves, laundering transfers to clean accounts follow in the late
// stage, and ordinary activity runs throughout.
func (g *Generator) Dataset() []model.TransactionEvent {
	fraudNodes, normalNodes := g.population()

	start := time.Now().AddDate(0, 0, -timeRangeDays)
	events := make([]model.TransactionEvent, 0, g.cfg.Transactions)

	// Ring-internal transfers: 20% of the stream, bursty after activation.
	rings := g.splitRings(fraudNodes)
	ringBudget := g.cfg.Transactions / 5
	for _, ring := range rings {
		if len(ring) < 2 {
			continue
		}
		activationDay := 30 + g.rng.Intn(41) // day 30-70
		duration := 10 + g.rng.Intn(16)      // 10-25 days

		for i := 0; i < ringBudget/len(rings); i++ {
			sender, receiver := g.pickPair(ring)
			events = append(events, model.TransactionEvent{
				SenderID:          sender,
				ReceiverID:        receiver,
				Amount:            g.amount(500, 2000),
				Timestamp:         g.timestamp(start, activationDay, activationDay+duration),
				Type:              "ring_internal",
				FraudActual:       1,
				SenderRiskScore:   g.fraudScore(),
				ReceiverRiskScore: g.fraudScore(),
			})
		}
	}

	// Laundering transfers: fraud accounts moving value to clean ones, 10%
	// of the stream, late stage only.
	launderingBudget := g.cfg.Transactions / 10
	if len(fraudNodes) > 0 && len(normalNodes) > 0 {
		for i := 0; i < launderingBudget; i++ {
			events = append(events, model.TransactionEvent{
				SenderID:          fraudNodes[g.rng.Intn(len(fraudNodes))],
				ReceiverID:        normalNodes[g.rng.Intn(len(normalNodes))],
				Amount:            g.amount(100, 1000),
				Timestamp:         g.timestamp(start, 60, timeRangeDays),
				Type:              "laundering",
				FraudActual:       1,
				SenderRiskScore:   g.fraudScore(),
				ReceiverRiskScore: g.normalScore(),
			})
		}
	}

	// Ordinary activity fills the remainder, spread over the whole range.
	for len(events) < g.cfg.Transactions && len(normalNodes) > 1 {
		sender, receiver := g.pickPair(normalNodes)
		events = append(events, model.TransactionEvent{
			SenderID:          sender,
			ReceiverID:        receiver,
			Amount:            g.amount(10, 200),
			Timestamp:         g.timestamp(start, 0, timeRangeDays),
			Type:              "normal",
			FraudActual:       0,
			SenderRiskScore:   g.normalScore(),
			ReceiverRiskScore: g.normalScore(),
		})
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	for i := range events {
		events[i].ID = int64(i)
		events[i].IsAlert = events[i].SenderRiskScore > g.cfg.Threshold ||
			events[i].ReceiverRiskScore > g.cfg.Threshold
	}

	return events
}

// population splits account IDs into fraudulent and clean sets.
func (g *Generator) population() (fraud, normal []int64) {
	numFraud := int(float64(g.cfg.Nodes) * g.cfg.FraudNodeRatio)
	if numFraud < 2 {
		numFraud = 2
	}

	perm := g.rng.Perm(g.cfg.Nodes)
	fraud = make([]int64, 0, numFraud)
	normal = make([]int64, 0, g.cfg.Nodes-numFraud)
	for i, id := range perm {
		if i < numFraud {
			fraud = append(fraud, int64(id))
		} else {
			normal = append(normal, int64(id))
		}
	}
	return fraud, normal
}

// splitRings partitions the fraud accounts into rings.
func (g *Generator) splitRings(fraudNodes []int64) [][]int64 {
	numRings := g.cfg.FraudRings
	if len(fraudNodes) < numRings*2 {
		numRings = 1
	}
	ringSize := len(fraudNodes) / numRings

	rings := make([][]int64, 0, numRings)
	for i := 0; i < numRings; i++ {
		rings = append(rings, fraudNodes[i*ringSize:(i+1)*ringSize])
	}
	return rings
}

// pickPair selects two distinct accounts from the pool.
func (g *Generator) pickPair(pool []int64) (int64, int64) {
	i := g.rng.Intn(len(pool))
	j := g.rng.Intn(len(pool) - 1)
	if j >= i {
		j++
	}
	return pool[i], pool[j]
}

// amount draws a two-decimal amount uniformly from [low, high).
func (g *Generator) amount(low, high float64) decimal.Decimal {
	v := low + g.rng.Float64()*(high-low)
	return decimal.NewFromFloat(v).Round(2)
}

// timestamp draws a moment within the given day range, minute resolution.
func (g *Generator) timestamp(start time.Time, fromDay, toDay int) time.Time {
	day := fromDay + g.rng.Intn(toDay-fromDay+1)
	return start.AddDate(0, 0, day).
		Add(time.Duration(g.rng.Intn(24)) * time.Hour).
		Add(time.Duration(g.rng.Intn(60)) * time.Minute)
}

// fraudScore draws a risk score for a fraudulent account. Mostly above the
// default threshold, with some misses so the monitor sees missed alerts.
func (g *Generator) fraudScore() float64 {
	if g.rng.Float64() < 0.85 {
		return 0.76 + g.rng.Float64()*0.23
	}
	return 0.40 + g.rng.Float64()*0.35
}

// normalScore draws a risk score for a clean account. Mostly low, with a
// small tail above the threshold so false positives occur.
func (g *Generator) normalScore() float64 {
	if g.rng.Float64() < 0.97 {
		return g.rng.Float64() * 0.5
	}
	return 0.76 + g.rng.Float64()*0.20
}
