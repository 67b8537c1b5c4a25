package pricing

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Source produces the next price given the last recorded one. last is zero
// when the feed is empty.
type Source interface {
	Next(ctx context.Context, last decimal.Decimal) (decimal.Decimal, error)
}

// StartCollector appends one sample per interval. Run it on its own
// goroutine; it never returns.
func StartCollector(feed *Feed, src Source, interval time.Duration) {
	go seedOnce(feed, src)
	ticker := time.NewTicker(interval)
	for {
		<-ticker.C
		if err := collect(feed, src); err != nil {
			logrus.WithError(err).Warn("price update failed")
		}
	}
}

func seedOnce(feed *Feed, src Source) {
	time.Sleep(2 * time.Second)
	_ = collect(feed, src)
}

func collect(feed *Feed, src Source) error {
	ctx := context.Background()
	last := decimal.Zero
	if sample, err := feed.Latest(ctx); err == nil {
		last = sample.PriceUSD
	}
	next, err := src.Next(ctx, last)
	if err != nil {
		return err
	}
	sample, err := feed.Append(ctx, next)
	if err != nil {
		return err
	}
	logrus.Infof("appended SOL price sample %s", sample.PriceUSD)
	return nil
}

// RandomWalk is the development Source: a bounded walk around the last
// sample, seeded near typical SOL/USD levels when the feed is empty.
type RandomWalk struct {
	rng *rand.Rand
}

func NewRandomWalk() *RandomWalk {
	return &RandomWalk{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *RandomWalk) Next(ctx context.Context, last decimal.Decimal) (decimal.Decimal, error) {
	base, _ := last.Float64()
	if base <= 0 {
		base = 80 + s.rng.Float64()*120
	}
	delta := (s.rng.Float64()*0.06 - 0.03) * base
	next := base + delta
	if next < 1 {
		next = 1
	}
	return decimal.NewFromFloat(next).Round(2), nil
}
