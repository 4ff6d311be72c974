package service

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/clock"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/storefront-service/internal/repository"
)

const (
	syntheticMinFactor = 0.9
	syntheticSpread    = 0.2
	day                = 24 * time.Hour
)

type PriceHistoryService interface {
	RecentWindow(product entity.Product) entity.PriceHistorySeries
	Trend(series entity.PriceHistorySeries, currentPrice float64) entity.PriceTrend
	ForProduct(ctx context.Context, product entity.Product) entity.PriceHistorySeries
}

type priceHistoryService struct {
	repo  repository.PriceHistoryRepository
	rnd   func() float64
	clock clock.Clock
	log   logger.Logger
}

// NewPriceHistoryService returns a normalizer. rnd must return values in [0,1);
// nil selects math/rand. repo may be nil, in which case only embedded history is used.
func NewPriceHistoryService(repo repository.PriceHistoryRepository, rnd func() float64, clk clock.Clock, log logger.Logger) PriceHistoryService {
	if rnd == nil {
		rnd = rand.Float64
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &priceHistoryService{repo: repo, rnd: rnd, clock: clk, log: log}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// RecentWindow returns at most the last seven samples, always ending at the current price.
// Products with fewer than two real samples get a synthesized week flagged as such.
func (s *priceHistoryService) RecentWindow(product entity.Product) entity.PriceHistorySeries {
	return s.normalize(product.PriceHistory, product.Price)
}

func (s *priceHistoryService) normalize(history []entity.PricePoint, current float64) entity.PriceHistorySeries {
	if len(history) < 2 {
		return s.synthesize(current)
	}

	start := 0
	if len(history) > entity.PriceWindowSize {
		start = len(history) - entity.PriceWindowSize
	}
	points := make([]entity.PricePoint, 0, entity.PriceWindowSize+1)
	points = append(points, history[start:]...)

	if points[len(points)-1].Price != current {
		date := startOfDay(s.clock.Now())
		if last := points[len(points)-1].Date; date.Before(last) {
			date = last
		}
		points = append(points, entity.PricePoint{Date: date, Price: current})
		if len(points) > entity.PriceWindowSize {
			points = points[len(points)-entity.PriceWindowSize:]
		}
	}
	return entity.PriceHistorySeries{Points: points}
}

func (s *priceHistoryService) synthesize(current float64) entity.PriceHistorySeries {
	today := startOfDay(s.clock.Now())
	points := make([]entity.PricePoint, 0, entity.PriceWindowSize)
	for i := entity.PriceWindowSize - 1; i > 0; i-- {
		factor := syntheticMinFactor + s.rnd()*syntheticSpread
		points = append(points, entity.PricePoint{
			Date:  today.Add(-time.Duration(i) * day),
			Price: math.Round(current*factor*100) / 100,
		})
	}
	points = append(points, entity.PricePoint{Date: today, Price: current})
	return entity.PriceHistorySeries{Points: points, Synthetic: true}
}

func (s *priceHistoryService) Trend(series entity.PriceHistorySeries, currentPrice float64) entity.PriceTrend {
	trend := entity.PriceTrend{
		Direction: entity.TrendFlat,
		Current:   currentPrice,
		Lowest:    currentPrice,
		Highest:   currentPrice,
		Average:   currentPrice,
		AtLowest:  true,
	}
	if len(series.Points) == 0 {
		return trend
	}

	sum := 0.0
	lo, hi := series.Points[0].Price, series.Points[0].Price
	for _, p := range series.Points {
		sum += p.Price
		lo = math.Min(lo, p.Price)
		hi = math.Max(hi, p.Price)
	}
	trend.Lowest = lo
	trend.Highest = hi
	trend.Average = math.Round(sum/float64(len(series.Points))*100) / 100
	trend.AtLowest = currentPrice <= lo

	first := series.Points[0].Price
	switch {
	case currentPrice < first:
		trend.Direction = entity.TrendDown
		trend.TrendingDown = true
	case currentPrice > first:
		trend.Direction = entity.TrendUp
	}
	if first > 0 {
		trend.ChangePercent = math.Round((currentPrice-first)/first*10000) / 100
	}
	return trend
}

// ForProduct prefers stored history over the embedded one. A failing repository
// degrades to the embedded history.
func (s *priceHistoryService) ForProduct(ctx context.Context, product entity.Product) entity.PriceHistorySeries {
	if s.repo == nil {
		return s.RecentWindow(product)
	}
	history, err := s.repo.History(ctx, product.ID)
	if err != nil {
		s.log.Warnf("Failed to load price history for product %s, using embedded history: %v", product.ID, err)
		return s.RecentWindow(product)
	}
	if len(history) < len(product.PriceHistory) {
		history = product.PriceHistory
	}
	return s.normalize(history, product.Price)
}
