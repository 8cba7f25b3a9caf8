package funfact

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Velubby/etl-weather/internal/slug"
)

// Strategy pairs a generator with the source label reported to clients.
type Strategy struct {
	Name      string
	Generator TextGenerator
}

// Service answers fun-fact requests by trying an explicit list of named
// strategies in order, caching whatever succeeds.
type Service struct {
	cache      *Cache
	strategies []Strategy
}

// NewService builds a service over the given strategy chain.
func NewService(ttl time.Duration, strategies ...Strategy) *Service {
	return &Service{
		cache:      NewCache(ttl),
		strategies: strategies,
	}
}

// DefaultStrategies returns the standard chain: Gemini when a key is
// configured, then the local generator which never fails.
func DefaultStrategies(apiKey, model string) []Strategy {
	var out []Strategy
	if apiKey != "" {
		out = append(out, Strategy{Name: "gemini", Generator: NewGeminiClient(apiKey, model)})
	}
	out = append(out, Strategy{Name: "fallback", Generator: LocalGenerator{}})
	return out
}

// FunFact returns a short trivia text for a city plus the source it came
// from ("cache", a strategy name, or "none").
func (s *Service) FunFact(ctx context.Context, city string) (text, source string) {
	key := slug.Make(city)
	if cached, ok := s.cache.Get(key); ok {
		return cached, "cache"
	}

	prompt := fmt.Sprintf("Share one short, interesting fun fact about the weather or air quality in and around %s.", city)

	for _, strat := range s.strategies {
		result, err := strat.Generator.Generate(ctx, prompt)
		if err != nil {
			log.Printf("WARN: fun-fact strategy %q failed for %q: %v", strat.Name, city, err)
			continue
		}
		s.cache.Set(key, result)
		return result, strat.Name
	}
	return "", "none"
}
