package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devskill-org/battery-optimizer/meteo"
	"github.com/devskill-org/battery-optimizer/optimizer"
)

// WeatherForecastCache caches the MET-style forecast document with a TTL,
// grounded on the teacher's scheduler/pv.go WeatherForecastCache.
type WeatherForecastCache struct {
	mu            sync.RWMutex
	forecast      *meteo.METJSONForecast
	fetchedAt     time.Time
	cacheDuration time.Duration
}

func (w *WeatherForecastCache) get() (*meteo.METJSONForecast, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.forecast == nil || time.Since(w.fetchedAt) > w.cacheDuration {
		return nil, false
	}
	return w.forecast, true
}

func (w *WeatherForecastCache) set(forecast *meteo.METJSONForecast) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.forecast = forecast
	w.fetchedAt = time.Now()
}

// MeteoWeatherProvider implements WeatherProvider and the cloud-coverage
// half of PVProvider against the MET Norway Location Forecast API.
type MeteoWeatherProvider struct {
	Client   *meteo.Client
	Location meteo.Location
	cache    WeatherForecastCache
}

// NewMeteoWeatherProvider constructs a provider with the given cache TTL.
func NewMeteoWeatherProvider(userAgent string, location meteo.Location, cacheTTL time.Duration) *MeteoWeatherProvider {
	return &MeteoWeatherProvider{
		Client:   meteo.NewClient(userAgent),
		Location: location,
		cache:    WeatherForecastCache{cacheDuration: cacheTTL},
	}
}

func (p *MeteoWeatherProvider) forecastDocument() (*meteo.METJSONForecast, error) {
	if doc, ok := p.cache.get(); ok {
		return doc, nil
	}
	doc, err := p.Client.GetCompact(meteo.QueryParams{Location: p.Location})
	if err != nil {
		return nil, fmt.Errorf("meteo weather provider: %w", err)
	}
	p.cache.set(doc)
	return doc, nil
}

// ForecastTemperature returns a WeatherSample per forecast point within the
// requested horizon.
func (p *MeteoWeatherProvider) ForecastTemperature(ctx context.Context, from time.Time, horizon time.Duration) ([]optimizer.WeatherSample, error) {
	doc, err := p.forecastDocument()
	if err != nil {
		return nil, err
	}

	steps := doc.GetForecastForPeriod(from, from.Add(horizon))
	out := make([]optimizer.WeatherSample, 0, len(steps))
	for _, step := range steps {
		temp := step.GetTemperature()
		if temp == nil {
			continue
		}
		out = append(out, optimizer.WeatherSample{Time: step.Time, TempC: *temp})
	}
	return out, nil
}

// CloudCoverageAt returns the cloud area fraction (0-100) nearest to t, or
// nil if unavailable.
func (p *MeteoWeatherProvider) CloudCoverageAt(t time.Time) (*float64, error) {
	doc, err := p.forecastDocument()
	if err != nil {
		return nil, err
	}
	step := doc.GetWeatherAtTime(t)
	if step == nil {
		return nil, nil
	}
	return step.GetCloudCoverage(), nil
}

// HasSnowAt reports whether the forecast symbol at t indicates snow,
// grounded on the teacher's snow-detection heuristic in
// scheduler/mpc.go's estimateSolarPowerFromWeather.
func (p *MeteoWeatherProvider) HasSnowAt(t time.Time) (bool, error) {
	doc, err := p.forecastDocument()
	if err != nil {
		return false, err
	}
	step := doc.GetWeatherAtTime(t)
	if step == nil {
		return false, nil
	}
	symbol := step.GetSymbolCode()
	if symbol == nil {
		return false, nil
	}
	return hasSnowSymbol(string(*symbol)), nil
}

func hasSnowSymbol(symbol string) bool {
	for i := 0; i+4 <= len(symbol); i++ {
		if symbol[i:i+4] == "snow" {
			return true
		}
	}
	return false
}
