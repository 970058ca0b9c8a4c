package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/i474232898/forecast-tracker/internal/weather"
)

const defaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

// openMeteoVariables maps our fields to Open-Meteo variable names.
var openMeteoVariables = map[weather.Field]string{
	weather.FieldTemperature:   "temperature_2m",
	weather.FieldHumidity:      "relative_humidity_2m",
	weather.FieldPrecipitation: "precipitation",
	weather.FieldPressure:      "surface_pressure",
	weather.FieldWindSpeed:     "wind_speed_10m",
	weather.FieldWindDirection: "wind_direction_10m",
}

// openMeteoBlocks maps a sampling interval to the response block carrying it.
var openMeteoBlocks = map[time.Duration]string{
	15 * time.Minute: "minutely_15",
	time.Hour:        "hourly",
}

var _ weather.Provider = (*OpenMeteoProvider)(nil)

// OpenMeteoProvider implements weather.Provider for Open-Meteo.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewOpenMeteoProvider creates a provider. An empty baseURL selects the public API.
func NewOpenMeteoProvider(client *http.Client, baseURL string) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = defaultOpenMeteoURL
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// Current returns temperature, surface pressure and wind speed for now.
func (p *OpenMeteoProvider) Current(ctx context.Context, loc weather.Coordinates) (weather.Reading, error) {
	values := url.Values{}
	values.Set("latitude", formatCoord(loc.Latitude))
	values.Set("longitude", formatCoord(loc.Longitude))
	values.Set("current", strings.Join([]string{
		openMeteoVariables[weather.FieldTemperature],
		openMeteoVariables[weather.FieldPressure],
		openMeteoVariables[weather.FieldWindSpeed],
	}, ","))
	values.Set("forecast_days", "1")
	values.Set("timeformat", "unixtime")

	body, err := p.get(ctx, values)
	if err != nil {
		return weather.Reading{}, err
	}

	var payload struct {
		Current *struct {
			Time            int64    `json:"time"`
			Temperature2m   *float64 `json:"temperature_2m"`
			SurfacePressure *float64 `json:"surface_pressure"`
			WindSpeed10m    *float64 `json:"wind_speed_10m"`
		} `json:"current"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Reading{}, fmt.Errorf("decode openmeteo current: %w", err)
	}
	if payload.Current == nil {
		return weather.Reading{}, fmt.Errorf("openmeteo response has no current block")
	}

	return weather.Reading{
		Location: loc,
		Time:     time.Unix(payload.Current.Time, 0),
		Sample: weather.Sample{
			Temperature: payload.Current.Temperature2m,
			Pressure:    payload.Current.SurfacePressure,
			WindSpeed:   payload.Current.WindSpeed10m,
		},
	}, nil
}

// Forecast fetches series for all coordinates in a single request.
// Open-Meteo answers multi-location requests with an array in request order.
func (p *OpenMeteoProvider) Forecast(ctx context.Context, req weather.ForecastRequest) ([]weather.RawSeries, error) {
	if len(req.Coordinates) == 0 {
		return nil, nil
	}

	fineBlock, coarseBlock, err := intervalBlocks(req.Intervals)
	if err != nil {
		return nil, err
	}

	params := make(map[string][]string)
	for _, f := range req.Variables.Fine {
		params[fineBlock] = append(params[fineBlock], openMeteoVariables[f])
	}
	for _, f := range req.Variables.Coarse {
		params[coarseBlock] = append(params[coarseBlock], openMeteoVariables[f])
	}

	lats := make([]string, len(req.Coordinates))
	lons := make([]string, len(req.Coordinates))
	for i, c := range req.Coordinates {
		lats[i] = formatCoord(c.Latitude)
		lons[i] = formatCoord(c.Longitude)
	}

	values := url.Values{}
	values.Set("latitude", strings.Join(lats, ","))
	values.Set("longitude", strings.Join(lons, ","))
	for block, vars := range params {
		values.Set(block, strings.Join(vars, ","))
	}
	values.Set("forecast_days", strconv.Itoa(max(req.Days, 1)))
	values.Set("timeformat", "unixtime")

	body, err := p.get(ctx, values)
	if err != nil {
		return nil, err
	}

	items, err := decodeOpenMeteoItems(body)
	if err != nil {
		return nil, err
	}

	out := make([]weather.RawSeries, len(items))
	for i, item := range items {
		series, err := item.toRawSeries(req, fineBlock, coarseBlock)
		if err != nil {
			return nil, fmt.Errorf("openmeteo location %d: %w", i, err)
		}
		out[i] = series
	}
	return out, nil
}

// CheckIntervals reports whether Open-Meteo can serve forecasts at iv.
func (p *OpenMeteoProvider) CheckIntervals(iv weather.Intervals) error {
	_, _, err := intervalBlocks(iv)
	return err
}

func intervalBlocks(iv weather.Intervals) (fine, coarse string, err error) {
	fine, ok := openMeteoBlocks[iv.Fine]
	if !ok {
		return "", "", fmt.Errorf("openmeteo does not support a %s interval", iv.Fine)
	}
	coarse, ok = openMeteoBlocks[iv.Coarse]
	if !ok {
		return "", "", fmt.Errorf("openmeteo does not support a %s interval", iv.Coarse)
	}
	return fine, coarse, nil
}

func (p *OpenMeteoProvider) get(ctx context.Context, values url.Values) ([]byte, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read openmeteo response: %w", err)
	}
	return body, nil
}

// openMeteoItem is one location of a forecast response. Blocks hold the
// "time" array plus one array per requested variable.
type openMeteoItem map[string]json.RawMessage

func decodeOpenMeteoItems(body []byte) ([]openMeteoItem, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []openMeteoItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode openmeteo forecast: %w", err)
		}
		return items, nil
	}

	var item openMeteoItem
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return nil, fmt.Errorf("decode openmeteo forecast: %w", err)
	}
	return []openMeteoItem{item}, nil
}

func (it openMeteoItem) block(name string) (map[string][]*float64, error) {
	raw, ok := it[name]
	if !ok {
		return nil, fmt.Errorf("missing %s block", name)
	}
	var block map[string][]*float64
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, fmt.Errorf("decode %s block: %w", name, err)
	}
	return block, nil
}

func (it openMeteoItem) toRawSeries(req weather.ForecastRequest, fineBlock, coarseBlock string) (weather.RawSeries, error) {
	fine, err := it.block(fineBlock)
	if err != nil {
		return weather.RawSeries{}, err
	}
	coarse := fine
	if coarseBlock != fineBlock && len(req.Variables.Coarse) > 0 {
		if coarse, err = it.block(coarseBlock); err != nil {
			return weather.RawSeries{}, err
		}
	}

	times := fine["time"]
	if len(times) == 0 || times[0] == nil {
		return weather.RawSeries{}, fmt.Errorf("%s block has no time axis", fineBlock)
	}

	series := weather.RawSeries{
		Start:     time.Unix(int64(*times[0]), 0),
		Intervals: req.Intervals,
		Steps:     len(times),
		Fine:      make(map[weather.Field][]*float64, len(req.Variables.Fine)),
		Coarse:    make(map[weather.Field][]*float64, len(req.Variables.Coarse)),
	}
	for _, f := range req.Variables.Fine {
		series.Fine[f] = fine[openMeteoVariables[f]]
	}
	for _, f := range req.Variables.Coarse {
		series.Coarse[f] = coarse[openMeteoVariables[f]]
	}
	return series, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
