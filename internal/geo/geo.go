// Package geo resolves free-text city names through the Open-Meteo
// geocoding API.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const defaultBaseURL = "https://geocoding-api.open-meteo.com/v1/search"

// ErrCityNotFound is returned when the lookup service has no candidates.
var ErrCityNotFound = errors.New("city not found")

// Location is a resolved place: canonical name plus coordinates and the
// timezone reported by the geocoding service ("auto" when absent).
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Timezone  string  `json:"timezone"`
}

// Candidate is one free-text search result.
type Candidate struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Admin1    string  `json:"admin1"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Timezone  string  `json:"timezone"`
}

// Client talks to the geocoding endpoint. The zero value is not usable;
// construct with New.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a geocoding client sharing the given HTTP client.
func New(httpClient *http.Client) *Client {
	return &Client{baseURL: defaultBaseURL, httpClient: httpClient}
}

// WithBaseURL overrides the endpoint, for tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

type searchResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Admin1    string  `json:"admin1"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Timezone  string  `json:"timezone"`
	} `json:"results"`
}

// Resolve returns the most relevant location for a city name, per the
// upstream service's own ranking. One outbound call, no caching.
func (c *Client) Resolve(ctx context.Context, city string) (Location, error) {
	payload, err := c.search(ctx, city, 1)
	if err != nil {
		return Location{}, err
	}
	if len(payload.Results) == 0 {
		return Location{}, fmt.Errorf("%w: %q", ErrCityNotFound, city)
	}

	res := payload.Results[0]
	tz := res.Timezone
	if tz == "" {
		tz = "auto"
	}
	return Location{
		Name:      res.Name,
		Latitude:  res.Latitude,
		Longitude: res.Longitude,
		Timezone:  tz,
	}, nil
}

// Search returns up to count candidates for a free-text query.
func (c *Client) Search(ctx context.Context, query string, count int) ([]Candidate, error) {
	if count <= 0 {
		count = 5
	}
	payload, err := c.search(ctx, query, count)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(payload.Results))
	for _, res := range payload.Results {
		out = append(out, Candidate{
			Name:      res.Name,
			Country:   res.Country,
			Admin1:    res.Admin1,
			Latitude:  res.Latitude,
			Longitude: res.Longitude,
			Timezone:  res.Timezone,
		})
	}
	return out, nil
}

func (c *Client) search(ctx context.Context, name string, count int) (*searchResponse, error) {
	values := url.Values{}
	values.Set("name", name)
	values.Set("count", strconv.Itoa(count))
	values.Set("language", "id")
	values.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geocoding returned status %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode geocoding response: %w", err)
	}
	return &payload, nil
}
