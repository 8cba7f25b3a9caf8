package httpapi

import (
	"errors"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/Velubby/etl-weather/internal/compare"
	"github.com/Velubby/etl-weather/internal/fetch"
	"github.com/Velubby/etl-weather/internal/funfact"
	"github.com/Velubby/etl-weather/internal/geo"
	"github.com/Velubby/etl-weather/internal/pipeline"
	"github.com/Velubby/etl-weather/internal/transform"
)

var validate = validator.New()

// Server bundles the collaborators the HTTP handlers need.
type Server struct {
	Pipeline *pipeline.Pipeline
	Geo      *geo.Client
	Comparer *compare.Comparer
	FunFacts *funfact.Service
	Days     int
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, s *Server) {
	app.Get("/search", s.handleSearch)
	app.Get("/data/daily", s.handleDaily)
	app.Get("/data/hourly", s.handleHourly)
	app.Get("/compare", s.handleCompare)
	app.Get("/city/funfact/:city", s.handleFunFact)
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return fiber.NewError(fiber.StatusBadRequest, "q query parameter is required")
	}
	count := c.QueryInt("count", 5)

	results, err := s.Geo.Search(c.Context(), query, count)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleDaily(c *fiber.Ctx) error {
	city := c.Query("city")
	if city == "" {
		return fiber.NewError(fiber.StatusBadRequest, "city query parameter is required")
	}
	refresh := c.QueryBool("refresh", false)

	path, err := s.Pipeline.EnsureDaily(c.Context(), city, refresh, s.Days)
	if err != nil {
		return mapError(err)
	}
	rows, err := transform.ReadDailyCSV(path)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"city":  city,
		"count": len(rows),
		"data":  rows,
	})
}

func (s *Server) handleHourly(c *fiber.Ctx) error {
	city := c.Query("city")
	if city == "" {
		return fiber.NewError(fiber.StatusBadRequest, "city query parameter is required")
	}
	refresh := c.QueryBool("refresh", false)

	path, err := s.Pipeline.EnsureHourly(c.Context(), city, refresh, s.Days)
	if err != nil {
		return mapError(err)
	}
	rows, err := transform.ReadHourlyCSV(path)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"city":  city,
		"count": len(rows),
		"data":  rows,
	})
}

// compareQuery holds query parameters for the comparison endpoint.
type compareQuery struct {
	Cities []string `validate:"required,min=2,dive,required"`
	Days   int      `validate:"required,min=1,max=16"`
}

func (q *compareQuery) bind(c *fiber.Ctx, defaultDays int) {
	for _, part := range strings.Split(c.Query("cities"), ",") {
		if part = strings.TrimSpace(part); part != "" {
			q.Cities = append(q.Cities, part)
		}
	}
	q.Days = c.QueryInt("days", defaultDays)
}

func (s *Server) handleCompare(c *fiber.Ctx) error {
	var req compareQuery
	req.bind(c, s.Days)
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	results, err := s.Comparer.Run(c.Context(), req.Cities, compare.Options{
		Days:    req.Days,
		Refresh: true,
	})
	var insufficient *compare.InsufficientDataError
	switch {
	case errors.Is(err, compare.ErrTooFewCities):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.As(err, &insufficient):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "not enough cities produced data",
			"results": summarize(results),
		})
	case err != nil:
		return mapError(err)
	}

	return c.JSON(fiber.Map{
		"cities":  req.Cities,
		"days":    req.Days,
		"results": summarize(results),
		"merged":  merged(results),
	})
}

func (s *Server) handleFunFact(c *fiber.Ctx) error {
	city, err := unescape(c.Params("city"))
	if err != nil || city == "" {
		return fiber.NewError(fiber.StatusBadRequest, "city path parameter is required")
	}

	text, source := s.FunFacts.FunFact(c.Context(), city)
	return c.JSON(fiber.Map{
		"city":     city,
		"fun_fact": text,
		"source":   source,
	})
}

func unescape(raw string) (string, error) {
	return url.PathUnescape(raw)
}

// cityOutcome is the per-city slice of the comparison response.
type cityOutcome struct {
	City  string `json:"city"`
	OK    bool   `json:"ok"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

func summarize(results []compare.CityResult) []cityOutcome {
	out := make([]cityOutcome, len(results))
	for i, r := range results {
		out[i] = cityOutcome{City: r.City, OK: r.OK(), Rows: len(r.Rows)}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	return out
}

// mergedRow annotates a daily record with its city for the flat
// comparison payload.
type mergedRow struct {
	City string `json:"city"`
	transform.DailyRecord
}

func merged(results []compare.CityResult) []mergedRow {
	var rows []mergedRow
	for _, r := range results {
		for _, row := range r.Rows {
			rows = append(rows, mergedRow{City: r.City, DailyRecord: row})
		}
	}
	return rows
}

// mapError translates domain errors into HTTP status codes.
func mapError(err error) error {
	var missing *transform.MissingInputError
	var network *fetch.NetworkError
	switch {
	case errors.As(err, &missing), errors.Is(err, geo.ErrCityNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, fetch.ErrInvalidRange):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.As(err, &network):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
