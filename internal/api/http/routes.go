package httpapi

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/forecast-tracker/internal/common"
	"github.com/i474232898/forecast-tracker/internal/store"
	"github.com/i474232898/forecast-tracker/internal/weather"
)

// Coordinates used by /weather/now when the caller gives none.
const (
	defaultLatitude  = 59.95
	defaultLongitude = 30.32
)

// labelPattern allows 1-64 letters, digits, spaces, dots, apostrophes and hyphens, starting with a letter.
var labelPattern = regexp.MustCompile(`^\p{L}[\p{L}\p{N} .'\-]{0,63}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("label", func(fl validator.FieldLevel) bool {
		return labelPattern.MatchString(fl.Field().String())
	})
	return v
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather/now", func(c *fiber.Ctx) error {
		coords, err := parseCoordinates(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		reading, err := service.QueryNow(c.UserContext(), coords)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "failed to fetch current weather")
		}
		return c.JSON(reading)
	})

	v1.Get("/tracking", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"cities": service.List(),
		})
	})

	v1.Post("/tracking", func(c *fiber.Ctx) error {
		var req trackRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc, err := service.Track(c.UserContext(), req.City, *req.Location)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{
			"city":     loc.Label(),
			"location": loc.Coordinates(),
		})
	})

	v1.Delete("/tracking/:city", func(c *fiber.Ctx) error {
		label, err := url.PathUnescape(c.Params("city"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "malformed city")
		}
		if err := service.Untrack(c.UserContext(), label); err != nil {
			return toHTTPError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		q := forecastQuery{
			City: c.Query("city"),
			Time: c.Query("time"),
		}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		fields, err := weather.ParseFields(common.SplitList(c.Query("fields")))
		if err != nil {
			return toHTTPError(err)
		}

		result, err := service.QueryAt(q.City, q.Time, fields)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(result)
	})
}

// trackRequest is the body of POST /tracking.
type trackRequest struct {
	City     string               `json:"city" validate:"required,label"`
	Location *weather.Coordinates `json:"location" validate:"required"`
}

// forecastQuery holds query parameters for the forecast endpoint.
type forecastQuery struct {
	City string `validate:"required,label"`
	Time string
}

func parseCoordinates(c *fiber.Ctx) (weather.Coordinates, error) {
	coords := weather.Coordinates{
		Latitude:  defaultLatitude,
		Longitude: defaultLongitude,
	}

	if v := c.Query("latitude"); v != "" {
		lat, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return coords, errors.New("latitude must be a number")
		}
		coords.Latitude = lat
	}
	if v := c.Query("longitude"); v != "" {
		lon, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return coords, errors.New("longitude must be a number")
		}
		coords.Longitude = lon
	}

	if err := validate.Struct(coords); err != nil {
		return coords, err
	}
	return coords, nil
}

// toHTTPError maps domain errors to HTTP statuses.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return fiber.NewError(fiber.StatusConflict, "city is already tracked")
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "city is not tracked")
	case errors.Is(err, weather.ErrNoData):
		return fiber.NewError(fiber.StatusNotFound, "no forecast available for requested time")
	case errors.Is(err, weather.ErrBadTime), errors.Is(err, weather.ErrUnknownField),
		errors.Is(err, weather.ErrInvalidCoordinates):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
