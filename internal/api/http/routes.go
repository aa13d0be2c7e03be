package httpapi

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mfenerich/meteoanalytics/internal/meteo"
)

var validate = validator.New()

// resolveTimeout bounds one end-to-end request against slow collaborators.
const resolveTimeout = 30 * time.Second

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *meteo.Service, defaultTimezone string, log *zap.SugaredLogger) {
	v1 := app.Group("/v1")

	v1.Get("/antartida/timeseries", func(c *fiber.Ctx) error {
		req, err := bindTimeseriesQuery(c, defaultTimezone)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		start, end, outputZone, err := meteo.ValidateAndLocalize(req.DatetimeStart, req.DatetimeEnd, req.Location)
		if err != nil {
			return mapDomainError(err)
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), resolveTimeout)
		defer cancel()

		records, err := service.Resolve(ctx, req.Station, start.UTC(), end.UTC(), outputZone)
		if err != nil {
			return mapDomainError(err)
		}

		records, err = meteo.Aggregate(records, req.Aggregation, start, end)
		if err != nil {
			log.Errorw("aggregation failed",
				"station", req.Station, "start", start, "end", end, "granularity", req.Aggregation, "error", err)
			return mapDomainError(err)
		}

		rows, err := meteo.AssembleRows(records, req.DataTypes)
		if err != nil {
			return mapDomainError(err)
		}

		if len(rows) == 0 {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.JSON(rows)
	})
}

// timeseriesQuery holds the parsed query parameters for the timeseries
// endpoint.
type timeseriesQuery struct {
	DatetimeStart string `validate:"required"`
	DatetimeEnd   string `validate:"required"`
	Station       meteo.Station
	Location      string
	Aggregation   meteo.Granularity
	DataTypes     []meteo.DataType
}

func bindTimeseriesQuery(c *fiber.Ctx, defaultTimezone string) (timeseriesQuery, error) {
	q := timeseriesQuery{
		DatetimeStart: c.Query("datetime_start"),
		DatetimeEnd:   c.Query("datetime_end"),
		Location:      c.Query("location", defaultTimezone),
		Aggregation:   meteo.Granularity(c.Query("time_aggregation", string(meteo.GranularityNone))),
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	q.Station = meteo.Station(c.Query("station"))
	if !q.Station.Valid() {
		return q, errors.New("unknown or missing station")
	}
	if !q.Aggregation.Valid() {
		return q, errors.New("unsupported aggregation level: " + string(q.Aggregation))
	}

	for _, raw := range c.Context().QueryArgs().PeekMulti("data_types") {
		for _, part := range strings.Split(string(raw), ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			dt := meteo.DataType(part)
			if _, ok := dt.Column(); !ok {
				return q, errors.New("unsupported data type: " + part)
			}
			q.DataTypes = append(q.DataTypes, dt)
		}
	}

	return q, nil
}

// mapDomainError translates the service error taxonomy into HTTP status
// codes for the centralized error handler.
func mapDomainError(err error) error {
	switch {
	case errors.Is(err, meteo.ErrInvalidInput),
		errors.Is(err, meteo.ErrInvalidRange),
		errors.Is(err, meteo.ErrRangeTooLarge):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, meteo.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, meteo.ErrUpstreamUnavailable):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, meteo.ErrPersistence):
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, "internal error")
}
