package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-tracker/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/locations", func(c *fiber.Ctx) error {
		locs, err := service.ListLocations(c.Context())
		if err != nil {
			return mapError(err)
		}
		if locs == nil {
			locs = []weather.Location{}
		}
		return c.JSON(locs)
	})

	v1.Post("/locations", func(c *fiber.Ctx) error {
		var req addLocationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc, err := service.AddLocation(c.Context(), req.Query)
		if err != nil {
			return mapError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(loc)
	})

	v1.Get("/locations/:id", func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		loc, err := service.GetLocation(c.Context(), id)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(loc)
	})

	v1.Patch("/locations/:id", func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}

		var req updateLocationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc, err := service.UpdateLocation(c.Context(), id, req.toPatch())
		if err != nil {
			return mapError(err)
		}
		return c.JSON(loc)
	})

	v1.Delete("/locations/:id", func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		if err := service.DeleteLocation(c.Context(), id); err != nil {
			return mapError(err)
		}
		return c.JSON(fiber.Map{"status": "deleted"})
	})

	v1.Post("/locations/:id/sync", func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		aggregate, err := service.Sync(c.Context(), id)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(aggregate)
	})

	v1.Get("/locations/:id/weather", func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		aggregate, err := service.GetAggregate(c.Context(), id)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(aggregate)
	})

	v1.Get("/locations/:id/history", func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}

		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snapshots, err := service.GetHistoryRange(c.Context(), id, req.From, req.To)
		if err != nil {
			return mapError(err)
		}
		if snapshots == nil {
			snapshots = []weather.HistorySnapshot{}
		}
		return c.JSON(fiber.Map{
			"locationId": id,
			"from":       req.From,
			"to":         req.To,
			"snapshots":  snapshots,
		})
	})
}

// mapError translates service failure kinds into HTTP status codes.
func mapError(err error) error {
	switch {
	case errors.Is(err, weather.ErrLocationNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, weather.ErrResolutionFailed):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, weather.ErrProviderUnavailable):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid location id")
	}
	return id, nil
}

// addLocationRequest is the body of POST /locations.
type addLocationRequest struct {
	Query string `json:"query" validate:"required"`
}

// updateLocationRequest is the body of PATCH /locations/:id. Omitted fields
// are left untouched.
type updateLocationRequest struct {
	DisplayName *string `json:"displayName"`
	IsFavorite  *bool   `json:"isFavorite"`
	Units       *string `json:"units" validate:"omitempty,oneof=metric imperial"`
}

func (r updateLocationRequest) toPatch() weather.LocationPatch {
	patch := weather.LocationPatch{
		DisplayName: r.DisplayName,
		IsFavorite:  r.IsFavorite,
	}
	if r.Units != nil {
		u := weather.Units(*r.Units)
		patch.Units = &u
	}
	return patch
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
