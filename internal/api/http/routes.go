package httpapi

import (
	"bytes"
	"errors"
	"mime"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/forecastjournal/forecast-dashboard/internal/dashboard"
	"github.com/forecastjournal/forecast-dashboard/internal/forecast"
	"github.com/forecastjournal/forecast-dashboard/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, ctrl *dashboard.Controller, feed *dashboard.Feed) {
	v1 := app.Group("/api/v1")

	v1.Get("/dashboard", func(c *fiber.Ctx) error {
		return respondView(c, ctrl, nil)
	})

	v1.Post("/dashboard/reload", func(c *fiber.Ctx) error {
		err := ctrl.LoadInitial(c.UserContext())
		if errors.Is(err, store.ErrStale) {
			return fiber.NewError(fiber.StatusConflict, "superseded by a newer request")
		}
		return respondView(c, ctrl, err)
	})

	v1.Post("/dashboard/filter", func(c *fiber.Ctx) error {
		var req filterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		f, err := req.toFilter()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		err = ctrl.ApplyFilter(c.UserContext(), f)
		switch {
		case errors.Is(err, dashboard.ErrInvalidFilter):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrStale):
			return fiber.NewError(fiber.StatusConflict, "superseded by a newer request")
		}
		return respondView(c, ctrl, err)
	})

	charts := v1.Group("/charts")

	charts.Get("/timeseries", func(c *fiber.Ctx) error {
		limit, err := parseLimit(c)
		if err != nil {
			return err
		}
		view, err := currentView(ctrl)
		if err != nil {
			return err
		}
		points := view.Projections.TimeSeries
		if limit > 0 && len(points) > limit {
			points = points[:limit]
		}
		return c.JSON(points)
	})

	charts.Get("/error-distribution", func(c *fiber.Ctx) error {
		view, err := currentView(ctrl)
		if err != nil {
			return err
		}
		return c.JSON(view.Projections.ErrorDistribution)
	})

	charts.Get("/heatmap", func(c *fiber.Ctx) error {
		view, err := currentView(ctrl)
		if err != nil {
			return err
		}
		return c.JSON(view.Projections.Heatmap)
	})

	v1.Get("/download", func(c *fiber.Ctx) error {
		var buf bytes.Buffer
		name, err := ctrl.Download(c.UserContext(), &buf)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "failed to download forecast data")
		}
		c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": name}))
		c.Set(fiber.HeaderContentType, "text/csv")
		return c.Send(buf.Bytes())
	})

	v1.Get("/cities", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"cities":   ctrl.Cities(),
			"selected": ctrl.Filter().City,
		})
	})

	v1.Get("/notifications", func(c *fiber.Ctx) error {
		limit, err := parseLimit(c)
		if err != nil {
			return err
		}
		return c.JSON(feed.Recent(limit))
	})
}

// filterRequest is the body of POST /dashboard/filter. Dates are RFC3339 or unix seconds.
type filterRequest struct {
	City      string `json:"city" validate:"required"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

func (r filterRequest) toFilter() (forecast.Filter, error) {
	start, err := parseTime(r.StartDate)
	if err != nil {
		return forecast.Filter{}, err
	}
	end, err := parseTime(r.EndDate)
	if err != nil {
		return forecast.Filter{}, err
	}
	return forecast.Filter{City: r.City, StartDate: start, EndDate: end}, nil
}

type dashboardResponse struct {
	store.View
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

func respondView(c *fiber.Ctx, ctrl *dashboard.Controller, fetchErr error) error {
	view, err := currentView(ctrl)
	if err != nil {
		return err
	}
	resp := dashboardResponse{View: view, Loading: ctrl.Loading()}
	if fetchErr != nil {
		resp.Error = fetchErr.Error()
	}
	return c.JSON(resp)
}

func currentView(ctrl *dashboard.Controller) (store.View, error) {
	view, err := ctrl.View()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return view, fiber.NewError(fiber.StatusNotFound, "no dashboard data yet")
		}
		return view, fiber.NewError(fiber.StatusInternalServerError, "failed to read dashboard data")
	}
	return view, nil
}

func parseLimit(c *fiber.Ctx) (int, error) {
	s := c.Query("limit")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "limit must be a non-negative integer")
	}
	return n, nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
