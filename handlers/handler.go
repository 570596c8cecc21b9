package handlers

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	mw "github.com/padraicbc/stationsync/middleware"
	"github.com/padraicbc/stationsync/race"
	"github.com/padraicbc/stationsync/station"
)

// maxPayload caps an imported snapshot.
const maxPayload = 32 << 20

// Handler holds shared dependencies used by all route handlers.
type Handler struct {
	reg *station.Registry
	log *zap.Logger
}

// New creates a Handler serving the races of reg.
func New(reg *station.Registry, log *zap.Logger) *Handler {
	return &Handler{reg: reg, log: log}
}

// Register mounts the race API on e.
func (h *Handler) Register(e *echo.Echo) {
	api := e.Group("/api/races", mw.Station(h.reg.Station()))
	api.POST("", h.CreateRace)

	r := api.Group("/:raceID", mw.RaceContext(h.reg))
	r.GET("", h.GetRace)
	r.GET("/ledger", h.Ledger)
	r.GET("/export", h.Export)
	r.POST("/import", h.Import)
	r.GET("/imports", h.Imports)
	r.GET("/summary", h.Summary)
	r.GET("/overview", h.Overview)
	r.GET("/outstanding", h.Outstanding)

	r.POST("/runners/:runner/call-in", h.CallIn)
	r.POST("/runners/:runner/pass", h.MarkPassed)
	r.POST("/runners/:runner/time", h.CorrectTime)
	r.POST("/runners/:runner/status", h.MarkStatus)
	r.POST("/runners/:runner/unmark", h.Unmark)
	r.GET("/runners/:runner/progress", h.Progress)
}

func runnerParam(c echo.Context) (int, error) {
	n, err := strconv.Atoi(c.Param("runner"))
	if err != nil {
		return 0, mw.HTTPError(race.Errorf(race.CodeInvalidRunner, "runner %q is not a number", c.Param("runner")))
	}
	return n, nil
}

// stationParam reads ?station=, defaulting to this process's station.
func stationParam(c echo.Context, svc *station.Service) (race.Station, error) {
	v := c.QueryParam("station")
	if v == "" {
		return svc.Context().Station, nil
	}
	st, err := race.ParseStation(v)
	if err != nil {
		return 0, mw.HTTPError(err)
	}
	if err := svc.Config().CheckStation(st); err != nil {
		return 0, mw.HTTPError(err)
	}
	return st, nil
}
