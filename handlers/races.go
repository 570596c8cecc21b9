package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	mw "github.com/padraicbc/stationsync/middleware"
	"github.com/padraicbc/stationsync/race"
)

type ledgerData struct {
	Station race.Station        `json:"station"`
	Name    string              `json:"name"`
	Known   bool                `json:"known"`
	Records []race.RunnerRecord `json:"records"`
}

// CreateRace sets up a race from its configuration.
func (h *Handler) CreateRace(c echo.Context) error {
	var cfg race.Config
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Name = strings.TrimSpace(cfg.Name)

	svc, err := h.reg.Create(c.Request().Context(), &cfg)
	if err != nil {
		return mw.HTTPError(err)
	}
	h.log.Info("race created", zap.String("race", cfg.ID))
	return c.JSON(http.StatusCreated, svc.Config())
}

// GetRace returns the race configuration.
func (h *Handler) GetRace(c echo.Context) error {
	return c.JSON(http.StatusOK, mw.Service(c).Config())
}

// Ledger returns one station's records, this station's by default.
func (h *Handler) Ledger(c echo.Context) error {
	svc := mw.Service(c)
	st, err := stationParam(c, svc)
	if err != nil {
		return err
	}
	l := svc.Ledger(st)
	return c.JSON(http.StatusOK, ledgerData{
		Station: st,
		Name:    svc.Config().StationName(st),
		Known:   l != nil,
		Records: l.Records(),
	})
}
