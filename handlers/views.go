package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/stationsync/aggregate"
	mw "github.com/padraicbc/stationsync/middleware"
	"github.com/padraicbc/stationsync/race"
)

type outstandingData struct {
	Station race.Station `json:"station"`
	Name    string       `json:"name"`
	Runners []int        `json:"runners"`
}

// Summary returns per-station counts.
func (h *Handler) Summary(c echo.Context) error {
	cfg, ledgers := mw.Service(c).Snapshot()
	return c.JSON(http.StatusOK, aggregate.StationCounts(cfg, ledgers))
}

// Overview returns every runner's furthest checkpoint and last time.
func (h *Handler) Overview(c echo.Context) error {
	cfg, ledgers := mw.Service(c).Snapshot()
	return c.JSON(http.StatusOK, aggregate.Overview(cfg, ledgers))
}

// Outstanding lists runners still unaccounted for at a station.
func (h *Handler) Outstanding(c echo.Context) error {
	svc := mw.Service(c)
	st, err := stationParam(c, svc)
	if err != nil {
		return err
	}
	cfg, ledgers := svc.Snapshot()
	runners, err := aggregate.Outstanding(cfg, ledgers, st)
	if err != nil {
		return mw.HTTPError(err)
	}
	return c.JSON(http.StatusOK, outstandingData{Station: st, Name: cfg.StationName(st), Runners: runners})
}
