package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/stationsync/aggregate"
	mw "github.com/padraicbc/stationsync/middleware"
	"github.com/padraicbc/stationsync/race"
)

type callInRequest struct {
	At *time.Time `json:"at"`
}

type passRequest struct {
	CallInTime  *time.Time `json:"callInTime"`
	MarkOffTime *time.Time `json:"markOffTime"`
}

type timeRequest struct {
	At *time.Time `json:"at"`
}

type statusRequest struct {
	Status race.Status `json:"status"`
	Notes  string      `json:"notes"`
}

// CallIn records a runner approaching the checkpoint.
func (h *Handler) CallIn(c echo.Context) error {
	runner, err := runnerParam(c)
	if err != nil {
		return err
	}
	var req callInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var at time.Time
	if req.At != nil {
		at = *req.At
	}
	rec, err := mw.Service(c).CallIn(c.Request().Context(), runner, at)
	if err != nil {
		return mw.HTTPError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// MarkPassed marks a runner through the station, now unless markOffTime is given.
func (h *Handler) MarkPassed(c echo.Context) error {
	runner, err := runnerParam(c)
	if err != nil {
		return err
	}
	var req passRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := mw.Service(c).MarkPassed(c.Request().Context(), runner, req.CallInTime, req.MarkOffTime)
	if err != nil {
		return mw.HTTPError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// CorrectTime fixes a passed runner's recorded time.
func (h *Handler) CorrectTime(c echo.Context) error {
	runner, err := runnerParam(c)
	if err != nil {
		return err
	}
	var req timeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.At == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "at is required")
	}
	rec, err := mw.Service(c).CorrectTime(c.Request().Context(), runner, *req.At)
	if err != nil {
		return mw.HTTPError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// MarkStatus records non_starter, dnf or withdrawn.
func (h *Handler) MarkStatus(c echo.Context) error {
	runner, err := runnerParam(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := mw.Service(c).MarkStatus(c.Request().Context(), runner, req.Status, req.Notes)
	if err != nil {
		return mw.HTTPError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// Unmark resets a runner to not_started.
func (h *Handler) Unmark(c echo.Context) error {
	runner, err := runnerParam(c)
	if err != nil {
		return err
	}
	rec, err := mw.Service(c).Unmark(c.Request().Context(), runner)
	if err != nil {
		return mw.HTTPError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// Progress returns a runner's state at every station.
func (h *Handler) Progress(c echo.Context) error {
	runner, err := runnerParam(c)
	if err != nil {
		return err
	}
	cfg, ledgers := mw.Service(c).Snapshot()
	p, err := aggregate.RunnerProgress(cfg, ledgers, runner)
	if err != nil {
		return mw.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}
