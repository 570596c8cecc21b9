package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	mw "github.com/padraicbc/stationsync/middleware"
	"github.com/padraicbc/stationsync/snapshot"
	"github.com/padraicbc/stationsync/station"
)

// Export downloads a snapshot of the race as a JSON attachment.
func (h *Handler) Export(c echo.Context) error {
	svc := mw.Service(c)
	t, err := snapshot.ParseExportType(c.QueryParam("type"))
	if err != nil {
		return mw.HTTPError(err)
	}
	var opts []snapshot.Option
	if c.QueryParam("station") != "" {
		st, err := stationParam(c, svc)
		if err != nil {
			return err
		}
		opts = append(opts, snapshot.WithStation(st))
	}
	payload, err := svc.Export(t, opts...)
	if err != nil {
		return mw.HTTPError(err)
	}
	rc := svc.Context()
	name := fmt.Sprintf("%s-%s-%s.json", rc.RaceID, rc.Station, t)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, payload)
}

// Import merges the posted snapshot and returns the change report.
func (h *Handler) Import(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPayload+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(payload) > maxPayload {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "snapshot too large")
	}
	report, err := mw.Service(c).Import(c.Request().Context(), payload)
	if err != nil {
		return mw.HTTPError(err)
	}
	return c.JSON(http.StatusOK, report)
}

// Imports lists the snapshots this station has imported, oldest first.
func (h *Handler) Imports(c echo.Context) error {
	imports, err := mw.Service(c).Imports(c.Request().Context())
	if err != nil {
		return mw.HTTPError(err)
	}
	if imports == nil {
		imports = []station.ImportRecord{}
	}
	return c.JSON(http.StatusOK, imports)
}
