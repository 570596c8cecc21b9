package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/stationsync/race"
	"github.com/padraicbc/stationsync/station"
)

const serviceKey = "station_service"

// HeaderStation names the station that answered a request.
const HeaderStation = "X-Station"

// RaceContext resolves the :raceID path parameter to the station's service
// for that race and stores it on the context.
func RaceContext(reg *station.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raceID := c.Param("raceID")
			if raceID == "" {
				return echo.NewHTTPError(http.StatusBadRequest, "missing race id")
			}
			svc, err := reg.Get(c.Request().Context(), raceID)
			if err != nil {
				return HTTPError(err)
			}
			c.Set(serviceKey, svc)
			return next(c)
		}
	}
}

// Station stamps every response with the station this process runs as.
func Station(st race.Station) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(HeaderStation, st.String())
			return next(c)
		}
	}
}

// Service returns the service stored by RaceContext.
func Service(c echo.Context) *station.Service {
	svc, _ := c.Get(serviceKey).(*station.Service)
	return svc
}

// HTTPError maps domain errors to HTTP errors. Unknown errors are 500s.
func HTTPError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	var status int
	switch race.CodeOf(err) {
	case race.CodeInvalidRunner, race.CodeInvalidStation, race.CodeInvalidStatus,
		race.CodeInvalidConfig, race.CodeNoActiveContext:
		status = http.StatusBadRequest
	case race.CodeNotFound:
		status = http.StatusNotFound
	case race.CodeInvalidTransition, race.CodeTimeNotLater, race.CodeRaceMismatch:
		status = http.StatusConflict
	case race.CodeMalformedPayload, race.CodeUnsupportedSchema:
		status = http.StatusUnprocessableEntity
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}
	var re *race.Error
	errors.As(err, &re)
	return echo.NewHTTPError(status, map[string]string{
		"code":    string(re.Code),
		"message": err.Error(),
	}).SetInternal(err)
}
