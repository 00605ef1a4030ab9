// Package httpapi serves a read-only JSON view of the worklist snapshot and
// the pending performed procedure steps.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/caio-sobreiro/dicomworklist/mpps"
	"github.com/caio-sobreiro/dicomworklist/worklist"
)

// Procedures lists the MPPS procedures still in progress.
type Procedures interface {
	Pending(ctx context.Context) ([]mpps.Procedure, error)
}

// refresher is implemented by snapshots that know when they were last loaded.
type refresher interface {
	LastRefresh() time.Time
}

// WorklistResponse is the body of GET /api/v1/worklist.
type WorklistResponse struct {
	Count       int              `json:"count"`
	RefreshedAt *time.Time       `json:"refreshed_at,omitempty"`
	Entries     []worklist.Entry `json:"entries"`
}

// ProceduresResponse is the body of GET /api/v1/procedures.
type ProceduresResponse struct {
	Count      int              `json:"count"`
	Procedures []mpps.Procedure `json:"procedures"`
}

type api struct {
	entries    worklist.Snapshot
	procedures Procedures
	matcher    worklist.Matcher
}

// New builds the echo instance serving the API. procedures may be nil, in
// which case /api/v1/procedures is not routed.
func New(entries worklist.Snapshot, procedures Procedures, matcher worklist.Matcher, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(requestLogger(logger), recovery(logger))

	a := &api{entries: entries, procedures: procedures, matcher: matcher}
	e.GET("/health", a.health)

	v1 := e.Group("/api/v1")
	v1.GET("/worklist", a.listWorklist)
	if procedures != nil {
		v1.GET("/procedures", a.pending)
	}
	return e
}

func (a *api) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// listWorklist runs the query parameters through the same matcher as C-FIND.
func (a *api) listWorklist(c echo.Context) error {
	q := worklist.NewQuery()
	step := worklist.NewStepQuery()
	if v := c.QueryParam("patient_id"); v != "" {
		q.Set(worklist.PatientID, v)
	}
	if v := c.QueryParam("patient_name"); v != "" {
		q.Set(worklist.PatientName, v)
	}
	if v := c.QueryParam("modality"); v != "" {
		step.Set(worklist.Modality, v)
	}
	if v := c.QueryParam("station"); v != "" {
		step.Set(worklist.ScheduledStationAETitle, v)
	}
	if v := c.QueryParam("date"); v != "" {
		step.Set(worklist.ScheduledProcedureStepStartDate, v)
	}
	q.WithStep(step)

	if _, err := a.matcher.DateFilter(q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	current := a.entries.Current()
	resp := WorklistResponse{Entries: make([]worklist.Entry, 0, len(current))}
	for i := range current {
		if a.matcher.Match(q, &current[i]) {
			resp.Entries = append(resp.Entries, current[i])
		}
	}
	resp.Count = len(resp.Entries)
	if r, ok := a.entries.(refresher); ok {
		if t := r.LastRefresh(); !t.IsZero() {
			resp.RefreshedAt = &t
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (a *api) pending(c echo.Context) error {
	procs, err := a.procedures.Pending(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "pending procedures unavailable").SetInternal(err)
	}
	if procs == nil {
		procs = []mpps.Procedure{}
	}
	return c.JSON(http.StatusOK, ProceduresResponse{Count: len(procs), Procedures: procs})
}

// Serve runs e on addr until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, e *echo.Echo, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
