package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dsworkflows/chidata/pkg/dashboard"
	"github.com/gin-gonic/gin"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ready checks the snapshot store when one is configured.
func (s *Server) ready(c *gin.Context) {
	if s.store != nil {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// resource serves a raw snapshot as CSV: GET /resource/:id?order=&limit=
func (s *Server) resource(c *gin.Context) {
	if s.store == nil {
		writeError(c, ErrStoreUnavailable)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(c, fmt.Errorf("%w: limit must be a positive integer", ErrInvalidInput))
			return
		}
		limit = n
	}

	t, err := s.store.Query(c.Request.Context(), c.Param("id"), c.Query("order"), limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := t.WriteCSV(c.Writer); err != nil {
		_ = c.Error(err)
	}
}

// values lists the distinct values of one snapshot column:
// GET /resource/:id/values/:column
func (s *Server) values(c *gin.Context) {
	if s.store == nil {
		writeError(c, ErrStoreUnavailable)
		return
	}

	column := c.Param("column")
	values, err := s.store.Distinct(c.Request.Context(), c.Param("id"), column)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"column": column, "values": values})
}

type licensesQuery struct {
	dashboard.Filters
	dashboard.Pager
}

// licenses serves one dashboard page: GET /licenses
func (s *Server) licenses(c *gin.Context) {
	q := licensesQuery{Pager: dashboard.NewPager(s.config.PageSize)}
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, fmt.Errorf("%w: %v", ErrInvalidInput, err))
		return
	}

	snapshot, err := s.snapshot(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	view, err := dashboard.View(c.Request.Context(), snapshot, q.Filters, q.Pager, s.predictor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// refresh drops the cached snapshot and fetches a new one.
func (s *Server) refresh(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.cache.Invalidate(ctx, s.licenseKey()); err != nil {
		s.logger.Warn().Err(err).Msg("Cache invalidation failed")
	}

	snapshot, err := s.snapshot(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "refreshed", "records": snapshot.Len()})
}
