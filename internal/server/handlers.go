package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/vitalens/internal/message"
	"github.com/sanspareilsmyn/vitalens/internal/pipeline"
)

const defaultReportLimit = 20

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"active_streams": s.manager.Len(),
	})
}

// evaluateBatch runs a whole recording through the batch evaluator.
func (s *Server) evaluateBatch(c *gin.Context) {
	if s.cfg.MaxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
	}

	var req message.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}

	resp, err := s.batch.Evaluate(c.Request.Context(), req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, resp)
	case errors.Is(err, pipeline.ErrInvalidFrame):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "invalid frame", Details: err.Error()})
	case errors.Is(err, pipeline.ErrBatchTimeout):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "evaluation timed out"})
	case errors.Is(err, pipeline.ErrBatchCancelled):
		c.Status(http.StatusRequestTimeout)
	default:
		s.logger.Error("Batch evaluation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func (s *Server) listReports(c *gin.Context) {
	limit := defaultReportLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	recs, err := s.reports.Recent(c.Request.Context(), c.Param("session_id"), limit)
	if err != nil {
		s.logger.Error("Report query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, recs)
}
