package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	emailqueuedomain "github.com/smallbiznis/kanakku/internal/emailqueue/domain"
	"github.com/smallbiznis/kanakku/pkg/db/pagination"
)

func (s *Server) ListEmailJobs(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.emailQueue.List(c.Request.Context(), emailqueuedomain.ListRequest{
		Status:    strings.TrimSpace(query.Status),
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) EmailQueueStats(c *gin.Context) {
	stats, err := s.emailQueue.Stats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (s *Server) GetEmailJob(c *gin.Context) {
	job, err := s.emailQueue.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": job})
}

type retryEmailJobRequest struct {
	MaxRetries *int `json:"max_retries"`
}

// RetryEmailJob moves a FAILED job back to PENDING. The response carries a
// warning when the job already exhausted its retries and was not raised.
func (s *Server) RetryEmailJob(c *gin.Context) {
	var req retryEmailJobRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.emailQueue.RetryManually(c.Request.Context(), emailqueuedomain.RetryRequest{
		ID:                strings.TrimSpace(c.Param("id")),
		RaiseMaxRetriesTo: req.MaxRetries,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) DeleteEmailJob(c *gin.Context) {
	if err := s.emailQueue.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
