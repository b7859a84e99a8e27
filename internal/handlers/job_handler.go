package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dexbit/internal/services"
)

// JobHandler handles internal job endpoints, authenticated with an API key
// rather than a user session. A scheduler (cron, cloud task) calls these.
type JobHandler struct {
	digest services.NewsDigestServicer
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(digest services.NewsDigestServicer) *JobHandler {
	return &JobHandler{digest: digest}
}

// SendNewsDigest emails a market news summary to every active user
// @Summary     Send news digest
// @Description Assemble the daily market news summary and email it to all active users
// @Tags        jobs
// @Produce     json
// @Param       X-API-Key header string true "Job API key"
// @Success     200 {object} map[string]int "Recipient count"
// @Failure     401 {object} ErrorResponse "Missing or invalid API key"
// @Failure     502 {object} ErrorResponse "News provider unavailable"
// @Failure     503 {object} ErrorResponse "Mail not configured"
// @Router      /internal/news-digest [post]
func (h *JobHandler) SendNewsDigest(c *gin.Context) {
	sent, err := h.digest.SendDigest(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipients": sent})
}
