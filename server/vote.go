package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"civicwatch/report"
	"civicwatch/server/api"
)

func (h *Handler) AddSighting(c *gin.Context) {
	identity := CallerIdentity(c.Request)
	res, err := h.reports.RecordVote(c.Request.Context(), c.Param("id"), report.VoteSighting, identity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.SightingResponse{
		Message:        "Sighting recorded successfully",
		SightingsCount: res.Tally.Count,
	})
}

func (h *Handler) AddResolved(c *gin.Context) {
	identity := CallerIdentity(c.Request)
	res, err := h.reports.RecordVote(c.Request.Context(), c.Param("id"), report.VoteResolved, identity)
	if err != nil {
		respondError(c, err)
		return
	}
	if res.Deleted {
		c.JSON(http.StatusOK, api.ResolvedResponse{
			Message:       "Report marked as resolved and removed",
			ReportDeleted: true,
		})
		return
	}
	c.JSON(http.StatusOK, api.ResolvedResponse{
		Message:       "Resolution vote recorded successfully",
		ResolvedCount: res.Tally.Count,
	})
}

func (h *Handler) UserStatus(c *gin.Context) {
	identity := CallerIdentity(c.Request)
	sighted, resolved, err := h.reports.UserStatus(c.Request.Context(), c.Param("id"), identity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.UserStatusResponse{
		HasSighted:  sighted,
		HasResolved: resolved,
	})
}
