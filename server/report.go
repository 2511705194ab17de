package server

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"civicwatch/report"
	"civicwatch/server/api"
)

// allowedImageExts mirrors the mobile client's picker.
var allowedImageExts = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
}

func imageExt(filename string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	return ext, allowedImageExts[ext]
}

func (h *Handler) CreateReport(c *gin.Context) {
	args := report.CreateArgs{
		IssueType:    c.PostForm("issueType"),
		CustomIssue:  c.PostForm("customIssue"),
		Description:  c.PostForm("description"),
		LocationName: c.PostForm("location"),
		Latitude:     c.PostForm("latitude"),
		Longitude:    c.PostForm("longitude"),
	}

	var image *report.ImageUpload
	fh, err := c.FormFile("image")
	if err == nil && fh != nil && fh.Filename != "" {
		ext, ok := imageExt(fh.Filename)
		if ok {
			f, err := fh.Open()
			if err != nil {
				respondError(c, err)
				return
			}
			defer f.Close()
			image = &report.ImageUpload{
				Ext:         ext,
				ContentType: fh.Header.Get("Content-Type"),
				Body:        f,
			}
		} else {
			// The original client silently drops files outside the allow-list.
			log.Warnf("Rejected image with disallowed extension: %s", fh.Filename)
		}
	}

	created, err := h.reports.Create(c.Request.Context(), args, image)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, api.CreateReportResponse{
		Message:  "Report submitted successfully",
		ReportID: created.ID,
	})
}

func (h *Handler) GetReport(c *gin.Context) {
	r, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) UpdateReportStatus(c *gin.Context) {
	var args api.UpdateStatusArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "status is required"})
		return
	}
	if err := h.reports.SetStatus(c.Request.Context(), c.Param("id"), report.Status(args.Status)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Report status updated successfully"})
}

func (h *Handler) DeleteReport(c *gin.Context) {
	if err := h.reports.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Report deleted successfully"})
}
