package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/meal-queue-api/internal/models"
	"github.com/noah-isme/meal-queue-api/internal/service"
	"github.com/noah-isme/meal-queue-api/pkg/response"
)

type reportService interface {
	Daily(ctx context.Context, actor models.Actor, date, format string) (*service.ReportFile, error)
}

// ReportHandler serves report downloads.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs a report handler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Daily godoc
// @Summary Download the daily attendance report
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param date query string false "Day (YYYY-MM-DD)"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /reports/daily [get]
func (h *ReportHandler) Daily(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	file, err := h.service.Daily(c.Request.Context(), actor, c.Query("date"), c.DefaultQuery("format", service.ReportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
