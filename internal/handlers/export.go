package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/veloigp/internal/export"
	"github.com/charlesng35/veloigp/internal/monitoring"
	"github.com/charlesng35/veloigp/internal/services"
	appErrors "github.com/charlesng35/veloigp/pkg/errors"
	"github.com/charlesng35/veloigp/pkg/response"
)

// maxExportBody caps caller-supplied tables.
const maxExportBody = 4 << 20

// Named datasets that can be exported without sending the rows.
const (
	DatasetOperators = "operators"
	DatasetCalls     = "calls"
	DatasetQueues    = "queues"
	DatasetMetrics   = "metrics"
)

// ExportHandler turns dashboard datasets or caller-supplied tables into files.
type ExportHandler struct {
	data     *services.DataService
	exporter *export.Exporter
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(data *services.DataService, exporter *export.Exporter) (*ExportHandler, error) {
	if data == nil {
		return nil, errors.New("export handler: data service is required")
	}
	if exporter == nil {
		exporter = export.New()
	}
	return &ExportHandler{data: data, exporter: exporter}, nil
}

type exportRequest struct {
	Format  string        `json:"format" validate:"required"`
	Dataset string        `json:"dataset" validate:"omitempty,oneof=operators calls queues metrics"`
	Table   *export.Table `json:"table"`
}

type validateExportRequest struct {
	Table export.Table `json:"table"`
}

// POST /api/export
func (h *ExportHandler) Export(c *gin.Context) {
	var req exportRequest
	if !bindLimitedJSON(c, &req, maxExportBody) {
		return
	}

	format, err := export.ParseFormat(req.Format)
	if err != nil {
		monitoring.RecordExport(req.Format, "unsupported")
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	table, err := h.resolveTable(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.exporter.Export(&buf, format, table); err != nil {
		var invalid *export.ValidationError
		if errors.As(err, &invalid) {
			monitoring.RecordExport(string(format), "invalid")
			response.Error(c, appErrors.ErrValidation.WithDetails(invalid.Problems...))
			return
		}
		monitoring.RecordExport(string(format), "error")
		response.Error(c, appErrors.Wrap(err, "Export failed"))
		return
	}

	monitoring.RecordExport(string(format), "success")
	filename := h.exporter.Filename(table, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// POST /api/export/validate
func (h *ExportHandler) Validate(c *gin.Context) {
	var req validateExportRequest
	if !bindLimitedJSON(c, &req, maxExportBody) {
		return
	}
	problems := export.Validate(req.Table)
	if problems == nil {
		problems = []string{}
	}
	response.Success(c, http.StatusOK, gin.H{
		"valid":    len(problems) == 0,
		"problems": problems,
	})
}

func (h *ExportHandler) resolveTable(ctx context.Context, req exportRequest) (export.Table, error) {
	switch {
	case req.Table != nil && req.Dataset != "":
		return export.Table{}, appErrors.NewBadRequest("provide either dataset or table, not both")
	case req.Table != nil:
		return *req.Table, nil
	}

	var (
		table  export.Table
		source services.Source
		reason services.FallbackReason
	)
	switch req.Dataset {
	case DatasetOperators:
		result := h.data.Operators(ctx)
		table, source, reason = export.OperatorsTable(result.Data), result.Source, result.Reason
	case DatasetCalls:
		result := h.data.Calls(ctx)
		table, source, reason = export.CallsTable(result.Data), result.Source, result.Reason
	case DatasetQueues:
		result := h.data.Queues(ctx)
		table, source, reason = export.QueuesTable(result.Data), result.Source, result.Reason
	case DatasetMetrics:
		result := h.data.Metrics(ctx)
		table, source, reason = export.MetricsTable(result.Data), result.Source, result.Reason
	default:
		return export.Table{}, appErrors.NewBadRequest("dataset or table is required")
	}

	if table.Metadata == nil {
		table.Metadata = map[string]string{}
	}
	table.Metadata["source"] = string(source)
	if reason != "" {
		table.Metadata["reason"] = string(reason)
	}
	return table, nil
}
