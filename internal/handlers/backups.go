package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/veloigp/internal/models"
	"github.com/charlesng35/veloigp/internal/services"
	"github.com/charlesng35/veloigp/pkg/response"
)

const (
	defaultBackupListLimit = 50
	maxBackupListLimit     = 500
)

// BackupHandler exposes the simulated backup history.
type BackupHandler struct {
	svc *services.BackupService
}

// NewBackupHandler constructs a BackupHandler.
func NewBackupHandler(svc *services.BackupService) (*BackupHandler, error) {
	if svc == nil {
		return nil, errors.New("backup handler: backup service is required")
	}
	return &BackupHandler{svc: svc}, nil
}

type createBackupRequest struct {
	Type        string `json:"type" validate:"required,oneof=full incremental"`
	Description string `json:"description" validate:"max=512"`
	// Wait runs the backup inside the request instead of in the background.
	Wait bool `json:"wait"`
}

// GET /api/backups?limit=
func (h *BackupHandler) List(c *gin.Context) {
	limit := parseIntQuery(c, "limit", defaultBackupListLimit)
	if limit <= 0 || limit > maxBackupListLimit {
		limit = defaultBackupListLimit
	}

	records, err := h.svc.List(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, records, &response.Meta{Total: len(records)})
}

// POST /api/backups
func (h *BackupHandler) Create(c *gin.Context) {
	var req createBackupRequest
	if !bindAndValidate(c, &req) {
		return
	}

	backupType := models.BackupType(req.Type)
	if !req.Wait {
		record, err := h.svc.StartBackup(c.Request.Context(), backupType, req.Description)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, http.StatusAccepted, record)
		return
	}

	var (
		record *models.BackupRecord
		err    error
	)
	if backupType == models.BackupFull {
		record, err = h.svc.CreateFullBackup(c.Request.Context(), req.Description)
	} else {
		record, err = h.svc.CreateIncrementalBackup(c.Request.Context(), req.Description)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	// Simulated failures are reported through record.Status.
	response.Success(c, http.StatusCreated, record)
}

// GET /api/backups/:id
func (h *BackupHandler) Get(c *gin.Context) {
	record, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, record)
}

// DELETE /api/backups/:id
func (h *BackupHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/backups/cleanup
func (h *BackupHandler) Cleanup(c *gin.Context) {
	removed, err := h.svc.CleanupOldBackups(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"removed": removed,
		"retain":  h.svc.Config().Retain,
	})
}

// GET /api/backups/stats
func (h *BackupHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, stats)
}
