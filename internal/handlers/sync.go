package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pratamalabs/domaindesk/internal/contentfilter"
	"github.com/pratamalabs/domaindesk/internal/logger"
	"github.com/pratamalabs/domaindesk/internal/models"
	"github.com/pratamalabs/domaindesk/internal/reconciler"
	"github.com/pratamalabs/domaindesk/internal/registrar"
	"github.com/pratamalabs/domaindesk/internal/repository"
)

type SyncHandler struct {
	reconciler *reconciler.Reconciler
	repo       *repository.DomainRepository
	logger     logger.Logger
}

func NewSyncHandler(rec *reconciler.Reconciler, repo *repository.DomainRepository, log logger.Logger) *SyncHandler {
	return &SyncHandler{
		reconciler: rec,
		repo:       repo,
		logger:     log,
	}
}

// TriggerAll handles POST /api/v1/sync: registrar sync, then nameserver refresh.
func (h *SyncHandler) TriggerAll(c *gin.Context) {
	h.respondSync(c, "full sync", h.reconciler.Sync)
}

// TriggerRegistrar handles POST /api/v1/sync/registrar.
func (h *SyncHandler) TriggerRegistrar(c *gin.Context) {
	h.respondSync(c, "registrar sync", h.reconciler.SyncFromRegistrar)
}

// TriggerNameservers handles POST /api/v1/sync/nameservers.
func (h *SyncHandler) TriggerNameservers(c *gin.Context) {
	h.respondSync(c, "nameserver refresh", h.reconciler.RefreshNameservers)
}

// TriggerFilter handles POST /api/v1/sync/content-filter.
func (h *SyncHandler) TriggerFilter(c *gin.Context) {
	h.respondSync(c, "content filter check", h.reconciler.RefreshContentFilterStatus)
}

func (h *SyncHandler) respondSync(c *gin.Context, what string, run func(ctx context.Context) (*reconciler.Result, error)) {
	result, err := run(c.Request.Context())
	if err != nil {
		h.logger.Error("Sync trigger failed",
			logger.String("sync", what),
			logger.Error(err),
		)
		c.JSON(syncErrorStatus(err), gin.H{"error": what + " failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// syncErrorStatus maps sync failures to response codes: configuration
// problems are the caller's to fix, upstream failures are gateway errors.
func syncErrorStatus(err error) int {
	if errors.Is(err, registrar.ErrMissingCredentials) {
		return http.StatusPreconditionFailed
	}
	var protoErr *registrar.ProtocolError
	var filterProto *contentfilter.ProtocolError
	var csrfErr *contentfilter.CSRFError
	var incomplete *contentfilter.IncompleteError
	var scriptErr *reconciler.ScriptError
	if errors.As(err, &protoErr) || errors.As(err, &filterProto) ||
		errors.As(err, &csrfErr) || errors.As(err, &incomplete) ||
		errors.As(err, &scriptErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Status handles GET /api/v1/sync/status: last completion time per sync kind.
func (h *SyncHandler) Status(c *gin.Context) {
	status, err := h.reconciler.LastSync(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read sync status", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read sync status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"last_sync": status})
}

type applyResultsRequest struct {
	Statuses map[string]bool `json:"statuses" binding:"required"`
}

// ApplyResults handles POST /api/v1/sync/content-filter/results: the write
// half of the external-script flow. The script checks names on its own and
// posts the blocked map back here.
func (h *SyncHandler) ApplyResults(c *gin.Context) {
	var req applyResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	statuses := make(contentfilter.StatusMap, len(req.Statuses))
	for name, blocked := range req.Statuses {
		statuses[name] = blocked
	}

	result, err := h.reconciler.ApplyStatuses(c.Request.Context(), statuses)
	if err != nil {
		h.logger.Error("Failed to apply filter results", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply filter results"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// Reactivate handles POST /api/v1/domains/:id/reactivate.
func (h *SyncHandler) Reactivate(c *gin.Context) {
	domain, ok := h.loadDomain(c)
	if !ok {
		return
	}

	result, err := h.reconciler.Reactivate(c.Request.Context(), domain.Name)
	if err != nil {
		h.logger.Error("Failed to reactivate domain",
			logger.String("domain", domain.Name),
			logger.Error(err),
		)
		c.JSON(syncErrorStatus(err), gin.H{"error": "reactivate failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

type renewRequest struct {
	Years int `json:"years"`
}

// Renew handles POST /api/v1/domains/:id/renew.
func (h *SyncHandler) Renew(c *gin.Context) {
	domain, ok := h.loadDomain(c)
	if !ok {
		return
	}

	// body is optional; an absent or invalid one means a one-year renewal
	var req renewRequest
	_ = c.ShouldBindJSON(&req)
	if req.Years <= 0 {
		req.Years = 1
	}

	result, err := h.reconciler.Renew(c.Request.Context(), domain.Name, req.Years)
	if err != nil {
		h.logger.Error("Failed to renew domain",
			logger.String("domain", domain.Name),
			logger.Error(err),
		)
		c.JSON(syncErrorStatus(err), gin.H{"error": "renew failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// RegistrarInfo handles GET /api/v1/domains/:id/registrar-info.
func (h *SyncHandler) RegistrarInfo(c *gin.Context) {
	domain, ok := h.loadDomain(c)
	if !ok {
		return
	}

	info, err := h.reconciler.GetInfo(c.Request.Context(), domain.Name)
	if err != nil {
		h.logger.Error("Failed to fetch registrar info",
			logger.String("domain", domain.Name),
			logger.Error(err),
		)
		c.JSON(syncErrorStatus(err), gin.H{"error": "registrar info failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"info": info})
}

func (h *SyncHandler) loadDomain(c *gin.Context) (*models.Domain, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid domain id"})
		return nil, false
	}

	domain, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
		return nil, false
	}
	if err != nil {
		h.logger.Error("Failed to get domain", logger.Int64("id", id), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get domain"})
		return nil, false
	}
	return domain, true
}
