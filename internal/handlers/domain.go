package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pratamalabs/domaindesk/internal/logger"
	"github.com/pratamalabs/domaindesk/internal/models"
	"github.com/pratamalabs/domaindesk/internal/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type DomainHandler struct {
	repo   *repository.DomainRepository
	logger logger.Logger
}

func NewDomainHandler(repo *repository.DomainRepository, log logger.Logger) *DomainHandler {
	return &DomainHandler{
		repo:   repo,
		logger: log,
	}
}

// List handles GET /api/v1/domains with pagination, sorting and filtering.
func (h *DomainHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	filter := repository.ListFilter{
		Limit:     limit,
		Offset:    (page - 1) * limit,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Search:    c.Query("search"),
		Status:    c.Query("status"),
	}
	if v, ok := parseBoolParam(c.Query("used")); ok {
		filter.Used = &v
	}
	if v, ok := parseBoolParam(c.Query("blocked")); ok {
		filter.Blocked = &v
	}

	total, err := h.repo.Count(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to count domains", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list domains"})
		return
	}

	domains, err := h.repo.ListPaginated(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list domains", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list domains"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"domains": domains,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// Get handles GET /api/v1/domains/:id.
func (h *DomainHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid domain id"})
		return
	}

	domain, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get domain", logger.Int64("id", id), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get domain"})
		return
	}

	c.JSON(http.StatusOK, domain)
}

// updateDomainRequest covers only the user-owned field group. Sync-owned
// fields are not updatable through the API.
type updateDomainRequest struct {
	Description *string `json:"description"`
	Category    *string `json:"category"`
	IsUsed      *bool   `json:"is_used"`
	IsDefense   *bool   `json:"is_defense"`
	IsLinkAlt   *bool   `json:"is_link_alt"`
	GroupID     *int64  `json:"group_id"`
}

// Update handles PUT /api/v1/domains/:id. Absent fields are left as they are.
func (h *DomainHandler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid domain id"})
		return
	}

	var req updateDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Category != nil && *req.Category != "" && !models.ValidCategory(*req.Category) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
		return
	}

	domain, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to get domain", logger.Int64("id", id), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update domain"})
		return
	}

	if req.Description != nil {
		domain.Description = req.Description
	}
	if req.Category != nil {
		domain.Category = req.Category
	}
	if req.IsUsed != nil {
		domain.IsUsed = *req.IsUsed
	}
	if req.IsDefense != nil {
		domain.IsDefense = *req.IsDefense
	}
	if req.IsLinkAlt != nil {
		domain.IsLinkAlt = *req.IsLinkAlt
	}
	if req.GroupID != nil {
		domain.GroupID = req.GroupID
	}

	if err := h.repo.Update(c.Request.Context(), domain); err != nil {
		h.logger.Error("Failed to update domain", logger.Int64("id", id), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update domain"})
		return
	}

	c.JSON(http.StatusOK, domain)
}

// Delete handles DELETE /api/v1/domains/:id.
func (h *DomainHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid domain id"})
		return
	}

	err = h.repo.Delete(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "domain not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to delete domain", logger.Int64("id", id), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete domain"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "domain deleted"})
}

// UsedNames handles GET /api/v1/domains/used-names: the plain list of names
// the external check script feeds into the filter.
func (h *DomainHandler) UsedNames(c *gin.Context) {
	names, err := h.repo.UsedNames(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list used names", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list used names"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"names": names, "count": len(names)})
}

type markUsedRequest struct {
	Names []string `json:"names"`
}

// MarkUsed handles POST /api/v1/domains/mark-used. Accepts either a JSON
// names array or a text/plain newline-separated list (the export format of
// the old spreadsheet workflow).
func (h *DomainHandler) MarkUsed(c *gin.Context) {
	var names []string

	if strings.HasPrefix(c.ContentType(), "text/plain") {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}
		for _, line := range strings.Split(string(body), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				names = append(names, line)
			}
		}
	} else {
		var req markUsedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		names = req.Names
	}

	if len(names) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no names provided"})
		return
	}

	matched, updated, err := h.repo.MarkUsedByNames(c.Request.Context(), names)
	if err != nil {
		h.logger.Error("Failed to mark domains used", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark domains used"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submitted": len(names),
		"matched":   matched,
		"updated":   updated,
	})
}

func parseBoolParam(s string) (value, ok bool) {
	switch strings.ToLower(s) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	}
	return false, false
}
