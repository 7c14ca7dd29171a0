package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fso-systems/travelreq/internal/directory"
	"github.com/fso-systems/travelreq/internal/models"
	"github.com/fso-systems/travelreq/internal/request"
	"github.com/fso-systems/travelreq/internal/schema"
)

// kerberosHeader carries the authenticated caller's identity; session
// issuance itself happens upstream of this adapter.
const kerberosHeader = "X-Kerberos"

func (s *Server) handleCreateRevision(c *gin.Context) {
	var data schema.Record
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "is400": true, "message": "invalid JSON body"})
		return
	}

	var submitter *directory.Employee
	if kerberos := c.GetHeader(kerberosHeader); kerberos != "" {
		submitter = &directory.Employee{
			Kerberos:  kerberos,
			FirstName: c.GetHeader("X-First-Name"),
			LastName:  c.GetHeader("X-Last-Name"),
		}
	}
	force := c.Query("forceValidation") == "true"

	created, err := s.requests.CreateRevision(c.Request.Context(), data, submitter, force)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleGetRequests(c *gin.Context) {
	filter := request.Filter{
		Kerberos: c.Query("kerberos"),
	}
	if id := c.Query("id"); id != "" {
		filter.IDs = []string{id}
	}
	if requestID := c.Query("requestId"); requestID != "" {
		filter.RequestIDs = []string{requestID}
	}
	if current := c.Query("isCurrent"); current != "" {
		isCurrent := current == "true"
		filter.IsCurrent = &isCurrent
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	page, err := s.requests.Get(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) handleDeleteDraft(c *gin.Context) {
	err := s.requests.DeleteDraft(c.Request.Context(), c.Param("requestId"), c.GetHeader(kerberosHeader))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *Server) handleListActivity(c *gin.Context) {
	activities, err := s.ledger.ListActivity(c.Request.Context(), c.Param("requestId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, activities)
}

func (s *Server) handleStatement(c *gin.Context) {
	requestID := c.Param("requestId")
	c.Header("Content-Disposition", `attachment; filename="statement-`+requestID+`.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := s.statements.WriteStatement(c.Request.Context(), requestID, c.Writer); err != nil {
		s.respondError(c, err)
	}
}

func (s *Server) handleCreateReimbursement(c *gin.Context) {
	var data schema.Record
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "is400": true, "message": "invalid JSON body"})
		return
	}
	if kerberos := c.GetHeader(kerberosHeader); kerberos != "" {
		data["kerberos"] = kerberos
	}

	created, err := s.ledger.Create(c.Request.Context(), data)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleCreateFundTransaction(c *gin.Context) {
	var data schema.Record
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "is400": true, "message": "invalid JSON body"})
		return
	}

	created, err := s.ledger.CreateFundTransaction(c.Request.Context(), data)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateFundTransaction(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "is400": true, "message": "invalid fund transaction id"})
		return
	}
	var data schema.Record
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "is400": true, "message": "invalid JSON body"})
		return
	}

	updated, err := s.ledger.UpdateFundTransaction(c.Request.Context(), id, data)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleCreateAllocations(c *gin.Context) {
	var data schema.Record
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "is400": true, "message": "invalid JSON body"})
		return
	}
	allowDuplicates := c.Query("allowDuplicates") == "true"

	created, err := s.allocations.Create(c.Request.Context(), data, c.GetHeader(kerberosHeader), allowDuplicates)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleArchiveAllocations(c *gin.Context) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "is400": true, "message": "invalid JSON body"})
		return
	}

	if err := s.allocations.Archive(c.Request.Context(), body.IDs, c.GetHeader(kerberosHeader)); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": len(body.IDs)})
}

// respondError maps core errors onto the wire shapes: validation failures as
// 400 with per-field errors, not-found and forbidden as their sentinels, and
// everything else as an opaque 500.
func (s *Server) respondError(c *gin.Context, err error) {
	var valErr *schema.ValidationError
	switch {
	case errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":            true,
			"message":          "Validation Error",
			"is400":            true,
			"fieldsWithErrors": valErr.Fields,
		})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": true, "is404": true, "message": "not found"})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": true, "is403": true, "message": "forbidden"})
	case errors.Is(err, models.ErrNotDraft):
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "is400": true, "message": "request has non-draft status"})
	default:
		s.logger.Error("Unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": true, "message": "internal error"})
	}
}
