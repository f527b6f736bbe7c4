package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/trama"
	"github.com/soundprediction/trama/pkg/server/dto"
	"github.com/soundprediction/trama/pkg/types"
)

// DocumentHandler handles document CRUD and relink requests.
type DocumentHandler struct {
	client trama.Trama
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(client trama.Trama) *DocumentHandler {
	return &DocumentHandler{client: client}
}

// AddDocument handles POST /documents. The upsert returns once the document
// is stored and indexed; link maintenance continues in the background.
func (h *DocumentHandler) AddDocument(c *gin.Context) {
	var req dto.DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.client.AddDocument(c.Request.Context(), req.ToDocument()); err != nil {
		if errors.Is(err, types.ErrEmptyID) {
			writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, "upsert_failed", err.Error())
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": req.ID, "status": "accepted"})
}

// GetDocument handles GET /documents/:id.
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	id := c.Param("id")

	doc, err := h.client.GetDocument(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, types.ErrDocumentNotFound) {
			writeError(c, http.StatusNotFound, "document_not_found", err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, "retrieval_failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, dto.DocumentResponse{Document: doc})
}

// DeleteDocument handles DELETE /documents/:id.
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	id := c.Param("id")

	if err := h.client.DeleteDocument(c.Request.Context(), id); err != nil {
		if errors.Is(err, types.ErrDocumentNotFound) {
			writeError(c, http.StatusNotFound, "document_not_found", err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, "delete_failed", err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// RelinkDocument handles POST /documents/:id/relink. Unlike the relink
// triggered by an upsert this one is synchronous, so the response means the
// link set is current.
func (h *DocumentHandler) RelinkDocument(c *gin.Context) {
	id := c.Param("id")

	if err := h.client.Relink(c.Request.Context(), id); err != nil {
		if errors.Is(err, types.ErrDocumentNotFound) {
			writeError(c, http.StatusNotFound, "document_not_found", err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, "relink_failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, dto.RelinkResponse{DocID: id, RelinkedAt: time.Now().UTC()})
}

// writeError writes the uniform error body.
func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.ErrorResponse{Error: code, Message: message})
}
