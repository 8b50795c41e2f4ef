// api/handlers/transfer_handler.go
package handlers

import (
	"bytes"
	"database/sql"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/christopher-kapic/solved-problems-mcp/api/middleware"
	"github.com/christopher-kapic/solved-problems-mcp/config"
	"github.com/christopher-kapic/solved-problems-mcp/internal/core"
	"github.com/christopher-kapic/solved-problems-mcp/internal/transfer"
)

// Uploads beyond this are rejected before any parsing.
const maxImportBytes = 32 << 20

// TransferHandler holds dependencies for the export/import handlers.
type TransferHandler struct {
	DB  *sql.DB
	Cfg *config.Config
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(db *sql.DB, cfg *config.Config) *TransferHandler {
	return &TransferHandler{
		DB:  db,
		Cfg: cfg,
	}
}

// Export streams a zip of the caller's accessible problems.
func (h *TransferHandler) Export(c *gin.Context) {
	principal := middleware.Principal(c)

	var buf bytes.Buffer
	if err := transfer.Export(c.Request.Context(), h.DB, principal, &buf); err != nil {
		_ = c.Error(err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="solved-problems-export.zip"`)
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

// Import accepts a zip archive or single JSON document in the request body
// and reports drafted/created/errored items.
func (h *TransferHandler) Import(c *gin.Context) {
	principal := middleware.Principal(c)

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes+1))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if len(data) == 0 {
		_ = c.Error(fmt.Errorf("%w: request body is empty", core.ErrInvalidInput))
		return
	}
	if len(data) > maxImportBytes {
		_ = c.Error(fmt.Errorf("%w: import exceeds the size limit", core.ErrInvalidInput))
		return
	}

	result, err := transfer.Import(c.Request.Context(), h.DB, principal.UserID, data)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
