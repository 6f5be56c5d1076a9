package ui

import (
	"bytes"
	"fmt"
	"net/http"

	"gogrid/internal/errors"
	"gogrid/models"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"compute": s.grids.ComputeStats(),
	})
}

// handleCompute recomputes a grid sent in the request without storing it
func (s *Server) handleCompute(c *gin.Context) {
	var req models.ComputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidInput("body must be {\"rawData\": [...]}: "+err.Error()))
		return
	}

	result, err := s.grids.Compute(c.Request.Context(), req.RawData)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ComputeResponse{Result: result})
}

func (s *Server) handleListGrids(c *gin.Context) {
	keys, err := s.grids.Keys(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// handleDefaultGrid serves the grid stored under the configured default key
func (s *Server) handleDefaultGrid(c *gin.Context) {
	view, err := s.grids.Open(c.Request.Context(), s.config.DefaultKey)
	if err != nil {
		respondError(c, err)
		return
	}
	writeView(c, view)
}

func (s *Server) handleGetGrid(c *gin.Context) {
	view, err := s.grids.Open(c.Request.Context(), gridKey(c))
	if err != nil {
		respondError(c, err)
		return
	}
	writeView(c, view)
}

// writeView tags a view with the raw fingerprint and the applied result, and
// answers 304 when the client already holds that pair
func writeView(c *gin.Context, view *models.GridView) {
	etag := fmt.Sprintf(`"%s-%d"`, view.Fingerprint.Short(), view.AppliedSeq)
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleReplaceGrid(c *gin.Context) {
	var req models.ComputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.InvalidInput("body must be {\"rawData\": [...]}: "+err.Error()))
		return
	}

	view, err := s.grids.Replace(c.Request.Context(), gridKey(c), req.RawData)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, view)
}

func (s *Server) handleDeleteGrid(c *gin.Context) {
	if err := s.grids.Delete(c.Request.Context(), gridKey(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleSetCell accepts one edit; the computed grid follows asynchronously
func (s *Server) handleSetCell(c *gin.Context) {
	var update models.CellUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondError(c, errors.InvalidInput("body must be {\"value\": \"...\"}: "+err.Error()))
		return
	}

	result, err := s.grids.SetCell(c.Request.Context(), gridKey(c), c.Param("cell"), update.Value)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

func (s *Server) handleRecompute(c *gin.Context) {
	view, err := s.grids.Recompute(c.Request.Context(), gridKey(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleSummary(c *gin.Context) {
	summary, err := s.grids.Summary(c.Request.Context(), gridKey(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleExport(c *gin.Context) {
	key := gridKey(c)

	var buf bytes.Buffer
	if err := s.grids.ExportWorkbook(c.Request.Context(), key, &buf); err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", key.String()+".xlsx"))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// handleImport replaces the grid with an uploaded workbook (form field "file")
func (s *Server) handleImport(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, errors.InvalidInput("multipart field \"file\" is required: "+err.Error()))
		return
	}
	file, err := header.Open()
	if err != nil {
		respondError(c, errors.InvalidInput("cannot read upload: "+err.Error()))
		return
	}
	defer file.Close()

	view, err := s.grids.ImportWorkbook(c.Request.Context(), gridKey(c), file)
	if err != nil {
		respondError(c, err)
		return
	}
	s.logger.Info("imported %s (%d bytes) into grid %s", header.Filename, header.Size, view.Key)
	c.JSON(http.StatusOK, view)
}
