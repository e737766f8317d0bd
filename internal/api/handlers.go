package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/genotype-insight-server/internal/domain"
	"github.com/genotype-insight-server/internal/events"
	"github.com/genotype-insight-server/internal/history"
	"github.com/genotype-insight-server/internal/logging"
	"github.com/genotype-insight-server/internal/middleware"
)

// errNoFile keeps the message the original upload endpoint answered with.
const errNoFile = "No file uploaded"

// AnalyzeResponse is returned by the analyze endpoints.
type AnalyzeResponse struct {
	Results    []domain.InterpretationReport `json:"results"`
	Stats      domain.BatchStats             `json:"stats"`
	AnalysisID string                        `json:"analysis_id,omitempty"`
}

// handleHealth reports registry and history state
func (s *Server) handleHealth(c *gin.Context) {
	reg := s.interpreter.Interpreter().Registry()
	status := "healthy"
	code := http.StatusOK

	historyState := "disabled"
	if s.history != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.history.Ping(ctx); err != nil {
			logging.FromContext(c.Request.Context(), s.logger).WithError(err).Warn("History backend unavailable")
			historyState = "unavailable"
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			historyState = "ok"
		}
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"reference": gin.H{
			"variants":    reg.Len(),
			"fingerprint": reg.Fingerprint(),
		},
		"history": historyState,
	})
}

// handleAnalyze interprets an uploaded genotype file (multipart field "file") or a
// text/plain request body.
func (s *Server) handleAnalyze(c *gin.Context) {
	maxBytes := s.maxUploadBytes()
	if c.Request.ContentLength > maxBytes {
		s.tooLarge(c, maxBytes)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

	raw, filename, source, err := s.readGenotypes(c)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.tooLarge(c, maxBytes)
			return
		}
		logging.FromContext(c.Request.Context(), s.logger).WithError(err).Debug("Rejected analyze request")
		c.JSON(http.StatusBadRequest, gin.H{"error": errNoFile})
		return
	}

	result := s.interpreter.InterpretBatchContext(c.Request.Context(), raw)
	analysisID := s.recordAnalysis(c.Request.Context(), source, filename, result)

	c.JSON(http.StatusOK, AnalyzeResponse{
		Results:    result.Reports,
		Stats:      result.Stats,
		AnalysisID: analysisID,
	})
}

func (s *Server) readGenotypes(c *gin.Context) (raw, filename, source string, err error) {
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := c.Request.ParseMultipartForm(s.maxUploadBytes()); err != nil {
			return "", "", "", err
		}
		header, err := c.FormFile("file")
		if err != nil {
			return "", "", "", err
		}
		f, err := header.Open()
		if err != nil {
			return "", "", "", err
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return "", "", "", err
		}
		return string(data), header.Filename, history.SourceUpload, nil
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", "", "", err
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", "", "", domain.ErrEmptyInput
	}
	return string(data), "", history.SourceText, nil
}

func (s *Server) tooLarge(c *gin.Context, maxBytes int64) {
	c.JSON(http.StatusRequestEntityTooLarge, domain.NewAPIError(
		domain.ErrCodePayloadTooBig,
		"Genotype upload too large",
		"limit is "+strconv.FormatInt(maxBytes, 10)+" bytes",
		middleware.GetCorrelationID(c),
	))
}

// recordAnalysis stores the result and publishes the completion event. Failures are logged
// and never fail the request; the returned id is empty when nothing was stored.
func (s *Server) recordAnalysis(ctx context.Context, source, filename string, result *domain.BatchResult) string {
	log := logging.FromContext(ctx, s.logger).WithField("source", source)

	var analysisID string
	if s.history != nil {
		record := history.NewAnalysisRecord(source, filename, result)
		if err := s.history.Save(ctx, record); err != nil {
			log.WithError(err).Error("Failed to save analysis")
		} else {
			analysisID = record.ID
		}
	}

	evt := events.NewAnalysisCompleted(analysisID, source, s.interpreter.Interpreter().Registry().Fingerprint(), result)
	evt.CorrelationID = logging.CorrelationID(ctx)
	if err := s.publisher.PublishAnalysisCompleted(ctx, evt); err != nil {
		log.WithError(err).Warn("Failed to publish analysis event")
	}

	log.WithFields(logrus.Fields{
		"analysis_id": analysisID,
		"interpreted": result.Stats.Interpreted,
		"skipped":     result.Stats.Skipped(),
	}).Info("Genotype analysis completed")

	return analysisID
}

// handleListVariants lists the reference table without profiles
func (s *Server) handleListVariants(c *gin.Context) {
	reg := s.interpreter.Interpreter().Registry()
	ids := reg.IDs()

	variants := make([]domain.VariantSummary, 0, len(ids))
	for _, id := range ids {
		if record, ok := reg.Lookup(id); ok {
			variants = append(variants, record.Summary(false))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"variants":    variants,
		"count":       len(variants),
		"fingerprint": reg.Fingerprint(),
	})
}

// handleGetVariant returns one reference record with its category profiles
func (s *Server) handleGetVariant(c *gin.Context) {
	id := c.Param("id")
	record, ok := s.interpreter.Interpreter().Registry().Lookup(id)
	if !ok {
		s.notFound(c, "Variant not found", id)
		return
	}
	c.JSON(http.StatusOK, record.Summary(true))
}

func (s *Server) handleListAnalyses(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil || limit < 1 || limit > history.MaxPageSize {
		s.badRequest(c, domain.NewValidationError("limit",
			fmt.Sprintf("must be an integer between 1 and %d", history.MaxPageSize), c.Query("limit")))
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		s.badRequest(c, domain.NewValidationError("offset", "must be a non-negative integer", c.Query("offset")))
		return
	}

	ctx := c.Request.Context()
	records, err := s.history.List(ctx, limit, offset)
	if err != nil {
		s.storageError(c, err)
		return
	}
	total, err := s.history.Count(ctx)
	if err != nil {
		s.storageError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analyses": records,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleGetAnalysis(c *gin.Context) {
	id := c.Param("id")
	record, err := s.history.Get(c.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		s.notFound(c, "Analysis not found", id)
		return
	}
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleDeleteAnalysis(c *gin.Context) {
	id := c.Param("id")
	err := s.history.Delete(c.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		s.notFound(c, "Analysis not found", id)
		return
	}
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleExportAnalyses(c *gin.Context) {
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="analyses.json"`)
	if err := s.history.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		logging.FromContext(c.Request.Context(), s.logger).WithError(err).Error("Analysis export failed")
		if !c.Writer.Written() {
			s.storageError(c, err)
		}
	}
}

func (s *Server) notFound(c *gin.Context, message, id string) {
	c.JSON(http.StatusNotFound, domain.NewAPIError(domain.ErrCodeNotFound, message, id, middleware.GetCorrelationID(c)))
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, domain.NewAPIError(domain.ErrCodeInvalidInput, "Invalid request", err.Error(), middleware.GetCorrelationID(c)))
}

func (s *Server) storageError(c *gin.Context, err error) {
	logging.FromContext(c.Request.Context(), s.logger).WithError(err).Error("History store failed")
	c.JSON(http.StatusInternalServerError, domain.NewAPIError(domain.ErrCodeStorage, "Analysis history unavailable", "", middleware.GetCorrelationID(c)))
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
