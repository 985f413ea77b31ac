package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"basegraph.app/assist/internal/http/dto"
	"basegraph.app/assist/internal/inspector"
	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/service"
)

// MaxAudioBytes bounds one uploaded recording.
const MaxAudioBytes = 25 << 20

type InspectionHandler struct {
	inspection service.InspectionService
}

func NewInspectionHandler(inspection service.InspectionService) *InspectionHandler {
	return &InspectionHandler{inspection: inspection}
}

func (h *InspectionHandler) Parse(c *gin.Context) {
	var req dto.ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	conv, err := h.inspection.Parse(req.Content)
	if err != nil {
		respondError(c, err, "failed to parse conversation")
		return
	}
	c.JSON(http.StatusOK, conv)
}

// Transcribe accepts a multipart "audio" file. With inspect=true the transcript is
// also inspected and the stored report returned alongside it.
func (h *InspectionHandler) Transcribe(c *gin.Context) {
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxAudioBytes+1<<20)

	header, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"audio\" is required"})
		return
	}
	if header.Size > MaxAudioBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "audio exceeds 25MB"})
		return
	}
	f, err := header.Open()
	if err != nil {
		respondError(c, err, "failed to read upload")
		return
	}
	defer f.Close()

	inspect, _ := strconv.ParseBool(c.PostForm("inspect"))
	if !inspect {
		tr, err := h.inspection.Transcribe(ctx, f, header.Filename)
		if err != nil {
			respondError(c, err, "failed to transcribe audio")
			return
		}
		c.JSON(http.StatusOK, tr)
		return
	}

	out, err := h.inspection.InspectAudio(ctx, f, header.Filename, c.PostForm("session_id"))
	if err != nil {
		var parsing *model.ParsingError
		if errors.As(err, &parsing) && out != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": parsing.Error(), "transcription": out.Transcription})
			return
		}
		respondError(c, err, "failed to inspect audio")
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *InspectionHandler) Inspect(c *gin.Context) {
	var req dto.InspectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	report, err := h.inspection.Inspect(c.Request.Context(), req.Content, req.SessionID)
	if err != nil {
		respondError(c, err, "failed to inspect conversation")
		return
	}
	c.JSON(http.StatusCreated, report)
}

func (h *InspectionHandler) Batch(c *gin.Context) {
	var req dto.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ids, err := h.inspection.EnqueueBatch(c.Request.Context(), req.Items)
	if err != nil {
		respondError(c, err, "failed to enqueue batch")
		return
	}
	c.JSON(http.StatusAccepted, dto.BatchResponse{JobIDs: ids})
}

// Report exports one stored report as json, text or html.
func (h *InspectionHandler) Report(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	report, err := h.inspection.Report(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to load report")
		return
	}
	body, contentType, err := inspector.Export(report, c.DefaultQuery("format", inspector.FormatJSON))
	if err != nil {
		respondError(c, err, "failed to export report")
		return
	}
	c.Data(http.StatusOK, contentType, body)
}

func (h *InspectionHandler) Summary(c *gin.Context) {
	var req dto.SummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	sum, err := h.inspection.Summarize(c.Request.Context(), req.ReportIDs, req.SessionID)
	if err != nil {
		respondError(c, err, "failed to summarize reports")
		return
	}
	c.JSON(http.StatusOK, sum)
}
