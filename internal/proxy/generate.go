package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vnmchuo/adstream-gateway/internal/adgen"
	"github.com/vnmchuo/adstream-gateway/internal/usage"
)

// HandleGenerateAd writes a headline, body copy and image prompt for a
// product brief in one round trip.
func (h *Handler) HandleGenerateAd(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r.Context())
	logger := h.logger.With(slog.String("request_id", requestID))

	if !h.allow(w, r) {
		return
	}

	var brief adgen.Brief
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&brief); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	brief.Product = strings.TrimSpace(brief.Product)
	brief.Audience = strings.TrimSpace(brief.Audience)
	brief.Tone = strings.TrimSpace(brief.Tone)

	if brief.Product == "" || brief.Audience == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "Missing required fields",
			"details": "product and audience are required",
		})
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "proxy.generate_ad")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, h.opts.StreamTimeout)
	defer cancel()

	res, err := h.opts.Ads.Generate(ctx, brief)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ad generation failed")
		logger.Error("ad generation failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to generate ad creative",
			"message": err.Error(),
		})
		return
	}
	span.SetAttributes(attribute.String("source", res.Source))

	if c := res.Completion; c != nil {
		h.save(usage.NewRecord(requestID, res.Source, c.Model, c.PromptTokens, c.CompletionTokens))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    res.Creative,
		"source":  res.Source,
	})
}
