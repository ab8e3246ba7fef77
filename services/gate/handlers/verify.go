// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the gate's HTTP surface.
//
// The verify endpoint is the whole point of the service: the assistant's
// orchestration layer calls it with a parsed query BEFORE any inference
// runs, and only proceeds when the response says so. Everything else
// (sources listing, health) exists to inspect the catalog behind that
// decision.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianGate/pkg/extensions"
	"github.com/AleutianAI/AleutianGate/services/gate/provenance"
	"github.com/AleutianAI/AleutianGate/services/gate/registry"
	"github.com/AleutianAI/AleutianGate/services/gate/resolver"
	"github.com/AleutianAI/AleutianGate/services/gate/traversal"
)

var verifyTracer = otel.Tracer("aleutian.gate.handlers")

// Deps bundles the long-lived collaborators the handlers close over.
//
// # Fields
//
//   - Gate: the pre-inference trust gate
//   - Registry: the sealed source catalog
//   - Stores: live store bindings for traversal
//   - Audit: audit sink shared by gate, traversal, and grounding
//   - Auditor: the grounding auditor enforcing mandatory traversal
//   - Limiter: request rate limiter for the verify endpoint
type Deps struct {
	Gate     *resolver.Gate
	Registry *registry.Registry
	Stores   *traversal.Stores
	Audit    extensions.AuditLogger
	Auditor  *provenance.GroundingAuditor
	Limiter  *rate.Limiter
}

// VerifyRequest is the inbound body for POST /v1/verify.
//
// # Fields
//
//   - IntentType: intent category from the upstream classifier (required)
//   - Domains: explicitly declared domain tags, in priority order
//   - Entities: entity kind -> extracted names
//   - RawText: the original query text (domain inference fallback)
//   - ClaimedSources: source ids the caller intends to cite; each gets an
//     origin verification against the traversal trail
type VerifyRequest struct {
	IntentType     string              `json:"intent_type" binding:"required"`
	Domains        []string            `json:"domains"`
	Entities       map[string][]string `json:"entities"`
	RawText        string              `json:"raw_text"`
	ClaimedSources []string            `json:"claimed_sources"`
}

// VerifyResponse is the gate's decision plus everything needed to audit it.
type VerifyResponse struct {
	Proceed      bool                            `json:"proceed"`
	Message      string                          `json:"message,omitempty"`
	Resolution   *resolver.SourceResolution      `json:"resolution"`
	Steps        []traversal.Step                `json:"steps,omitempty"`
	Provenance   *provenance.ResponseProvenance  `json:"provenance,omitempty"`
	Markers      []provenance.DataMarkers        `json:"markers,omitempty"`
	OriginChecks map[string]bool                 `json:"origin_checks,omitempty"`
}

// HandleVerify runs the full pre-inference pipeline for one query.
//
// # Description
//
// Pipeline: resolve (fail closed) -> mandatory traversal -> origin checks
// for claimed sources -> provenance assembly and validation. A refusal is
// a successful HTTP 200 with proceed=false; HTTP errors are reserved for
// malformed requests and rate limiting.
//
// # Route
//
//	POST /v1/verify
func HandleVerify(deps Deps) gin.HandlerFunc {
	logger := slog.Default().With("component", "verify_handler")

	return func(c *gin.Context) {
		ctx, span := verifyTracer.Start(c.Request.Context(), "gate.verify")
		defer span.End()

		var req VerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}

		proceed, res, message := deps.Gate.VerifyOrRefuse(ctx, resolver.Request{
			IntentType: req.IntentType,
			Domains:    req.Domains,
			Entities:   req.Entities,
			RawText:    req.RawText,
		})
		span.SetAttributes(
			attribute.String("gate.outcome", string(res.Outcome)),
			attribute.Bool("gate.proceed", proceed),
		)

		resp := VerifyResponse{Proceed: proceed, Message: message, Resolution: res}
		if !proceed {
			c.JSON(http.StatusOK, resp)
			return
		}

		// Conversational intents resolve with no source at all. There is
		// nothing to traverse and no lineage to validate.
		if len(res.ResolvedSourceIDs()) == 0 {
			c.JSON(http.StatusOK, resp)
			return
		}

		eng, err := traversal.NewEngine(deps.Registry, deps.Stores, res.ResolvedSourceIDs(), deps.Audit)
		if err != nil {
			// Registry problems are caught at startup; reaching this means
			// the process is misconfigured, not the request malformed.
			logger.Error("Failed to build traversal engine", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "traversal engine unavailable"})
			return
		}

		if deps.Auditor.NeedsFallbackTraversal(req.IntentType, res, eng.Context()) {
			deps.Auditor.RunFallback(eng, res)
		}

		if len(req.ClaimedSources) > 0 {
			resp.OriginChecks = make(map[string]bool, len(req.ClaimedSources))
			for _, claimed := range req.ClaimedSources {
				_, verified := eng.VerifyOrigin(claimed)
				resp.OriginChecks[claimed] = verified
			}
		}

		prov := provenance.BuildResponseProvenance(deps.Registry, res, eng.Context())
		if err := provenance.Validate(deps.Registry, prov); err != nil {
			// The gate said proceed but the lineage does not hold up;
			// fail closed rather than ship an ungrounded permit.
			logger.Warn("Provenance validation failed after resolution",
				"resolution_id", res.ID, "error", err)
			resp.Proceed = false
			resp.Message = "answer lineage could not be validated: " + err.Error()
			c.JSON(http.StatusOK, resp)
			return
		}

		resp.Steps = eng.Context().Steps()
		resp.Provenance = &prov
		for _, id := range prov.DerivedFrom {
			resp.Markers = append(resp.Markers, provenance.MarkersFor(deps.Registry, id))
		}
		c.JSON(http.StatusOK, resp)
	}
}

// RateLimit rejects requests beyond the configured rate with 429. Applied
// to the verify endpoint only; health and catalog reads stay unlimited.
func RateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
