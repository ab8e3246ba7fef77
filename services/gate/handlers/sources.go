// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGate/services/gate/registry"
)

// ListSources returns every registered source with its integrity status.
//
// # Route
//
//	GET /v1/sources
func ListSources(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"sources": reg.Sources(),
			"domains": reg.Domains(),
		})
	}
}

// GetSource returns one catalog entry by id.
//
// # Route
//
//	GET /v1/sources/:sourceId
func GetSource(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("sourceId")
		src := reg.Get(id)
		if src == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "source not registered: " + id})
			return
		}
		c.JSON(http.StatusOK, src)
	}
}
