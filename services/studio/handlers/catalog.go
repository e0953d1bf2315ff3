// Copyright (C) 2025 The AQAL Studio Authors
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
	"github.com/topherchris420/aqal/services/studio/catalog"
)

// ListComponents handles GET /v1/catalog/components.
//
// Query parameters q, category, difficulty, sortBy and order filter and
// sort the library (see catalog.SearchQuery).
func ListComponents(cat *catalog.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q catalog.SearchQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query", "details": err.Error()})
			return
		}
		results := cat.Search(q)
		c.JSON(http.StatusOK, gin.H{
			"components": results,
			"total":      len(results),
			"categories": cat.Categories,
			"quadrants":  cat.Quadrants,
		})
	}
}

// ListCatalogPacks handles GET /v1/catalog/packs.
func ListCatalogPacks(cat *catalog.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"packs": cat.Packs})
	}
}

// AssessmentSteps handles GET /v1/assessment/steps.
func AssessmentSteps(cat *catalog.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"steps": cat.Assessment.Steps})
	}
}

// AssessmentQuestions handles GET /v1/assessment/questions.
func AssessmentQuestions(cat *catalog.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"questions": cat.Assessment.Questions})
	}
}
