package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/evaclass/eva-api/internal/middleware"
	"github.com/evaclass/eva-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func pageFromQuery(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

func paginationOf(page, pageSize, total int) *models.Pagination {
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
