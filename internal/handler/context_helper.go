package handler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/church-news-api/internal/middleware"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
	"github.com/noah-isme/church-news-api/pkg/response"
)

// pathID parses a positive integer path parameter, writing a 400 when it is malformed.
func pathID(c *gin.Context, name string) (int64, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a positive integer", name)))
		return 0, false
	}
	return id, true
}

// queryYear parses the optional year filter. Zero means every year.
func queryYear(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("year"))
	if raw == "" {
		return 0, true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1900 || year > 2100 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year must be a four digit year"))
		return 0, false
	}
	return year, true
}

func respondWithCacheMeta(c *gin.Context, status int, data interface{}, cacheHit bool) {
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, status, data, nil, middleware.ExtractMeta(c))
}
