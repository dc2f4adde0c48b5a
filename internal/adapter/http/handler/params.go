package handler

import (
	"math"
	"strconv"
	"time"

	"tiered-ledger/internal/adapter/http/middleware"
	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/pkg/apperror"
	"tiered-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// actorID returns the authenticated caller, writing AUTH_003 when absent.
func actorID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.AccountIDFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return id, true
}

// pathUUID parses a path parameter, writing REQ_001 when it is malformed.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperror.Validation("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUID parses an optional body field.
func optionalUUID(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil
	}
	return &id
}

// parseFilter reads page, page_size, status, from and to query parameters.
// from/to are Unix seconds.
func parseFilter(c *gin.Context) (ports.TransactionFilter, error) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	filter := ports.TransactionFilter{Page: page, PageSize: pageSize}

	if s := c.Query("status"); s != "" {
		status := domain.TransactionStatus(s)
		switch status {
		case domain.TransactionStatusPending, domain.TransactionStatusApproved, domain.TransactionStatusRejected:
		default:
			return filter, apperror.Validation("invalid status: must be pending, approved, or rejected")
		}
		filter.Status = &status
	}
	if f := c.Query("from"); f != "" {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return filter, apperror.Validation("invalid from: must be a unix timestamp")
		}
		from := time.Unix(v, 0).UTC()
		filter.From = &from
	}
	if t := c.Query("to"); t != "" {
		v, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return filter, apperror.Validation("invalid to: must be a unix timestamp")
		}
		to := time.Unix(v, 0).UTC()
		filter.To = &to
	}
	return filter, nil
}

func totalPages(total int64, pageSize int) int {
	return int(math.Ceil(float64(total) / float64(pageSize)))
}
