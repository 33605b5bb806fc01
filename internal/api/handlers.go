package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nyasuto/lsmkv/internal/lsm"
)

// keys and values travel over JSON as base64 text since the engine stores
// arbitrary bytes, not necessarily valid UTF-8 strings.

func decodeKeyParam(c *gin.Context) ([]byte, bool) {
	raw := c.Param("key")
	key, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		return nil, false
	}
	return key, true
}

func (s *Server) putKey(c *gin.Context) {
	start := time.Now()
	key, ok := decodeKeyParam(c)
	if !ok || len(key) == 0 {
		s.errorResponse(c, http.StatusBadRequest, "INVALID_KEY", "key must be non-empty base64url")
		return
	}

	var req PutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	value, err := base64.StdEncoding.DecodeString(req.Value)
	if err != nil {
		s.errorResponse(c, http.StatusBadRequest, "INVALID_VALUE", "value must be base64")
		return
	}

	if err := s.engine.Put(key, value); err != nil {
		s.errorResponse(c, http.StatusInternalServerError, "PUT_FAILED", err.Error())
		return
	}

	s.successResponse(c, http.StatusOK, KVEntry{
		Key:       c.Param("key"),
		Value:     req.Value,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, time.Since(start))
}

func (s *Server) getKey(c *gin.Context) {
	start := time.Now()
	key, ok := decodeKeyParam(c)
	if !ok || len(key) == 0 {
		s.errorResponse(c, http.StatusBadRequest, "INVALID_KEY", "key must be non-empty base64url")
		return
	}

	value, err := s.engine.Get(key)
	if err != nil {
		if errors.Is(err, lsm.ErrKeyNotFound) {
			s.errorResponse(c, http.StatusNotFound, "KEY_NOT_FOUND", err.Error())
		} else {
			s.errorResponse(c, http.StatusInternalServerError, "GET_FAILED", err.Error())
		}
		return
	}

	s.successResponse(c, http.StatusOK, KVEntry{
		Key:   c.Param("key"),
		Value: base64.StdEncoding.EncodeToString(value),
	}, time.Since(start))
}

func (s *Server) deleteKey(c *gin.Context) {
	start := time.Now()
	key, ok := decodeKeyParam(c)
	if !ok || len(key) == 0 {
		s.errorResponse(c, http.StatusBadRequest, "INVALID_KEY", "key must be non-empty base64url")
		return
	}

	if err := s.engine.Delete(key); err != nil {
		s.errorResponse(c, http.StatusInternalServerError, "DELETE_FAILED", err.Error())
		return
	}

	s.successResponse(c, http.StatusOK, gin.H{
		"key":     c.Param("key"),
		"deleted": true,
	}, time.Since(start))
}

func (s *Server) scanKeys(c *gin.Context) {
	start := time.Now()

	lower := lsm.Unbounded()
	if v := c.Query("lower"); v != "" {
		b, err := base64.URLEncoding.DecodeString(v)
		if err != nil {
			s.errorResponse(c, http.StatusBadRequest, "INVALID_BOUND", "lower must be base64url")
			return
		}
		if c.Query("lower_exclusive") == "true" {
			lower = lsm.Excluded(b)
		} else {
			lower = lsm.Included(b)
		}
	}
	upper := lsm.Unbounded()
	if v := c.Query("upper"); v != "" {
		b, err := base64.URLEncoding.DecodeString(v)
		if err != nil {
			s.errorResponse(c, http.StatusBadRequest, "INVALID_BOUND", "upper must be base64url")
			return
		}
		if c.Query("upper_exclusive") == "true" {
			upper = lsm.Excluded(b)
		} else {
			upper = lsm.Included(b)
		}
	}

	it, err := s.engine.Scan(lower, upper)
	if err != nil {
		s.errorResponse(c, http.StatusInternalServerError, "SCAN_FAILED", err.Error())
		return
	}

	entries := make([]KVEntry, 0)
	for it.IsValid() {
		entries = append(entries, KVEntry{
			Key:   base64.URLEncoding.EncodeToString(it.Key()),
			Value: base64.StdEncoding.EncodeToString(it.Value()),
		})
		if err := it.Next(); err != nil {
			s.errorResponse(c, http.StatusInternalServerError, "SCAN_FAILED", err.Error())
			return
		}
	}

	s.successResponse(c, http.StatusOK, gin.H{
		"count":   len(entries),
		"entries": entries,
	}, time.Since(start))
}

func (s *Server) successResponse(c *gin.Context, status int, data interface{}, duration time.Duration) {
	c.JSON(status, APIResponse{
		Status: "success",
		Data:   data,
		Metadata: &Metadata{
			Version:         "1.0",
			ExecutionTimeMs: float64(duration.Nanoseconds()) / 1e6,
			Timestamp:       time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) errorResponse(c *gin.Context, status int, code, message string) {
	c.JSON(status, APIResponse{
		Status: "error",
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Metadata: &Metadata{
			Version:   "1.0",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}
