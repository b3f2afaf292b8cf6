package handler

import (
	"net/http"

	"github.com/pollwise/acdash/internal/api/request"
	"github.com/pollwise/acdash/internal/api/response"
)

// CacheInvalidator is the part of the query service the cache handler uses.
type CacheInvalidator interface {
	InvalidateTenant(acID int) int
	InvalidateAll() int
}

type Cache struct {
	svc CacheInvalidator
}

func NewCache(svc CacheInvalidator) *Cache {
	return &Cache{svc: svc}
}

// Invalidate drops cached dashboard entries for one constituency or for all
// of them. Mutation pipelines call this after writing to a constituency's
// records.
func (h *Cache) Invalidate(w http.ResponseWriter, r *http.Request) {
	var req request.InvalidateCache
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var removed int
	switch req.Scope {
	case "tenant":
		removed = h.svc.InvalidateTenant(req.ACID)
	case "all":
		removed = h.svc.InvalidateAll()
	}

	response.WriteJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
