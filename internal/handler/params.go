package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
	"github.com/josh-kwaku/retail-bank/internal/ledger"
)

const defaultPageLimit = 25

// page is a cursor-paginated list. Next is the query for the following
// page, or nil when this page came back empty.
type page[T any] struct {
	Items []T     `json:"items"`
	Next  *string `json:"next"`
}

func newPage[T any](r *http.Request, items []T, limit int, lastCursor uint64) page[T] {
	p := page[T]{Items: items}
	if len(items) > 0 && lastCursor > 1 {
		q := r.URL.Query()
		q.Set("limit", strconv.Itoa(limit))
		q.Set("cursor_max", strconv.FormatUint(lastCursor-1, 10))
		next := r.URL.Path + "?" + q.Encode()
		p.Next = &next
	}
	return p
}

func accountIDParam(r *http.Request) (uint128.Uint128, *AppError) {
	id, err := domain.ParseAccountID(chi.URLParam(r, "id"))
	if err != nil || id.IsZero() {
		return uint128.Zero, ErrResourceNotFound
	}
	return id, nil
}

func transferIDParam(r *http.Request) (uint128.Uint128, *AppError) {
	id, err := domain.ParseTransferID(chi.URLParam(r, "id"))
	if err != nil {
		return uint128.Zero, ErrResourceNotFound
	}
	return id, nil
}

// pageQuery reads limit and cursor_max, collecting field errors for
// values that do not parse or fall outside a ledger batch.
func pageQuery(r *http.Request) (limit int, cursorMax uint64, errs []FieldError) {
	limit = defaultPageLimit
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > ledger.MaxBatchSize {
			errs = append(errs, FieldError{Field: "limit", Message: "must be between 1 and " + strconv.Itoa(ledger.MaxBatchSize)})
		} else {
			limit = n
		}
	}
	if raw := q.Get("cursor_max"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			errs = append(errs, FieldError{Field: "cursor_max", Message: "must be an unsigned integer"})
		} else {
			cursorMax = n
		}
	}
	return limit, cursorMax, errs
}

func parseAmount(field, raw string) (uint128.Uint128, []FieldError) {
	if raw == "" {
		return uint128.Zero, []FieldError{{Field: field, Message: "required"}}
	}
	v, err := uint128.FromString(raw)
	if err != nil {
		return uint128.Zero, []FieldError{{Field: field, Message: "must be an unsigned 128-bit integer"}}
	}
	if v.IsZero() {
		return uint128.Zero, []FieldError{{Field: field, Message: "must be greater than 0"}}
	}
	return v, nil
}
