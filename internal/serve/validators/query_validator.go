package validators

import (
	"net/http"
	"strconv"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// QueryValidator parses the common page/page_size query parameters.
type QueryValidator struct {
	*Validator
}

func NewQueryValidator() *QueryValidator {
	return &QueryValidator{Validator: NewValidator()}
}

// ParsePagination returns sanitized paging parameters, collecting errors for
// anything non-numeric or out of range.
func (qv *QueryValidator) ParsePagination(r *http.Request) (page, pageSize int) {
	page = 1
	pageSize = defaultPageSize

	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		qv.CheckError(err, "page", "page must be a positive integer")
		if err == nil {
			qv.Check(parsed > 0, "page", "page must be a positive integer")
			page = parsed
		}
	}
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		qv.CheckError(err, "page_size", "page_size must be a positive integer")
		if err == nil {
			qv.Check(parsed > 0 && parsed <= maxPageSize, "page_size", "page_size must be between 1 and 100")
			pageSize = parsed
		}
	}
	return page, pageSize
}
