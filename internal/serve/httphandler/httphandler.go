// Package httphandler implements the REST endpoints. Handlers decode and
// shape-check the request, delegate to the service layer, and translate
// service errors through httperror. No business rules live here.
package httphandler

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const maxRequestBodyBytes = 1 << 20

// decodeJSON strictly decodes the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
