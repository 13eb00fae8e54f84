// Package httpresponse renders API responses in the canonical
// {status, message, data} envelope.
package httpresponse

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON writes the envelope with the given status code.
func JSON(w http.ResponseWriter, statusCode int, message string, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	envelope := Envelope{Status: statusCode, Message: message, Data: data}
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		log.Errorf("rendering http response: %v", err)
	}
}

// OK writes a 200 envelope.
func OK(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, message, data)
}

// Created writes a 201 envelope.
func Created(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusCreated, message, data)
}

// PaginatedData wraps a page of results with its paging cursor.
type PaginatedData struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Items    any `json:"items"`
}

// Paginated writes a 200 envelope carrying a page of results.
func Paginated(w http.ResponseWriter, message string, page, pageSize int, items any) {
	OK(w, message, PaginatedData{Page: page, PageSize: pageSize, Items: items})
}
