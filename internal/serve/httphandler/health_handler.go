package httphandler

import (
	"net/http"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/internal/serve/httpresponse"
)

type HealthHandler struct {
	Version          string
	GitCommit        string
	DBConnectionPool db.DBConnectionPool
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
}

// Get reports liveness plus database reachability.
func (h HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	status := "pass"
	statusCode := http.StatusOK
	if err := h.DBConnectionPool.Ping(r.Context()); err != nil {
		status = "fail"
		statusCode = http.StatusServiceUnavailable
	}

	httpresponse.JSON(w, statusCode, "Health check.", healthResponse{
		Status:    status,
		Version:   h.Version,
		GitCommit: h.GitCommit,
	})
}
