package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes data as the response body. Row snapshots must not be cached
// by intermediaries since every mutation changes them.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
