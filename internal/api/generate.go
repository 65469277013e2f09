package api

import (
	"encoding/json"
	"net/http"
)

const maxRequestBodySize = 1 << 20 // 1MB

type generateRequest struct {
	Prompt string `json:"prompt"`
}

// generateError writes the {"error","details"} payload used by /generate.
func generateError(w http.ResponseWriter, code int, msg, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   msg,
		"details": details,
	})
}

func handleGenerate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			generateError(w, http.StatusBadRequest, "Invalid request body", err.Error())
			return
		}

		raw, err := deps.Assistant.Generate(r.Context(), req.Prompt)
		if err != nil {
			deps.Logger.Warn("generate failed", "error", err)
			generateError(w, http.StatusInternalServerError, "Failed to generate response", err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(raw)
	}
}
