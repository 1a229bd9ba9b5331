package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/nwgraph/analyticscore/pkg/corpus"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeCoreError maps a core sentinel error to its HTTP status via
// errors.Is and writes it, defaulting to 500 for anything unrecognized
// (including persistence failures, which are the sink's fault, not the
// caller's).
func writeCoreError(w http.ResponseWriter, err error) {
	writeError(w, errorStatus(err), err)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, corpus.ErrInvalidParameters):
		return http.StatusBadRequest
	case errors.Is(err, corpus.ErrNoEmbeddings), errors.Is(err, corpus.ErrNoEvents):
		return http.StatusUnprocessableEntity
	case errors.Is(err, corpus.ErrCancelled):
		return http.StatusRequestTimeout
	case errors.Is(err, corpus.ErrPersistenceFailure):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
