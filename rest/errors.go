package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mohitkumar/dagforge/compiler"
	"github.com/mohitkumar/dagforge/engine"
	"github.com/mohitkumar/dagforge/graph"
	"github.com/mohitkumar/dagforge/logger"
	"github.com/mohitkumar/dagforge/manifest"
	"github.com/mohitkumar/dagforge/model"
	"github.com/mohitkumar/dagforge/persistence"
	"github.com/mohitkumar/dagforge/service"
	"go.uber.org/zap"
)

const MAX_BODY_BYTES int64 = 1 << 20

func statusFor(err error) int {
	var validation *model.ValidationError
	var invalidDependency *graph.InvalidDependencyError
	var invalidManifest *manifest.InvalidManifestError
	var compilation *compiler.CompilationError
	var notFound persistence.NotFoundError
	var exists persistence.AlreadyExistsError
	var failure *service.EngineFailureError
	var engineErr *engine.Error
	var unavailable *engine.UnavailableError
	switch {
	case errors.As(err, &validation), errors.As(err, &invalidDependency), errors.As(err, &invalidManifest):
		return http.StatusBadRequest
	case errors.As(err, &compilation) && compilation.InputError():
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &exists):
		return http.StatusConflict
	case errors.As(err, &failure), errors.As(err, &engineErr), errors.As(err, &unavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondWithServiceError(w http.ResponseWriter, msg string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logger.Error(msg, zap.Int("status", code), zap.Error(err))
	} else {
		logger.Info(msg, zap.Int("status", code), zap.Error(err))
	}
	respondWithError(w, code, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MAX_BODY_BYTES)).Decode(v); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &model.ValidationError{Field: name, Message: "must be a non-negative integer"}
	}
	return n, nil
}
