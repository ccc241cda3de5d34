package apperror

import (
	"encoding/json"
	"log"
	"mime"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// WriteJSON serializes data to the response with the given status. A nil
// payload writes the status line only, so 201/204 responses stay body-free.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	if data == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// DecodeJSON enforces the JSON media type, decodes the body into dst, and
// runs struct validation. On failure it writes the error response and
// returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		WriteError(w, r, NewUnsupportedMediaTypeError("request body must be application/json", err))
		return false
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, r, NewBadRequestError("invalid request body: "+err.Error(), err))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		WriteError(w, r, NewValidationError("invalid payload: "+err.Error(), err))
		return false
	}
	return true
}

// WriteError translates any error into the standardized error response.
// Errors that are not *AppError are wrapped as internal errors; server-side
// failures are logged with the request line for debugging.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := FromError(err)
	if !ok {
		appErr = NewInternalError("an unexpected error occurred", err)
	}
	if appErr.StatusCode() >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, appErr)
	}
	WriteJSON(w, appErr.StatusCode(), appErr.ToResponse())
}
