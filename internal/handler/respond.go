package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/pairly/wallet/internal/domain"
)

const maxBodyBytes = 1 << 20

// errorBody is the shape of every error response.
type errorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// RespondError writes a JSON error response, detecting domain.AppError anywhere
// in the chain for status codes. Internal errors never leak their message.
func RespondError(w http.ResponseWriter, err error) {
	appErr, ok := domain.AsAppError(err)
	if !ok || appErr.Code == "INTERNAL_ERROR" {
		RespondJSON(w, http.StatusInternalServerError, errorBody{
			Code:    "INTERNAL_ERROR",
			Message: "internal server error",
		})
		return
	}
	RespondJSON(w, appErr.Status, errorBody{
		Code:    appErr.Code,
		Message: appErr.Message,
		Fields:  appErr.Fields,
	})
}

// respondFailure logs non-operational errors before responding.
func respondFailure(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := domain.AsAppError(err)
	if !ok || !appErr.Operational() {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", GetRequestID(r.Context()),
			"error", err,
		)
	}
	RespondError(w, err)
}

// DecodeJSON reads and decodes a JSON request body into dst.
func DecodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(dst)
}

// decodeAndValidate decodes the body and runs validator tags on dst.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := DecodeJSON(r, dst); err != nil {
		return domain.ErrValidation("Invalid JSON body")
	}
	return validateStruct(dst)
}

func validateStruct(dst interface{}) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.ErrValidation("Invalid request")
	}
	fields := make([]domain.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, domain.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return domain.ErrValidationFields(fields[0].Message, fields...)
}
