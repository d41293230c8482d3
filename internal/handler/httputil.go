package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/security/audit"
	"github.com/yourorg/rentledger/internal/security/middleware"
)

const dateLayout = "2006-01-02"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError maps a service error to its HTTP status. Errors without a
// domain kind are logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	message := "internal server error"

	switch domain.KindOf(err) {
	case domain.KindValidation:
		status, code, message = http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case domain.KindNotFound:
		status, code, message = http.StatusNotFound, "NOT_FOUND", err.Error()
	case domain.KindConflict:
		status, code, message = http.StatusConflict, "CONFLICT", err.Error()
	case domain.KindForbidden:
		status, code, message = http.StatusForbidden, "FORBIDDEN", err.Error()
	case domain.KindUnauthorized:
		status, code, message = http.StatusUnauthorized, "UNAUTHORIZED", err.Error()
	case domain.KindGateway:
		status, code, message = http.StatusBadGateway, "GATEWAY_ERROR", err.Error()
		logger.Warn("payment gateway error",
			slog.String("request_id", audit.RequestID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	default:
		logger.Error("request failed",
			slog.String("request_id", audit.RequestID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, logger, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// decodeJSON reads the request body into dst and applies its validate tags.
func decodeJSON(r *http.Request, dst any) error {
	return decode(r, dst, false)
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(r *http.Request, dst any) error {
	return decode(r, dst, true)
}

func decode(r *http.Request, dst any, optional bool) error {
	if r.Body == nil || r.Body == http.NoBody {
		if !optional {
			return domain.Validationf("request body is required")
		}
		return validateStruct(dst)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF) && optional:
			return validateStruct(dst)
		case errors.Is(err, io.EOF):
			return domain.Validationf("request body is required")
		case errors.As(err, &maxErr):
			return domain.Validationf("request body exceeds %d bytes", maxErr.Limit)
		case domain.KindOf(err) != "":
			return err
		}
		return domain.Validationf("invalid JSON body: %v", err)
	}
	return validateStruct(dst)
}

func validateStruct(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "datetime":
			msgs = append(msgs, fe.Field()+" must be a date in YYYY-MM-DD format")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag()))
		}
	}
	return domain.Validationf("%s", strings.Join(msgs, "; "))
}

// actor returns the caller set by the JWT middleware, writing a 401 if the
// route was reached without one.
func actor(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (domain.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, logger, http.StatusUnauthorized, ErrorResponse{Error: ErrorDetail{Code: "UNAUTHORIZED", Message: "authentication required"}})
		return domain.Identity{}, false
	}
	return id, true
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Empty input yields nil.
func parseDate(field string, value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*value)
	if t, err := time.Parse(dateLayout, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, domain.Validationf("%s must be a date in YYYY-MM-DD format, got %q", field, v)
	}
	return &t, nil
}

func queryDate(r *http.Request, key string) (*time.Time, error) {
	v := r.URL.Query().Get(key)
	return parseDate(key, &v)
}

func queryBool(r *http.Request, key string) (*bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, domain.Validationf("%s must be true or false, got %q", key, v)
	}
	return &b, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, domain.Validationf("%s must be a non-negative integer, got %q", key, v)
	}
	return n, nil
}

// queryYearMonth reads the required year and month parameters.
func queryYearMonth(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	if q.Get("year") == "" || q.Get("month") == "" {
		return 0, 0, domain.Validationf("year and month are required")
	}
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		return 0, 0, domain.Validationf("year must be an integer, got %q", q.Get("year"))
	}
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil {
		return 0, 0, domain.Validationf("month must be an integer, got %q", q.Get("month"))
	}
	if _, err := domain.NewPeriod(year, month); err != nil {
		return 0, 0, err
	}
	return year, month, nil
}

// queryPeriod reads an optional YYYY-MM period. A missing value is the zero
// period, which services treat as the current month.
func queryPeriod(r *http.Request, key string) (domain.Period, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return domain.Period{}, nil
	}
	return domain.ParsePeriod(v)
}

func paging(r *http.Request) (limit, offset int, err error) {
	if limit, err = queryInt(r, "limit", 100); err != nil {
		return 0, 0, err
	}
	if limit > 500 {
		limit = 500
	}
	if offset, err = queryInt(r, "offset", 0); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}
