package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/transfa/collections-service/internal/domain"
)

var validate = validator.New()

func init() {
	// decimal.Decimal validates as its float value so numeric tags work on amounts.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

type registerClientRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
}

type issueChargeRequest struct {
	ClientID string          `json:"client_id" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
	DueDate  string          `json:"due_date" validate:"required"`
	Notes    string          `json:"notes" validate:"max=1000"`
}

type dispatchRequest struct {
	Channel string `json:"channel" validate:"omitempty,oneof=system email both"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes" validate:"max=1000"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type chargeResponse struct {
	domain.Charge
	DaysOverdue int `json:"days_overdue"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// requestError is a malformed or invalid request body.
type requestError struct {
	msg    string
	fields map[string]string
}

func (e *requestError) Error() string { return e.msg }

// decodeAndValidate reads a JSON body into req and runs its validate tags.
// With optional set an empty body is accepted.
func decodeAndValidate(r *http.Request, req interface{}, optional bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			return &requestError{msg: fmt.Sprintf("invalid JSON body: %v", err)}
		}
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		return &requestError{msg: "request validation failed", fields: fields}
	}
	return nil
}
