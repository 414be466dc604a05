package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// decodeBodyTwice unmarshals the body into both dst and raw. Handlers use
// the raw map to tell an absent field from an explicit null.
func decodeBodyTwice(req *http.Request, dst any, raw *map[string]any) error {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return errors.New("could not read body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.New("invalid JSON body")
	}
	if err := json.Unmarshal(body, raw); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

// decodeJSON decodes the request body into dst and runs struct validation.
// The returned error message is user-facing.
func decodeJSON(req *http.Request, dst any) error {
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			fields := make([]string, 0, len(fieldErrors))
			for _, fe := range fieldErrors {
				fields = append(fields, strings.ToLower(fe.Field()))
			}
			return fmt.Errorf("invalid or missing fields: %s", strings.Join(fields, ", "))
		}
		return errors.New("invalid request body")
	}
	return nil
}
