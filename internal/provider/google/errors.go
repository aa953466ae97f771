package google

import (
	"errors"

	ai "github.com/spetersoncode/gambit"
	"google.golang.org/genai"
)

// wrapError categorizes a GenAI API error by its status code.
// genai.APIError carries no headers, so no retry delay is attached.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return ai.NewStatusError(err.Error(), apiErr.Code, 0, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return ai.NewStatusError(err.Error(), apiErrPtr.Code, 0, err)
	}
	return err
}
