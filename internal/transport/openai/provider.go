package openai

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// StatusSiteOverloaded is the non-standard status some providers use for overload.
const StatusSiteOverloaded = 529

// providerFailure is what a failed call to an OpenAI-compatible endpoint says
// about itself. status is 0 for transport errors that never reached the API.
type providerFailure struct {
	status     int
	detail     string
	overloaded bool
}

func decodeProviderError(err error) providerFailure {
	f := providerFailure{detail: err.Error()}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		f.status, f.detail = apiErr.HTTPStatusCode, apiErr.Message
		f.overloaded = strings.Contains(strings.ToLower(apiErr.Type), "overloaded")
	case errors.As(err, &reqErr):
		f.status = reqErr.HTTPStatusCode
		if d := extractDetail(reqErr.Body); d != "" {
			f.detail = d
		} else if len(reqErr.Body) > 0 {
			f.detail = string(reqErr.Body)
		}
	}
	f.overloaded = f.overloaded || isOverloadStatus(f.status)
	return f
}

func isOverloadStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, StatusSiteOverloaded:
		return true
	default:
		return false
	}
}

// extractDetail reads the "detail" field some providers (Nebius, vLLM) put in
// error bodies instead of the OpenAI error object.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
