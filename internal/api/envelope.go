package api

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// envelopeVersion is bumped on breaking changes to the envelope shape.
const envelopeVersion = 1

// Envelope is the JSON shape of every API response.
type Envelope struct {
	Version int       `json:"v"`
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// EnvelopeTransformer wraps response bodies in an Envelope.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	if apiErr, ok := v.(*APIError); ok {
		return &Envelope{Version: envelopeVersion, Error: apiErr}, nil
	}
	if _, ok := v.(*Envelope); ok {
		return v, nil
	}
	return &Envelope{
		Version: envelopeVersion,
		Success: strings.HasPrefix(status, "2"),
		Data:    v,
	}, nil
}
