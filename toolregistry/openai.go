package toolregistry

import (
	"bytes"
	"encoding/json"
	"io"
)

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

// OpenAIFunctionSpec is the OpenAI function-calling JSON shape: a tool
// described as {"type":"function","function":{...}}.
type OpenAIFunctionSpec struct {
	Type     string             `json:"type"`
	Function OpenAIFunctionBody `json:"function"`
}

// OpenAIFunctionBody is the inner "function" object of an
// OpenAIFunctionSpec.
type OpenAIFunctionBody struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ExportOpenAIFunctions renders every registered tool as an OpenAI
// function-calling spec, in registration order. Tools registered without a
// ParamsSchema export an empty object schema
// ({"type":"object","properties":{}}) as Parameters.
func (r *Registry) ExportOpenAIFunctions() []OpenAIFunctionSpec {
	specs := r.List()
	out := make([]OpenAIFunctionSpec, 0, len(specs))
	for _, spec := range specs {
		params := spec.ParamsSchema
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		out = append(out, OpenAIFunctionSpec{
			Type: "function",
			Function: OpenAIFunctionBody{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
