package api

import (
	"github.com/samcharles93/actquant/internal/graphio"
	"github.com/samcharles93/actquant/internal/pass"
)

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
}

// QuantizeRequest is the body of POST /v1/quantize. An empty precision
// uses the server default.
type QuantizeRequest struct {
	Precision string            `json:"precision,omitempty"`
	Graph     *graphio.Document `json:"graph"`
}

type QuantizeResponse struct {
	ID        string            `json:"id"`
	Object    string            `json:"object"`
	CreatedAt int64             `json:"created_at"`
	Precision string            `json:"precision"`
	Graph     *graphio.Document `json:"graph"`
	Report    pass.Report       `json:"report"`
	TookMS    float64           `json:"took_ms"`
}

// OpInfo describes how the const-input phase treats one op kind.
type OpInfo struct {
	Op          string   `json:"op"`
	Inputs      []string `json:"inputs,omitempty"`
	Variadic    bool     `json:"variadic,omitempty"`
	ConstInputs []string `json:"const_inputs,omitempty"`
	AllInputs   bool     `json:"all_inputs,omitempty"`
	Supported   bool     `json:"supported"`
}

type ListResponse[T any] struct {
	Object string `json:"object"`
	Data   []T    `json:"data"`
}
