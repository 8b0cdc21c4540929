package mw

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// OperationOption is a function that modifies an operation.
type OperationOption func(*huma.Operation)

// WithTags adds tags to the operation.
func WithTags(tags ...string) OperationOption {
	return func(op *huma.Operation) {
		op.Tags = append(op.Tags, tags...)
	}
}

// WithDescription sets the operation description.
func WithDescription(desc string) OperationOption {
	return func(op *huma.Operation) {
		op.Description = desc
	}
}

// WithSummary sets the operation summary.
func WithSummary(summary string) OperationOption {
	return func(op *huma.Operation) {
		op.Summary = summary
	}
}

// WithOperationID sets a custom operation ID.
func WithOperationID(id string) OperationOption {
	return func(op *huma.Operation) {
		op.OperationID = id
	}
}

// WithDefaultStatus sets the success status code of the operation.
func WithDefaultStatus(status int) OperationOption {
	return func(op *huma.Operation) {
		op.DefaultStatus = status
	}
}

// WithHidden hides the operation from OpenAPI documentation.
func WithHidden() OperationOption {
	return func(op *huma.Operation) {
		op.Hidden = true
	}
}

// PublicGet registers a public GET endpoint (no auth required).
func PublicGet[I, O any](api huma.API, path string, handler func(ctx context.Context, input *I) (*O, error), opts ...OperationOption) {
	register(api, http.MethodGet, path, nil, handler, opts)
}

// PartnerGet registers a GET endpoint that requires a partner API key.
func PartnerGet[I, O any](api huma.API, path string, handler func(ctx context.Context, input *I) (*O, error), opts ...OperationOption) {
	register(api, http.MethodGet, path, partnerSecurity(), handler, opts)
}

// PartnerPost registers a POST endpoint that requires a partner API key.
func PartnerPost[I, O any](api huma.API, path string, handler func(ctx context.Context, input *I) (*O, error), opts ...OperationOption) {
	register(api, http.MethodPost, path, partnerSecurity(), handler, opts)
}

// AdminGet registers a GET endpoint that requires an admin bearer token.
func AdminGet[I, O any](api huma.API, path string, handler func(ctx context.Context, input *I) (*O, error), opts ...OperationOption) {
	register(api, http.MethodGet, path, adminSecurity(), handler, opts)
}

// AdminPut registers a PUT endpoint that requires an admin bearer token.
func AdminPut[I, O any](api huma.API, path string, handler func(ctx context.Context, input *I) (*O, error), opts ...OperationOption) {
	register(api, http.MethodPut, path, adminSecurity(), handler, opts)
}

func register[I, O any](api huma.API, method, path string, security []map[string][]string, handler func(ctx context.Context, input *I) (*O, error), opts []OperationOption) {
	op := huma.Operation{
		Method:   method,
		Path:     path,
		Security: security,
	}
	for _, opt := range opts {
		opt(&op)
	}
	huma.Register(api, op, handler)
}

func partnerSecurity() []map[string][]string {
	return []map[string][]string{{SchemePartnerKey: {}}}
}

func adminSecurity() []map[string][]string {
	return []map[string][]string{{SchemeAdminToken: {}}}
}
