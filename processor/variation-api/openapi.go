package variationapi

import (
	"reflect"

	"github.com/c360studio/doppel/rules"
	"github.com/c360studio/semstreams/service"
)

func init() {
	service.RegisterOpenAPISpec("variation-api", variationAPIOpenAPISpec())
}

// OpenAPISpec exposes the endpoint documentation to the service manager.
func (c *Component) OpenAPISpec() *service.OpenAPISpec {
	return variationAPIOpenAPISpec()
}
func variationAPIOpenAPISpec() *service.OpenAPISpec {
	return &service.OpenAPISpec{
		Tags: []service.TagSpec{
			{Name: "Variations", Description: "Identity variation generation - name, date of birth, and address synthesis for screening-system evaluation"},
		},
		Paths: map[string]service.PathSpec{
			"/variation-api/variations": {
				POST: &service.OperationSpec{
					Summary:     "Create variations",
					Description: "Runs the variation pipeline for a batch of identities and returns combined name, date of birth, and address rows per identity",
					Tags:        []string{"Variations"},
					Responses: map[string]service.ResponseSpec{
						"200": {
							Description: "Variation results, one per admitted identity in submission order",
							ContentType: "application/json",
							SchemaRef:   "#/components/schemas/Response",
						},
						"400": {Description: "Invalid request (missing requester or identities, or an identity without a name)"},
						"403": {Description: "Requester not admitted by the allowlist"},
					},
				},
			},
			"/variation-api/rules": {
				GET: &service.OperationSpec{
					Summary:     "List rules",
					Description: "Returns the rule catalog with descriptions and the instruction synonyms that select each rule",
					Tags:        []string{"Variations"},
					Responses: map[string]service.ResponseSpec{
						"200": {
							Description: "Rule catalog",
							ContentType: "application/json",
							SchemaRef:   "#/components/schemas/Info",
							IsArray:     true,
						},
					},
				},
			},
			"/variation-api/health": {
				GET: &service.OperationSpec{
					Summary:     "Component health",
					Description: "Returns component health including consumer state and request counters",
					Tags:        []string{"Variations"},
					Responses: map[string]service.ResponseSpec{
						"200": {Description: "Health status", ContentType: "application/json"},
					},
				},
			},
			"/variation-api/metrics": {
				GET: &service.OperationSpec{
					Summary:     "Prometheus metrics",
					Description: "Returns request, identity, and variation counters in Prometheus exposition format",
					Tags:        []string{"Variations"},
					Responses: map[string]service.ResponseSpec{
						"200": {Description: "Metrics in Prometheus text format", ContentType: "text/plain"},
					},
				},
			},
		},
		ResponseTypes: []reflect.Type{
			reflect.TypeOf(Request{}),
			reflect.TypeOf(Response{}),
			reflect.TypeOf(Identity{}),
			reflect.TypeOf(IdentityResult{}),
			reflect.TypeOf(Row{}),
			reflect.TypeOf(rules.Info{}),
		},
	}
}
