package variationapi

import (
	"errors"

	"github.com/c360studio/semstreams/component"
)

// Registrar is the slice of the component registry that registration
// needs.
type Registrar interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register adds the variation-api component factory to the registry.
func Register(reg Registrar) error {
	if reg == nil {
		return errors.New("nil registry")
	}
	return reg.RegisterWithConfig(component.RegistrationConfig{
		Name:        "variation-api",
		Factory:     NewComponent,
		Schema:      variationSchema,
		Type:        "processor",
		Protocol:    "doppel",
		Domain:      "identity",
		Description: "Serves identity variation requests over JetStream and HTTP",
		Version:     "0.1.0",
	})
}
