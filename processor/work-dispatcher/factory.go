package workdispatcher

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the work-dispatcher processor component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "work-dispatcher",
		Factory:     NewComponent,
		Schema:      workDispatcherSchema,
		Type:        "processor",
		Protocol:    "nats",
		Domain:      "inventory",
		Description: "Ingestion work consumer reconciling artifacts, SPDX documents and scan reports into the inventory",
		Version:     "0.1.0",
	})
}
