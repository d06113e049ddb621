package reportwatcher

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the report-watcher processor component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "report-watcher",
		Factory:     NewComponent,
		Schema:      reportWatcherSchema,
		Type:        "processor",
		Protocol:    "nats",
		Domain:      "inventory",
		Description: "Drop directory watcher enqueuing SBOM documents and scan reports as ingestion work",
		Version:     "0.1.0",
	})
}
