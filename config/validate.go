package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the struct tags and the cross-field rules the tags cannot
// express.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil configuration")
	}
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("config: %s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config: %w", err)
	}
	if c.StorageBackend != "memory" && strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required for %s backend", c.StorageBackend)
	}
	if c.Telemetry.Traces || c.Telemetry.Metrics {
		if strings.TrimSpace(c.Telemetry.Endpoint) == "" {
			return errors.New("config: Telemetry.Endpoint required when traces or metrics are exported")
		}
	}
	return c.Pricing.Policy().Validate()
}
