package platform

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/timzifer/threadgen/schema"
)

// PlatformError reports a configuration requesting a capability the target
// hardware lacks.
type PlatformError struct {
	Variant Variant
	Message string
}

func (e *PlatformError) Error() string {
	return e.Message
}

// Checker rejects configurations that the target hardware cannot serve.
type Checker struct {
	db     Database
	logger zerolog.Logger
}

// NewChecker creates a checker backed by db.
func NewChecker(db Database, logger zerolog.Logger) *Checker {
	return &Checker{db: db, logger: logger.With().Str("component", "platform").Logger()}
}

// Check runs after schema validation and before entries are built. Families
// without variants are not checked.
func (c *Checker) Check(cfg *schema.RadioConfig, target Target) error {
	if cfg == nil {
		return errors.New("platform check: configuration must not be nil")
	}
	if c.db == nil {
		return errors.New("platform check: capability database must not be nil")
	}
	variant, ok := c.db.Variant(target.Family)
	if !ok {
		c.logger.Debug().Str("family", string(target.Family)).Msg("family has no variants, skipping capability check")
		return nil
	}
	if !c.db.Supports(variant, CapabilityWiFi) {
		return &PlatformError{
			Variant: variant,
			Message: fmt.Sprintf("%s does not support WiFi", variant),
		}
	}
	c.logger.Debug().Str("variant", string(variant)).Str("component_id", cfg.ID).Msg("capability check passed")
	return nil
}
