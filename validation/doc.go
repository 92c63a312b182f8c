// Package validation validates configuration and request input.
//
// Struct tags cover configuration:
//
//	type RouterConfig struct {
//	    ProbeTimeout time.Duration `mapstructure:"probe_timeout" validate:"gt=0"`
//	}
//	err := validation.Validate(cfg)
//
// A Validator collects errors for untagged input such as form values:
//
//	err := validation.New().Required("model", model).Range("min_speakers", n, 0, 32).Validate()
//
// Both return an *errors.AppError with code INVALID_INPUT.
package validation
