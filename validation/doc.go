// Package validation provides struct tag validation for configuration types.
//
// It wraps the validator library so that configuration structs can declare
// constraints declaratively:
//
//	type Config struct {
//	    ServerAddress string `mapstructure:"server_address" validate:"required"`
//	    Weight        float64 `mapstructure:"weight" validate:"gte=0"`
//	}
//	err := validation.ValidateStruct(cfg)
package validation
