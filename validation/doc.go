// Package validation checks settings values before a builder applies them.
//
// Settings structs use struct tags (go-playground/validator) and report a
// single INVALID_INPUT AppError whose details list every failing field:
//
//	type Settings struct {
//	    Interval time.Duration `validate:"gt=0"`
//	    Prefix   string        `validate:"required,segment"`
//	}
//	err := validation.Validate(settings)
//
// Values that depend on each other are checked programmatically:
//
//	v := validation.New()
//	v.PositiveDuration("timeout", s.Timeout).
//	    Custom(s.Timeout <= s.Interval, "timeout", "must not exceed interval")
//	err := v.Err()
package validation
