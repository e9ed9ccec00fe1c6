package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/smart-health/internal/models"
	"github.com/go-playground/validator/v10"
)

// MaxTextLength bounds any free-text value accepted by the tracking surface
const MaxTextLength = 200

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	if err := Validate.RegisterValidation("capability", validateCapability); err != nil {
		panic(fmt.Sprintf("failed to register capability validator: %v", err))
	}
	if err := Validate.RegisterValidation("health_focus", validateHealthFocus); err != nil {
		panic(fmt.Sprintf("failed to register health_focus validator: %v", err))
	}
}

// validateCapability validates that a string is a known capability id
func validateCapability(fl validator.FieldLevel) bool {
	return models.IsKnownCapability(models.Capability(fl.Field().String()))
}

// validateHealthFocus validates that a string is a valid HealthFocus enum value
func validateHealthFocus(fl validator.FieldLevel) bool {
	return models.HealthFocus(fl.Field().String()).IsValid()
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	out := sanitized.String()
	if runes := []rune(out); len(runes) > MaxTextLength {
		out = string(runes[:MaxTextLength])
	}
	return out
}

// ValidateHealthFocus validates a HealthFocus string value
func ValidateHealthFocus(value string) error {
	if models.HealthFocus(value).IsValid() {
		return nil
	}
	return fmt.Errorf("invalid health_focus: %s (must be 'general', 'chronic', 'acute', or 'preventive')", value)
}

// ValidateCapability validates a capability id
func ValidateCapability(value string) error {
	if models.IsKnownCapability(models.Capability(value)) {
		return nil
	}
	return fmt.Errorf("invalid capability: %s", value)
}
