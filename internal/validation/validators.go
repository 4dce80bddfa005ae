package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/benvon/taskpulse/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate

	hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())

	custom := map[string]validator.Func{
		"task_status":  validateTaskStatus,
		"priority":     validatePriority,
		"session_type": validateSessionType,
		"hex_color":    validateHexColor,
	}
	for tag, fn := range custom {
		if err := Validate.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("failed to register %s validator: %v", tag, err))
		}
	}
}

func validateTaskStatus(fl validator.FieldLevel) bool {
	return ValidateTaskStatus(fl.Field().String()) == nil
}

func validatePriority(fl validator.FieldLevel) bool {
	return models.ValidPriority(int(fl.Field().Int()))
}

func validateSessionType(fl validator.FieldLevel) bool {
	return ValidateSessionType(fl.Field().String()) == nil
}

func validateHexColor(fl validator.FieldLevel) bool {
	return hexColor.MatchString(fl.Field().String())
}

// SanitizeText trims whitespace and removes control characters except newline and tab
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}
	return sanitized.String()
}

// ValidateTaskStatus validates a TaskStatus string value
func ValidateTaskStatus(value string) error {
	switch models.TaskStatus(value) {
	case models.TaskStatusTodo, models.TaskStatusInProgress, models.TaskStatusCompleted:
		return nil
	default:
		return fmt.Errorf("invalid status: %s (must be 'todo', 'in_progress', or 'completed')", value)
	}
}

// ValidateSessionType validates a SessionType string value
func ValidateSessionType(value string) error {
	switch models.SessionType(value) {
	case models.SessionTypeWork, models.SessionTypeShortBreak, models.SessionTypeLongBreak:
		return nil
	default:
		return fmt.Errorf("invalid session_type: %s (must be 'work', 'short_break', or 'long_break')", value)
	}
}

// FirstError returns a client-facing message for the first failed field
func FirstError(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		return fmt.Sprintf("Validation failed: field '%s' failed on '%s'", strings.ToLower(fe.Field()), fe.Tag())
	}
	return "Validation failed"
}
