package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/agentstation/hasskey/pkg/errors"
)

// GetString is a helper to get string values from Viper.
// It checks both OS environment variables and Viper configuration.
func GetString(key string) string {
	// Check OS env directly first
	osValue := os.Getenv(key)
	viperValue := viper.GetString(key)

	// If Viper doesn't have it but OS does, return OS value
	if viperValue == "" && osValue != "" {
		return osValue
	}
	return viperValue
}

// resolveSecret turns the raw token field into its value. The field is
// either a literal string or a mapping with exactly one of "env" or "file".
func resolveSecret(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", errors.NewValidationError("home_assistant.token", nil, "is required")
	case string:
		return v, nil
	case map[string]any:
		return resolveSecretRef(v)
	default:
		return "", errors.NewValidationError("home_assistant.token", raw,
			fmt.Sprintf("must be a string or a mapping with env or file, got %T", raw))
	}
}

func resolveSecretRef(ref map[string]any) (string, error) {
	if len(ref) != 1 {
		return "", errors.NewValidationError("home_assistant.token", ref, "must have exactly one of env or file")
	}

	for kind, value := range ref {
		name, ok := value.(string)
		if !ok || name == "" {
			return "", errors.NewValidationError("home_assistant.token."+kind, value, "must be a non-empty string")
		}

		switch kind {
		case "env":
			secret := os.Getenv(name)
			if secret == "" {
				return "", errors.NewValidationError("home_assistant.token.env", name,
					fmt.Sprintf("environment variable %s not set", name))
			}
			return secret, nil
		case "file":
			data, err := os.ReadFile(name)
			if err != nil {
				return "", errors.WrapIO("read", name, err)
			}
			return strings.TrimSpace(string(data)), nil
		default:
			return "", errors.NewValidationError("home_assistant.token", kind,
				fmt.Sprintf("unknown secret source %q (want env or file)", kind))
		}
	}
	return "", nil
}
