package log

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

const redacted = "[redacted]"

// Values logged under these keys are replaced with a placeholder.
var secretKeys = map[string]bool{
	"password":    true,
	"token":       true,
	"accessToken": true,
	"signingKey":  true,
	"gatewayKey":  true,
}

// toFields turns logr-style arguments into zap fields. zap.Field and error
// arguments stand alone; everything else is read as key/value pairs. A
// trailing value without a key is kept as "arg#N", and a pair whose key is
// not a string as "invalid_key_N".
func toFields(args ...any) []zap.Field {
	if len(args) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(args)/2+1)
	for i := 0; i < len(args); i++ {
		switch v := args[i].(type) {
		case zap.Field:
			fields = append(fields, v)
			continue
		case error:
			fields = append(fields, zap.Error(v))
			continue
		}

		if i == len(args)-1 {
			fields = append(fields, zap.Any(fmt.Sprintf("arg#%d", i), args[i]))
			break
		}

		key, val := args[i], args[i+1]
		i++
		name, ok := key.(string)
		if !ok {
			fields = append(fields, zap.Any(fmt.Sprintf("invalid_key_%d", (i+1)/2), map[string]any{
				"key":   key,
				"value": val,
			}))
			continue
		}
		fields = append(fields, field(name, val))
	}

	return fields
}

func field(key string, val any) zap.Field {
	if secretKeys[key] {
		return zap.String(key, redacted)
	}

	switch v := val.(type) {
	case time.Duration, time.Time:
		return zap.Any(key, v)
	case error:
		return zap.NamedError(key, v)
	case fmt.Stringer:
		return zap.Stringer(key, v)
	default:
		return zap.Any(key, v)
	}
}
