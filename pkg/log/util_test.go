package log

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestToFields(t *testing.T) {
	now := time.Now()
	err := errors.New("boom")

	tests := []struct {
		name  string
		input []any
		want  []string
	}{
		{"empty input", []any{}, nil},
		{"string-int-bool", []any{"vehicle", "B001", "receivers", 3, "open", true}, []string{"vehicle", "receivers", "open"}},
		{"time type", []any{"receivedAt", now}, []string{"receivedAt"}},
		{"float type", []any{"lat", 10.8}, []string{"lat"}},
		{"bytes", []any{"payload", []byte("B001,10.8")}, []string{"payload"}},
		{"error only", []any{err}, []string{"error"}},
		{"mixed field types", []any{"msg", "ok", zap.String("x", "y"), "num", 42}, []string{"msg", "x", "num"}},
		{"odd number of args", []any{"key1", "val1", "key2"}, []string{"key1", "arg#2"}},
		{"non-string key", []any{123, "value"}, []string{"invalid_key_1"}},
		{"duration", []any{"elapsed", time.Second}, []string{"elapsed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := toFields(tt.input...)

			var keys []string
			for _, f := range fields {
				assert.NotEmpty(t, f.Key)
				keys = append(keys, f.Key)
			}
			assert.Equal(t, tt.want, keys)
		})
	}
}

func TestToFieldsTypes(t *testing.T) {
	fields := toFields("count", 7, "rate", 0.5, "elapsed", 2*time.Second)
	require.Len(t, fields, 3)

	assert.Equal(t, zapcore.Int64Type, fields[0].Type)
	assert.Equal(t, zapcore.Float64Type, fields[1].Type)
	assert.Equal(t, zapcore.DurationType, fields[2].Type)
}

func TestToFieldsRedactsSecrets(t *testing.T) {
	fields := toFields("username", "skipper", "password", "hunter2", "token", "eyJ...")
	require.Len(t, fields, 3)

	assert.Equal(t, "skipper", fields[0].String)
	assert.Equal(t, redacted, fields[1].String)
	assert.Equal(t, redacted, fields[2].String)
}

func TestSinkPaths(t *testing.T) {
	t.Run("defaults to stdout", func(t *testing.T) {
		o := &Options{}
		paths, err := o.sinkPaths()
		require.NoError(t, err)
		assert.Equal(t, []string{"stdout"}, paths)
	})

	t.Run("no rotation keeps paths", func(t *testing.T) {
		o := &Options{OutputPaths: []string{"stdout", "/tmp/relay.log"}}
		paths, err := o.sinkPaths()
		require.NoError(t, err)
		assert.Equal(t, o.OutputPaths, paths)
	})

	t.Run("rotation rewrites files", func(t *testing.T) {
		dir := t.TempDir()
		o := &Options{
			OutputPaths: []string{"stderr", dir + "/relay.log"},
			MaxSize:     10,
			MaxBackups:  3,
			MaxAge:      7,
			Compress:    true,
		}
		paths, err := o.sinkPaths()
		require.NoError(t, err)
		require.Len(t, paths, 2)
		assert.Equal(t, "stderr", paths[0])

		u, err := url.Parse(paths[1])
		require.NoError(t, err)
		assert.Equal(t, rotateScheme, u.Scheme)
		assert.Equal(t, "10", u.Query().Get("max-size"))
		assert.Equal(t, "3", u.Query().Get("max-backups"))
		assert.Equal(t, "true", u.Query().Get("compress"))

		logger := NewLogger(&Options{
			Level:       "debug",
			Format:      "json",
			OutputPaths: o.OutputPaths,
			MaxSize:     10,
		})
		logger.Info("rotating sink works", "vehicle", "B001")
	})
}

func TestOptionsValidate(t *testing.T) {
	o := NewOptions()
	assert.Empty(t, o.Validate())

	o.Format = "xml"
	o.MaxAge = -1
	assert.Len(t, o.Validate(), 2)
}
