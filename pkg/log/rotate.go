package log

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

const rotateScheme = "lumberjack"

var registerRotateSink sync.Once

// rotateSink adapts a lumberjack.Logger to zap.Sink.
type rotateSink struct {
	*lumberjack.Logger
}

func (rotateSink) Sync() error { return nil }

func newRotateSink(u *url.URL) (zap.Sink, error) {
	q := u.Query()
	atoi := func(key string) int {
		v, _ := strconv.Atoi(q.Get(key))
		return v
	}

	return rotateSink{&lumberjack.Logger{
		Filename:   u.Path,
		MaxSize:    atoi("max-size"),
		MaxBackups: atoi("max-backups"),
		MaxAge:     atoi("max-age"),
		Compress:   q.Get("compress") == "true",
	}}, nil
}

// sinkPaths returns the zap output paths for the options. When rotation is
// enabled, file paths are rewritten to lumberjack:// URLs carrying the
// rotation settings; stdout and stderr are left untouched.
func (o *Options) sinkPaths() ([]string, error) {
	if len(o.OutputPaths) == 0 {
		return []string{"stdout"}, nil
	}
	if o.MaxSize <= 0 {
		return o.OutputPaths, nil
	}

	var regErr error
	registerRotateSink.Do(func() {
		regErr = zap.RegisterSink(rotateScheme, newRotateSink)
	})
	if regErr != nil {
		return nil, regErr
	}

	paths := make([]string, 0, len(o.OutputPaths))
	for _, p := range o.OutputPaths {
		if p == "stdout" || p == "stderr" {
			paths = append(paths, p)
			continue
		}
		u, err := o.rotateURL(p)
		if err != nil {
			return nil, err
		}
		paths = append(paths, u)
	}
	return paths, nil
}

func (o *Options) rotateURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve log path %q: %w", path, err)
	}

	q := url.Values{}
	q.Set("max-size", strconv.Itoa(o.MaxSize))
	q.Set("max-backups", strconv.Itoa(o.MaxBackups))
	q.Set("max-age", strconv.Itoa(o.MaxAge))
	q.Set("compress", strconv.FormatBool(o.Compress))

	u := url.URL{Scheme: rotateScheme, Path: filepath.ToSlash(abs), RawQuery: q.Encode()}
	return u.String(), nil
}
