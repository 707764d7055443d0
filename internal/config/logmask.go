// SPDX-License-Identifier: MIT

package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"

	xlog "github.com/theothernt/AerialViews-sub000/internal/log"
)

// sensitiveKeywords mark fields whose values are never logged.
var sensitiveKeywords = []string{
	"password",
	"secret",
	"token",
	"apikey",
	"sharedlink",
}

const masked = "***"

// MaskSecrets turns a config value into a loggable tree keyed by yaml names.
// Secrets become "***" and credentials embedded in url fields are redacted.
func MaskSecrets(data any) any {
	if data == nil {
		return nil
	}
	return maskValue(reflect.ValueOf(data))
}

func maskValue(val reflect.Value) any {
	for val.Kind() == reflect.Ptr || val.Kind() == reflect.Interface {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}

	switch val.Kind() {
	case reflect.Struct:
		result := make(map[string]any)
		maskStruct(val, result)
		return result

	case reflect.Map:
		result := make(map[string]any, val.Len())
		iter := val.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			result[key] = maskField(key, iter.Value())
		}
		return result

	case reflect.Slice, reflect.Array:
		result := make([]any, val.Len())
		for i := range result {
			result[i] = maskValue(val.Index(i))
		}
		return result

	default:
		if d, ok := val.Interface().(time.Duration); ok {
			return d.String()
		}
		return val.Interface()
	}
}

// maskStruct flattens inline members into out.
func maskStruct(val reflect.Value, out map[string]any) {
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name, inline, skip := yamlName(field)
		if skip {
			continue
		}
		fv := val.Field(i)
		if inline && fv.Kind() == reflect.Struct {
			maskStruct(fv, out)
			continue
		}
		out[name] = maskField(name, fv)
	}
}

func maskField(name string, fv reflect.Value) any {
	if isSensitiveKey(name) {
		if fv.Kind() == reflect.String && fv.Len() == 0 {
			return ""
		}
		return masked
	}
	if isURLKey(name) {
		switch fv.Kind() {
		case reflect.String:
			return redactIfSet(fv.String())
		case reflect.Slice:
			urls := make([]string, fv.Len())
			for i := range urls {
				urls[i] = redactIfSet(fv.Index(i).String())
			}
			return urls
		}
	}
	return maskValue(fv)
}

func redactIfSet(raw string) string {
	if raw == "" {
		return ""
	}
	return xlog.RedactURI(raw)
}

func yamlName(f reflect.StructField) (name string, inline, skip bool) {
	tag := f.Tag.Get("yaml")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	for _, opt := range parts[1:] {
		if opt == "inline" {
			inline = true
		}
	}
	if name == "" {
		name = strings.ToLower(f.Name)
	}
	return name, inline, false
}

// isSensitiveKey checks if a key name contains any sensitive keyword.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lowerKey, keyword) {
			return true
		}
	}
	return false
}

func isURLKey(key string) bool {
	k := strings.ToLower(key)
	return k == "url" || k == "urls" || strings.HasSuffix(k, "url") || strings.HasSuffix(k, "urls")
}

// LogEffective writes the masked configuration at info level.
func LogEffective(logger zerolog.Logger, cfg AppConfig) {
	logger.Info().
		Str(xlog.FieldEvent, "config.effective").
		Str(xlog.FieldVersion, cfg.Version).
		Interface("config", MaskSecrets(cfg)).
		Msg("effective configuration")
}
