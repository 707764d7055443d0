// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseString(t *testing.T) {
	t.Setenv("AERIAL_TEST_STRING", "from-env")
	t.Setenv("AERIAL_TEST_EMPTY", "")

	assert.Equal(t, "from-env", ParseString("AERIAL_TEST_STRING", "default"))
	assert.Equal(t, "default", ParseString("AERIAL_TEST_EMPTY", "default"))
	assert.Equal(t, "default", ParseString("AERIAL_TEST_UNSET", "default"))
}

func TestParseList(t *testing.T) {
	t.Setenv("AERIAL_TEST_LIST", " a ,b,, c ")
	assert.Equal(t, []string{"a", "b", "c"}, ParseList("AERIAL_TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, ParseList("AERIAL_TEST_LIST_UNSET", []string{"x"}))
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		name string
		val  string
		want int
	}{
		{"valid", "42", 42},
		{"padded", " 7 ", 7},
		{"negative", "-3", -3},
		{"invalid falls back", "abc", 10},
		{"empty falls back", "", 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AERIAL_TEST_INT", tt.val)
			assert.Equal(t, tt.want, ParseInt("AERIAL_TEST_INT", 10))
		})
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		val  string
		want bool
	}{
		{"true", true},
		{"YES", true},
		{"1", true},
		{"false", false},
		{"No", false},
		{"0", false},
		{"maybe", true},
	}
	for _, tt := range tests {
		t.Run(tt.val, func(t *testing.T) {
			t.Setenv("AERIAL_TEST_BOOL", tt.val)
			assert.Equal(t, tt.want, ParseBool("AERIAL_TEST_BOOL", true))
		})
	}
}

func TestParseDuration(t *testing.T) {
	t.Setenv("AERIAL_TEST_DUR", "90s")
	assert.Equal(t, 90*time.Second, ParseDuration("AERIAL_TEST_DUR", time.Minute))

	t.Setenv("AERIAL_TEST_DUR", "ninety")
	assert.Equal(t, time.Minute, ParseDuration("AERIAL_TEST_DUR", time.Minute))
}

func TestParseFloat(t *testing.T) {
	t.Setenv("AERIAL_TEST_FLOAT", "51.5")
	assert.InDelta(t, 51.5, ParseFloat("AERIAL_TEST_FLOAT", 0), 1e-9)

	t.Setenv("AERIAL_TEST_FLOAT", "north")
	assert.InDelta(t, 1.5, ParseFloat("AERIAL_TEST_FLOAT", 1.5), 1e-9)
}

func TestIsSensitiveEnv(t *testing.T) {
	assert.True(t, isSensitiveEnv("AERIAL_REDIS_PASSWORD"))
	assert.True(t, isSensitiveEnv("AERIAL_IMMICH_API_KEY"))
	assert.False(t, isSensitiveEnv("AERIAL_LISTEN"))
}
