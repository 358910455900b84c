package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestValidToken(t *testing.T) {
	cases := map[string]bool{
		"a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d":          true,
		"A1B2C3D4-E5F6-4A7B-8C9D-0E1F2A3B4C5D":          true,
		"a1b2c3d4-e5f6-1a7b-8c9d-0e1f2a3b4c5d":          false, // v1
		"a1b2c3d4-e5f6-4a7b-0c9d-0e1f2a3b4c5d":          false, // NCS variant
		"a1b2c3d4e5f64a7b8c9d0e1f2a3b4c5d":              false, // no dashes
		"{a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d}":        false,
		"urn:uuid:a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d": false,
		"":                                     false,
		"not-a-uuid-at-all-not-a-uuid-at-all!": false,
	}
	for in, want := range cases {
		if got := ValidToken(in); got != want {
			t.Fatalf("ValidToken(%q) = %v; want %v", in, got, want)
		}
	}
}

func TestValidToken_Properties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("every generated v4 UUID is accepted", prop.ForAll(
		func(_ int) bool { return ValidToken(uuid.NewString()) },
		gen.Int(),
	))

	properties.Property("changing the version nibble rejects the token", prop.ForAll(
		func(v int) bool {
			s := []byte(uuid.NewString())
			s[14] = "0123567"[v]
			return !ValidToken(string(s))
		},
		gen.IntRange(0, 6),
	))

	properties.Property("arbitrary short strings are rejected", prop.ForAll(
		func(s string) bool { return len(s) == 36 || !ValidToken(s) },
		gen.AlphaString(),
	))

	properties.Property("upper-casing keeps a token valid", prop.ForAll(
		func(_ int) bool { return ValidToken(strings.ToUpper(uuid.NewString())) },
		gen.Int(),
	))

	properties.TestingRun(t)
}
