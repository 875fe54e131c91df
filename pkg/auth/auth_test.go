package auth

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/spinvfx/spinfab/pkg/utils/try"
)

func tokenOf(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return try.To(token.SignedString([]byte("irrelevant"))).OrFatal(t)
}

func TestManager_FromToken(t *testing.T) {
	manager := New(nil, map[string][]string{
		"svc-scheduler": {"sg_permission_pipeline"},
	})

	t.Run("a complete token decodes into a user", func(t *testing.T) {
		token := tokenOf(t, jwt.MapClaims{
			"unique_name": "jo",
			"upn":         "jo@studio.example",
			"name":        "Jo Doe",
			"roles":       []any{"sg_permission_artist"},
			"projects":    []any{"alpha"},
		})

		user := try.To(manager.FromToken(token)).OrFatal(t)
		if user.Username != "jo" || user.Email != "jo@studio.example" || user.FullName != "Jo Doe" {
			t.Errorf("unexpected identity: %+v", user)
		}
		if len(user.Groups) != 1 || user.Groups[0] != "sg_permission_artist" {
			t.Errorf("unexpected groups: %v", user.Groups)
		}
		if !user.MayAccessProject("alpha") || user.MayAccessProject("beta") {
			t.Errorf("unexpected project restriction: %v", user.Projects)
		}
	})

	t.Run("tokens lacking identity claims are rejected", func(t *testing.T) {
		for name, claims := range map[string]jwt.MapClaims{
			"no username":  {"upn": "jo@studio.example", "name": "Jo Doe"},
			"no email":     {"unique_name": "jo", "name": "Jo Doe"},
			"no full name": {"unique_name": "jo", "upn": "jo@studio.example"},
		} {
			t.Run(name, func(t *testing.T) {
				if _, err := manager.FromToken(tokenOf(t, claims)); !errors.Is(err, ErrUnauthorized) {
					t.Errorf("unexpected error: %v", err)
				}
			})
		}
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		for name, token := range map[string]string{
			"empty":     "",
			"not a jwt": "certainly.not.a-token",
		} {
			t.Run(name, func(t *testing.T) {
				if _, err := manager.FromToken(token); !errors.Is(err, ErrUnauthorized) {
					t.Errorf("unexpected error: %v", err)
				}
			})
		}
	})

	t.Run("a known api key authenticates a service", func(t *testing.T) {
		user := try.To(manager.FromToken("apikey:svc-scheduler")).OrFatal(t)
		if user.Username != "apikey" {
			t.Errorf("unexpected username: %s", user.Username)
		}
		if len(user.Groups) != 1 || user.Groups[0] != "sg_permission_pipeline" {
			t.Errorf("unexpected groups: %v", user.Groups)
		}
	})

	t.Run("an unknown api key is rejected", func(t *testing.T) {
		if _, err := manager.FromToken("apikey:who-dis"); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
