package validation

import (
	"context"
	"strconv"

	"github.com/spinvfx/spinfab/pkg/domain/dependency"
)

// Validation results travelling in completed events.
const (
	ResultValid   = "valid"
	ResultInvalid = "invalid"
)

// CompletedDetail is the payload of a profile-validation-completed
// event.
type CompletedDetail struct {
	InResponseTo string `json:"in_response_to_event"`
	Type         string `json:"type"`
	ID           string `json:"id"`
	Result       string `json:"validation_result"`
	Reason       string `json:"result_reason"`
	Rxt          string `json:"rxt,omitempty"`
}

// Resolution is the outcome of resolving a package request list.
type Resolution struct {
	// Success reports whether a consistent environment exists.
	Success bool

	// Detail describes the resolved environment, or why resolution
	// failed.
	Detail string
}

// Resolver resolves flat "name-version" package request lists against
// the package repository.
//
// A failing resolution is a result, not an error. Errors mean the
// resolver itself could not run.
type Resolver interface {
	// Resolve computes the environment for the requests. When rxtPath
	// is not empty and the resolution succeeds, the serialized resolve
	// context is written there.
	Resolve(ctx context.Context, requests []string, rxtPath string) (Resolution, error)
}

// FlattenProfile turns an effective profile into the package request
// list its environment resolves from.
//
// Standalone packages come first, then bundled ones. Bundle packages
// marked use_legacy resolve outside the package repository and are
// skipped.
func FlattenProfile(profile dependency.Profile) []string {
	requests := []string{}
	for _, ref := range profile.Packages {
		requests = append(requests, ref.Name+"-"+ref.Version)
	}
	for _, bundle := range profile.Bundles {
		for _, ref := range bundle.Packages {
			if ref.UseLegacy {
				continue
			}
			requests = append(requests, ref.Name+"-"+ref.Version)
		}
	}
	return requests
}

// StatusError is a rejection with an HTTP-aligned status code, raised
// by the validation service and translated at the API boundary.
type StatusError struct {
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	return strconv.Itoa(e.Code) + ": " + e.Reason
}

func Reject(code int, reason string) error {
	return &StatusError{Code: code, Reason: reason}
}
