package service

import (
	"context"
	"encoding/json"
	"log"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/spinvfx/spinfab/pkg/conn/bus"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/dependency"
	"github.com/spinvfx/spinfab/pkg/domain/validation"
)

// Config tunes the validation service.
type Config struct {
	// RxtDir is where serialized resolve contexts are stored. Empty
	// disables storing them.
	RxtDir string
}

// Service consumes profile validation requests, resolves the package
// environment and reports the verdict back over the bus.
type Service struct {
	events   bus.Publisher
	resolver validation.Resolver
	config   Config
	logger   *log.Logger
}

func New(events bus.Publisher, resolver validation.Resolver, config Config, logger *log.Logger) *Service {
	return &Service{events: events, resolver: resolver, config: config, logger: logger}
}

// OnEvent validates the effective profile carried by one
// profile-validation-request event.
//
// Profiles without any resolvable package are dropped silently. The
// verdict goes back to the bus as profile-validation-completed, with
// the resolve context path attached when the profile is valid.
func (s *Service) OnEvent(ctx context.Context, envelope bus.Envelope) error {
	if envelope.DetailType != domain.EventTypeValidationRequest {
		return validation.Reject(422, "unexpected detail type: "+envelope.DetailType)
	}

	profile := dependency.Profile{}
	if err := json.Unmarshal(envelope.Detail, &profile); err != nil || profile.ID == "" {
		return validation.Reject(422, "the event detail is not a profile")
	}

	requests := validation.FlattenProfile(profile)
	if len(requests) == 0 {
		s.logger.Printf("%s: nothing to resolve, dropping the request", profile.ID)
		return nil
	}

	rxtPath := s.newRxtPath(profile.ID)
	resolution, err := s.resolver.Resolve(ctx, requests, rxtPath)
	if err != nil {
		return err
	}

	completed := validation.CompletedDetail{
		InResponseTo: envelope.ID,
		Type:         envelope.DetailType,
		ID:           profile.ID,
		Reason:       resolution.Detail,
	}
	if resolution.Success {
		completed.Result = validation.ResultValid
		completed.Rxt = rxtPath
	} else {
		completed.Result = validation.ResultInvalid
	}

	if err := s.events.Publish(ctx, domain.EventTypeValidationCompleted, completed); err != nil {
		return err
	}

	s.logger.Printf("%s: resolved %d packages, %s", profile.ID, len(requests), completed.Result)
	return nil
}

// newRxtPath derives a fresh file name for a profile's resolve
// context. Older contexts of the same profile are left in place.
func (s *Service) newRxtPath(profileID string) string {
	if s.config.RxtDir == "" {
		return ""
	}
	unique := uuid.NewString()[:8]
	return filepath.Join(s.config.RxtDir, "profile-"+profileID+"."+unique+".rxt")
}
