package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"log"

	"github.com/spinvfx/spinfab/pkg/conn/bus"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/sourcing"
)

// Config tunes the sourcing service.
type Config struct {
	// SignatureToken is the shared secret the catalog webhook signs
	// payloads with.
	SignatureToken string

	// RejectUnverified drops events whose signature is missing or does
	// not verify. Production runs with this on.
	RejectUnverified bool

	// DefaultSite is adopted when the event names no site itself.
	DefaultSite string

	// Proxy identifies this build in the augmented events it emits.
	Proxy domain.BuildInfo
}

// Service receives catalog webhook events, wraps them in an augmented
// envelope and puts them on the internal bus.
type Service struct {
	events bus.Publisher
	stats  *sourcing.EventStats
	config Config
	logger *log.Logger
}

func New(events bus.Publisher, stats *sourcing.EventStats, config Config, logger *log.Logger) *Service {
	return &Service{events: events, stats: stats, config: config, logger: logger}
}

// VerifySignature checks the webhook signature over the raw body.
//
// The expected form is "sha1=<hex>" where the digest is HMAC-SHA1 over
// the body with the shared secret.
func (s *Service) VerifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha1.New, []byte(s.config.SignatureToken))
	mac.Write(body)
	expected := "sha1=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// OnEvent ingests one webhook delivery.
//
// body is the raw request payload the signature was computed over,
// event its decoded form.
func (s *Service) OnEvent(ctx context.Context, body []byte, signature string, event map[string]any) error {
	if len(event) == 0 {
		return sourcing.Reject(400, "Bad request. Empty body.")
	}

	eventID := stringField(event, "id")
	if eventID == "" {
		return sourcing.Reject(400, "Bad request. Event has no id or is not an event.")
	}
	logID := "[SG:" + eventID + "]"

	eventType := stringField(event, "event_type")
	if eventType == "" {
		return sourcing.Reject(400, "Bad request. Event has no type or is not an event.")
	}
	if person := s.person(event); person == "" {
		return sourcing.Reject(400, "Bad request. Event has no person id or is not an event.")
	}

	verified := false
	if signature != "" {
		verified = s.VerifySignature(body, signature)
		if !verified {
			s.logger.Printf("%s signature verification failed: wrong token or tampered data", logID)
		}
	} else {
		s.logger.Printf("%s no signature in headers, verification not performed", logID)
	}
	if !verified && s.config.RejectUnverified {
		return sourcing.Reject(400, "Bad request. Signature missing or failed verification.")
	}

	site := stringField(event, "event_site")
	if site == "" {
		site = s.config.DefaultSite
	}

	s.stats.Increment(eventType)

	augmented := domain.AugmentedEvent{
		ID:             eventID,
		Source:         domain.SourceCatalogWebhook,
		VerifiedSource: verified,
		Site:           site,
		Proxy:          s.config.Proxy,
		Event:          event,
	}
	if err := s.events.Publish(ctx, domain.EventTypeCatalogEvent, augmented); err != nil {
		s.logger.Printf("%s unable to push the wrapped event: %s", logID, err)
		return sourcing.Reject(400, "Failed to process at this time")
	}

	s.logger.Printf("%s pushed wrapped event of type '%s', site '%s'", logID, eventType, site)
	return nil
}

// person identifies who triggered the event.
//
// TODO: read the identity from the catalog session when the webhook
// gateway starts forwarding it.
func (s *Service) person(event map[string]any) string {
	return "unknown@unknown.com"
}

// Stats reports the event counts of the trailing hour.
func (s *Service) Stats() (int, map[string]int) {
	return s.stats.Counts()
}

func stringField(event map[string]any, key string) string {
	value, _ := event[key].(string)
	return value
}
