package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"

	busmock "github.com/spinvfx/spinfab/pkg/conn/bus/mock"
	"github.com/spinvfx/spinfab/pkg/domain"
	"github.com/spinvfx/spinfab/pkg/domain/sourcing"
)

var quietLogger = log.New(io.Discard, "", 0)

const signatureToken = "topsecret"

func sign(body []byte) string {
	mac := hmac.New(sha1.New, []byte(signatureToken))
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}

func newService(events *busmock.Publisher, rejectUnverified bool) *Service {
	return New(
		events, sourcing.NewEventStats(),
		Config{
			SignatureToken:   signatureToken,
			RejectUnverified: rejectUnverified,
			DefaultSite:      "Mumbai",
			Proxy:            domain.BuildInfo{ID: "test-build"},
		},
		quietLogger,
	)
}

func webhookBody(t *testing.T, event map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func statusCodeOf(t *testing.T, err error) int {
	t.Helper()
	rejection := &sourcing.StatusError{}
	if !errors.As(err, &rejection) {
		t.Fatalf("not a status error: %v", err)
	}
	return rejection.Code
}

func TestService_OnEvent(t *testing.T) {
	ctx := context.Background()

	event := map[string]any{
		"id":         "123",
		"event_type": "Shotgun_Version_New",
		"project":    map[string]any{"id": float64(70)},
	}

	t.Run("a signed event is wrapped and pushed to the bus", func(t *testing.T) {
		events := busmock.New()
		svc := newService(events, true)

		body := webhookBody(t, event)
		if err := svc.OnEvent(ctx, body, sign(body), event); err != nil {
			t.Fatal(err)
		}

		published := events.EventsOf(domain.EventTypeCatalogEvent)
		if len(published) != 1 {
			t.Fatalf("published %d events, wanted 1", len(published))
		}

		augmented := domain.AugmentedEvent{}
		if err := json.Unmarshal(published[0].Detail, &augmented); err != nil {
			t.Fatal(err)
		}
		if augmented.ID != "123" || augmented.Source != domain.SourceCatalogWebhook {
			t.Errorf("unexpected identity: %s from %s", augmented.ID, augmented.Source)
		}
		if !augmented.VerifiedSource {
			t.Error("the event was not marked verified")
		}
		if augmented.Site != "Mumbai" {
			t.Errorf("site not defaulted: %q", augmented.Site)
		}
		if augmented.Proxy.ID != "test-build" {
			t.Errorf("proxy build info lost: %+v", augmented.Proxy)
		}
		if augmented.EventType() != "Shotgun_Version_New" {
			t.Errorf("raw event lost: %v", augmented.Event)
		}
	})

	t.Run("the event's own site wins over the default", func(t *testing.T) {
		events := busmock.New()
		svc := newService(events, false)

		sited := map[string]any{
			"id": "124", "event_type": "Shotgun_Version_New", "event_site": "Toronto",
		}
		if err := svc.OnEvent(ctx, webhookBody(t, sited), "", sited); err != nil {
			t.Fatal(err)
		}

		augmented := domain.AugmentedEvent{}
		if err := json.Unmarshal(events.Events()[0].Detail, &augmented); err != nil {
			t.Fatal(err)
		}
		if augmented.Site != "Toronto" {
			t.Errorf("site %q, wanted Toronto", augmented.Site)
		}
	})

	t.Run("a wrong or missing signature is rejected when enforcement is on", func(t *testing.T) {
		events := busmock.New()
		svc := newService(events, true)
		body := webhookBody(t, event)

		for name, signature := range map[string]string{
			"no signature":    "",
			"wrong signature": "sha1=0000000000000000000000000000000000000000",
			"tampered body":   sign([]byte(`{"id": "666"}`)),
		} {
			t.Run(name, func(t *testing.T) {
				err := svc.OnEvent(ctx, body, signature, event)
				if code := statusCodeOf(t, err); code != 400 {
					t.Errorf("status %d, wanted 400", code)
				}
			})
		}
		if len(events.Events()) != 0 {
			t.Error("rejected events reached the bus")
		}
	})

	t.Run("an unverified event passes when enforcement is off", func(t *testing.T) {
		events := busmock.New()
		svc := newService(events, false)

		if err := svc.OnEvent(ctx, webhookBody(t, event), "", event); err != nil {
			t.Fatal(err)
		}

		augmented := domain.AugmentedEvent{}
		if err := json.Unmarshal(events.Events()[0].Detail, &augmented); err != nil {
			t.Fatal(err)
		}
		if augmented.VerifiedSource {
			t.Error("an unsigned event was marked verified")
		}
	})

	t.Run("malformed events are rejected", func(t *testing.T) {
		svc := newService(busmock.New(), false)

		for name, event := range map[string]map[string]any{
			"empty body": {},
			"no id":      {"event_type": "Shotgun_Version_New"},
			"no type":    {"id": "123"},
		} {
			t.Run(name, func(t *testing.T) {
				err := svc.OnEvent(ctx, webhookBody(t, event), "", event)
				if code := statusCodeOf(t, err); code != 400 {
					t.Errorf("status %d, wanted 400", code)
				}
			})
		}
	})

	t.Run("a bus failure is reported as a processing failure", func(t *testing.T) {
		events := busmock.New()
		events.Err = errors.New("the bus is unreachable")
		svc := newService(events, false)

		err := svc.OnEvent(ctx, webhookBody(t, event), "", event)
		if code := statusCodeOf(t, err); code != 400 {
			t.Errorf("status %d, wanted 400", code)
		}
	})

	t.Run("ingested events are counted per type", func(t *testing.T) {
		events := busmock.New()
		svc := newService(events, false)

		other := map[string]any{"id": "125", "event_type": "Shotgun_Task_Change"}
		for _, ev := range []map[string]any{event, event, other} {
			if err := svc.OnEvent(ctx, webhookBody(t, ev), "", ev); err != nil {
				t.Fatal(err)
			}
		}

		total, perType := svc.Stats()
		if total != 3 {
			t.Errorf("total %d, wanted 3", total)
		}
		if perType["shotgun_version_new"] != 2 || perType["shotgun_task_change"] != 1 {
			t.Errorf("unexpected breakdown: %v", perType)
		}
	})
}

func TestEventStats_HourWindow(t *testing.T) {
	stats := sourcing.NewEventStats()

	stats.Increment("Shotgun_Version_New")
	stats.Increment("shotgun_version_new ")

	total, perType := stats.Counts()
	if total != 2 {
		t.Errorf("total %d, wanted 2", total)
	}
	if perType["shotgun_version_new"] != 2 {
		t.Errorf("types not normalized: %v", perType)
	}
}
