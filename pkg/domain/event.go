package domain

import (
	"fmt"
	"strings"
)

// Names identifying who emitted an event on the bus.
const (
	EventBusSource = "EB"

	SourceSourcingService   = "sourcing-service"
	SourceDependencyService = "dependency-service"
	SourceValidationService = "rez-service"
	SourceScheduler         = "scheduler-service"
	SourceSchedulerJob      = "scheduler-job"

	SourceCatalogWebhook = "sg"
)

// Bus event detail types.
const (
	EventTypeCatalogEvent        = "event-type-sg"
	EventTypeJobPrepared         = "job-status-prepared"
	EventTypeJobUnprepared       = "job-status-unprepared"
	EventTypeJobUnrecoverable    = "job-status-unrecoverable"
	EventTypeJobStarted          = "job-status-started"
	EventTypeJobFinished         = "job-status-finished"
	EventTypeJobEvent            = "job-event"
	EventTypeValidationRequest   = "profile-validation-request"
	EventTypeValidationCompleted = "profile-validation-completed"
)

// BuildInfo describes the running image, stamped at build time.
type BuildInfo struct {
	ID    string `json:"id"`
	Date  string `json:"date"`
	Hash  string `json:"hash"`
	Link  string `json:"link"`
	Image string `json:"image"`
}

// AugmentedEvent is a webhook event wrapped with provenance data.
type AugmentedEvent struct {
	ID             string         `json:"id"`
	EventBusID     string         `json:"eb_id,omitempty"`
	Source         string         `json:"source"`
	VerifiedSource bool           `json:"verified_source"`
	Proxy          BuildInfo      `json:"proxy"`
	Site           string         `json:"site,omitempty"`
	Event          map[string]any `json:"event"`
}

// UID renders a log-friendly identity for the event.
//
// When the event has travelled through the bus, the bus id prefix is kept
// so both hops can be correlated.
func (ae AugmentedEvent) UID() string {
	if ae.EventBusID == "" {
		return ae.ID
	}
	ebID := ae.EventBusID
	if 8 < len(ebID) {
		ebID = ebID[:8]
	}
	return fmt.Sprintf("[%s:%s][%s:%s]", EventBusSource, ebID, strings.ToUpper(ae.Source), ae.ID)
}

// EventType reads the catalog event type, "" when absent.
func (ae AugmentedEvent) EventType() string {
	eventType, _ := ae.Event["event_type"].(string)
	return eventType
}

// ProjectID reads the id of the catalog project the event belongs to.
func (ae AugmentedEvent) ProjectID() (int, bool) {
	project, ok := ae.Event["project"].(map[string]any)
	if !ok {
		return 0, false
	}
	// JSON numbers decode as float64.
	id, ok := project["id"].(float64)
	if !ok {
		return 0, false
	}
	return int(id), true
}

// NormalizedJobID derives the kubernetes-safe job name for the event.
//
// Spaces are dropped, dots and underscores become dashes, and everything
// is lowercased under the fixed "job-" prefix.
func (ae AugmentedEvent) NormalizedJobID() string {
	jobName := fmt.Sprintf("%s-%s", strings.ToLower(ae.Source), ae.ID)

	replacer := strings.NewReplacer(" ", "", ".", "-", "_", "-")
	jobName = strings.ToLower(replacer.Replace(jobName))

	return "job-" + jobName
}
