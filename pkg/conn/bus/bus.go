package bus

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	xerrors "github.com/spinvfx/spinfab/pkg/errors"
)

// Publisher puts one event onto the internal bus.
//
// detail is marshalled to JSON and travels as the event detail.
type Publisher interface {
	Publish(ctx context.Context, detailType string, detail any) error
}

type eventBridgePublisher struct {
	client  *eventbridge.Client
	busName string
	source  string
}

// NewEventBridgePublisher builds a Publisher over an AWS EventBridge bus.
//
// source names this service as the event source. Credentials and region
// come from the ambient AWS configuration.
func NewEventBridgePublisher(ctx context.Context, busName string, source string) (Publisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	return &eventBridgePublisher{
		client:  eventbridge.NewFromConfig(cfg),
		busName: busName,
		source:  source,
	}, nil
}

func (p *eventBridgePublisher) Publish(ctx context.Context, detailType string, detail any) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return xerrors.Wrap(err)
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{
			{
				EventBusName: aws.String(p.busName),
				Source:       aws.String(p.source),
				DetailType:   aws.String(detailType),
				Detail:       aws.String(string(payload)),
			},
		},
	})
	if err != nil {
		return xerrors.Wrap(err)
	}
	if out.FailedEntryCount != 0 {
		for _, entry := range out.Entries {
			if entry.ErrorCode != nil {
				return xerrors.New(
					"bus rejected event " + detailType + ": " + *entry.ErrorCode,
				)
			}
		}
		return xerrors.New("bus rejected event " + detailType)
	}
	return nil
}

// Envelope is the wire shape of a bus event arriving over HTTP.
//
// EventBridge API destinations deliver events in this shape to the
// /on-event endpoints of subscribed services.
type Envelope struct {
	ID         string          `json:"id"`
	Source     string          `json:"source"`
	DetailType string          `json:"detail-type"`
	Detail     json.RawMessage `json:"detail"`
}

// DecodeDetail unmarshals the event detail.
func (e Envelope) DecodeDetail(into any) error {
	if len(e.Detail) == 0 {
		return xerrors.New("the envelope carries no detail")
	}
	if err := json.Unmarshal(e.Detail, into); err != nil {
		return xerrors.Wrap(err)
	}
	return nil
}
