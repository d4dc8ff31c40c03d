package mypublisher

import (
	"encoding/json"

	"github.com/sweetoven/bakeshop/lib/myevents"
	"github.com/sweetoven/bakeshop/lib/mytime"
)

// CreatePubsubMessage composes the push-subscription payload that Cloud Pub/Sub
// would deliver for the given event. For use in tests of event subscribers.
func CreatePubsubMessage(topic string, event myevents.Event) string {
	eventBytes, _ := json.Marshal(event)
	envelope := myevents.EventEnvelope{
		UID:           "123",
		CreatedAt:     mytime.ExampleTime,
		Topic:         topic,
		AggregateUID:  event.GetAggregateName(),
		EventTypeName: event.GetEventTypeName(),
		EventPayload:  string(eventBytes),
	}
	envelopeBytes, _ := json.Marshal(envelope)

	req := myevents.PushRequest{
		Message: myevents.PushMessage{
			Data: envelopeBytes,
		},
		Subscription: topic,
	}

	reqBytes, _ := json.Marshal(req)

	return string(reqBytes)
}
