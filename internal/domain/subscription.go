package domain

import (
	"encoding/json"
	"fmt"

	"github.com/relayforge/destinations/internal/predicate"
)

// Subscription pairs a predicate over incoming events with an action
// and an optional payload mapping template. The predicate is decoded
// into its canonical form here, at the boundary; nothing downstream
// branches on the raw encoding.
type Subscription struct {
	Predicate predicate.Node
	Action    string
	Mapping   map[string]any
}

type rawSubscription struct {
	Predicate json.RawMessage `json:"predicate"`
	Action    string          `json:"action"`
	Mapping   map[string]any  `json:"mapping"`
}

// ParseSubscriptions extracts and decodes settings.subscriptions, which
// callers may supply either as a JSON-encoded string or as an
// already-parsed array. It returns the decoded subscriptions in
// declaration order plus a copy of the settings with the subscriptions
// key stripped (the destination-level settings handed to actions).
func ParseSubscriptions(settings Settings) ([]Subscription, Settings, error) {
	raw, ok := settings["subscriptions"]
	if !ok {
		return nil, nil, NewError(ErrorKindSubscriptionParse, "settings.subscriptions is missing")
	}

	var encoded []byte
	switch v := raw.(type) {
	case string:
		encoded = []byte(v)
	case []any:
		var err error
		encoded, err = json.Marshal(v)
		if err != nil {
			return nil, nil, NewError(ErrorKindSubscriptionParse, "re-encode subscriptions").WithCause(err)
		}
	default:
		return nil, nil, NewError(ErrorKindSubscriptionParse,
			fmt.Sprintf("settings.subscriptions must be a JSON string or an array, got %T", raw))
	}

	var raws []rawSubscription
	if err := json.Unmarshal(encoded, &raws); err != nil {
		return nil, nil, NewError(ErrorKindSubscriptionParse, "decode subscriptions").WithCause(err)
	}

	subs := make([]Subscription, len(raws))
	for i, rs := range raws {
		if rs.Action == "" {
			return nil, nil, NewError(ErrorKindSubscriptionParse,
				fmt.Sprintf("subscription %d has no action", i))
		}
		if len(rs.Predicate) == 0 {
			return nil, nil, NewError(ErrorKindSubscriptionParse,
				fmt.Sprintf("subscription %d has no predicate", i))
		}
		node, err := predicate.Parse(rs.Predicate)
		if err != nil {
			return nil, nil, NewError(ErrorKindPredicateParse,
				fmt.Sprintf("subscription %d", i)).WithCause(err)
		}
		subs[i] = Subscription{Predicate: node, Action: rs.Action, Mapping: rs.Mapping}
	}

	stripped := make(Settings, len(settings)-1)
	for k, v := range settings {
		if k == "subscriptions" {
			continue
		}
		stripped[k] = v
	}
	return subs, stripped, nil
}
