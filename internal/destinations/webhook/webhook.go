// Package webhook is the builtin generic webhook destination. It
// forwards mapped payloads to a caller-configured endpoint and doubles
// as the reference for how partner integrations declare themselves.
package webhook

import (
	"context"
	"net/http"
	"time"

	"github.com/relayforge/destinations/internal/destination"
	"github.com/relayforge/destinations/internal/domain"
	"github.com/relayforge/destinations/internal/fieldschema"
	"github.com/relayforge/destinations/internal/reqconf"
)

// Register builds the webhook destination and adds it to the registry.
func Register(registry *destination.Registry, opts destination.BuildOptions) error {
	dest, err := destination.Build(Definition(), opts)
	if err != nil {
		return err
	}
	return registry.Register(dest)
}

// Definition declares the webhook destination.
func Definition() destination.Definition {
	return destination.Definition{
		Slug:        "webhook",
		Title:       "Webhook",
		Description: "Send events to any HTTP endpoint.",
		SettingsFields: []fieldschema.Field{
			{
				Key:         "endpoint",
				Type:        fieldschema.TypeString,
				Label:       "Endpoint",
				Description: "URL events are delivered to.",
				Required:    true,
				Placeholder: "https://example.com/hooks/events",
			},
			{
				Key:         "apiKey",
				Type:        fieldschema.TypePassword,
				Label:       "API Key",
				Description: "Sent as a bearer token on every request.",
				Required:    true,
			},
		},
		Extensions: []reqconf.Extension{baseURL, authHeaders},
		Actions: map[string]destination.ActionDefinition{
			"send":          sendAction(),
			"sendToChannel": sendToChannelAction(),
		},
		TestAuthentication: func(ctx context.Context, req *reqconf.Request, in *domain.ExecuteInput) (any, error) {
			resp, err := req.Get(ctx, "/ping")
			if err != nil {
				return nil, err
			}
			return resp.Value(), nil
		},
	}
}

func baseURL(in *domain.ExecuteInput) reqconf.Config {
	endpoint, _ := in.Settings["endpoint"].(string)
	return reqconf.Config{BaseURL: endpoint, Timeout: 15 * time.Second}
}

func authHeaders(in *domain.ExecuteInput) reqconf.Config {
	key, _ := in.Settings["apiKey"].(string)
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+key)
	h.Set("User-Agent", "relayforge-destinations/1.0")
	return reqconf.Config{Headers: h}
}

func sendAction() destination.ActionDefinition {
	return destination.ActionDefinition{
		Title:               "Send",
		Description:         "Deliver the mapped payload as-is.",
		DefaultSubscription: `type exists`,
		Fields: []fieldschema.Field{
			{Key: "eventName", Type: fieldschema.TypeString, Label: "Event Name", Required: true},
			{Key: "properties", Type: fieldschema.TypeObject, Label: "Properties"},
			{Key: "timestamp", Type: fieldschema.TypeDatetime, Label: "Timestamp", AllowNull: true},
		},
		Perform: func(ctx context.Context, req *reqconf.Request, in *domain.ExecuteInput) (any, error) {
			resp, err := req.Post(ctx, "", in.Payload)
			if err != nil {
				return nil, err
			}
			return resp.Value(), nil
		},
	}
}

// sendToChannelAction resolves a channel name to its ID through the
// cached lookup step, then delivers to that channel.
func sendToChannelAction() destination.ActionDefinition {
	return destination.ActionDefinition{
		Title:               "Send to Channel",
		Description:         "Deliver the payload to a named channel.",
		DefaultSubscription: `type = "track"`,
		Fields: []fieldschema.Field{
			{Key: "eventName", Type: fieldschema.TypeString, Label: "Event Name", Required: true},
			{Key: "channel", Type: fieldschema.TypeString, Label: "Channel", Required: true, Dynamic: true},
		},
		Cached: []destination.CachedLookup{
			{
				Name: "resolve channel",
				TTL:  5 * time.Minute,
				Key: func(in *domain.ExecuteInput) string {
					name, _ := in.Payload["channel"].(string)
					return name
				},
				Value: func(ctx context.Context, req *reqconf.Request, in *domain.ExecuteInput) (any, error) {
					name, _ := in.Payload["channel"].(string)
					resp, err := req.Get(ctx, "/channels?name="+name)
					if err != nil {
						return nil, err
					}
					var body struct {
						ID string `json:"id"`
					}
					if err := resp.JSON(&body); err != nil {
						return nil, err
					}
					return body.ID, nil
				},
				ResultField: "channelID",
			},
		},
		Perform: func(ctx context.Context, req *reqconf.Request, in *domain.ExecuteInput) (any, error) {
			id, _ := in.Lookup("channelID")
			body := map[string]any{
				"channelId": id,
				"payload":   in.Payload,
			}
			resp, err := req.Post(ctx, "/channels/send", body)
			if err != nil {
				return nil, err
			}
			return resp.Value(), nil
		},
		Autocomplete: map[string]destination.AutocompleteFunc{
			"channel": func(ctx context.Context, req *reqconf.Request, in *domain.ExecuteInput) ([]destination.AutocompleteItem, error) {
				resp, err := req.Get(ctx, "/channels")
				if err != nil {
					return nil, err
				}
				var body struct {
					Channels []struct {
						ID   string `json:"id"`
						Name string `json:"name"`
					} `json:"channels"`
				}
				if err := resp.JSON(&body); err != nil {
					return nil, err
				}
				items := make([]destination.AutocompleteItem, 0, len(body.Channels))
				for _, ch := range body.Channels {
					items = append(items, destination.AutocompleteItem{Label: ch.Name, Value: ch.ID})
				}
				return items, nil
			},
		},
	}
}
