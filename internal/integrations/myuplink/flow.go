package myuplink

import (
	"context"
	"errors"

	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/flow"
	"github.com/hearth-home/hearth/internal/integration"
)

// flowHandler collects API client credentials and validates them by
// listing the account's systems.
type flowHandler struct {
	host *integration.Host
}

func credentialsForm() flow.Form {
	return flow.Form{
		StepID: "user",
		Fields: []flow.Field{
			{Name: "client_id", Label: "Client ID", Kind: flow.KindString, Required: true},
			{Name: "client_secret", Label: "Client secret", Kind: flow.KindPassword, Required: true},
		},
	}
}

func (*flowHandler) Begin(_ context.Context) flow.Result {
	return flow.ShowForm(credentialsForm())
}

func (h *flowHandler) Handle(ctx context.Context, stepID string, input map[string]any) flow.Result {
	if stepID != "user" {
		return flow.Abort("unknown_step")
	}

	clientID, _ := input["client_id"].(string)
	clientSecret, _ := input["client_secret"].(string)
	errs := make(map[string]string)
	if clientID == "" {
		errs["client_id"] = "required"
	}
	if clientSecret == "" {
		errs["client_secret"] = "required"
	}
	if len(errs) > 0 {
		return flow.ShowFormWithErrors(credentialsForm(), errs)
	}

	client := NewClient(ctx, "", clientID, clientSecret, h.host.NewHTTPClient(httpTimeout))
	systems, err := client.Systems(ctx)
	if err != nil {
		if errors.Is(err, configentry.ErrAuthFailed) {
			return flow.ShowFormWithErrors(credentialsForm(), map[string]string{"base": "invalid_auth"})
		}
		return flow.ShowFormWithErrors(credentialsForm(), map[string]string{"base": "cannot_connect"})
	}
	if len(systems) == 0 {
		return flow.Abort("no_systems")
	}

	// The first system keys the entry; re-adding the same account
	// aborts at entry creation with already_configured.
	title := systems[0].Name
	if title == "" {
		title = "myUplink"
	}
	return flow.CreateEntry(title, systems[0].SystemID, configentry.Data{
		"client_id":     clientID,
		"client_secret": clientSecret,
	})
}
