package wmspro

import (
	"context"

	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/flow"
	"github.com/hearth-home/hearth/internal/integration"
)

// flowHandler collects the hub address and validates it with a ping
// and a configuration fetch.
type flowHandler struct {
	host *integration.Host
}

func hostForm() flow.Form {
	return flow.Form{
		StepID: "user",
		Fields: []flow.Field{
			{Name: "host", Label: "Hub address", Kind: flow.KindString, Required: true},
		},
	}
}

func (*flowHandler) Begin(_ context.Context) flow.Result {
	return flow.ShowForm(hostForm())
}

func (h *flowHandler) Handle(ctx context.Context, stepID string, input map[string]any) flow.Result {
	if stepID != "user" {
		return flow.Abort("unknown_step")
	}

	hubHost, _ := input["host"].(string)
	if hubHost == "" {
		return flow.ShowFormWithErrors(hostForm(), map[string]string{"host": "required"})
	}

	client := NewClient(hubHost, h.host.NewHTTPClient(httpTimeout))
	if err := client.Ping(ctx); err != nil {
		return flow.ShowFormWithErrors(hostForm(), map[string]string{"base": "cannot_connect"})
	}
	cfg, err := client.Configuration(ctx)
	if err != nil {
		return flow.ShowFormWithErrors(hostForm(), map[string]string{"base": "cannot_connect"})
	}

	// The hub serial keys the entry; re-adding the same hub aborts at
	// entry creation with already_configured.
	uniqueID := cfg.SerialNumber
	if uniqueID == "" {
		uniqueID = hubHost
	}
	return flow.CreateEntry("WebControl pro", uniqueID, configentry.Data{
		"host": hubHost,
	})
}
