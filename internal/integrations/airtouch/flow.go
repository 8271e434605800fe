package airtouch

import (
	"context"
	"fmt"

	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/flow"
)

// flowHandler collects the console address and validates it by
// connecting and reading the console identity.
type flowHandler struct{}

func hostForm() flow.Form {
	return flow.Form{
		StepID: "user",
		Fields: []flow.Field{
			{Name: "host", Label: "Console address", Kind: flow.KindString, Required: true},
			{Name: "port", Label: "Port", Kind: flow.KindInt, Default: DefaultPort},
		},
	}
}

func (*flowHandler) Begin(_ context.Context) flow.Result {
	return flow.ShowForm(hostForm())
}

func (*flowHandler) Handle(ctx context.Context, stepID string, input map[string]any) flow.Result {
	if stepID != "user" {
		return flow.Abort("unknown_step")
	}

	host, _ := input["host"].(string)
	if host == "" {
		return flow.ShowFormWithErrors(hostForm(), map[string]string{"host": "required"})
	}
	port := DefaultPort
	if p, ok := input["port"].(float64); ok && p > 0 {
		port = int(p)
	}

	client := NewClient(host, port)
	if err := client.Connect(ctx); err != nil {
		return flow.ShowFormWithErrors(hostForm(), map[string]string{"base": "cannot_connect"})
	}
	defer client.Close() //nolint:errcheck // Validation-only connection

	info, err := client.Info(ctx)
	if err != nil {
		return flow.ShowFormWithErrors(hostForm(), map[string]string{"base": "cannot_connect"})
	}

	title := info.Name
	if title == "" {
		title = fmt.Sprintf("AirTouch %s", info.ConsoleID)
	}

	// The console id keys the entry; reconfiguring the same console
	// aborts at entry creation with already_configured.
	return flow.CreateEntry(title, info.ConsoleID, configentry.Data{
		"host": host,
		"port": port,
	})
}
