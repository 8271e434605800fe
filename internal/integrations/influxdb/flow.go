package influxdb

import (
	"context"
	"strings"

	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/flow"
	influx "github.com/hearth-home/hearth/internal/infrastructure/influxdb"
	"github.com/hearth-home/hearth/internal/integration"
)

// flowHandler collects the connection settings and validates them by
// connecting, which pings the server.
type flowHandler struct {
	host *integration.Host
}

func connectionForm() flow.Form {
	return flow.Form{
		StepID: "user",
		Fields: []flow.Field{
			{Name: "url", Label: "Server URL", Kind: flow.KindString, Required: true},
			{Name: "org", Label: "Organisation", Kind: flow.KindString, Required: true},
			{Name: "bucket", Label: "Bucket", Kind: flow.KindString, Required: true},
			{Name: "token", Label: "API token", Kind: flow.KindPassword, Required: true},
			{Name: "excluded_domains", Label: "Excluded domains (comma separated)", Kind: flow.KindString},
		},
	}
}

func (*flowHandler) Begin(_ context.Context) flow.Result {
	return flow.ShowForm(connectionForm())
}

func (h *flowHandler) Handle(_ context.Context, stepID string, input map[string]any) flow.Result {
	if stepID != "user" {
		return flow.Abort("unknown_step")
	}

	url, _ := input["url"].(string)
	org, _ := input["org"].(string)
	bucket, _ := input["bucket"].(string)
	token, _ := input["token"].(string)

	errs := make(map[string]string)
	for name, value := range map[string]string{"url": url, "org": org, "bucket": bucket, "token": token} {
		if value == "" {
			errs[name] = "required"
		}
	}
	if len(errs) > 0 {
		return flow.ShowFormWithErrors(connectionForm(), errs)
	}

	client, err := influx.Connect(influx.Options{URL: url, Token: token, Org: org, Bucket: bucket})
	if err != nil {
		return flow.ShowFormWithErrors(connectionForm(), map[string]string{"base": "cannot_connect"})
	}
	client.Close() //nolint:errcheck // Validation-only connection

	data := configentry.Data{
		"url":    url,
		"org":    org,
		"bucket": bucket,
		"token":  token,
	}
	if raw, _ := input["excluded_domains"].(string); raw != "" {
		var excluded []any
		for _, d := range strings.Split(raw, ",") {
			if d = strings.TrimSpace(d); d != "" {
				excluded = append(excluded, d)
			}
		}
		data["excluded_domains"] = excluded
	}

	// The server url keys the entry; one export per server.
	return flow.CreateEntry("InfluxDB export", url, data)
}
