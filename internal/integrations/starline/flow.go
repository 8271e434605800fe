package starline

import (
	"context"
	"errors"
	"fmt"

	"github.com/hearth-home/hearth/internal/configentry"
	"github.com/hearth-home/hearth/internal/flow"
	"github.com/hearth-home/hearth/internal/integration"
)

// flowHandler collects developer API credentials and validates them
// with a login round trip before creating the entry.
type flowHandler struct {
	host *integration.Host
}

func credentialsForm() flow.Form {
	return flow.Form{
		StepID: "user",
		Fields: []flow.Field{
			{Name: "app_id", Label: "Application ID", Kind: flow.KindString, Required: true},
			{Name: "app_secret", Label: "Application secret", Kind: flow.KindPassword, Required: true},
			{Name: "username", Label: "Username", Kind: flow.KindString, Required: true},
			{Name: "password", Label: "Password", Kind: flow.KindPassword, Required: true},
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

	creds := Credentials{
		AppID:     stringInput(input, "app_id"),
		AppSecret: stringInput(input, "app_secret"),
		Username:  stringInput(input, "username"),
		Password:  stringInput(input, "password"),
	}
	if errs := missingFields(creds); len(errs) > 0 {
		return flow.ShowFormWithErrors(credentialsForm(), errs)
	}

	client := NewClient("", h.host.NewHTTPClient(httpTimeout), creds)
	session, err := client.Login(ctx)
	if err != nil {
		if errors.Is(err, configentry.ErrAuthFailed) {
			return flow.ShowFormWithErrors(credentialsForm(), map[string]string{"base": "invalid_auth"})
		}
		return flow.ShowFormWithErrors(credentialsForm(), map[string]string{"base": "cannot_connect"})
	}

	// The cloud account keys the entry; adding the same account twice
	// aborts at entry creation with already_configured.
	title := fmt.Sprintf("StarLine (%s)", creds.Username)
	return flow.CreateEntry(title, session.UserID, configentry.Data{
		"app_id":     creds.AppID,
		"app_secret": creds.AppSecret,
		"username":   creds.Username,
		"password":   creds.Password,
	})
}

func stringInput(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}

func missingFields(creds Credentials) map[string]string {
	errs := make(map[string]string)
	if creds.AppID == "" {
		errs["app_id"] = "required"
	}
	if creds.AppSecret == "" {
		errs["app_secret"] = "required"
	}
	if creds.Username == "" {
		errs["username"] = "required"
	}
	if creds.Password == "" {
		errs["password"] = "required"
	}
	return errs
}
