package ibeacon

import (
	"context"
	"testing"

	"github.com/hearth-home/hearth/internal/flow"
	"github.com/hearth-home/hearth/internal/integration"
)

func TestFlow_SingleInstance(t *testing.T) {
	exists := false
	host := &integration.Host{
		HasEntries: func(domain string) bool {
			return domain == DomainName && exists
		},
	}
	handler := New().FlowHandler(host)
	ctx := context.Background()

	// No entry yet: the confirm form shows and completes.
	result := handler.Begin(ctx)
	if result.Type != flow.ResultShowForm || result.Form == nil || result.Form.StepID != "confirm" {
		t.Fatalf("Begin() = %+v, want confirm form", result)
	}
	result = handler.Handle(ctx, "confirm", nil)
	if result.Type != flow.ResultCreateEntry || result.UniqueID != DomainName {
		t.Fatalf("Handle() = %+v, want entry with unique id %q", result, DomainName)
	}

	// With an entry present a second flow aborts up front.
	exists = true
	result = handler.Begin(ctx)
	if result.Type != flow.ResultAbort || result.Reason != "single_instance_allowed" {
		t.Errorf("Begin() = %+v, want abort single_instance_allowed", result)
	}
}
