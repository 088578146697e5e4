package validation

import (
	"testing"

	"github.com/vitalsync/vitalsync/internal/types"
)

func TestValidateRequired_Empty(t *testing.T) {
	err := ValidateRequired("baseEntityId", "")
	if err == nil {
		t.Fatal("expected error for empty value")
	}
	if err.Field != "baseEntityId" {
		t.Errorf("unexpected field: %s", err.Field)
	}
}

func TestValidateRequired_WhitespaceOnly(t *testing.T) {
	if err := ValidateRequired("eventType", "   "); err == nil {
		t.Error("expected error for whitespace-only value")
	}
}

func TestValidateRequired_Present(t *testing.T) {
	if err := ValidateRequired("eventType", "Visit"); err != nil {
		t.Errorf("expected no error, got %+v", err)
	}
}

func TestCollector_AccumulatesErrors(t *testing.T) {
	var c Collector
	c.Add(ValidateRequired("a", ""))
	c.Add(ValidateRequired("b", "present"))
	c.Add(ValidateRequired("c", ""))

	if !c.HasErrors() {
		t.Fatal("expected errors")
	}
	if len(c.Errors()) != 2 {
		t.Errorf("expected 2 errors, got %d", len(c.Errors()))
	}
}

func TestValidateEvent_Valid(t *testing.T) {
	event := &types.Event{
		BaseEntityID: "c1",
		EventType:    "Visit",
		ProviderID:   "p1",
	}
	if errs := ValidateEvent(event); len(errs) > 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidateEvent_MissingFields(t *testing.T) {
	errs := ValidateEvent(&types.Event{})
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d", len(errs))
	}
	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, want := range []string{"baseEntityId", "eventType", "providerId"} {
		if !fields[want] {
			t.Errorf("expected error for %s", want)
		}
	}
}

func TestValidateClient_Valid(t *testing.T) {
	if errs := ValidateClient(&types.Client{BaseEntityID: "c1"}); len(errs) > 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidateClient_MissingBaseEntityID(t *testing.T) {
	errs := ValidateClient(&types.Client{FirstName: "Asha"})
	if len(errs) != 1 || errs[0].Field != "baseEntityId" {
		t.Errorf("expected baseEntityId error, got %v", errs)
	}
}
