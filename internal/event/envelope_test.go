package event

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewEnvelopeCarriesCorrelationID(t *testing.T) {
	env, err := New("payment-service", "corr-123", PaymentCompleted{
		PaymentID:     "pay-1",
		AppointmentID: "appt-1",
		CaptureID:     "cap-1",
		AmountCents:   7900,
		Currency:      "USD",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.EventType != TypePaymentCompleted {
		t.Fatalf("event type = %s", env.EventType)
	}
	if env.EventID == "" {
		t.Fatal("event id must be set")
	}
	if env.SchemaVersion != SchemaVersion {
		t.Fatalf("schema version = %d", env.SchemaVersion)
	}
	if env.Metadata.Source != "payment-service" || env.Metadata.CorrelationID != "corr-123" {
		t.Fatalf("metadata = %+v", env.Metadata)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := New("inspection-service", "corr-9", InspectionCompleted{
		InspectionID:  "ins-1",
		AppointmentID: "appt-1",
		InspectorID:   "emp-7",
		Result:        "pass",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wire, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Envelope
	if err := json.Unmarshal(wire, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	payload, err := Decode(got)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ic, ok := payload.(*InspectionCompleted)
	if !ok {
		t.Fatalf("decoded %T, want *InspectionCompleted", payload)
	}
	if ic.Result != "pass" || ic.InspectionID != "ins-1" {
		t.Fatalf("payload = %+v", ic)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	env := Envelope{EventType: "document.scanned", Data: json.RawMessage(`{}`)}
	if _, err := Decode(env); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestDecodeEveryKnownKind(t *testing.T) {
	payloads := []Payload{
		AppointmentCreated{AppointmentID: "a"},
		AppointmentConfirmed{AppointmentID: "a"},
		AppointmentCancelled{AppointmentID: "a"},
		PaymentCompleted{PaymentID: "p"},
		PaymentFailed{PaymentID: "p"},
		InspectionStarted{InspectionID: "i"},
		InspectionCompleted{InspectionID: "i"},
		CertificateGenerated{CertificateID: "c"},
		InvoiceCreated{InvoiceID: "v"},
	}
	for _, p := range payloads {
		env, err := New("test", "corr", p)
		if err != nil {
			t.Fatalf("%s: new: %v", p.Kind(), err)
		}
		decoded, err := Decode(env)
		if err != nil {
			t.Fatalf("%s: decode: %v", p.Kind(), err)
		}
		if decoded.Kind() != p.Kind() {
			t.Fatalf("decoded kind %s, want %s", decoded.Kind(), p.Kind())
		}
	}
}
