package service

import (
	"regexp"
	"testing"
	"time"

	"github.com/roadworthy/inspection-platform/internal/model"
)

func TestSignDeterministic(t *testing.T) {
	secret := []byte("test-secret")
	issued := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	a := Sign(secret, "RW-2026-AB12CD34", "ins-1", issued)
	b := Sign(secret, "RW-2026-AB12CD34", "ins-1", issued)
	if a != b {
		t.Fatalf("same inputs produced different signatures: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestSignIgnoresTimeOfDay(t *testing.T) {
	secret := []byte("test-secret")
	morning := time.Date(2026, 3, 14, 0, 0, 1, 0, time.UTC)
	evening := time.Date(2026, 3, 14, 23, 59, 59, 0, time.UTC)

	if Sign(secret, "RW-2026-AB12CD34", "ins-1", morning) != Sign(secret, "RW-2026-AB12CD34", "ins-1", evening) {
		t.Fatal("signature should depend on the issue date, not the time of day")
	}
}

func TestSignVariesPerInput(t *testing.T) {
	secret := []byte("test-secret")
	issued := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	base := Sign(secret, "RW-2026-AB12CD34", "ins-1", issued)

	if Sign(secret, "RW-2026-AB12CD35", "ins-1", issued) == base {
		t.Fatal("different number should change the signature")
	}
	if Sign(secret, "RW-2026-AB12CD34", "ins-2", issued) == base {
		t.Fatal("different inspection should change the signature")
	}
	if Sign([]byte("other"), "RW-2026-AB12CD34", "ins-1", issued) == base {
		t.Fatal("different secret should change the signature")
	}
}

func TestCertificateNumberFormat(t *testing.T) {
	re := regexp.MustCompile(`^RW-2026-[0-9A-F]{8}$`)
	for i := 0; i < 20; i++ {
		n := newCertificateNumber(2026)
		if !re.MatchString(n) {
			t.Fatalf("bad certificate number %q", n)
		}
	}
}

func TestBuildInvoiceAppliesTax(t *testing.T) {
	p := &model.Payment{ID: "pay-1", AmountCents: 7900}
	inv := buildInvoice(p, 2026)

	if inv.PaymentID != "pay-1" {
		t.Fatalf("invoice bound to payment %q", inv.PaymentID)
	}
	if inv.TaxCents != 790 {
		t.Fatalf("expected 790 tax cents, got %d", inv.TaxCents)
	}
	if inv.TotalCents != 8690 {
		t.Fatalf("expected 8690 total cents, got %d", inv.TotalCents)
	}
	if inv.Status != model.InvoiceIssued {
		t.Fatalf("expected issued status, got %s", inv.Status)
	}
}
