package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/propad/propad_wallet/internal/actor"
	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/audit"
	"github.com/propad/propad_wallet/internal/ledger"
	"github.com/propad/propad_wallet/internal/logging"
)

func TestValidateDetailsPerMethod(t *testing.T) {
	cases := []struct {
		method  ledger.Method
		details map[string]string
		ok      bool
	}{
		{ledger.MethodBank, map[string]string{"bankName": "CBZ", "accountNumber": "123", "accountName": "T. Moyo"}, true},
		{ledger.MethodBank, map[string]string{"bankName": "CBZ", "accountNumber": "123"}, false},
		{ledger.MethodEcocash, map[string]string{"mobileNumber": "+263771234567"}, true},
		{ledger.MethodMobileMoney, map[string]string{}, false},
		{ledger.MethodCash, nil, true},
		{ledger.Method("PIGEON"), nil, false},
	}
	for _, tc := range cases {
		err := ValidateDetails(tc.method, tc.details)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.method, err)
		}
		if !tc.ok && apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("%s: expected validation error, got %v", tc.method, err)
		}
	}
}

func TestCreateAndVerifyAccount(t *testing.T) {
	store := ledger.NewInMemory()
	sink := audit.NewMemorySink()
	svc := NewService(store, audit.NewRecorder(sink, logging.Discard()), logging.Discard())
	ctx := context.Background()
	owner := actor.Actor{UserID: "u1", Role: actor.RoleAgent}

	account, err := svc.Create(ctx, owner, CreateInput{Type: ledger.MethodEcocash, DisplayName: "My Ecocash", Details: map[string]string{"mobileNumber": "0771"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if account.VerifiedAt != nil {
		t.Fatalf("new accounts must start unverified")
	}

	if _, err := svc.Verify(ctx, owner, account.ID, true); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected owner verification to be forbidden, got %v", err)
	}

	verifier := actor.Actor{UserID: "v1", Role: actor.RoleVerifier}
	verified, err := svc.Verify(ctx, verifier, account.ID, true)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.VerifiedAt == nil {
		t.Fatalf("expected verified timestamp")
	}

	list, err := svc.List(ctx, owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].VerifiedAt == nil {
		t.Fatalf("expected one verified account, got %+v", list)
	}
	if got := sink.Actions(); len(got) != 2 {
		t.Fatalf("expected create and verify audit entries, got %v", got)
	}
}

func TestVerifyUnknownAccount(t *testing.T) {
	svc := NewService(ledger.NewInMemory(), nil, nil)
	admin := actor.Actor{UserID: "a", Role: actor.RoleAdmin}
	if _, err := svc.Verify(context.Background(), admin, "missing", true); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
