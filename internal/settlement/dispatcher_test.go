package settlement

import (
	"context"
	"strings"
	"testing"

	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/ledger"
)

func TestDefaultDispatcherRoutesMethods(t *testing.T) {
	d := DefaultDispatcher()
	cases := map[ledger.Method]string{
		ledger.MethodEcocash:      "mobile_money",
		ledger.MethodOneMoney:     "mobile_money",
		ledger.MethodMobileMoney:  "mobile_money",
		ledger.MethodBank:         "bank",
		ledger.MethodBankTransfer: "bank",
		ledger.MethodZipit:        "bank",
		ledger.MethodCash:         "manual",
		ledger.MethodOther:        "manual",
	}
	for method, want := range cases {
		p, err := d.Resolve(method)
		if err != nil {
			t.Fatalf("%s: %v", method, err)
		}
		if p.Name() != want {
			t.Fatalf("%s: expected %s, got %s", method, want, p.Name())
		}
	}
	if _, err := NewDispatcher().Resolve(ledger.MethodCash); apperr.CodeOf(err) != apperr.CodeNoProvider {
		t.Fatalf("expected NO_PROVIDER, got %v", err)
	}
}

func TestProvidersRequireRecipientDetails(t *testing.T) {
	ctx := context.Background()
	if _, err := (MobileMoneyProvider{}).Process(ctx, Instruction{Method: ledger.MethodEcocash}); err == nil || !strings.Contains(err.Error(), "mobileNumber") {
		t.Fatalf("expected missing mobileNumber, got %v", err)
	}
	if _, err := (BankProvider{}).Process(ctx, Instruction{Recipient: map[string]string{"bankName": "CBZ"}}); err == nil || !strings.Contains(err.Error(), "accountNumber") {
		t.Fatalf("expected missing accountNumber, got %v", err)
	}
	res, err := (BankProvider{}).Process(ctx, Instruction{Reference: "ref-1", Recipient: map[string]string{"bankName": "CBZ", "accountNumber": "001"}})
	if err != nil {
		t.Fatalf("bank: %v", err)
	}
	if res.Status != ResultPending || !strings.HasPrefix(res.ProviderRef, "BK-") {
		t.Fatalf("unexpected bank result %+v", res)
	}
}
