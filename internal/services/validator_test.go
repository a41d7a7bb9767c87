package services

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestNewValidator_CompilesEverySchema(t *testing.T) {
	v := newTestValidator(t)

	for _, name := range []string{
		SchemaRegister, SchemaLogin, SchemaUpdateSettings, SchemaCreateTask, SchemaSubmitWork,
		SchemaRequestWithdrawal, SchemaPurchaseCoins, SchemaChangeRole, SchemaSetCoins,
	} {
		if _, ok := v.schemas[name]; !ok {
			t.Errorf("missing schema %q", name)
		}
	}
}

func TestValidate_Valid(t *testing.T) {
	v := newTestValidator(t)

	cases := []struct {
		schema string
		body   string
	}{
		{SchemaRegister, `{"email":"w@example.com","password":"Secret1","full_name":"Wanda","role":"worker"}`},
		{SchemaLogin, `{"email":"w@example.com","password":"x"}`},
		{SchemaUpdateSettings, `{"avatar_url":null}`},
		{SchemaCreateTask, `{"title":"Like a post","description":"d","submission_info":"screenshot","payable_amount":10,"required_workers":5,"completion_date":"2026-03-17"}`},
		{SchemaSubmitWork, `{"submission_details":"done"}`},
		{SchemaRequestWithdrawal, `{"coins":200,"payment_system":"bkash","account_number":"017"}`},
		{SchemaPurchaseCoins, `{"package_id":"popular","payment_method":"stripe"}`},
		{SchemaPurchaseCoins, `{"custom_coins":75}`},
		{SchemaChangeRole, `{"role":"admin"}`},
		{SchemaSetCoins, `{"coins":0}`},
	}
	for _, tc := range cases {
		t.Run(tc.schema, func(t *testing.T) {
			if err := v.Validate(tc.schema, []byte(tc.body)); err != nil {
				t.Fatalf("expected valid body, got: %v", err)
			}
		})
	}
}

func TestValidate_Invalid(t *testing.T) {
	v := newTestValidator(t)

	cases := []struct {
		name   string
		schema string
		body   string
	}{
		{"not json", SchemaLogin, `{"email":`},
		{"register admin", SchemaRegister, `{"email":"a@example.com","password":"Secret1","full_name":"A","role":"admin"}`},
		{"register bad email", SchemaRegister, `{"email":"nope","password":"Secret1","full_name":"A","role":"buyer"}`},
		{"short password", SchemaRegister, `{"email":"a@example.com","password":"abc","full_name":"A","role":"buyer"}`},
		{"fractional reward", SchemaCreateTask, `{"title":"t","description":"d","submission_info":"s","payable_amount":1.5,"required_workers":1,"completion_date":"2026-03-17"}`},
		{"zero slots", SchemaCreateTask, `{"title":"t","description":"d","submission_info":"s","payable_amount":1,"required_workers":0,"completion_date":"2026-03-17"}`},
		{"bad date", SchemaCreateTask, `{"title":"t","description":"d","submission_info":"s","payable_amount":1,"required_workers":1,"completion_date":"next week"}`},
		{"unknown field", SchemaSubmitWork, `{"submission_details":"x","extra":1}`},
		{"both package and custom", SchemaPurchaseCoins, `{"package_id":"pro","custom_coins":60}`},
		{"neither package nor custom", SchemaPurchaseCoins, `{"payment_method":"card"}`},
		{"oversized custom purchase", SchemaPurchaseCoins, `{"custom_coins":300000000000}`},
		{"negative coins", SchemaSetCoins, `{"coins":-5}`},
		{"empty settings", SchemaUpdateSettings, `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.schema, []byte(tc.body))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got: %v", err)
			}
		})
	}
}

func TestValidate_NamesFailingField(t *testing.T) {
	v := newTestValidator(t)

	err := v.Validate(SchemaRequestWithdrawal, []byte(`{"coins":"many","payment_system":"bkash","account_number":"1"}`))
	if err == nil || !strings.Contains(err.Error(), "coins") {
		t.Fatalf("expected error naming coins, got: %v", err)
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	v := newTestValidator(t)

	err := v.Validate("nope", []byte(`{}`))
	if err == nil || errors.Is(err, ErrValidation) {
		t.Fatalf("unknown schema should be a programming error, got: %v", err)
	}
}

func TestNewValidator_RejectsBrokenSchema(t *testing.T) {
	fsys := fstest.MapFS{
		"schemas/broken.json": {Data: []byte(`{"type": 12}`)},
	}
	if _, err := newValidatorFS(fsys, "schemas"); err == nil {
		t.Fatal("expected compile error for broken schema")
	}
}

func TestDecode_FillsDestination(t *testing.T) {
	v := newTestValidator(t)

	var req struct {
		Coins         int64  `json:"coins"`
		PaymentSystem string `json:"payment_system"`
	}
	body := strings.NewReader(`{"coins":250,"payment_system":"nagad","account_number":"018"}`)
	if err := v.Decode(SchemaRequestWithdrawal, body, &req); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if req.Coins != 250 || req.PaymentSystem != "nagad" {
		t.Errorf("got %+v", req)
	}
}

func TestDecode_RejectsOversizedBody(t *testing.T) {
	v := newTestValidator(t)

	body := strings.NewReader(`{"submission_details":"` + strings.Repeat("x", maxBodyBytes) + `"}`)
	var dst map[string]any
	if err := v.Decode(SchemaSubmitWork, body, &dst); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
