package helper

import (
	"strings"
	"testing"
)

func TestIsMoneyFormat(t *testing.T) {
	valid := []string{"0", "1", "100", "0.01", "99.9", "1000000", "123.45"}
	for _, s := range valid {
		if !IsMoneyFormat(s) {
			t.Fatalf("should be valid money: %q", s)
		}
	}

	invalid := []string{"", "-1", "1.234", "01", ".5", "1.", "abc", "1e3", "100,00", " "}
	for _, s := range invalid {
		if IsMoneyFormat(s) {
			t.Fatalf("should be invalid money: %q", s)
		}
	}
}

func TestIsValidUsername(t *testing.T) {
	valid := []string{"abc", "player_1", "A1B2C3", strings.Repeat("x", 32)}
	for _, s := range valid {
		if !IsValidUsername(s) {
			t.Fatalf("should be valid username: %q", s)
		}
	}

	invalid := []string{"", "ab", "with space", "名字", "a-b", strings.Repeat("x", 33)}
	for _, s := range invalid {
		if IsValidUsername(s) {
			t.Fatalf("should be invalid username: %q", s)
		}
	}
}

func TestValidateBet(t *testing.T) {
	ok := BetParsed{Username: "alice", Password: "secret1", RoundId: 0, BetNumber: 7, BetAmount: "100", IdempotencyKey: "k-1"}
	if valid, msg := ValidateBet(&ok); !valid {
		t.Fatalf("expected valid: %s", msg)
	}

	cases := []BetParsed{
		{Password: "secret1", BetAmount: "100", IdempotencyKey: "k"},                            // 缺用户名
		{Username: "alice", BetAmount: "100", IdempotencyKey: "k"},                              // 缺口令
		{Username: "alice", Password: "s", BetAmount: "", IdempotencyKey: "k"},                  // 缺金额
		{Username: "alice", Password: "s", BetAmount: "100", IdempotencyKey: ""},                // 缺幂等键
		{Username: "alice", Password: "s", BetAmount: "1.234", IdempotencyKey: "k"},             // 金额格式
		{Username: "alice", Password: "s", BetAmount: "100", IdempotencyKey: "k", RoundId: -1},  // 负回合
		{Username: strings.Repeat("x", 33), Password: "s", BetAmount: "1", IdempotencyKey: "k"}, // 超长
	}
	for i, c := range cases {
		if valid, _ := ValidateBet(&c); valid {
			t.Fatalf("case %d should be invalid: %+v", i, c)
		}
	}
}

func TestValidateCredentials(t *testing.T) {
	ok := CredentialsParsed{Username: "bob_99", Password: "hunter22"}
	if valid, msg := ValidateCredentials(&ok); !valid {
		t.Fatalf("expected valid: %s", msg)
	}

	trimmed := CredentialsParsed{Username: "  carol  ", Password: "hunter22"}
	if valid, _ := ValidateCredentials(&trimmed); !valid {
		t.Fatal("username should be trimmed before validation")
	}
	if trimmed.Username != "carol" {
		t.Fatalf("username not trimmed: %q", trimmed.Username)
	}

	bad := []CredentialsParsed{
		{Username: "", Password: "hunter22"},
		{Username: "bob", Password: ""},
		{Username: "bob", Password: "short"},
		{Username: "b!", Password: "hunter22"},
	}
	for i, c := range bad {
		if valid, _ := ValidateCredentials(&c); valid {
			t.Fatalf("case %d should be invalid: %+v", i, c)
		}
	}
}
