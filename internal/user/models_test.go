package user

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"sales", RoleSales, true},
		{"SALES", RoleSales, true},
		{"Manager", RoleManager, true},
		{"ADMIN", RoleAdmin, true},
		{"admin", RoleAdmin, true},
		{"", "", false},
		{"superuser", "", false},
		{"sales ", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseRole(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseRole(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Test1234!"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	u := &User{PasswordHash: string(hash)}

	if !CheckPassword(u, "Test1234!") {
		t.Error("correct password should verify")
	}
	if CheckPassword(u, "wrong") {
		t.Error("wrong password should not verify")
	}
	if CheckPassword(u, "") {
		t.Error("empty password should not verify")
	}
}
