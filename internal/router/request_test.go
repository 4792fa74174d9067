package router

import (
	"encoding/json"
	"testing"
)

func TestCanonicalID(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		want        string
		wantNumeric bool
		wantErr     bool
	}{
		{"string", `"req-1"`, "req-1", false, false},
		{"integer", `42`, "42", true, false},
		{"float", `1.5`, "1.5", true, false},
		{"large integer", `9007199254740993`, "9007199254740993", true, false},
		{"numeric-looking string", `"007"`, "007", false, false},
		{"empty string", `""`, "", false, true},
		{"missing", ``, "", false, true},
		{"null", `null`, "", false, true},
		{"object", `{"a":1}`, "", false, true},
		{"array", `[1]`, "", false, true},
		{"boolean", `true`, "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, numeric, err := CanonicalID(json.RawMessage(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("CanonicalID(%s) = %q, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("CanonicalID(%s) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("CanonicalID(%s) = %q, want %q", tt.raw, got, tt.want)
			}
			if numeric != tt.wantNumeric {
				t.Errorf("CanonicalID(%s) numeric = %v, want %v", tt.raw, numeric, tt.wantNumeric)
			}
		})
	}
}

func TestCanonicalID_StringNumberDistinct(t *testing.T) {
	s, _, err := CanonicalID(json.RawMessage(`"7"`))
	if err != nil {
		t.Fatalf("CanonicalID error: %v", err)
	}
	n, _, err := CanonicalID(json.RawMessage(`7`))
	if err != nil {
		t.Fatalf("CanonicalID error: %v", err)
	}
	// Both forms land on the same canonical key, so a response keyed
	// either way finds the pending entry.
	if s != n {
		t.Errorf("canonical forms differ: %q vs %q", s, n)
	}
}

func TestFormatID(t *testing.T) {
	tests := []struct {
		id      string
		numeric bool
		want    interface{}
	}{
		{"42", true, json.Number("42")},
		{"1.5", true, json.Number("1.5")},
		{"9007199254740993", true, json.Number("9007199254740993")},
		{"req-1", false, "req-1"},
		{"0x1a", false, "0x1a"},
		// String ids echo verbatim even when they parse as numbers.
		{"007", false, "007"},
		{"1e3", false, "1e3"},
		{"12345678901234567890", false, "12345678901234567890"},
	}
	for _, tt := range tests {
		if got := FormatID(tt.id, tt.numeric); got != tt.want {
			t.Errorf("FormatID(%q, %v) = %v (%T), want %v (%T)", tt.id, tt.numeric, got, got, tt.want, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		method string
		want   Class
		known  bool
	}{
		{MethodChainID, ClassPublic, true},
		{MethodSupportedChains, ClassPublic, true},
		{MethodAccounts, ClassIdentity, true},
		{MethodConnect, ClassPrivileged, true},
		{MethodSignMessage, ClassPrivileged, true},
		{MethodSignTransaction, ClassPrivileged, true},
		{MethodSendTransaction, ClassPrivileged, true},
		{MethodSignTypedData, ClassPrivileged, true},
		{MethodWatchAsset, ClassPrivileged, true},
		{MethodRequestPermission, ClassPrivileged, true},
		{MethodRevokePermission, ClassPrivileged, true},
		{"eth_call", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, known := Classify(tt.method)
		if known != tt.known {
			t.Errorf("Classify(%q) known = %v, want %v", tt.method, known, tt.known)
			continue
		}
		if known && got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.method, got, tt.want)
		}
	}
}
