package domain

import "testing"

func TestValidName(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"cluster-one", true},
		{"_leading_underscore", true},
		{"a", true},
		{"", false},
		{"1starts-with-digit", false},
		{"has a space", false},
		{"has.dot", false},
	}
	for _, c := range cases {
		if got := ValidName(c.name); got != c.want {
			t.Errorf("ValidName(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestValidNameLengthBoundary(t *testing.T) {
	exact := make([]byte, 253)
	for i := range exact {
		exact[i] = 'a'
	}
	if !ValidName(string(exact)) {
		t.Error("253-char name must be valid")
	}
	tooLong := append(exact, 'a')
	if ValidName(string(tooLong)) {
		t.Error("254-char name must be rejected")
	}
}

func TestNewIDAndValidID(t *testing.T) {
	id := NewID()
	if !ValidID(id) {
		t.Errorf("NewID() produced an invalid id: %q", id)
	}
	if ValidID("not-a-uuid") {
		t.Error("ValidID must reject non-UUID strings")
	}
	if ValidID("") {
		t.Error("ValidID must reject the empty string")
	}
}

func TestReservedNames(t *testing.T) {
	if !IsReservedClusterName(DefaultGatewayClusterName) {
		t.Error("default gateway cluster name must be reserved")
	}
	if IsReservedClusterName("some-other-cluster") {
		t.Error("an arbitrary cluster name must not be reserved")
	}
	if !IsReservedListenerName(DefaultGatewayListenerName) {
		t.Error("default gateway listener name must be reserved")
	}
	if IsReservedListenerName("some-other-listener") {
		t.Error("an arbitrary listener name must not be reserved")
	}
}
