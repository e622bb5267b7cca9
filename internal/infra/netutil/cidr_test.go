package netutil

import "testing"

func TestParseCIDRs(t *testing.T) {
	out, invalid := ParseCIDRs([]string{"127.0.0.0/8", " ::1/128 ", "10.1.2.3", "10.9.9.9/16", "nope", ""})
	if len(out) != 4 {
		t.Fatalf("expected 4 prefixes, got %v", out)
	}
	if out[2].String() != "10.1.2.3/32" {
		t.Fatalf("bare address should be a host prefix, got %s", out[2])
	}
	if out[3].String() != "10.9.0.0/16" {
		t.Fatalf("prefix should be masked, got %s", out[3])
	}
	if len(invalid) != 1 || invalid[0] != "nope" {
		t.Fatalf("unexpected invalid list %v", invalid)
	}
}
