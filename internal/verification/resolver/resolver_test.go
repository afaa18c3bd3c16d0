package resolver

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	in := []string{
		`"gp-verify=abc123"`,
		"  gp-verify=def456  ",
		`" padded "`,
	}
	got := Normalize(in)
	want := []string{"gp-verify=abc123", "gp-verify=def456", "padded"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestMatches(t *testing.T) {
	token := "gp-verify=abc123"

	if !Matches(token, []string{"gp-verify=abc123"}) {
		t.Error("expected exact match")
	}
	if !Matches(token, []string{"v=spf1 ...", "provider-prefix gp-verify=abc123 suffix"}) {
		t.Error("expected substring match")
	}
	if Matches(token, []string{"gp-verify=other", "v=spf1"}) {
		t.Error("expected no match")
	}
	if Matches(token, nil) {
		t.Error("expected no match on empty answers")
	}
}
