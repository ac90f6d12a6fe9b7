package util

import (
	"reflect"
	"testing"
	"time"
)

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name  string
		value string
		set   bool
		def   bool
		want  bool
	}{
		{name: "unset uses default", def: true, want: true},
		{name: "true", value: "true", set: true, want: true},
		{name: "false", value: "false", set: true, def: true, want: false},
		{name: "garbage uses default", value: "yes", set: true, def: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv("STORYWEB_TEST_BOOL", tt.value)
			}
			if got := GetEnvBool("STORYWEB_TEST_BOOL", tt.def); got != tt.want {
				t.Fatalf("unexpected value: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("STORYWEB_TEST_INT", "250")
	if got := GetEnvInt("STORYWEB_TEST_INT", 10); got != 250 {
		t.Fatalf("expected 250, got %d", got)
	}
	t.Setenv("STORYWEB_TEST_INT", "many")
	if got := GetEnvInt("STORYWEB_TEST_INT", 10); got != 10 {
		t.Fatalf("expected default 10, got %d", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("STORYWEB_TEST_DURATION", "90s")
	if got := GetEnvDuration("STORYWEB_TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
	t.Setenv("STORYWEB_TEST_DURATION", "soon")
	if got := GetEnvDuration("STORYWEB_TEST_DURATION", time.Minute); got != time.Minute {
		t.Fatalf("expected default, got %v", got)
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("STORYWEB_TEST_LIST", " OWNER, ,MANAGER,")
	got := GetEnvList("STORYWEB_TEST_LIST")
	want := []string{"OWNER", "MANAGER"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected list: got %v, want %v", got, want)
	}
}
