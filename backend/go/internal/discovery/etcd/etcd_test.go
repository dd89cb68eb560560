package etcd

import "testing"

func TestServiceKey(t *testing.T) {
	if got := ServiceKey("friday-assistant", "10.0.0.5:8080"); got != "/friday-assistant/10.0.0.5:8080" {
		t.Fatalf("ServiceKey() = %q", got)
	}
}
