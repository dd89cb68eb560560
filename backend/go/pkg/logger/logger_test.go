package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestWithUserDoesNotMutateReceiver(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetFormatter(&logrus.JSONFormatter{})
	l := &Logger{entry: logrus.NewEntry(base).WithField("component", "test")}

	derived := l.WithUser("telegram", "u1").WithError(errors.New("boom"))
	derived.Info("derived")
	l.Info("base")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d", len(lines))
	}

	var first, second map[string]interface{}
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if err := json.Unmarshal(lines[1], &second); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if first["user_id"] != "u1" || first["platform"] != "telegram" {
		t.Errorf("derived entry missing user fields: %v", first)
	}
	if _, ok := first["error"]; !ok {
		t.Errorf("derived entry missing error field: %v", first)
	}
	if _, ok := second["user_id"]; ok {
		t.Errorf("base logger was mutated: %v", second)
	}
}

func TestWithNilErrorIsNoop(t *testing.T) {
	l := Discard()
	if got := l.WithError(nil); got != l {
		t.Error("WithError(nil) should return the receiver")
	}
}
