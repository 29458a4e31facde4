package tmdb

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestError_PayloadJSON(t *testing.T) {
	e := newError("details", Attempt{
		Outcome: OutcomeTerminal,
		Class:   Classification{Kind: KindAuth},
		Status:  401,
		Body:    []byte(`{"status_code":7,"status_message":"Invalid API key: You must be granted a valid key."}`),
	}, 1)

	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got["message"] != "Authentication failed. Please check your API access token." {
		t.Errorf("message = %v", got["message"])
	}
	if got["retryable"] != false {
		t.Errorf("retryable = %v", got["retryable"])
	}
	if got["status"] != float64(401) {
		t.Errorf("status = %v", got["status"])
	}
	if got["endpoint"] != "details" {
		t.Errorf("endpoint = %v", got["endpoint"])
	}
	if !strings.HasPrefix(e.Detail, "Invalid API key") {
		t.Errorf("Detail = %q", e.Detail)
	}
}

func TestError_PayloadOmitsZeroStatus(t *testing.T) {
	e := newError("trending", Attempt{Class: Classification{Kind: KindOffline, Retryable: true}}, 4)
	b, _ := json.Marshal(e.Payload())
	if strings.Contains(string(b), `"status"`) {
		t.Errorf("payload %s should omit status", b)
	}
	if e.Hint() != "Check your connection and try again." {
		t.Errorf("Hint = %q", e.Hint())
	}
	if !strings.Contains(e.Error(), "4 attempts") {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestError_Hints(t *testing.T) {
	tests := map[Kind]string{
		KindTransientNetwork: "Check your connection and try again.",
		KindRateLimited:      "Try again later.",
		KindAuth:             "Reconfigure the API access token.",
		KindUnknown:          "Something went wrong.",
	}
	for kind, want := range tests {
		e := &Error{Kind: kind}
		if got := e.Hint(); got != want {
			t.Errorf("Hint(%s) = %q, want %q", kind, got, want)
		}
	}
}
