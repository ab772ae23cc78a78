package bus

import (
	"encoding/json"
	"testing"

	"github.com/go-roborock/roborock/protocol/codec"
)

func frameWithPayload(payload []byte) *codec.Frame {
	return &codec.Frame{Protocol: codec.ProtocolResponse, Payload: payload}
}

func TestUnwrapSingleElementArray(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single element array unwraps", `[{"a":1}]`, `{"a":1}`},
		{"multi element array passes through unchanged", `[1,2]`, `[1,2]`},
		{"bare object passes through unchanged", `{"a":1}`, `{"a":1}`},
		{"bare string passes through unchanged", `"ok"`, `"ok"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := unwrapSingleElementArray(json.RawMessage(tt.in))
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsOkLiteral(t *testing.T) {
	if !isOkLiteral(json.RawMessage(`"ok"`)) {
		t.Error(`"ok" should be recognized as the ok literal`)
	}
	if isOkLiteral(json.RawMessage(`"something else"`)) {
		t.Error("a different string should not match")
	}
	if isOkLiteral(json.RawMessage(`{"state":1}`)) {
		t.Error("a non-string result should not match")
	}
}

func TestLastTopicSegment(t *testing.T) {
	tests := map[string]string{
		"rr/m/o/user/hashed/device123": "device123",
		"noslash":                      "noslash",
		"a/b/c":                       "c",
	}
	for topic, want := range tests {
		if got := lastTopicSegment(topic); got != want {
			t.Errorf("lastTopicSegment(%q) = %q, want %q", topic, got, want)
		}
	}
}

func TestHandleResponse_CompletesPendingRequestWithResult(t *testing.T) {
	b := New(Config{})
	ch := b.pending.track(42)

	payload := []byte(`{"t":1700000000,"dps":{"102":"{\"id\":42,\"result\":[{\"state\":8}]}"}}`)
	b.handleResponse(frameWithPayload(payload))

	select {
	case res := <-ch:
		if res.err != nil {
			t.Fatalf("unexpected error: %v", res.err)
		}
		if string(res.value) != `{"state":8}` {
			t.Errorf("value = %s", res.value)
		}
	default:
		t.Fatal("expected pending request to complete")
	}
}

func TestHandleResponse_OkResultDoesNotComplete(t *testing.T) {
	b := New(Config{})
	ch := b.pending.track(7)

	payload := []byte(`{"t":1700000000,"dps":{"102":"{\"id\":7,\"result\":[\"ok\"]}"}}`)
	b.handleResponse(frameWithPayload(payload))

	select {
	case res := <-ch:
		t.Fatalf("expected no completion for an ok-literal result, got %+v", res)
	default:
	}
}

func TestHandleResponse_DeviceErrorCompletesWithDeviceError(t *testing.T) {
	b := New(Config{})
	ch := b.pending.track(3)

	payload := []byte(`{"t":1700000000,"dps":{"102":"{\"id\":3,\"error\":{\"code\":5,\"message\":\"busy\"}}"}}`)
	b.handleResponse(frameWithPayload(payload))

	select {
	case res := <-ch:
		de, ok := res.err.(*deviceError)
		if !ok {
			t.Fatalf("err = %v (%T), want *deviceError", res.err, res.err)
		}
		if de.Code != 5 || de.Message != "busy" {
			t.Errorf("deviceError = %+v", de)
		}
	default:
		t.Fatal("expected pending request to complete with an error")
	}
}
