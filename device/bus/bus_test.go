package bus

import (
	"testing"
	"time"

	"github.com/go-roborock/roborock/account"
)

func TestNew_DerivesMQTTCredentialsAndTopics(t *testing.T) {
	b := New(Config{
		RRiot: account.RRiot{U: "user123", S: "secret456", K: "domain789"},
	})

	if b.mqttUser == "" || len(b.mqttUser) != 8 {
		t.Errorf("mqttUser = %q, want an 8-character hashed user", b.mqttUser)
	}
	if b.mqttPassword == "" {
		t.Error("mqttPassword should not be empty")
	}
	wantSub := "rr/m/o/user123/" + b.mqttUser + "/#"
	if b.topicSub != wantSub {
		t.Errorf("topicSub = %q, want %q", b.topicSub, wantSub)
	}
	wantPubBase := "rr/m/i/user123/" + b.mqttUser
	if b.topicPubBase != wantPubBase {
		t.Errorf("topicPubBase = %q, want %q", b.topicPubBase, wantPubBase)
	}
}

func TestHashedCredential_Deterministic(t *testing.T) {
	a := hashedCredential("u", "k", 2, 8)
	b := hashedCredential("u", "k", 2, 8)
	if a != b {
		t.Error("hashedCredential should be deterministic for the same inputs")
	}
	if len(a) != 8 {
		t.Errorf("len = %d, want 8", len(a))
	}
}

func TestEndpoint_Is8CharBase64Of6Bytes(t *testing.T) {
	b := New(Config{RRiot: account.RRiot{K: "domain"}})
	ep := b.endpoint()
	if ep == "" {
		t.Fatal("endpoint should not be empty")
	}
	// base64 of 6 raw bytes (no padding needed) is always 8 characters.
	if len(ep) != 8 {
		t.Errorf("endpoint length = %d, want 8", len(ep))
	}
}

func TestNew_LocalKeyLookup(t *testing.T) {
	b := New(Config{
		Devices: []account.DeviceRecord{
			{DUID: "dev1", LocalKey: "key1"},
			{DUID: "dev2", LocalKey: "key2"},
		},
	})
	if b.localKeys["dev1"] != "key1" || b.localKeys["dev2"] != "key2" {
		t.Errorf("localKeys = %+v", b.localKeys)
	}
}

func TestPendingTable_TrackAndComplete(t *testing.T) {
	pt := newPendingTable(time.Second)
	ch := pt.track(1)
	if ok := pt.complete(1, []byte(`"value"`), nil); !ok {
		t.Fatal("complete should report true for a tracked id")
	}
	select {
	case res := <-ch:
		if res.err != nil {
			t.Errorf("unexpected error: %v", res.err)
		}
		if string(res.value) != `"value"` {
			t.Errorf("value = %q", res.value)
		}
	default:
		t.Fatal("expected a result to be delivered")
	}
}

func TestPendingTable_CompleteUnknownIDIsNoop(t *testing.T) {
	pt := newPendingTable(time.Second)
	if pt.complete(99, nil, nil) {
		t.Error("complete should report false for an id that was never tracked")
	}
}

func TestPendingTable_Timeout(t *testing.T) {
	pt := newPendingTable(10 * time.Millisecond)
	ch := pt.track(5)
	time.Sleep(5 * time.Millisecond)
	pt.sweep()
	select {
	case <-ch:
		t.Fatal("should not have timed out yet")
	default:
	}
	time.Sleep(10 * time.Millisecond)
	pt.sweep()
	select {
	case res := <-ch:
		if res.err != ErrTimedOut {
			t.Errorf("err = %v, want ErrTimedOut", res.err)
		}
	default:
		t.Fatal("expected timeout result")
	}
}

func TestPendingTable_FailAll(t *testing.T) {
	pt := newPendingTable(time.Second)
	ch1 := pt.track(1)
	ch2 := pt.track(2)
	pt.failAll(ErrDisconnected)

	for _, ch := range []chan pendingResult{ch1, ch2} {
		select {
		case res := <-ch:
			if res.err != ErrDisconnected {
				t.Errorf("err = %v, want ErrDisconnected", res.err)
			}
		default:
			t.Fatal("expected failAll to deliver to every pending channel")
		}
	}
}

func TestPendingTable_NonceRoundTrip(t *testing.T) {
	pt := newPendingTable(time.Second)
	pt.track(7)
	pt.setNonce(7, []byte("0123456789abcdef"))
	nonce, ok := pt.nonceFor(7)
	if !ok || string(nonce) != "0123456789abcdef" {
		t.Errorf("nonceFor = %q, %v", nonce, ok)
	}
}

func TestSessionTracker_UsableAfterConnect(t *testing.T) {
	st := newSessionTracker(time.Minute)
	if st.isUsable() {
		t.Error("should not be usable before connecting")
	}
	st.setConnected()
	if !st.isUsable() {
		t.Error("should be usable immediately after connecting")
	}
}

func TestSessionTracker_StaleAfterExpiry(t *testing.T) {
	st := newSessionTracker(5 * time.Millisecond)
	st.setConnected()
	time.Sleep(10 * time.Millisecond)
	if st.isUsable() {
		t.Error("should be stale after the expiry window elapses with no inbound traffic")
	}
	if st.current() != stateStale {
		t.Errorf("state = %v, want stale", st.current())
	}
}

func TestSessionTracker_TouchResetsStaleness(t *testing.T) {
	st := newSessionTracker(20 * time.Millisecond)
	st.setConnected()
	time.Sleep(10 * time.Millisecond)
	st.touch()
	time.Sleep(10 * time.Millisecond)
	if !st.isUsable() {
		t.Error("touch should reset the staleness clock")
	}
}

func TestParseBrokerURL(t *testing.T) {
	url, useTLS, err := parseBrokerURL("ssl://example.roborock.com:8883")
	if err != nil {
		t.Fatalf("parseBrokerURL: %v", err)
	}
	if !useTLS {
		t.Error("ssl:// scheme should select TLS")
	}
	if url != "ssl://example.roborock.com:8883" {
		t.Errorf("url = %q", url)
	}

	url, useTLS, err = parseBrokerURL("tcp://example.roborock.com:1883")
	if err != nil {
		t.Fatalf("parseBrokerURL: %v", err)
	}
	if useTLS {
		t.Error("tcp:// scheme should not select TLS")
	}
	if url != "tcp://example.roborock.com:1883" {
		t.Errorf("url = %q", url)
	}
}
