package command

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-roborock/roborock/device/bus"
)

// fakeSender records calls and returns canned responses keyed by method.
type fakeSender struct {
	responses map[string]json.RawMessage
	errors    map[string]error
	calls     []call
}

type call struct {
	duid, method string
	params       []any
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		responses: make(map[string]json.RawMessage),
		errors:    make(map[string]error),
	}
}

func (f *fakeSender) SendCommand(_ context.Context, duid, method string, params []any, _ ...bus.CommandOption) (json.RawMessage, error) {
	f.calls = append(f.calls, call{duid, method, params})
	if err, ok := f.errors[method]; ok {
		return nil, err
	}
	return f.responses[method], nil
}

func newTestClient(fs *fakeSender) *Client {
	return &Client{bus: fs, duid: "dev1"}
}

func TestGetStatus_DecodesAndRoutesMethod(t *testing.T) {
	fs := newFakeSender()
	fs.responses["get_status"] = json.RawMessage(`{"state":8,"battery":77}`)
	c := newTestClient(fs)

	status, err := c.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.State != 8 || status.Battery != 77 {
		t.Errorf("status = %+v", status)
	}
	if len(fs.calls) != 1 || fs.calls[0].duid != "dev1" || fs.calls[0].method != "get_status" {
		t.Errorf("calls = %+v", fs.calls)
	}
}

func TestGetCleanRecord_PassesRecordID(t *testing.T) {
	fs := newFakeSender()
	fs.responses["get_clean_record"] = json.RawMessage(`{"duration":120}`)
	c := newTestClient(fs)

	rec, err := c.GetCleanRecord(context.Background(), 1700000000)
	if err != nil {
		t.Fatalf("GetCleanRecord: %v", err)
	}
	if rec.Duration != 120 {
		t.Errorf("rec = %+v", rec)
	}
	if len(fs.calls[0].params) != 1 || fs.calls[0].params[0] != int64(1700000000) {
		t.Errorf("params = %+v", fs.calls[0].params)
	}
}

func TestAppSegmentClean_PropagatesError(t *testing.T) {
	fs := newFakeSender()
	fs.errors["app_segment_clean"] = errors.New("device busy")
	c := newTestClient(fs)

	if err := c.AppSegmentClean(context.Background(), []int{1, 2}); err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestSetCarpetMode_EncodesBoolAsEnableField(t *testing.T) {
	fs := newFakeSender()
	c := newTestClient(fs)

	if err := c.SetCarpetMode(context.Background(), true); err != nil {
		t.Fatalf("SetCarpetMode: %v", err)
	}
	params := fs.calls[0].params
	m, ok := params[0].(map[string]int)
	if !ok || m["enable"] != 1 {
		t.Errorf("params = %+v", params)
	}
}

func TestGetMapV1_DecodesBlob(t *testing.T) {
	fs := newFakeSender()
	blob, _ := json.Marshal([]byte{0x01, 0x02, 0x03})
	fs.responses["get_map_v1"] = blob
	c := newTestClient(fs)

	got, err := c.GetMapV1(context.Background())
	if err != nil {
		t.Fatalf("GetMapV1: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got = %v", got)
	}
}
