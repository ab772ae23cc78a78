package registry

import (
	"testing"

	"github.com/go-roborock/roborock/account"
)

func TestNew_ModelBackfillAndDedup(t *testing.T) {
	home := &account.HomeData{
		HomeID: 1,
		Devices: []account.DeviceRecord{
			{DUID: "dup", Name: "Owned", ProductID: "p1"},
		},
		Received: []account.DeviceRecord{
			{DUID: "dup", Name: "Shared copy", ProductID: "p1"},
			{DUID: "other", Name: "Other", ProductID: "p2"},
		},
		Products: []account.Product{
			{ID: "p1", Model: "roborock.vacuum.a10"},
			{ID: "p2", Model: "roborock.vacuum.s7"},
		},
	}

	reg := New(home)
	if reg.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", reg.Count())
	}

	dup, err := reg.Get("dup")
	if err != nil {
		t.Fatalf("Get(dup): %v", err)
	}
	if dup.Name != "Owned" {
		t.Errorf("Name = %q, want owned device to win over received duplicate", dup.Name)
	}
	if dup.Model != "roborock.vacuum.a10" {
		t.Errorf("Model = %q, want backfilled from products table", dup.Model)
	}
}

func TestGet_NotFound(t *testing.T) {
	reg := New(&account.HomeData{})
	if _, err := reg.Get("missing"); err != ErrDeviceNotFound {
		t.Errorf("got %v, want ErrDeviceNotFound", err)
	}
}

func TestList_StableOrder(t *testing.T) {
	home := &account.HomeData{
		Devices: []account.DeviceRecord{
			{DUID: "a"}, {DUID: "b"}, {DUID: "c"},
		},
	}
	reg := New(home)
	list := reg.List()
	if len(list) != 3 || list[0].DUID != "a" || list[2].DUID != "c" {
		t.Errorf("List() = %+v, want stable insertion order", list)
	}
}
