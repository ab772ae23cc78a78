// Package command provides thin, typed wrappers over bus.Bus.SendCommand
// for the device RPCs a Roborock vacuum exposes.
//
// Grounded on the teacher's device/room package shape: one small file
// per RPC-like operation (login.go, post.go, request.go, respond.go),
// each a short function that composes the lower transport layer and
// decodes its result into a typed struct.
package command

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-roborock/roborock/device/bus"
)

// sender is the subset of *bus.Bus that the command layer depends on.
// Kept as a small interface, in the teacher's style (see
// transport.Transport / transport.PacketHandler), so command wrappers
// can be tested against a fake without a real MQTT session.
type sender interface {
	SendCommand(ctx context.Context, duid, method string, params []any, opts ...bus.CommandOption) (json.RawMessage, error)
}

// Client issues typed commands against one device, identified by duid,
// over a shared Bus.
type Client struct {
	bus  sender
	duid string
}

// New returns a command Client bound to duid.
func New(b *bus.Bus, duid string) *Client {
	return &Client{bus: b, duid: duid}
}

func (c *Client) call(ctx context.Context, method string, params []any, opts ...bus.CommandOption) (json.RawMessage, error) {
	return c.bus.SendCommand(ctx, c.duid, method, params, opts...)
}

func decode[T any](raw json.RawMessage, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("command: decode response: %w", err)
	}
	return out, nil
}

// Status is the device's current cleaning/error state, as returned by
// GetStatus.
type Status struct {
	State       int `json:"state"`
	Battery     int `json:"battery"`
	FanPower    int `json:"fan_power"`
	MopMode     int `json:"mop_mode"`
	MopIntensity int `json:"water_box_mode"`
	ErrorCode   int `json:"error_code"`
	CleanTime   int `json:"clean_time"`
	CleanArea   int `json:"clean_area"`
	MapPresent  int `json:"map_present"`
}

// GetStatus retrieves the device's current status.
func (c *Client) GetStatus(ctx context.Context) (Status, error) {
	return decode[Status](c.call(ctx, "get_status", nil))
}

// DNDTimer is the device's configured do-not-disturb window.
type DNDTimer struct {
	Enabled   int `json:"enabled"`
	StartHour int `json:"start_hour"`
	StartMin  int `json:"start_minute"`
	EndHour   int `json:"end_hour"`
	EndMin    int `json:"end_minute"`
}

// GetDNDTimer retrieves the device's do-not-disturb schedule.
func (c *Client) GetDNDTimer(ctx context.Context) (DNDTimer, error) {
	return decode[DNDTimer](c.call(ctx, "get_dnd_timer", nil))
}

// SetDNDTimer configures the do-not-disturb schedule.
func (c *Client) SetDNDTimer(ctx context.Context, startHour, startMin, endHour, endMin int) error {
	_, err := c.call(ctx, "set_dnd_timer", []any{startHour, startMin, endHour, endMin})
	return err
}

// CloseDNDTimer disables the do-not-disturb schedule.
func (c *Client) CloseDNDTimer(ctx context.Context) error {
	_, err := c.call(ctx, "close_dnd_timer", nil)
	return err
}

// CleanSummary aggregates the device's lifetime cleaning statistics.
type CleanSummary struct {
	CleanTime int     `json:"clean_time"`
	CleanArea int     `json:"clean_area"`
	Records   []int64 `json:"records"`
}

// GetCleanSummary retrieves the device's lifetime cleaning summary.
func (c *Client) GetCleanSummary(ctx context.Context) (CleanSummary, error) {
	return decode[CleanSummary](c.call(ctx, "get_clean_summary", nil))
}

// CleanRecord describes one historical cleaning run.
type CleanRecord struct {
	Begin     int64 `json:"begin"`
	End       int64 `json:"end"`
	Duration  int   `json:"duration"`
	Area      int   `json:"area"`
	ErrorCode int   `json:"error"`
	Complete  int   `json:"complete"`
}

// GetCleanRecord retrieves the details of a single past cleaning run.
func (c *Client) GetCleanRecord(ctx context.Context, recordID int64) (CleanRecord, error) {
	return decode[CleanRecord](c.call(ctx, "get_clean_record", []any{recordID}))
}

// Consumable reports how long (in seconds) each of the device's
// wearable parts has been in use.
type Consumable struct {
	MainBrushWorkTime  int `json:"main_brush_work_time"`
	SideBrushWorkTime  int `json:"side_brush_work_time"`
	FilterWorkTime     int `json:"filter_work_time"`
	SensorDirtyTime    int `json:"sensor_dirty_time"`
}

// GetConsumable retrieves consumable-part wear data.
func (c *Client) GetConsumable(ctx context.Context) (Consumable, error) {
	return decode[Consumable](c.call(ctx, "get_consumable", nil))
}

// GetMapV1 retrieves the device's current map as a raw binary blob,
// via a secure (protocol-301) request.
func (c *Client) GetMapV1(ctx context.Context) ([]byte, error) {
	raw, err := c.call(ctx, "get_map_v1", nil, bus.WithSecure())
	if err != nil {
		return nil, err
	}
	var out []byte
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("command: decode map blob: %w", err)
	}
	return out, nil
}

// MultiMapsListEntry describes one stored map in a multi-floor setup.
type MultiMapsListEntry struct {
	MapFlag int    `json:"mapFlag"`
	Name    string `json:"name"`
}

// MultiMapsList is the device's set of stored per-floor maps.
type MultiMapsList struct {
	MaxMultiMap  int                   `json:"max_multi_map"`
	MaxBakMap    int                   `json:"max_bak_map"`
	MultiMapCount int                  `json:"multi_map_count"`
	MapInfo      []MultiMapsListEntry  `json:"map_info"`
}

// GetMultiMapsList retrieves the device's multi-floor map inventory.
func (c *Client) GetMultiMapsList(ctx context.Context) (MultiMapsList, error) {
	return decode[MultiMapsList](c.call(ctx, "get_multi_maps_list", nil))
}

// AppStart begins a standard full-home clean.
func (c *Client) AppStart(ctx context.Context) error {
	_, err := c.call(ctx, "app_start", nil)
	return err
}

// AppStop stops the current clean.
func (c *Client) AppStop(ctx context.Context) error {
	_, err := c.call(ctx, "app_stop", nil)
	return err
}

// AppPause pauses the current clean.
func (c *Client) AppPause(ctx context.Context) error {
	_, err := c.call(ctx, "app_pause", nil)
	return err
}

// AppCharge sends the device back to its dock.
func (c *Client) AppCharge(ctx context.Context) error {
	_, err := c.call(ctx, "app_charge", nil)
	return err
}

// AppSegmentClean cleans the given room segment ids.
func (c *Client) AppSegmentClean(ctx context.Context, segments []int) error {
	_, err := c.call(ctx, "app_segment_clean", []any{segments})
	return err
}

// AppZonedClean cleans the given rectangular zones, each a
// [x1, y1, x2, y2] quad in map coordinates.
func (c *Client) AppZonedClean(ctx context.Context, zones [][4]int) error {
	params := make([]any, len(zones))
	for i, z := range zones {
		params[i] = z
	}
	_, err := c.call(ctx, "app_zoned_clean", []any{params})
	return err
}

// SetCustomMode sets the fan speed / suction power level.
func (c *Client) SetCustomMode(ctx context.Context, mode int) error {
	_, err := c.call(ctx, "set_custom_mode", []any{mode})
	return err
}

// SetCarpetMode toggles automatic carpet-boost behavior.
func (c *Client) SetCarpetMode(ctx context.Context, enabled bool) error {
	state := 0
	if enabled {
		state = 1
	}
	_, err := c.call(ctx, "set_carpet_mode", []any{map[string]int{"enable": state}})
	return err
}

// FindMe makes the device announce its location with a sound.
func (c *Client) FindMe(ctx context.Context) error {
	_, err := c.call(ctx, "find_me", nil)
	return err
}
