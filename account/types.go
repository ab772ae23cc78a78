// Package account implements the HTTP account-service client: region
// discovery, email-code login, and home/device data retrieval.
//
// This is grounded on the shape of the vendor KLAP handshake client in
// the retrieved pack (a small struct holding a base URL, a shared
// *http.Client, and a logger, driving a sequential multi-step handshake
// with typed request/response structs) generalized from a local-network
// handshake to the Roborock cloud account service's HTTP+JSON contract.
package account

import "fmt"

// RRiot holds the cloud-credentials sub-record returned by login. Its
// fields are named after the wire JSON keys, per the vendor protocol.
type RRiot struct {
	// U is the MQTT username.
	U string `json:"u"`
	// S is the MQTT secret.
	S string `json:"s"`
	// H is the HMAC signing secret used for Hawk-style request signing.
	H string `json:"h"`
	// K is the key-derivation domain used to compute MQTT credentials.
	K string `json:"k"`
	// R carries the MQTT broker URL and API base URL.
	R RRiotReference `json:"r"`
}

// RRiotReference carries the broker/API endpoints nested under RRiot.R.
type RRiotReference struct {
	// R is an unspecified reference region code.
	R string `json:"r"`
	// A is the base URL of the home-data API, used for the Hawk-signed call.
	A string `json:"a"`
	// M is the MQTT broker URL, e.g. "ssl://host:8883".
	M string `json:"m"`
	// L is an unspecified reference value.
	L string `json:"l"`
}

// UserData is the immutable identity and credential bundle returned by a
// successful login. It is handed to DeviceBus callers; the core never
// persists it.
type UserData struct {
	Token  string `json:"token"`
	UserID int64  `json:"rruid"`
	RRiot  RRiot  `json:"rriot"`
}

// DeviceRecord describes one device bound to the account's home, as
// returned by the home-data endpoint. LocalKey is the per-device AES key
// seed and must never be logged.
type DeviceRecord struct {
	DUID      string `json:"duid"`
	Name      string `json:"name"`
	Model     string `json:"model"`
	ProductID string `json:"productId"`
	LocalKey  string `json:"localKey"`
}

// HomeData is the decoded result of the home-detail + home-data calls:
// the set of devices (owned and shared) bound to the account's home.
type HomeData struct {
	HomeID   int64          `json:"id"`
	Devices  []DeviceRecord `json:"devices"`
	Received []DeviceRecord `json:"receivedDevices"`
	Products []Product      `json:"products"`
}

// Product maps a product id to its human model name, used to annotate
// DeviceRecord.Model for devices that only carry a bare product id.
type Product struct {
	ID    string `json:"id"`
	Model string `json:"model"`
}

// AllDevices returns owned and received devices combined, with Model
// populated from the Products table when the device record itself
// didn't carry one.
func (h *HomeData) AllDevices() []DeviceRecord {
	models := make(map[string]string, len(h.Products))
	for _, p := range h.Products {
		models[p.ID] = p.Model
	}

	all := make([]DeviceRecord, 0, len(h.Devices)+len(h.Received))
	for _, group := range [][]DeviceRecord{h.Devices, h.Received} {
		for _, d := range group {
			if d.Model == "" {
				d.Model = models[d.ProductID]
			}
			all = append(all, d)
		}
	}
	return all
}

// Error is returned for any account-service call that responds with a
// non-success status: either a JSON "code" field other than 200, or a
// Hawk-signed call whose "success" field is false.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("account: error %d: %s", e.Code, e.Message)
}
