// Package api provides clients for the external systems the bot talks to:
// the Keenetic router RCI interface and the Telegram Bot API.
package api

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/DenisKhanov/KeeneticBot/internal/tg_bot/models"
	"github.com/sirupsen/logrus"
)

// Constants for Keenetic RCI paths
const (
	AuthPath          = "/auth"
	HotspotPath       = "/rci/show/ip/hotspot"    // runtime host list with names
	HotspotConfigPath = "/rci/show/rc/ip/hotspot" // running-config host records with policies
	HotspotHostPath   = "/rci/ip/hotspot/host"
)

var (
	// ErrAuthFailed is returned when the router refuses the credentials.
	ErrAuthFailed = errors.New("keenetic authentication failed")
	// ErrPolicyRejected is returned when the router answers a policy change with an error status.
	ErrPolicyRejected = errors.New("keenetic rejected policy change")
)

// hotspotResponse represents the host list returned by the hotspot endpoints.
type hotspotResponse struct {
	Host []hotspotHost `json:"host"`
}

// hotspotHost describes a single router host.
type hotspotHost struct {
	MAC      string `json:"mac"`      // Host hardware address
	Name     string `json:"name"`     // Name given in the router UI
	Hostname string `json:"hostname"` // Name announced by the host over DHCP
	Policy   string `json:"policy"`   // Access policy, empty when none
}

// authRequest is the body of the challenge response.
type authRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// policyRequest sets or clears the policy of a host. Policy is either a policy
// name or {"no": true}.
type policyRequest struct {
	MAC    string `json:"mac"`
	Policy any    `json:"policy"`
}

// rciResponse carries the command statuses the router reports back.
type rciResponse struct {
	Status []struct {
		Status  string `json:"status"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
}

// Keenetic represents a client for the Keenetic router RCI interface.
type Keenetic struct {
	endpoint  string            // Router web interface URL.
	login     string            // Router admin login.
	password  string            // Router admin password.
	favorites []models.Favorite // Hosts shown on the control panel, in display order.
	client    *http.Client
}

// NewKeeneticAPI creates a new instance of Keenetic.
// Arguments:
//   - endpoint: the router web interface URL, e.g. http://192.168.1.1.
//   - login, password: router admin credentials.
//   - favorites: hosts to show on the control panel.
//   - timeout: per request timeout, 15 seconds when not positive.
//
// Returns a pointer to a Keenetic.
func NewKeeneticAPI(endpoint, login, password string, favorites []models.Favorite, timeout time.Duration) (*Keenetic, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Keenetic{
		endpoint:  strings.TrimSuffix(endpoint, "/"),
		login:     login,
		password:  password,
		favorites: favorites,
		client: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
	}, nil
}

// Auth opens a router session using the NDM challenge. The session cookie is kept
// by the client for all later calls.
func (k *Keenetic) Auth(ctx context.Context) error {
	res, _, err := k.do(ctx, http.MethodGet, AuthPath, nil)
	if err != nil {
		return err
	}
	if res.StatusCode == http.StatusOK {
		logrus.Info("Keenetic session is already authorized")
		return nil
	}
	if res.StatusCode != http.StatusUnauthorized {
		return fmt.Errorf("%w: unexpected status code %d", ErrAuthFailed, res.StatusCode)
	}

	realm := res.Header.Get("X-NDM-Realm")
	challenge := res.Header.Get("X-NDM-Challenge")
	if realm == "" || challenge == "" {
		return fmt.Errorf("%w: challenge headers are missing", ErrAuthFailed)
	}

	body := authRequest{
		Login:    k.login,
		Password: challengeResponse(k.login, k.password, realm, challenge),
	}
	res, _, err = k.do(ctx, http.MethodPost, AuthPath, body)
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		err = fmt.Errorf("%w: status code %d", ErrAuthFailed, res.StatusCode)
		logrus.WithError(err).Errorf("Keenetic login as %s failed", k.login)
		return err
	}

	logrus.Infof("Keenetic session opened for %s", k.login)
	return nil
}

// challengeResponse computes sha256(challenge + md5(login:realm:password)) in hex.
func challengeResponse(login, password, realm, challenge string) string {
	md5Sum := md5.Sum([]byte(login + ":" + realm + ":" + password))
	shaSum := sha256.Sum256([]byte(challenge + hex.EncodeToString(md5Sum[:])))
	return hex.EncodeToString(shaSum[:])
}

// GetDevices retrieves all hosts known to the router with their policies.
// Returns devices in router order or an error if either request fails.
func (k *Keenetic) GetDevices(ctx context.Context) ([]models.Device, error) {
	var hosts, records hotspotResponse
	if err := k.getJSON(ctx, HotspotPath, &hosts); err != nil {
		return nil, err
	}
	if err := k.getJSON(ctx, HotspotConfigPath, &records); err != nil {
		return nil, err
	}

	policies := make(map[string]models.Policy, len(records.Host))
	for _, record := range records.Host {
		if record.Policy != "" {
			policies[strings.ToLower(record.MAC)] = models.Policy(record.Policy)
		}
	}

	devices := make([]models.Device, 0, len(hosts.Host))
	for _, host := range hosts.Host {
		mac := strings.ToLower(host.MAC)
		policy, ok := policies[mac]
		if !ok {
			policy = models.PolicyDefault
		}
		devices = append(devices, models.Device{
			MAC:    mac,
			Name:   firstNonEmpty(host.Name, host.Hostname, mac),
			Policy: policy,
		})
	}

	logrus.Debugf("Successfully retrieved %d devices from router", len(devices))
	return devices, nil
}

// GetFavDevices keeps the configured favorite hosts present in devices, in the
// configured order.
func (k *Keenetic) GetFavDevices(devices []models.Device) models.FavoriteDevices {
	byMAC := make(map[string]models.Device, len(devices))
	for _, device := range devices {
		byMAC[strings.ToLower(device.MAC)] = device
	}

	fav := make(models.FavoriteDevices, 0, len(k.favorites))
	for _, f := range k.favorites {
		device, ok := byMAC[strings.ToLower(f.MAC)]
		if !ok {
			logrus.Debugf("Favorite device %s is not known to the router", f.MAC)
			continue
		}
		if f.Name != "" {
			device.Name = f.Name
		}
		fav = append(fav, device)
	}
	return fav
}

// SetPolicy applies a policy to the host with the given MAC. PolicyDefault removes
// any policy from the host.
// Returns ErrPolicyRejected if the router reports an error status.
func (k *Keenetic) SetPolicy(ctx context.Context, mac string, policy models.Policy) error {
	body := policyRequest{MAC: mac, Policy: string(policy)}
	if policy == models.PolicyDefault {
		body.Policy = map[string]bool{"no": true}
	}

	res, data, err := k.do(ctx, http.MethodPost, HotspotHostPath, body)
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected status code: %d, body: %s", res.StatusCode, string(data))
		logrus.WithError(err).Errorf("SetPolicy failed for device %s", mac)
		return err
	}

	var response rciResponse
	if err = json.Unmarshal(data, &response); err != nil {
		// Some firmware answers with a bare array; a 200 is enough then.
		logrus.WithError(err).Debug("SetPolicy response has no status list")
		return nil
	}
	for _, status := range response.Status {
		if status.Status == "error" {
			err = fmt.Errorf("%w: %s", ErrPolicyRejected, status.Message)
			logrus.WithError(err).Errorf("Router rejected policy %s for device %s", policy, mac)
			return err
		}
	}
	return nil
}

// getJSON performs a GET request and decodes a 200 response into dest.
func (k *Keenetic) getJSON(ctx context.Context, path string, dest any) error {
	res, data, err := k.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected status code: %d", res.StatusCode)
		logrus.WithError(err).Errorf("GET %s failed with status: %s", path, res.Status)
		return err
	}
	if err = json.Unmarshal(data, dest); err != nil {
		logrus.WithError(err).Errorf("Failed to unmarshal %s response", path)
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// do sends a request with an optional JSON body and returns the response with its
// fully read body.
func (k *Keenetic) do(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, k.endpoint+path, reader)
	if err != nil {
		err = fmt.Errorf("failed to create request: %w", err)
		logrus.WithError(err).Errorf("Error creating %s %s request", method, path)
		return nil, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := k.client.Do(req)
	if err != nil {
		logrus.WithError(err).Errorf("Failed to execute %s %s", method, path)
		return nil, nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		if err = res.Body.Close(); err != nil {
			logrus.WithError(err).Errorf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		logrus.WithError(err).Errorf("Failed to read %s %s response", method, path)
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return res, data, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
