package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	steamOpenIDEndpoint = "https://steamcommunity.com/openid/login"
	steamAPIBase        = "https://api.steampowered.com"
	openIDNS            = "http://specs.openid.net/auth/2.0"
	openIDIdentifier    = "http://specs.openid.net/auth/2.0/identifier_select"
)

// ErrAssertionRejected means the OpenID callback did not verify.
var ErrAssertionRejected = errors.New("steam: openid assertion rejected")

var claimedIDPattern = regexp.MustCompile(`^https?://steamcommunity\.com/openid/id/(\d{17})$`)

// SteamProvider implements Steam OpenID 2.0 login and profile lookup.
type SteamProvider struct {
	APIKey         string
	OpenIDEndpoint string
	APIBase        string
	Client         *http.Client
}

// NewSteamProvider returns a provider pointed at the public Steam endpoints.
func NewSteamProvider(apiKey string) *SteamProvider {
	return &SteamProvider{
		APIKey:         apiKey,
		OpenIDEndpoint: steamOpenIDEndpoint,
		APIBase:        steamAPIBase,
		Client:         &http.Client{Timeout: 10 * time.Second},
	}
}

// LoginURL builds the checkid_setup redirect.  returnTo must be the
// absolute callback URL; its origin is used as the realm.
func (s *SteamProvider) LoginURL(returnTo string) (string, error) {
	u, err := url.Parse(returnTo)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("steam: invalid return url %q", returnTo)
	}
	q := url.Values{
		"openid.ns":         {openIDNS},
		"openid.mode":       {"checkid_setup"},
		"openid.return_to":  {returnTo},
		"openid.realm":      {u.Scheme + "://" + u.Host},
		"openid.identity":   {openIDIdentifier},
		"openid.claimed_id": {openIDIdentifier},
	}
	return s.OpenIDEndpoint + "?" + q.Encode(), nil
}

// Verify checks the callback parameters with Steam and returns the 17 digit
// SteamID.  returnTo is the callback URL this service handed to LoginURL; the
// assertion must name it and come from the configured OpenID endpoint.  The
// assertion is then posted back with mode check_authentication and accepted
// only when Steam answers is_valid:true.
func (s *SteamProvider) Verify(ctx context.Context, returnTo string, params url.Values) (string, error) {
	if params.Get("openid.mode") != "id_res" {
		return "", fmt.Errorf("%w: mode %q", ErrAssertionRejected, params.Get("openid.mode"))
	}
	if params.Get("openid.op_endpoint") != s.OpenIDEndpoint {
		return "", fmt.Errorf("%w: op_endpoint %q", ErrAssertionRejected, params.Get("openid.op_endpoint"))
	}
	if !sameCallback(params.Get("openid.return_to"), returnTo) {
		return "", fmt.Errorf("%w: return_to %q", ErrAssertionRejected, params.Get("openid.return_to"))
	}
	m := claimedIDPattern.FindStringSubmatch(params.Get("openid.claimed_id"))
	if m == nil {
		return "", fmt.Errorf("%w: bad claimed_id", ErrAssertionRejected)
	}

	check := url.Values{}
	for k, v := range params {
		if strings.HasPrefix(k, "openid.") {
			check[k] = v
		}
	}
	check.Set("openid.mode", "check_authentication")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.OpenIDEndpoint, strings.NewReader(check.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("steam: check_authentication: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("steam: check_authentication status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", err
	}
	if !isValidAssertion(string(body)) {
		return "", ErrAssertionRejected
	}
	return m[1], nil
}

// sameCallback reports whether got points at the expected callback.  Scheme,
// host and path must match; the query may carry provider nonces.
func sameCallback(got, want string) bool {
	g, err := url.Parse(got)
	if err != nil || got == "" {
		return false
	}
	w, err := url.Parse(want)
	if err != nil || want == "" {
		return false
	}
	return strings.EqualFold(g.Scheme, w.Scheme) &&
		strings.EqualFold(g.Host, w.Host) &&
		g.Path == w.Path
}

// isValidAssertion parses the key:value response of check_authentication.
func isValidAssertion(body string) bool {
	for _, line := range strings.Split(body, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), ":")
		if ok && k == "is_valid" {
			return v == "true"
		}
	}
	return false
}

type playerSummaries struct {
	Response struct {
		Players []struct {
			SteamID     string `json:"steamid"`
			PersonaName string `json:"personaname"`
			AvatarFull  string `json:"avatarfull"`
		} `json:"players"`
	} `json:"response"`
}

// FetchProfile loads the public profile of steamID from the Web API.
func (s *SteamProvider) FetchProfile(ctx context.Context, steamID string) (Profile, error) {
	q := url.Values{"key": {s.APIKey}, "steamids": {steamID}}
	endpoint := s.APIBase + "/ISteamUser/GetPlayerSummaries/v0002/?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Profile{}, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("steam: player summaries: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("steam: player summaries status %d", resp.StatusCode)
	}
	var out playerSummaries
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Profile{}, fmt.Errorf("steam: decode player summaries: %w", err)
	}
	if len(out.Response.Players) == 0 {
		return Profile{}, fmt.Errorf("steam: no player data for %s", steamID)
	}
	p := out.Response.Players[0]
	return Profile{ExternalID: steamID, DisplayName: p.PersonaName, AvatarURL: p.AvatarFull}, nil
}
