package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/skin-marketplace/internal/config"
	"github.com/iliyamo/skin-marketplace/internal/identity"
	"github.com/iliyamo/skin-marketplace/internal/model"
	"github.com/iliyamo/skin-marketplace/internal/utils"
)

// SteamAuth is the identity provider used for login.
type SteamAuth interface {
	LoginURL(returnTo string) (string, error)
	Verify(ctx context.Context, returnTo string, params url.Values) (string, error)
	FetchProfile(ctx context.Context, steamID string) (identity.Profile, error)
}

// ProfileResolver maps a provider profile onto a marketplace user.
type ProfileResolver interface {
	Resolve(ctx context.Context, p identity.Profile) (model.User, error)
}

// AuthHandler bundles dependencies for the login endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Steam    SteamAuth
	Resolver ProfileResolver
	Log      *zap.Logger
}

func NewAuthHandler(cfg config.Config, steam SteamAuth, resolver ProfileResolver, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Steam: steam, Resolver: resolver, Log: log.Named("auth")}
}

// sessionProfile is the user summary handed to the front end after login.
type sessionProfile struct {
	ID           uint64 `json:"id"`
	SteamID      string `json:"steamId"`
	DisplayName  string `json:"displayName"`
	AvatarURL    string `json:"avatarUrl"`
	BalanceCents int64  `json:"balanceCents"`
	IsAdmin      bool   `json:"isAdmin"`
}

func (h *AuthHandler) callbackURL() string {
	return strings.TrimRight(h.Cfg.PublicURL, "/") + "/auth/steam/callback"
}

// siteRedirect sends the browser back to the front end with q appended.
func (h *AuthHandler) siteRedirect(c echo.Context, q url.Values) error {
	return c.Redirect(http.StatusFound, strings.TrimRight(h.Cfg.SiteURL, "/")+"/?"+q.Encode())
}

// Login redirects to the Steam OpenID login page.
func (h *AuthHandler) Login(c echo.Context) error {
	target, err := h.Steam.LoginURL(h.callbackURL())
	if err != nil {
		h.Log.Error("build login url", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login unavailable", "code": "INTERNAL"})
	}
	return c.Redirect(http.StatusFound, target)
}

// Callback verifies the OpenID assertion, resolves the user and hands a
// session token to the front end.  Failures redirect with login=failed
// (assertion refused) or login=error (anything else).
func (h *AuthHandler) Callback(c echo.Context) error {
	ctx := c.Request().Context()

	steamID, err := h.Steam.Verify(ctx, h.callbackURL(), c.QueryParams())
	if err != nil {
		if errors.Is(err, identity.ErrAssertionRejected) {
			h.Log.Info("login rejected", zap.Error(err))
			return h.siteRedirect(c, url.Values{"login": {"failed"}})
		}
		h.Log.Error("verify assertion", zap.Error(err))
		return h.siteRedirect(c, url.Values{"login": {"error"}})
	}

	profile, err := h.Steam.FetchProfile(ctx, steamID)
	if err != nil {
		h.Log.Error("fetch profile", zap.Error(err), zap.String("steam_id", steamID))
		return h.siteRedirect(c, url.Values{"login": {"error"}})
	}

	u, err := h.Resolver.Resolve(ctx, profile)
	if err != nil {
		h.Log.Error("resolve user", zap.Error(err), zap.String("steam_id", steamID))
		return h.siteRedirect(c, url.Values{"login": {"error"}})
	}

	tok, err := utils.NewSessionToken(h.Cfg.JWTSecret, u.ID, u.ExternalID, h.Cfg.AccessTTLMin)
	if err != nil {
		h.Log.Error("sign session", zap.Error(err), zap.Uint64("user_id", u.ID))
		return h.siteRedirect(c, url.Values{"login": {"error"}})
	}

	summary, _ := json.Marshal(sessionProfile{
		ID:           u.ID,
		SteamID:      u.ExternalID,
		DisplayName:  u.DisplayName,
		AvatarURL:    u.AvatarURL,
		BalanceCents: u.BalanceCents,
		IsAdmin:      u.IsAdmin,
	})
	h.Log.Info("login", zap.Uint64("user_id", u.ID), zap.String("steam_id", u.ExternalID))
	return h.siteRedirect(c, url.Values{
		"login":   {"success"},
		"token":   {tok.Token},
		"profile": {string(summary)},
	})
}
