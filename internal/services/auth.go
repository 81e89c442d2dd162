package services

import (
	"context"
	"net/http"
	"net/url"

	"github.com/desertthunder/catx/internal/models"
)

// Auth endpoint paths, relative to the API base URL.
const (
	LoginPath         = "/auth/login"
	RefreshPath       = "/auth/refresh"
	RegisterPath      = "/usuarios"
	CheckUsernamePath = "/auth/check-username/"
	CheckEmailPath    = "/auth/check-email/"
)

// AuthClient calls the authentication endpoints.
type AuthClient struct {
	api *APIService
}

// NewAuthClient creates an [AuthClient] on top of api.
func NewAuthClient(api *APIService) *AuthClient {
	return &AuthClient{api: api}
}

// Login exchanges credentials for a token pair.
func (c *AuthClient) Login(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.api.DoJSON(ctx, http.MethodPost, LoginPath, creds, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	req := models.RefreshRequest{RefreshToken: refreshToken}
	if err := c.api.DoJSON(ctx, http.MethodPost, RefreshPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and returns its first token pair.
func (c *AuthClient) Register(ctx context.Context, reg models.Registration) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.api.DoJSON(ctx, http.MethodPost, RegisterPath, reg, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type availability struct {
	Available bool   `json:"available"`
	Message   string `json:"message,omitempty"`
}

// UsernameAvailable reports whether username is free to register.
func (c *AuthClient) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	var resp availability
	if err := c.api.DoJSON(ctx, http.MethodGet, CheckUsernamePath+url.PathEscape(username), nil, &resp); err != nil {
		return false, err
	}
	return resp.Available, nil
}

// EmailAvailable reports whether email is free to register.
func (c *AuthClient) EmailAvailable(ctx context.Context, email string) (bool, error) {
	var resp availability
	if err := c.api.DoJSON(ctx, http.MethodGet, CheckEmailPath+url.PathEscape(email), nil, &resp); err != nil {
		return false, err
	}
	return resp.Available, nil
}
