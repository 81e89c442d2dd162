package auth

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/desertthunder/catx/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// DecodeUser reads the identity claims of an access token without verifying its signature.
//
// The subject comes from "sub" or "id", the username from "username" or "name", the full
// name from "fullname" or "name". Any malformed token yields (nil, false).
func DecodeUser(token string) (*models.User, bool) {
	if token == "" {
		return nil, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}

	user := &models.User{
		ID:       subject(first(claims, "sub", "id")),
		Username: stringClaim(first(claims, "username", "name")),
		Email:    stringClaim(claims["email"]),
		Fullname: stringClaim(first(claims, "fullname", "name")),
	}
	return user, true
}

func first(claims jwt.MapClaims, keys ...string) any {
	for _, key := range keys {
		if v, ok := claims[key]; ok && v != nil && v != "" {
			return v
		}
	}
	return nil
}

func stringClaim(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// subject normalizes numeric subjects to their integer form ("42", 42.0 -> "42").
// Non-numeric subjects are kept verbatim.
func subject(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case float64:
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return ""
		}
		return strconv.FormatInt(int64(s), 10)
	case string:
		trimmed := strings.TrimSpace(s)
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return strconv.FormatInt(n, 10)
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return strconv.FormatInt(int64(f), 10)
		}
		return s
	default:
		return fmt.Sprint(s)
	}
}
