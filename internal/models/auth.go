package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the access token payload minted by the school's identity service.
type JWTClaims struct {
	UserID       string `json:"user_id"`
	Role         Role   `json:"role"`
	FullName     string `json:"full_name"`
	PersonalCode string `json:"personal_code"`
	jwt.RegisteredClaims
}

// Actor converts token claims into the core's actor value.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{ID: c.UserID, Name: c.FullName, Code: c.PersonalCode, Role: c.Role}
}
