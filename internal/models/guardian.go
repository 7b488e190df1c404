package models

import "github.com/golang-jwt/jwt/v5"

// Claims defines the structure of the JWT claims for a guardian session.
type Claims struct {
	GuardianID int64  `json:"guardian_id"`
	Username   string `json:"username"`
	jwt.RegisteredClaims
}
