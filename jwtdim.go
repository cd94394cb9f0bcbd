package customfit

import (
	"github.com/golang-jwt/jwt/v4"
)

// dimensionIDClaims is the subset of a client-key JWT payload this SDK
// cares about; the server, not this SDK, is responsible for verifying the
// token, so only an unverified parse is performed here.
type dimensionIDClaims struct {
	DimensionID string `json:"dimension_id"`
	jwt.RegisteredClaims
}

// extractDimensionID pulls dimension_id out of a client key, per §6: if the
// key is a JWT, its middle segment (the payload) is base64url-decoded as
// JSON; parse failures are tolerated and yield an empty dimension_id rather
// than an error, since a non-JWT opaque token is equally valid input.
func extractDimensionID(clientKey string) string {
	parser := jwt.NewParser()
	claims := &dimensionIDClaims{}
	_, _, err := parser.ParseUnverified(clientKey, claims)
	if err != nil {
		return ""
	}
	return claims.DimensionID
}
