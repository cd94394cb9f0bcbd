package customfit

import (
	"testing"

	"github.com/golang-jwt/jwt/v4"
	qt "github.com/frankban/quicktest"
)

func TestExtractDimensionIDFromJWT(t *testing.T) {
	c := qt.New(t)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, dimensionIDClaims{DimensionID: "dim-123"})
	signed, err := token.SignedString([]byte("unused-secret"))
	c.Assert(err, qt.IsNil)

	c.Assert(extractDimensionID(signed), qt.Equals, "dim-123")
}

func TestExtractDimensionIDFromOpaqueKeyIsEmpty(t *testing.T) {
	c := qt.New(t)
	c.Assert(extractDimensionID("not-a-jwt"), qt.Equals, "")
}
