package auth

import (
	"io"
	"log"

	"golang.org/x/oauth2"
)

var oauth2Token = oauth2.Token{AccessToken: "access", RefreshToken: "refresh-me", TokenType: "Bearer"}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
