package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"muro/domain"
)

// SessionFromRequest resolves the session carried in the Authorization
// cookie, or nil when there is none or the token is invalid or expired.
// The websocket handshake replays this exact resolution, so the HTTP
// layer and the realtime layer always agree on who is logged in.
func SessionFromRequest(r *http.Request, JWTSecret string) *domain.Session {
	if JWTSecret == "" {
		return nil
	}

	cookie, err := r.Cookie("Authorization")
	if err != nil {
		return nil
	}

	token, err := jwt.Parse(cookie.Value, func(token *jwt.Token) (interface{}, error) {
		// SigningMethodHMAC implements the HMAC-SHA family of signing methods.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return []byte(JWTSecret), nil
	})
	if err != nil {
		return nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil
	}

	expiration, ok := claims["expiration"].(float64)
	// check if the token has expired
	if !ok || time.Now().Compare(time.Unix(int64(expiration), 0)) > 0 {
		return nil
	}

	userID, ok := claims["userID"].(string)
	if !ok || userID == "" {
		return nil
	}
	username, ok := claims["username"].(string)
	if !ok || username == "" {
		return nil
	}

	return &domain.Session{UserID: userID, Username: username}
}

func authorizationCookie(ID string, username string, secret string) (*http.Cookie, error) {
	if secret == "" {
		return nil, errors.New("missing secret")
	}
	token := jwt.New(jwt.SigningMethodHS256)
	claims := token.Claims.(jwt.MapClaims)
	claims["userID"] = ID
	claims["username"] = username
	exp := time.Now().Add(time.Hour * 24)
	claims["expiration"] = exp.Unix()
	signedData, err := token.SignedString([]byte(secret))
	if err != nil {
		return nil, err
	}

	cookie := new(http.Cookie)
	cookie.Name = "Authorization"
	cookie.Value = signedData
	cookie.Expires = exp
	cookie.Path = "/"

	return cookie, nil
}
