package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
)

// Scopes granted to the api users, a user without any scope is granted all
const (
	ScopeControl    = "control"
	ScopePartitions = "partitions"
)

// JwtProvider holds the claims of the gateway token
type JwtProvider struct {
	Username string   `json:"username"`
	Scopes   []string `json:"scopes,omitempty"`
	jwt.StandardClaims
}

// Allows reports whether the token grants the scope
func (p *JwtProvider) Allows(scope string) bool {
	if len(p.Scopes) == 0 {
		return true
	}
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}

	return false
}

type credentials struct {
	Password string `json:"password"`
	Username string `json:"username"`
}

// TokenName is the cookie name carrying the JWT
const TokenName = "offline-gateway-authorization-token"

const (
	lifetime      = time.Hour * 24 * 7
	refreshWindow = time.Hour * 24
)

func signJWT(security *SecurityAPI, w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	user, ok := security.users[creds.Username]
	if !ok || user.Password != creds.Password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	setCookie(w, &JwtProvider{Username: user.Username, Scopes: user.Scopes}, security.secret)
}

func refresh(security *SecurityAPI, w http.ResponseWriter, r *http.Request) {
	claims, err := CheckToken(security, w, r)
	if err != nil {
		return
	}

	// A new token is only issued during the last day of the current one.
	if time.Until(time.Unix(claims.ExpiresAt, 0)) > refreshWindow {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	setCookie(w, claims, security.secret)
}

// CheckToken will return if token is valid or not, the status code is written
// on failure
func CheckToken(security *SecurityAPI, w http.ResponseWriter, r *http.Request) (*JwtProvider, error) {
	c, err := r.Cookie(TokenName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			w.WriteHeader(http.StatusUnauthorized)
			return nil, &tokenError{found: false}
		}
		w.WriteHeader(http.StatusBadRequest)
		return nil, &tokenError{found: true}
	}

	claims := &JwtProvider{}
	tkn, e := jwt.ParseWithClaims(c.Value, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return security.secret, nil
	})
	if e != nil {
		if e.Error() == jwt.ErrSignatureInvalid.Error() {
			w.WriteHeader(http.StatusUnauthorized)
			return claims, &signatureError{}
		}
		w.WriteHeader(http.StatusBadRequest)
		return claims, &signatureError{}
	}
	if !tkn.Valid {
		w.WriteHeader(http.StatusUnauthorized)
		return claims, &signatureError{}
	}

	return claims, nil
}

func setCookie(w http.ResponseWriter, claims *JwtProvider, secret []byte) {
	expirationTime := time.Now().Add(lifetime)
	claims.ExpiresAt = expirationTime.Unix()
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenName,
		Path:     "/",
		Value:    tokenString,
		Expires:  expirationTime,
		HttpOnly: true,
	})
}
