package main

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer     = "snowclicker"
	webAppSecretKey = "WebAppData"
)

var (
	ErrInitDataInvalid = errors.New("invalid init data")
	ErrInitDataExpired = errors.New("init data expired")
	ErrTokenInvalid    = errors.New("invalid session token")
)

func demoUser() User {
	return User{ID: "demo-1", Username: "demo_user", DisplayName: "Guest"}
}

type telegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
	PhotoURL  string `json:"photo_url"`
}

// VerifyInitData checks the Mini App init data signature against the bot
// token and returns the Telegram user it carries.
func VerifyInitData(initData string, botToken string, maxAge time.Duration, now time.Time) (User, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInitDataInvalid, err)
	}
	hash := values.Get("hash")
	if hash == "" {
		return User{}, fmt.Errorf("%w: missing hash", ErrInitDataInvalid)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}

	expected := signInitData(strings.Join(lines, "\n"), botToken)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(hash))) {
		return User{}, fmt.Errorf("%w: bad signature", ErrInitDataInvalid)
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return User{}, fmt.Errorf("%w: bad auth_date", ErrInitDataInvalid)
	}
	if maxAge > 0 && now.Sub(time.Unix(authDate, 0)) > maxAge {
		return User{}, ErrInitDataExpired
	}

	var tg telegramUser
	if err := json.Unmarshal([]byte(values.Get("user")), &tg); err != nil || tg.ID == 0 {
		return User{}, fmt.Errorf("%w: bad user", ErrInitDataInvalid)
	}

	user := User{
		ID:          strconv.FormatInt(tg.ID, 10),
		Username:    tg.Username,
		DisplayName: tg.FirstName,
	}
	if user.Username == "" {
		user.Username = demoUser().Username
	}
	if user.DisplayName == "" {
		user.DisplayName = demoUser().DisplayName
	}
	if tg.PhotoURL != "" {
		photo := tg.PhotoURL
		user.Photo = &photo
	}
	return user, nil
}

func signInitData(dataCheckString string, botToken string) string {
	secret := hmacSHA256([]byte(webAppSecretKey), []byte(botToken))
	return hex.EncodeToString(hmacSHA256(secret, []byte(dataCheckString)))
}

func hmacSHA256(key []byte, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

type sessionClaims struct {
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"name,omitempty"`
	Photo       string `json:"photo,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator issues and checks the bearer tokens of game sessions.
type Authenticator struct {
	key []byte
	ttl time.Duration
	now Clock
}

func NewAuthenticator(secret string, ttl time.Duration, now Clock) (*Authenticator, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		log.Println("Auth: SESSION_SECRET not set, using an ephemeral key")
	}
	if now == nil {
		now = time.Now
	}
	return &Authenticator{key: key, ttl: ttl, now: now}, nil
}

func (a *Authenticator) Issue(user User) (string, time.Time, error) {
	issuedAt := a.now().UTC()
	expiresAt := issuedAt.Add(a.ttl)
	claims := sessionClaims{
		Username:    user.Username,
		DisplayName: user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    tokenIssuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if user.Photo != nil {
		claims.Photo = *user.Photo
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse returns the user a valid token was issued for.
func (a *Authenticator) Parse(token string) (User, error) {
	if token == "" {
		return User{}, fmt.Errorf("%w: missing token", ErrTokenInvalid)
	}
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return User{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Subject == "" {
		return User{}, fmt.Errorf("%w: empty subject", ErrTokenInvalid)
	}
	user := User{ID: claims.Subject, Username: claims.Username, DisplayName: claims.DisplayName}
	if claims.Photo != "" {
		photo := claims.Photo
		user.Photo = &photo
	}
	return user, nil
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
