// Package token issues the opaque tokens returned by the auth and order
// routes. By default it hands out the fixed fixture strings the UI suites
// assert on; when a signing secret is configured it mints real HS256 JWTs
// carrying the sanitized user or the order receipt, and can parse them
// back for assertions.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jwtpizza/api_fixture/pkg/fixture/config"
	"github.com/jwtpizza/api_fixture/pkg/fixture/model"
)

// ErrStaticIssuer is returned by Parse methods when no secret is
// configured, since static tokens carry no claims.
var ErrStaticIssuer = errors.New("token issuer has no signing secret")

// Issuer mints session and order tokens.
type Issuer struct {
	session string
	order   string
	secret  []byte
	issuer  string
	ttl     time.Duration
	now     func() time.Time
}

// Option customises an Issuer.
type Option func(*Issuer)

// WithNow overrides the clock used for claim timestamps (useful for tests).
func WithNow(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// New constructs an issuer from configuration.
func New(cfg config.TokenConfig, opts ...Option) *Issuer {
	i := &Issuer{
		session: cfg.Session,
		order:   cfg.Order,
		issuer:  cfg.Issuer,
		ttl:     cfg.TTL.AsDuration(),
		now:     time.Now,
	}
	if cfg.Secret != "" {
		i.secret = []byte(cfg.Secret)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i
}

// Static reports whether the issuer returns fixed strings instead of
// signing.
func (i *Issuer) Static() bool {
	return len(i.secret) == 0
}

// SessionToken returns the token accompanying a login, registration, or
// profile update. It never fails: if signing is somehow impossible the
// static fixture token is returned so the route can still fulfil the
// request.
func (i *Issuer) SessionToken(u model.User) string {
	if i.Static() {
		return i.session
	}

	claims := sessionClaims{
		User: u,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(i.now()),
			ExpiresAt: jwt.NewNumericDate(i.now().Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return i.session
	}
	return signed
}

// OrderToken returns the receipt token accompanying a placed order. The
// order payload is embedded verbatim when signing.
func (i *Issuer) OrderToken(order map[string]any) string {
	if i.Static() {
		return i.order
	}

	claims := orderClaims{
		Order: order,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   i.issuer,
			IssuedAt: jwt.NewNumericDate(i.now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return i.order
	}
	return signed
}

// ParseSession validates a signed session token and returns the embedded
// user.
func (i *Issuer) ParseSession(tokenString string) (model.User, error) {
	if i.Static() {
		return model.User{}, ErrStaticIssuer
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		options = append(options, jwt.WithIssuer(i.issuer))
	}

	claims := &sessionClaims{}
	tok, err := jwt.NewParser(options...).ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return model.User{}, err
	}
	if !tok.Valid {
		return model.User{}, errors.New("invalid session token")
	}
	return claims.User, nil
}

type sessionClaims struct {
	User model.User `json:"user"`
	jwt.RegisteredClaims
}

type orderClaims struct {
	Order map[string]any `json:"order"`
	jwt.RegisteredClaims
}
