// Package auth signs and verifies the bearer tokens issued by sessionkeeper.
//
// Two token classes exist: short-lived access tokens checked statelessly on
// every request, and long-lived remember tokens that are additionally backed
// by a server-side record so they can be rotated and revoked.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess   = "access"
	TypeRemember = "remember"
)

// Claims is the payload of both token classes. FamilyID is set only on
// remember tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"uid"`
	FamilyID string `json:"fid,omitempty"`
	Type     string `json:"type"`
}

// IssuedToken is a freshly signed token together with the values a caller
// needs to persist it.
type IssuedToken struct {
	Token     string
	JTI       string
	FamilyID  string
	ExpiresAt time.Time
}

type CodecConfig struct {
	Issuer         string
	AccessSecret   []byte
	RememberSecret []byte
	AccessTTL      time.Duration
	RememberTTL    time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type Codec struct {
	cfg CodecConfig
}

func NewCodec(cfg CodecConfig) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RememberSecret) == 0 {
		return nil, errors.New("token secrets must not be empty")
	}
	if cfg.AccessTTL <= 0 || cfg.RememberTTL <= 0 {
		return nil, errors.New("token validity must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Codec{cfg: cfg}, nil
}

func (c *Codec) AccessTTL() time.Duration { return c.cfg.AccessTTL }

func (c *Codec) IssueAccess(userID int64, publicID string) (*IssuedToken, error) {
	return c.issue(userID, publicID, "", TypeAccess, c.cfg.AccessSecret, c.cfg.AccessTTL)
}

// IssueRemember starts a new family when familyID is empty.
func (c *Codec) IssueRemember(userID int64, publicID, familyID string) (*IssuedToken, error) {
	if familyID == "" {
		familyID = uuid.NewString()
	}
	return c.issue(userID, publicID, familyID, TypeRemember, c.cfg.RememberSecret, c.cfg.RememberTTL)
}

func (c *Codec) issue(userID int64, publicID, familyID, typ string, secret []byte, ttl time.Duration) (*IssuedToken, error) {
	now := c.cfg.Now()
	exp := now.Add(ttl)
	jti := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			Subject:   publicID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID:   userID,
		FamilyID: familyID,
		Type:     typ,
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return nil, err
	}

	// NumericDate keeps whole seconds; report what the token actually carries.
	return &IssuedToken{Token: signed, JTI: jti, FamilyID: familyID, ExpiresAt: exp.Truncate(time.Second)}, nil
}

func (c *Codec) ValidateAccess(tokenString string) (*Claims, error) {
	return c.validate(tokenString, TypeAccess, c.cfg.AccessSecret)
}

func (c *Codec) ValidateRemember(tokenString string) (*Claims, error) {
	claims, err := c.validate(tokenString, TypeRemember, c.cfg.RememberSecret)
	if err != nil {
		return nil, err
	}
	if claims.FamilyID == "" {
		return nil, common.ErrTokenInvalid
	}
	return claims, nil
}

// validate never tells the caller why a token was rejected.
func (c *Codec) validate(tokenString, typ string, secret []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.cfg.Now),
	)
	if err != nil || !token.Valid {
		return nil, common.ErrTokenInvalid
	}

	if claims.Type != typ || claims.ID == "" || claims.UserID <= 0 {
		return nil, common.ErrTokenInvalid
	}

	return claims, nil
}
