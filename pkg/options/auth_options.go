package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*AuthOptions)(nil)

// AuthOptions configure credential issuance and validation.
type AuthOptions struct {
	// SigningKey is the HMAC secret used to sign and verify access tokens.
	SigningKey string `json:"signing-key" mapstructure:"signing-key"`

	// Issuer is written to and required in the "iss" claim.
	Issuer string `json:"issuer" mapstructure:"issuer"`

	// TokenTTL is the lifetime of issued access tokens.
	TokenTTL time.Duration `json:"token-ttl" mapstructure:"token-ttl"`
}

func NewAuthOptions() *AuthOptions {
	return &AuthOptions{
		Issuer:   "seawatch-relay",
		TokenTTL: time.Hour,
	}
}

func (o *AuthOptions) Validate() []error {
	errors := []error{}

	if len(o.SigningKey) < 16 {
		errors = append(errors, fmt.Errorf("--auth.signing-key must be at least 16 bytes"))
	}
	if o.TokenTTL <= 0 {
		errors = append(errors, fmt.Errorf("--auth.token-ttl must be positive"))
	}

	return errors
}

func (o *AuthOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.SigningKey, "auth.signing-key", o.SigningKey, "HMAC secret used to sign access tokens.")
	fs.StringVar(&o.Issuer, "auth.issuer", o.Issuer, "Issuer claim written to access tokens.")
	fs.DurationVar(&o.TokenTTL, "auth.token-ttl", o.TokenTTL, "Lifetime of issued access tokens.")
}
