package enrich

import "context"

// TokenAcquirer exchanges credentials for a bearer token.
type TokenAcquirer interface {
	AcquireToken(ctx context.Context, creds Credentials) (Token, error)
}

// Authenticator is the part of the company-data client used to acquire tokens.
// *zoominfo.Client implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, clientID, privateKey string) (string, error)
}

// ZoomInfoTokens acquires tokens with a single authenticate call. No retries.
type ZoomInfoTokens struct {
	Client Authenticator
}

func (z ZoomInfoTokens) AcquireToken(ctx context.Context, creds Credentials) (Token, error) {
	if z.Client == nil {
		return "", &ConfigurationError{Msg: "token acquirer has no client"}
	}
	jwt, err := z.Client.Authenticate(ctx, creds.ClientID, creds.PrivateKey)
	if err != nil {
		return "", &APIError{Msg: "failed to authenticate with company-data API", Err: err}
	}
	if jwt == "" {
		return "", &APIError{Msg: "failed to authenticate with company-data API: empty token"}
	}
	return Token(jwt), nil
}
