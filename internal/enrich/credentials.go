package enrich

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const (
	EnvClientID   = "ZOOMINFO_CLIENT_ID"
	EnvPrivateKey = "ZOOMINFO_PRIVATE_KEY"
)

// CredentialProvider supplies the credentials used to acquire a token.
type CredentialProvider interface {
	Credentials() (Credentials, error)
}

// EnvCredentials reads credentials from environment variables.
type EnvCredentials struct {
	// Lookup defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

func (e EnvCredentials) Credentials() (Credentials, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(k string) string {
		v, _ := lookup(k)
		return v
	}
	return checkCredentials(get(EnvClientID), get(EnvPrivateKey), "environment variables "+EnvClientID+" and "+EnvPrivateKey)
}

// StaticCredentials returns fixed values.
type StaticCredentials struct {
	ClientID   string
	PrivateKey string
}

func (s StaticCredentials) Credentials() (Credentials, error) {
	return checkCredentials(s.ClientID, s.PrivateKey, "client id and private key")
}

// SecretsFile reads credentials from a JSON file mapping source name -> secret name ->
// value, the layout used by mounted secret stores:
//
//	{"zoominfo": {"clientId": "...", "privateKey": "..."}}
//
// The file is read on every call so rotated secrets are picked up by the next run.
type SecretsFile struct {
	Path string
	// Source defaults to "zoominfo".
	Source string
}

func (f SecretsFile) Credentials() (Credentials, error) {
	path := strings.TrimSpace(f.Path)
	if path == "" {
		return Credentials{}, &ConfigurationError{Msg: "secrets file path is not set"}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, &ConfigurationError{Msg: "read secrets file", Err: err}
	}
	var secrets map[string]map[string]string
	if err := json.Unmarshal(b, &secrets); err != nil {
		return Credentials{}, &ConfigurationError{Msg: "parse secrets file", Err: err}
	}

	source := strings.TrimSpace(f.Source)
	if source == "" {
		source = "zoominfo"
	}
	src := secrets[source]
	return checkCredentials(secretValue(src, "clientId"), secretValue(src, "privateKey"),
		fmt.Sprintf("secrets %q and %q for source %q in %s", "clientId", "privateKey", source, path))
}

// secretValue tries the raw secret name and the "additionalSecret" prefixed form some
// secret stores use for REST sources.
func secretValue(src map[string]string, name string) string {
	if v := strings.TrimSpace(src[name]); v != "" {
		return v
	}
	return strings.TrimSpace(src["additionalSecret"+strings.ToUpper(name[:1])+name[1:]])
}

func checkCredentials(clientID, privateKey, where string) (Credentials, error) {
	clientID = strings.TrimSpace(clientID)
	privateKey = strings.TrimSpace(privateKey)
	if clientID == "" || privateKey == "" {
		return Credentials{}, &ConfigurationError{Msg: "company-data API credentials not configured; set " + where}
	}
	return Credentials{ClientID: clientID, PrivateKey: privateKey}, nil
}
