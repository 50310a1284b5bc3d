package earthdata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jdx/go-netrc"
)

// URSMachine is the machine of the Earthdata Login credentials in the netrc file
const URSMachine = "urs.earthdata.nasa.gov"

const (
	EnvToken    = "EARTHDATA_TOKEN"
	EnvUsername = "EARTHDATA_USERNAME"
	EnvPassword = "EARTHDATA_PASSWORD"
)

// ErrNoCredentials is returned when no Earthdata Login credentials are found
var ErrNoCredentials = errors.New("no Earthdata Login credentials (use a token, EARTHDATA_TOKEN, EARTHDATA_USERNAME/EARTHDATA_PASSWORD or ~/.netrc)")

// Credentials are the Earthdata Login credentials: either a token or a username/password
type Credentials struct {
	Token    string
	Username string
	Password string
}

// Valid returns true if the credentials are usable to login
func (c Credentials) Valid() bool {
	return c.Token != "" || (c.Username != "" && c.Password != "")
}

// LoadCredentials returns the first valid credentials among:
// the given ones, the environment variables, the netrc file (default: ~/.netrc)
func LoadCredentials(given Credentials, netrcPath string) (Credentials, error) {
	if given.Valid() {
		return given, nil
	}
	if env := (Credentials{Token: os.Getenv(EnvToken), Username: os.Getenv(EnvUsername), Password: os.Getenv(EnvPassword)}); env.Valid() {
		return env, nil
	}
	if netrcPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Credentials{}, ErrNoCredentials
		}
		netrcPath = filepath.Join(home, ".netrc")
	}
	c, err := credentialsFromNetrc(netrcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, ErrNoCredentials
		}
		return Credentials{}, fmt.Errorf("LoadCredentials.%w", err)
	}
	if !c.Valid() {
		return Credentials{}, ErrNoCredentials
	}
	return c, nil
}

func credentialsFromNetrc(path string) (Credentials, error) {
	if _, err := os.Stat(path); err != nil {
		return Credentials{}, err
	}
	n, err := netrc.Parse(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("netrc.Parse[%s]: %w", path, err)
	}
	m := n.Machine(URSMachine)
	if m == nil {
		return Credentials{}, nil
	}
	return Credentials{Username: m.Get("login"), Password: m.Get("password")}, nil
}
