package gitsource

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// AuthConfig selects how the remote is authenticated.
type AuthConfig struct {
	// Type is "none", "token" or "ssh".
	Type             string
	Token            string
	SSHKeyPath       string
	SSHKeyPassphrase string
}

// AuthProvider produces a transport auth method for fetches.
type AuthProvider interface {
	// Auth returns the auth method, or nil for anonymous access.
	Auth() (transport.AuthMethod, error)

	// Type names the provider for logs.
	Type() string
}

// TokenAuth authenticates over HTTPS with a personal access token.
type TokenAuth struct {
	token string
}

// NewTokenAuth creates a token provider.
func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{token: token}
}

// Auth returns basic auth carrying the token as the password.
func (a *TokenAuth) Auth() (transport.AuthMethod, error) {
	if a.token == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}
	return &http.BasicAuth{
		Username: "git",
		Password: a.token,
	}, nil
}

// Type returns "token".
func (a *TokenAuth) Type() string {
	return "token"
}

// SSHAuth authenticates with a private key file.
type SSHAuth struct {
	keyPath    string
	passphrase string
}

// NewSSHAuth creates an SSH provider. passphrase may be empty.
func NewSSHAuth(keyPath, passphrase string) *SSHAuth {
	return &SSHAuth{keyPath: keyPath, passphrase: passphrase}
}

// Auth loads the key. Keys readable by group or others are refused.
func (a *SSHAuth) Auth() (transport.AuthMethod, error) {
	if a.keyPath == "" {
		return nil, fmt.Errorf("ssh key path cannot be empty")
	}

	info, err := os.Stat(a.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access ssh key file: %w", err)
	}
	if mode := info.Mode().Perm(); mode&0o077 != 0 {
		return nil, fmt.Errorf("ssh key file permissions too open (%o), should be 0600", mode)
	}

	auth, err := ssh.NewPublicKeysFromFile("git", a.keyPath, a.passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to load ssh key: %w", err)
	}
	return auth, nil
}

// Type returns "ssh".
func (a *SSHAuth) Type() string {
	return "ssh"
}

// NoAuth is used for public and local repositories.
type NoAuth struct{}

// Auth returns nil.
func (NoAuth) Auth() (transport.AuthMethod, error) {
	return nil, nil
}

// Type returns "none".
func (NoAuth) Type() string {
	return "none"
}

// NewAuthProvider builds the provider cfg names.
func NewAuthProvider(cfg AuthConfig) (AuthProvider, error) {
	switch cfg.Type {
	case "", "none":
		return NoAuth{}, nil
	case "token":
		if cfg.Token == "" {
			return nil, fmt.Errorf("token auth requires a token")
		}
		return NewTokenAuth(cfg.Token), nil
	case "ssh":
		if cfg.SSHKeyPath == "" {
			return nil, fmt.Errorf("ssh auth requires ssh_key_path")
		}
		return NewSSHAuth(cfg.SSHKeyPath, cfg.SSHKeyPassphrase), nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
}
