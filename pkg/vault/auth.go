// pkg/vault/auth.go

package vault

import (
	"context"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/config"
	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/vault/api"
	"github.com/hashicorp/vault/api/auth/approle"
	"github.com/hashicorp/vault/api/auth/userpass"
	"go.uber.org/zap"
)

const (
	defaultAppRoleMount  = "approle"
	defaultUserpassMount = "userpass"
)

// Login exchanges the configured AppRole or userpass credentials for a
// token. It is a no-op when a static token is configured.
func (s *Service) Login(ctx context.Context) error {
	if s.cfg.Token != "" || !s.cfg.HasLogin() {
		return nil
	}
	at, ok := s.transport.(*APITransport)
	if !ok {
		return cerr.Newf("login requires the API transport, got %T", s.transport)
	}

	method, name, err := authMethod(s.cfg.Auth)
	if err != nil {
		return err
	}

	log := s.log.Ctx(ctx)
	log.Info("Logging in to Vault", zap.String("method", name))
	secret, err := at.Client().Auth().Login(ctx, method)
	if err != nil {
		log.Error("Vault login failed", zap.String("method", name), zap.Error(err))
		return cerr.Wrapf(err, "%s login failed", name)
	}
	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		return cerr.Newf("no auth info returned from Vault %s login", name)
	}

	s.cfg.Token = secret.Auth.ClientToken
	log.Info("Authenticated with Vault",
		zap.String("method", name),
		zap.String("token_accessor", secret.Auth.Accessor))
	return nil
}

// authMethod builds the login method for the configured credentials.
// AppRole wins when both are set.
func authMethod(a config.Auth) (api.AuthMethod, string, error) {
	switch {
	case a.AppRole.Enabled():
		mount := a.AppRole.MountPath
		if mount == "" {
			mount = defaultAppRoleMount
		}
		m, err := approle.NewAppRoleAuth(a.AppRole.RoleID,
			&approle.SecretID{FromString: a.AppRole.SecretID},
			approle.WithMountPath(mount))
		if err != nil {
			return nil, "approle", cerr.Wrap(err, "create approle auth")
		}
		return m, "approle", nil
	case a.Userpass.Enabled():
		mount := a.Userpass.MountPath
		if mount == "" {
			mount = defaultUserpassMount
		}
		m, err := userpass.NewUserpassAuth(a.Userpass.Username,
			&userpass.Password{FromString: a.Userpass.Password},
			userpass.WithMountPath(mount))
		if err != nil {
			return nil, "userpass", cerr.Wrap(err, "create userpass auth")
		}
		return m, "userpass", nil
	default:
		return nil, "", cerr.New("no login method configured")
	}
}
