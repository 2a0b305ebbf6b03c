// pkg/kv_cli/service.go

package kv_cli

import (
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_io"
	"github.com/CodeMonkeyCybersecurity/kvault/pkg/vault"
)

// NewService builds a vault service from the command's config and logs in
// when a login method is configured instead of a token.
func NewService(rc *kv_io.RuntimeContext, opts ...vault.Option) (*vault.Service, error) {
	svc, err := vault.New(rc.Deps.Config.Vault, rc.Log, opts...)
	if err != nil {
		return nil, err
	}
	rc.Attributes["vault_addr"] = rc.Deps.Config.Vault.BaseURL
	if err := svc.Login(rc.Ctx); err != nil {
		return nil, err
	}
	return svc, nil
}
