// Package secretmanager provides the Vault client used to overlay
// secrets onto the file-based configuration.
package secretmanager

import (
	"time"

	vault "github.com/hashicorp/vault-client-go"
	"go.uber.org/fx"
)

var Module = fx.Module("secretmanager", fx.Provide(ProvideVault))

// ProvideVault builds a client from the VAULT_ADDR, VAULT_TOKEN and
// related environment variables. Config reads happen once at startup,
// so a slow Vault fails fast instead of stalling boot.
func ProvideVault() (*vault.Client, error) {
	return vault.New(
		vault.WithEnvironment(),
		vault.WithRequestTimeout(10*time.Second),
	)
}
