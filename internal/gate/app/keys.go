package app

import (
	"log/slog"

	"github.com/wdb/iiifgate/pkg/cryptox"
	"github.com/wdb/iiifgate/pkg/iiiftoken"
)

// InitSecret returns the token signing secret source. Key material comes
// from GATE_PRIVATE_KEY when set, otherwise from the key file, which is
// generated on first start. Nothing is read until the first token is signed
// or verified, or readyz runs.
func InitSecret(cfg Config, logger *slog.Logger) *iiiftoken.SecretSource {
	if cfg.HashSalt == "" {
		logger.Warn("GATE_HASH_SALT is empty, tokens are only bound to the key material")
	}

	// Validate has already rejected unknown names.
	derivation, _ := iiiftoken.ParseDerivation(cfg.SecretDerivation)
	opt := iiiftoken.WithDerivation(derivation)

	if cfg.PrivateKey != "" {
		logger.Info("using inline key material", "derivation", derivation)
		return iiiftoken.StaticSecret([]byte(cfg.PrivateKey), cfg.HashSalt, opt)
	}

	logger.Info("using key material file", "path", cfg.KeyFile, "derivation", derivation)
	path := cfg.KeyFile
	return iiiftoken.NewSecretSource(func() ([]byte, error) {
		return cryptox.LoadOrGenerateKeyMaterial(path)
	}, cfg.HashSalt, opt)
}
