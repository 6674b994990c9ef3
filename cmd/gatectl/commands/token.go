package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/wdb/iiifgate/pkg/clock"
	"github.com/wdb/iiifgate/pkg/cryptox"
	"github.com/wdb/iiifgate/pkg/iiiftoken"
)

type keyOpts struct {
	keyFile    string
	privateKey string
	salt       string
	derivation string
}

func (k *keyOpts) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&k.keyFile, "key-file", envOr("GATE_KEY_FILE", "private.key"), "Key material file (GATE_KEY_FILE)")
	f.StringVar(&k.privateKey, "private-key", envOr("GATE_PRIVATE_KEY", ""), "Inline key material (GATE_PRIVATE_KEY)")
	f.StringVar(&k.salt, "salt", envOr("GATE_HASH_SALT", ""), "Site salt (GATE_HASH_SALT)")
	f.StringVar(&k.derivation, "derivation", envOr("GATE_SECRET_DERIVATION", string(iiiftoken.DerivationSite)),
		"Secret derivation, site or hkdf (GATE_SECRET_DERIVATION)")
}

// codec builds a codec over the gate's key material. Unlike the service,
// the key file must already exist.
func (k *keyOpts) codec() (*iiiftoken.Codec, error) {
	derivation, err := iiiftoken.ParseDerivation(k.derivation)
	if err != nil {
		return nil, err
	}
	opt := iiiftoken.WithDerivation(derivation)

	if k.privateKey != "" {
		return iiiftoken.NewCodec(iiiftoken.StaticSecret([]byte(k.privateKey), k.salt, opt), clock.Real()), nil
	}
	path := k.keyFile
	return iiiftoken.NewCodec(iiiftoken.NewSecretSource(func() ([]byte, error) {
		return cryptox.ReadKeyMaterial(path)
	}, k.salt, opt), clock.Real()), nil
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and inspect tile tokens",
		Long: `
Usage: gatectl token <subcommand> [options]

  Issue a token for user 42:

      $ gatectl token issue --subsystem hdb --identifier wdb/hdb/doc1/1.ptif --principal 42

  Verify a token and print its payload:

      $ gatectl token verify eyJzIjoiaGRiIi...
`,
	}

	cmd.AddCommand(newTokenIssueCmd())
	cmd.AddCommand(newTokenVerifyCmd())
	return cmd
}

func newTokenIssueCmd() *cobra.Command {
	var (
		keys       keyOpts
		subsystem  string
		identifier string
		principal  int64
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a token signed with the gate's key material",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			codec, err := keys.codec()
			if err != nil {
				return err
			}
			token, err := codec.NewIssuer(ttl).Issue(subsystem, identifier, principal)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	keys.register(cmd)
	f := cmd.Flags()
	f.StringVar(&subsystem, "subsystem", "", "Subsystem name")
	f.StringVar(&identifier, "identifier", "", "Image identifier")
	f.Int64Var(&principal, "principal", 0, "Principal (user) id")
	f.DurationVar(&ttl, "ttl", iiiftoken.DefaultTTL, "Token lifetime")
	_ = cmd.MarkFlagRequired("subsystem")
	_ = cmd.MarkFlagRequired("identifier")

	return cmd
}

func newTokenVerifyCmd() *cobra.Command {
	var keys keyOpts

	cmd := &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify a token and print its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := keys.codec()
			if err != nil {
				return err
			}
			if err := codec.Ready(); err != nil {
				return fmt.Errorf("load key material: %w", err)
			}

			payload, err := codec.Verify(args[0])
			if err != nil {
				if errors.Is(err, iiiftoken.ErrInvalidToken) {
					return fmt.Errorf("token rejected: %w", err)
				}
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				iiiftoken.Payload
				ExpiresIn string `json:"expires_in"`
			}{payload, time.Until(time.Unix(payload.ExpiresAt, 0)).Round(time.Second).String()})
		},
	}

	keys.register(cmd)
	return cmd
}
