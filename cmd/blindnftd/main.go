// blindnftd drives the BlindNFT disclosure lifecycle from the command line
// and serves the local HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/branba-810/FHE-BlindNFT/api"
	"github.com/branba-810/FHE-BlindNFT/chain"
	"github.com/branba-810/FHE-BlindNFT/client"
	"github.com/branba-810/FHE-BlindNFT/config"
	"github.com/branba-810/FHE-BlindNFT/wallet"
)

const envPrefix = "BLINDNFT"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cfg := config.Default()

	root := &cobra.Command{
		Use:           "blindnftd",
		Short:         "BlindNFT client: mint, decrypt and reveal FHE-encrypted token attributes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, &cfg)
		},
	}

	pf := root.PersistentFlags()
	pf.String("rpc-url", cfg.RPCURL, "Ethereum node endpoint")
	pf.Uint64("chain-id", cfg.ChainID, "expected chain id; writes fail fast on any other network")
	pf.String("contract-address", cfg.ContractAddress, "BlindNFT contract address")
	pf.String("relayer-url", cfg.RelayerURL, "decryption relayer endpoint")
	pf.String("decryption-verifier", cfg.DecryptionVerifier, "EIP-712 verifying contract of the decryption flow")
	pf.String("cache-db", cfg.CacheDBPath, "path of the local plaintext cache database")
	pf.String("listen", cfg.ListenAddr, "HTTP API listen address")
	pf.String("pinata-api-key", "", "Pinata API key for asset pinning")
	pf.String("pinata-secret-key", "", "Pinata API secret")
	pf.String("ipfs-gateway", "", "IPFS gateway base URL override")
	pf.String("private-key", "", "hex signing key (prefer BLINDNFT_PRIVATE_KEY)")
	pf.String("config", "", "path to a config file")

	root.AddCommand(serveCmd(&cfg))
	root.AddCommand(mintCmd(&cfg))
	root.AddCommand(listCmd(&cfg))
	root.AddCommand(decryptCmd(&cfg))
	root.AddCommand(revealCmd(&cfg))
	return root
}

// loadConfig layers defaults, an optional config file, the environment and
// flags into cfg.
func loadConfig(cmd *cobra.Command, cfg *config.Config) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if key := os.Getenv(envPrefix + "_PRIVATE_KEY"); key != "" && cfg.PrivateKey == "" {
		cfg.PrivateKey = key
	}
	return cfg.Validate()
}

func dial(ctx context.Context, cfg *config.Config) (*client.Client, error) {
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("no signing key configured; set %s_PRIVATE_KEY", envPrefix)
	}
	signer, err := wallet.NewKeySigner(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.CacheDBPath), 0o700); err != nil {
		return nil, err
	}
	return client.Dial(ctx, *cfg, signer)
}

func serveCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the local HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := dial(ctx, cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			srv := api.NewServer(c)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe(cfg.ListenAddr) }()

			select {
			case <-ctx.Done():
				log.Printf("shutting down")
				return nil
			case err := <-errCh:
				return err
			}
		},
	}
}

func mintCmd(cfg *config.Config) *cobra.Command {
	var name, description, imagePath, uri string
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a token, optionally pinning a local image first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			var tokenID uint64
			var txHash string
			switch {
			case imagePath != "":
				f, err := os.Open(imagePath)
				if err != nil {
					return err
				}
				defer f.Close()
				tokenID, txHash, err = c.MintWithAsset(cmd.Context(), name, description, filepath.Base(imagePath), f)
				if err != nil {
					return err
				}
			case uri != "":
				tokenID, txHash, err = c.Mint(cmd.Context(), uri, "")
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("either --image or --uri is required")
			}
			fmt.Printf("minted token %d (tx %s)\n", tokenID, txHash)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "token name for the metadata document")
	cmd.Flags().StringVar(&description, "description", "", "token description")
	cmd.Flags().StringVar(&imagePath, "image", "", "path of an image to pin and mint")
	cmd.Flags().StringVar(&uri, "uri", "", "pre-existing metadata URI to mint")
	return cmd
}

func listCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List owned tokens and their disclosure state",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			tokens, err := c.Tokens(cmd.Context())
			if err != nil {
				return err
			}
			if len(tokens) == 0 {
				fmt.Println("no tokens owned")
				return nil
			}
			for _, t := range tokens {
				if t.Attrs != nil {
					fmt.Printf("#%d  %-18s %s\n", t.TokenID, t.State, t.Attrs)
				} else {
					fmt.Printf("#%d  %-18s attributes unknown\n", t.TokenID, t.State)
				}
			}
			return nil
		},
	}
}

func parseTokenIDs(args []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid token id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func decryptCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt [tokenId...]",
		Short: "Decrypt token attributes locally (all owned tokens when none given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseTokenIDs(args)
			if err != nil {
				return err
			}
			c, err := dial(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			failed, err := c.Decrypt(cmd.Context(), ids...)
			if err != nil {
				return err
			}
			for _, id := range failed {
				fmt.Printf("#%d stayed encrypted\n", id)
			}
			fmt.Println("done")
			return nil
		},
	}
}

func revealCmd(cfg *config.Config) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reveal <tokenId>",
		Short: "Publish a token's decrypted attributes on-chain (irreversible)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid token id %q", args[0])
			}
			if !yes {
				return fmt.Errorf("revealing is irreversible; re-run with --yes to confirm")
			}
			c, err := dial(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			txHash, err := c.Reveal(cmd.Context(), id)
			if errors.Is(err, chain.ErrRevealUnconfirmed) {
				fmt.Printf("tx %s mined but no reveal event found; state settles on next sync\n", txHash)
				return nil
			}
			if err != nil {
				return err
			}
			if txHash == "" {
				fmt.Printf("token %d was already revealed\n", id)
				return nil
			}
			fmt.Printf("token %d revealed (tx %s)\n", id, txHash)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the irreversible reveal")
	return cmd
}
