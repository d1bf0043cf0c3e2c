package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/merkledrop-labs/merkledrop-go/pkg/config"
	"github.com/merkledrop-labs/merkledrop-go/pkg/distributor"
	"github.com/merkledrop-labs/merkledrop-go/pkg/eip712"
	"github.com/merkledrop-labs/merkledrop-go/pkg/ledger"
	badgerledger "github.com/merkledrop-labs/merkledrop-go/pkg/ledger/badger"
	memoryledger "github.com/merkledrop-labs/merkledrop-go/pkg/ledger/memory"
	redisledger "github.com/merkledrop-labs/merkledrop-go/pkg/ledger/redis"
	"github.com/merkledrop-labs/merkledrop-go/pkg/logger"
	"github.com/merkledrop-labs/merkledrop-go/pkg/payoutsigner"
	"github.com/merkledrop-labs/merkledrop-go/pkg/token"
	"github.com/merkledrop-labs/merkledrop-go/pkg/token/erc20"
	memorytoken "github.com/merkledrop-labs/merkledrop-go/pkg/token/memory"
	"github.com/merkledrop-labs/merkledrop-go/pkg/types"
)

func main() {
	app := &cli.App{
		Name:  "drop-server",
		Usage: "Merkle entitlement distributor server",
		Description: `Serves one airdrop campaign: a fixed merkle root committing to
(account, amount) entitlements. Recipients redeem exactly once by
presenting an inclusion proof plus an EIP-712 authorization signature.
Anyone may submit a claim on a recipient's behalf; only the recipient's
key can authorize it.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "root",
				Usage:    "Committed merkle root (0x-prefixed 32-byte hex)",
				EnvVars:  []string{config.EnvDropRoot},
				Required: true,
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8080,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvDropPort},
			},
			&cli.Uint64Flag{
				Name:     "chain-id",
				Usage:    "Chain ID baked into the EIP-712 domain: 1 (mainnet), 11155111 (sepolia), 31337 (anvil)",
				EnvVars:  []string{config.EnvDropChainID},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "domain-name",
				Value:   "MerkleDrop",
				Usage:   "EIP-712 domain name",
				EnvVars: []string{config.EnvDropDomainName},
			},
			&cli.StringFlag{
				Name:    "domain-version",
				Value:   "1",
				Usage:   "EIP-712 domain version",
				EnvVars: []string{config.EnvDropDomainVersion},
			},
			&cli.StringFlag{
				Name:     "contract-address",
				Usage:    "Verifying contract / instance address baked into the EIP-712 domain",
				EnvVars:  []string{config.EnvDropContractAddress},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "ledger-backend",
				Value:   "memory",
				Usage:   "Claim ledger backend: memory, badger or redis",
				EnvVars: []string{config.EnvDropLedgerBackend},
			},
			&cli.StringFlag{
				Name:    "badger-path",
				Usage:   "Data directory for the badger ledger",
				EnvVars: []string{config.EnvDropBadgerPath},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis address (host:port) for the redis ledger",
				EnvVars: []string{config.EnvDropRedisAddress},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvDropRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Optional key prefix for multi-campaign Redis setups",
				EnvVars: []string{config.EnvDropRedisKeyPrefix},
			},
			&cli.StringFlag{
				Name:    "token-backend",
				Value:   "memory",
				Usage:   "Transfer capability: memory (dev) or erc20",
				EnvVars: []string{config.EnvDropTokenBackend},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Ethereum RPC URL (erc20 backend)",
				EnvVars: []string{config.EnvDropRPCURL},
			},
			&cli.StringFlag{
				Name:    "token-address",
				Usage:   "ERC-20 token contract address (erc20 backend)",
				EnvVars: []string{config.EnvDropTokenAddress},
			},
			&cli.StringFlag{
				Name:    "signer-backend",
				Value:   "local",
				Usage:   "Payout transaction signer: local or aws-kms (erc20 backend)",
				EnvVars: []string{config.EnvDropSignerBackend},
			},
			&cli.StringFlag{
				Name:    "payout-private-key",
				Usage:   "Hex private key for the local payout signer",
				EnvVars: []string{config.EnvDropPayoutKey},
			},
			&cli.StringFlag{
				Name:    "kms-key-id",
				Usage:   "AWS KMS key id for the aws-kms payout signer",
				EnvVars: []string{config.EnvDropKMSKeyID},
			},
			&cli.StringFlag{
				Name:    "memory-pool",
				Value:   "1000000000000000000000000",
				Usage:   "Initial pool for the memory token backend (decimal)",
				EnvVars: []string{config.EnvDropMemoryPool},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable debug logging",
				EnvVars: []string{config.EnvDropVerbose},
			},
		},
		Action: runDropServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runDropServer(c *cli.Context) error {
	cfg := parseConfig(c)
	if err := cfg.ValidateOrError(); err != nil {
		return err
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Verbose})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	root, err := types.ParseHash32(cfg.RootHex)
	if err != nil {
		return fmt.Errorf("invalid root: %w", err)
	}

	domain := eip712.NewDomain(
		cfg.DomainName,
		cfg.DomainVersion,
		new(big.Int).SetUint64(cfg.ChainID),
		common.HexToAddress(cfg.ContractAddress),
	)

	claimLedger, err := buildLedger(cfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = claimLedger.Close() }()

	if err := claimLedger.HealthCheck(); err != nil {
		return fmt.Errorf("ledger health check failed: %w", err)
	}

	transferor, err := buildTransferor(c.Context, cfg, l)
	if err != nil {
		return err
	}

	dist, err := distributor.New(distributor.Config{
		Root:   root,
		Domain: domain,
		Ledger: claimLedger,
		Token:  transferor,
		Logger: l,
	})
	if err != nil {
		return fmt.Errorf("failed to create distributor: %w", err)
	}

	server := distributor.NewServer(dist, distributor.ServerConfig{Port: cfg.Port}, l)

	l.Sugar().Infow("Starting drop-server",
		"port", cfg.Port,
		"root", cfg.RootHex,
		"chainId", cfg.ChainID,
		"ledger", cfg.LedgerBackend,
		"token", cfg.TokenBackend,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		l.Sugar().Infow("Shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Stop(ctx)
	}
}

func parseConfig(c *cli.Context) *config.DistributorConfig {
	return &config.DistributorConfig{
		RootHex:          c.String("root"),
		DomainName:       c.String("domain-name"),
		DomainVersion:    c.String("domain-version"),
		ChainID:          c.Uint64("chain-id"),
		ContractAddress:  c.String("contract-address"),
		Port:             c.Int("port"),
		LedgerBackend:    config.LedgerBackend(c.String("ledger-backend")),
		BadgerPath:       c.String("badger-path"),
		RedisAddress:     c.String("redis-address"),
		RedisDB:          c.Int("redis-db"),
		RedisKeyPrefix:   c.String("redis-key-prefix"),
		TokenBackend:     config.TokenBackend(c.String("token-backend")),
		RPCURL:           c.String("rpc-url"),
		TokenAddress:     c.String("token-address"),
		SignerBackend:    config.SignerBackend(c.String("signer-backend")),
		PayoutPrivateKey: c.String("payout-private-key"),
		KMSKeyID:         c.String("kms-key-id"),
		MemoryPool:       c.String("memory-pool"),
		Verbose:          c.Bool("verbose"),
	}
}

func buildLedger(cfg *config.DistributorConfig, l *zap.Logger) (ledger.ClaimLedger, error) {
	switch cfg.LedgerBackend {
	case config.LedgerBackendMemory:
		l.Sugar().Warnw("Using in-memory claim ledger; records are lost on restart")
		return memoryledger.NewMemoryLedger(), nil
	case config.LedgerBackendBadger:
		return badgerledger.NewBadgerLedger(cfg.BadgerPath, l)
	case config.LedgerBackendRedis:
		return redisledger.NewRedisLedger(&redisledger.RedisConfig{
			Address:   cfg.RedisAddress,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, l)
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", cfg.LedgerBackend)
	}
}

func buildTransferor(ctx context.Context, cfg *config.DistributorConfig, l *zap.Logger) (token.Transferor, error) {
	switch cfg.TokenBackend {
	case config.TokenBackendMemory:
		pool, err := types.ParseAmount(cfg.MemoryPool)
		if err != nil {
			return nil, fmt.Errorf("invalid memory pool: %w", err)
		}
		return memorytoken.NewMemoryToken(pool), nil

	case config.TokenBackendERC20:
		ethClient, err := ethclient.DialContext(ctx, cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", cfg.RPCURL, err)
		}

		signer, err := buildPayoutSigner(ctx, cfg, ethClient, l)
		if err != nil {
			return nil, err
		}

		l.Sugar().Infow("Payout signer ready", "from", signer.GetFromAddress().Hex())
		return erc20.NewERC20Transferor(common.HexToAddress(cfg.TokenAddress), signer, l), nil

	default:
		return nil, fmt.Errorf("unsupported token backend: %s", cfg.TokenBackend)
	}
}

func buildPayoutSigner(ctx context.Context, cfg *config.DistributorConfig, ethClient *ethclient.Client, l *zap.Logger) (payoutsigner.ITransactionSigner, error) {
	switch cfg.SignerBackend {
	case config.SignerBackendLocal:
		return payoutsigner.NewPrivateKeySigner(cfg.PayoutPrivateKey, ethClient, l)
	case config.SignerBackendAWSKMS:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return payoutsigner.NewAWSKMSSigner(ctx, awsCfg, cfg.KMSKeyID, ethClient, l)
	default:
		return nil, fmt.Errorf("unsupported signer backend: %s", cfg.SignerBackend)
	}
}
