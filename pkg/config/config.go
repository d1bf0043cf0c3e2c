package config

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for drop-server configuration
const (
	EnvDropRoot            = "DROP_ROOT"
	EnvDropPort            = "DROP_PORT"
	EnvDropChainID         = "DROP_CHAIN_ID"
	EnvDropDomainName      = "DROP_DOMAIN_NAME"
	EnvDropDomainVersion   = "DROP_DOMAIN_VERSION"
	EnvDropContractAddress = "DROP_CONTRACT_ADDRESS"
	EnvDropLedgerBackend   = "DROP_LEDGER_BACKEND"
	EnvDropBadgerPath      = "DROP_BADGER_PATH"
	EnvDropRedisAddress    = "DROP_REDIS_ADDRESS"
	EnvDropRedisDB         = "DROP_REDIS_DB"
	EnvDropRedisKeyPrefix  = "DROP_REDIS_KEY_PREFIX"
	EnvDropTokenBackend    = "DROP_TOKEN_BACKEND"
	EnvDropRPCURL          = "DROP_RPC_URL"
	EnvDropTokenAddress    = "DROP_TOKEN_ADDRESS"
	EnvDropSignerBackend   = "DROP_SIGNER_BACKEND"
	EnvDropPayoutKey       = "DROP_PAYOUT_PRIVATE_KEY"
	EnvDropKMSKeyID        = "DROP_KMS_KEY_ID"
	EnvDropMemoryPool      = "DROP_MEMORY_POOL"
	EnvDropVerbose         = "DROP_VERBOSE"
)

// LedgerBackend selects the claim ledger implementation.
type LedgerBackend string

const (
	LedgerBackendMemory LedgerBackend = "memory"
	LedgerBackendBadger LedgerBackend = "badger"
	LedgerBackendRedis  LedgerBackend = "redis"
)

// TokenBackend selects the transfer capability implementation.
type TokenBackend string

const (
	TokenBackendMemory TokenBackend = "memory"
	TokenBackendERC20  TokenBackend = "erc20"
)

// SignerBackend selects how ERC-20 payout transactions are signed.
type SignerBackend string

const (
	SignerBackendLocal  SignerBackend = "local"
	SignerBackendAWSKMS SignerBackend = "aws-kms"
)

type ChainId uint64

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
)

// DistributorConfig is the full drop-server configuration, assembled
// from CLI flags and environment variables.
type DistributorConfig struct {
	// Campaign commitment and instance binding
	RootHex         string
	DomainName      string
	DomainVersion   string
	ChainID         uint64
	ContractAddress string

	// HTTP
	Port int

	// Claim ledger
	LedgerBackend  LedgerBackend
	BadgerPath     string
	RedisAddress   string
	RedisDB        int
	RedisKeyPrefix string

	// Token transfer capability
	TokenBackend TokenBackend
	RPCURL       string
	TokenAddress string
	MemoryPool   string // decimal, memory backend only

	// Payout signing (erc20 backend only)
	SignerBackend    SignerBackend
	PayoutPrivateKey string
	KMSKeyID         string

	Verbose bool
}

// Validate checks the configuration for completeness and consistency.
func (c *DistributorConfig) Validate() field.ErrorList {
	var allErrors field.ErrorList

	if c.RootHex == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("root"), "merkle root is required"))
	}
	if c.DomainName == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("domainName"), "EIP-712 domain name is required"))
	}
	if c.DomainVersion == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("domainVersion"), "EIP-712 domain version is required"))
	}
	if c.ChainID == 0 {
		allErrors = append(allErrors, field.Required(field.NewPath("chainId"), "chain id is required"))
	}
	if c.ContractAddress == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("contractAddress"), "verifying contract address is required"))
	} else if !common.IsHexAddress(c.ContractAddress) {
		allErrors = append(allErrors, field.Invalid(field.NewPath("contractAddress"), c.ContractAddress, "not a valid hex address"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "must be in range 1-65535"))
	}

	switch c.LedgerBackend {
	case LedgerBackendMemory:
	case LedgerBackendBadger:
		if c.BadgerPath == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("badgerPath"), "badger ledger requires a data path"))
		}
	case LedgerBackendRedis:
		if c.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redis ledger requires an address"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("ledgerBackend"), string(c.LedgerBackend),
			[]string{string(LedgerBackendMemory), string(LedgerBackendBadger), string(LedgerBackendRedis)}))
	}

	switch c.TokenBackend {
	case TokenBackendMemory:
	case TokenBackendERC20:
		if c.RPCURL == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("rpcUrl"), "erc20 token backend requires an RPC URL"))
		}
		if c.TokenAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("tokenAddress"), "erc20 token backend requires a token address"))
		} else if !common.IsHexAddress(c.TokenAddress) {
			allErrors = append(allErrors, field.Invalid(field.NewPath("tokenAddress"), c.TokenAddress, "not a valid hex address"))
		}
		switch c.SignerBackend {
		case SignerBackendLocal:
			if c.PayoutPrivateKey == "" {
				allErrors = append(allErrors, field.Required(field.NewPath("payoutPrivateKey"), "local signer requires a private key"))
			}
		case SignerBackendAWSKMS:
			if c.KMSKeyID == "" {
				allErrors = append(allErrors, field.Required(field.NewPath("kmsKeyId"), "aws-kms signer requires a key id"))
			}
		default:
			allErrors = append(allErrors, field.NotSupported(field.NewPath("signerBackend"), string(c.SignerBackend),
				[]string{string(SignerBackendLocal), string(SignerBackendAWSKMS)}))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("tokenBackend"), string(c.TokenBackend),
			[]string{string(TokenBackendMemory), string(TokenBackendERC20)}))
	}

	return allErrors
}

// ValidateOrError collapses Validate into a single error for CLI use.
func (c *DistributorConfig) ValidateOrError() error {
	if errs := c.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", errs.ToAggregate().Error())
	}
	return nil
}
