package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"shieldswap-client/internal/metrics"
	localtypes "shieldswap-client/internal/types"
	"shieldswap-client/internal/zkhash"
)

// Deposit event and root query of the pool contract:
//
//	event Deposit(bytes32 indexed commitment, uint32 leafIndex, uint256 timestamp)
//	function getLastRoot() external view returns (bytes32)
const (
	depositEventSignature = "Deposit(bytes32,uint32,uint256)"
	lastRootMethod        = "getLastRoot()"
)

// ChainReader is the read-only chain surface the synchronizer depends on.
// The production implementation is PoolClient; tests supply fakes.
type ChainReader interface {
	HeadBlock(ctx context.Context) (uint64, error)
	DepositEvents(ctx context.Context, fromBlock, toBlock uint64) ([]localtypes.DepositEvent, error)
	CurrentRoot(ctx context.Context) (*big.Int, error)
}

// PoolClient reads Deposit logs and the canonical root from one pool
// contract over JSON-RPC.
type PoolClient struct {
	eth          *ethclient.Client
	poolAddress  common.Address
	depositTopic common.Hash
	rootSelector []byte
	depositArgs  abi.Arguments
	log          *logrus.Entry
}

// mustNewType creates a new ABI type, panicking on error (for use in package-level setup)
func mustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("failed to create ABI type %s: %v", t, err))
	}
	return typ
}

// NewPoolClient dials the RPC endpoint and binds to the pool contract.
func NewPoolClient(rpcURL, poolAddress string) (*PoolClient, error) {
	if !common.IsHexAddress(poolAddress) {
		return nil, fmt.Errorf("invalid pool address %q", poolAddress)
	}
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", rpcURL, err)
	}
	return newPoolClient(eth, poolAddress), nil
}

func newPoolClient(eth *ethclient.Client, poolAddress string) *PoolClient {
	return &PoolClient{
		eth:          eth,
		poolAddress:  common.HexToAddress(poolAddress),
		depositTopic: crypto.Keccak256Hash([]byte(depositEventSignature)),
		rootSelector: crypto.Keccak256([]byte(lastRootMethod))[:4],
		depositArgs: abi.Arguments{
			{Name: "leafIndex", Type: mustNewType("uint32")},
			{Name: "timestamp", Type: mustNewType("uint256")},
		},
		log: logrus.WithField("component", "pool_client"),
	}
}

// HeadBlock returns the current chain head number.
func (c *PoolClient) HeadBlock(ctx context.Context) (uint64, error) {
	head, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("query chain head: %w", err)
	}
	return head, nil
}

// DepositEvents fetches and decodes every Deposit log in [fromBlock, toBlock].
// Logs that fail validation are dropped with a warning instead of poisoning
// the tree; a dropped real deposit surfaces later as a root mismatch.
func (c *PoolClient) DepositEvents(ctx context.Context, fromBlock, toBlock uint64) ([]localtypes.DepositEvent, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.poolAddress},
		Topics:    [][]common.Hash{{c.depositTopic}},
	}
	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("filter deposit logs [%d, %d]: %w", fromBlock, toBlock, err)
	}

	events := make([]localtypes.DepositEvent, 0, len(logs))
	for _, entry := range logs {
		event, err := c.decodeDepositLog(entry)
		if err != nil {
			c.log.WithFields(logrus.Fields{
				"block":   entry.BlockNumber,
				"tx_hash": entry.TxHash.Hex(),
				"error":   err,
			}).Warn("Dropping malformed deposit log")
			metrics.MalformedEventsTotal.Inc()
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (c *PoolClient) decodeDepositLog(entry types.Log) (localtypes.DepositEvent, error) {
	var event localtypes.DepositEvent
	if len(entry.Topics) < 2 {
		return event, fmt.Errorf("missing indexed commitment topic")
	}
	values, err := c.depositArgs.Unpack(entry.Data)
	if err != nil {
		return event, fmt.Errorf("unpack deposit data: %w", err)
	}
	if len(values) != 2 {
		return event, fmt.Errorf("unexpected deposit data arity %d", len(values))
	}
	leafIndex, ok := values[0].(uint32)
	if !ok {
		return event, fmt.Errorf("leafIndex has unexpected type %T", values[0])
	}
	timestamp, ok := values[1].(*big.Int)
	if !ok {
		return event, fmt.Errorf("timestamp has unexpected type %T", values[1])
	}

	event = localtypes.DepositEvent{
		Commitment:  new(big.Int).SetBytes(entry.Topics[1].Bytes()),
		LeafIndex:   leafIndex,
		Timestamp:   timestamp.Uint64(),
		BlockNumber: entry.BlockNumber,
		TxHash:      entry.TxHash.Hex(),
	}
	if err := event.Validate(); err != nil {
		return event, err
	}
	return event, nil
}

// CurrentRoot reads the pool's published Merkle root via getLastRoot().
func (c *PoolClient) CurrentRoot(ctx context.Context) (*big.Int, error) {
	msg := ethereum.CallMsg{To: &c.poolAddress, Data: c.rootSelector}
	raw, err := c.eth.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", strings.TrimSuffix(lastRootMethod, "()"), err)
	}
	if len(raw) < 32 {
		return nil, fmt.Errorf("short root response (%d bytes)", len(raw))
	}
	root := new(big.Int).SetBytes(raw[:32])
	if !zkhash.WithinField(root) {
		return nil, fmt.Errorf("on-chain root outside scalar field")
	}
	return root, nil
}

// Close releases the underlying RPC connection.
func (c *PoolClient) Close() {
	c.eth.Close()
}
