// Implements the chain gateway for ethereum networks
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"log"
	"math/big"
	"strings"
	"time"

	eth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/tarancss/fundadp/lib/chain/types"
	"github.com/tarancss/fundadp/lib/util"
)

// fundABI describes the four functions exposed by the fund contract. Amounts are 18-decimal fixed point at the wire
// boundary.
const fundABI = `[
	{"type":"function","name":"invest","stateMutability":"nonpayable","inputs":[{"name":"investor","type":"address"},{"name":"usdAmount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"redeem","stateMutability":"nonpayable","inputs":[{"name":"investor","type":"address"},{"name":"shareAmount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getBalance","stateMutability":"view","inputs":[{"name":"investor","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getFundMetrics","stateMutability":"view","inputs":[],"outputs":[{"name":"totalInvested","type":"uint256"},{"name":"totalShares","type":"uint256"}]}
]`

// Fund contract event topics. Both events carry the requested amount followed by the settled counterpart in their
// data section: Invested(investor, usdAmount, sharesIssued) and Redeemed(investor, shareAmount, usdAmount).
var (
	investedTopic = crypto.Keccak256Hash([]byte("Invested(address,uint256,uint256)")) //nolint:gochecknoglobals // event signature
	redeemedTopic = crypto.Keccak256Hash([]byte("Redeemed(address,uint256,uint256)")) //nolint:gochecknoglobals // event signature
)

// rpcTimeout bounds every single RPC call so an unresponsive node cannot wedge a caller.
const rpcTimeout = 10 * time.Second

// Ethereum implements a connection to an ethereum-type chain holding the fund contract.
type Ethereum struct {
	c        *ethclient.Client
	abi      abi.ABI
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	ab       int
}

// Init returns a connection to an ethereum node, bound to the given fund contract and operator signing key. avgBlock
// indicates the average block mining time in seconds and drives the head polling rate.
func Init(node, contract, key string, avgBlock int) (*Ethereum, error) {
	if contract == "" {
		return nil, types.ErrNoContract
	}
	if key == "" {
		return nil, types.ErrNoKey
	}

	pk, err := crypto.HexToECDSA(strings.TrimPrefix(key, "0x"))
	if err != nil {
		return nil, err
	}

	c, err := ethclient.Dial(node)
	if err != nil {
		return nil, err
	}

	parsed, err := abi.JSON(strings.NewReader(fundABI))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()

	chainID, err := c.ChainID(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	return &Ethereum{
		c:        c,
		abi:      parsed,
		contract: common.HexToAddress(contract),
		key:      pk,
		from:     crypto.PubkeyToAddress(pk.PublicKey),
		chainID:  chainID,
		ab:       avgBlock,
	}, nil
}

// AvgBlock returns the average time to mine a block in seconds.
func (e *Ethereum) AvgBlock() int {
	return e.ab
}

// Close ends the connection
func (e *Ethereum) Close() {
	e.c.Close()
}

// Submit packs, signs and broadcasts a fund contract call returning the transaction hash. It does not wait for the
// transaction to be mined.
func (e *Ethereum) Submit(ctx context.Context, function, investor string, amount uint64) (string, error) {
	if function != "invest" && function != "redeem" {
		return "", types.ErrBadFunc
	}

	data, err := e.abi.Pack(function, common.HexToAddress(investor), util.ToWei(amount))
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	nonce, err := e.c.PendingNonceAt(ctx, e.from)
	if err != nil {
		return "", err
	}

	price, err := e.c.SuggestGasPrice(ctx)
	if err != nil {
		return "", err
	}

	gas, err := e.c.EstimateGas(ctx, eth.CallMsg{From: e.from, To: &e.contract, Data: data})
	if err != nil {
		return "", err
	}

	tx := gtypes.NewTx(&gtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: price,
		Gas:      gas,
		To:       &e.contract,
		Data:     data,
	})

	signed, err := gtypes.SignTx(tx, gtypes.LatestSignerForChainID(e.chainID), e.key)
	if err != nil {
		return "", err
	}

	if err = e.c.SendTransaction(ctx, signed); err != nil {
		return "", err
	}

	return signed.Hash().Hex(), nil
}

// Receipt returns the receipt details of the given transaction. While the transaction is not mined it returns
// types.ErrNoReceipt. The settled amount is decoded from the fund contract event emitted by the transaction.
func (e *Ethereum) Receipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	rcp, err := e.c.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, eth.NotFound) {
			return nil, types.ErrNoReceipt
		}

		return nil, err
	}

	head, err := e.c.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	r := &types.Receipt{TxHash: txHash, Block: rcp.BlockNumber.Uint64(), Status: types.TrxFailed}
	if head >= r.Block {
		r.Confirmations = head - r.Block + 1
	}

	if rcp.Status == gtypes.ReceiptStatusSuccessful {
		r.Status = types.TrxSuccess
		r.Settled = e.settled(rcp.Logs)
	}

	return r, nil
}

// settled extracts the settled amount from the fund contract event logs. The counterpart value (shares issued for an
// investment, usd realized for a redemption) is the second data word of both events.
func (e *Ethereum) settled(logs []*gtypes.Log) uint64 {
	for _, l := range logs {
		if l.Address != e.contract || len(l.Topics) == 0 || len(l.Data) < 64 {
			continue
		}
		if l.Topics[0] == investedTopic || l.Topics[0] == redeemedTopic {
			return util.FromWei(new(big.Int).SetBytes(l.Data[32:64]))
		}
	}

	log.Printf("chain: no fund event found in receipt logs, settled amount unknown")

	return 0
}

// Balance returns the fund balance of the investor in 18-decimal wire units.
func (e *Ethereum) Balance(ctx context.Context, investor string) (*big.Int, error) {
	out, err := e.view(ctx, "getBalance", common.HexToAddress(investor))
	if err != nil {
		return nil, err
	}

	return out[0].(*big.Int), nil
}

// FundMetrics returns the total invested and total shares of the fund in 18-decimal wire units.
func (e *Ethereum) FundMetrics(ctx context.Context) (*big.Int, *big.Int, error) {
	out, err := e.view(ctx, "getFundMetrics")
	if err != nil {
		return nil, nil, err
	}

	return out[0].(*big.Int), out[1].(*big.Int), nil
}

// view packs and executes a read-only contract call, returning the unpacked outputs.
func (e *Ethereum) view(ctx context.Context, function string, args ...interface{}) ([]interface{}, error) {
	data, err := e.abi.Pack(function, args...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	out, err := e.c.CallContract(ctx, eth.CallMsg{To: &e.contract, Data: data}, nil)
	if err != nil {
		return nil, err
	}

	return e.abi.Unpack(function, out)
}

// WatchHeads polls the node for the chain head and yields every new height observed until ctx is cancelled. The
// channel is buffered and sends never block: when the consumer is busy a height is dropped and a newer one is
// delivered on the next poll, which is harmless since consumers re-scan everything per trigger.
func (e *Ethereum) WatchHeads(ctx context.Context) (<-chan uint64, error) {
	heads := make(chan uint64, 1)

	go func() {
		defer close(heads)

		var last uint64

		t := time.NewTicker(time.Duration(e.ab) * time.Second)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}

			cctx, cancel := context.WithTimeout(ctx, rpcTimeout)
			n, err := e.c.BlockNumber(cctx)
			cancel()

			if err != nil {
				log.Printf("chain: error polling head:%e", err)

				continue
			}

			if n > last {
				last = n
				select {
				case heads <- n:
				default:
				}
			}
		}
	}()

	return heads, nil
}
