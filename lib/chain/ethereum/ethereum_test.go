package ethereum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tarancss/fundadp/lib/chain/types"
	"github.com/tarancss/fundadp/lib/util"
)

const (
	testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testKey      = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testTxHash   = "0x6c9fd64d23a171cf37f4b56e63b0f4b4c5d1a62ad25da0a6e35b9d24aa6f51fd"
)

// mockNode is a minimal JSON-RPC endpoint serving canned chain state to the client under test.
type mockNode struct {
	mu      sync.Mutex
	head    uint64
	receipt string // raw result for eth_getTransactionReceipt
	call    string // raw result for eth_call
}

func (m *mockNode) handler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	m.mu.Lock()
	var result string
	switch req.Method {
	case "eth_chainId":
		result = `"0x539"`
	case "eth_blockNumber":
		result = fmt.Sprintf(`"0x%x"`, m.head)
	case "eth_getTransactionReceipt":
		result = m.receipt
	case "eth_getTransactionCount":
		result = `"0x1"`
	case "eth_gasPrice":
		result = `"0x3b9aca00"`
	case "eth_estimateGas":
		result = `"0xbef5"`
	case "eth_sendRawTransaction":
		result = `"` + testTxHash + `"`
	case "eth_call":
		result = m.call
	default:
		result = "null"
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, result)
}

func (m *mockNode) set(head uint64, receipt, call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head, m.receipt, m.call = head, receipt, call
}

func newTestChain(t *testing.T) (*Ethereum, *mockNode, func()) {
	t.Helper()

	m := &mockNode{receipt: "null", call: "null"}
	srv := httptest.NewServer(http.HandlerFunc(m.handler))

	e, err := Init(srv.URL, testContract, testKey, 1)
	if err != nil {
		srv.Close()
		t.Fatalf("Error connecting to mock node: %e", err)
	}

	return e, m, func() {
		e.Close()
		srv.Close()
	}
}

// word renders an amount of whole units as a 32-byte ABI word.
func word(units uint64) string {
	return fmt.Sprintf("%064x", util.ToWei(units))
}

// fundLog renders a fund contract event log carrying the requested amount and its settled counterpart.
func fundLog(topic common.Hash, block, requested, settled uint64) string {
	return fmt.Sprintf(`{"address":"%s","topics":["%s","0x%064x"],"data":"0x%s%s","blockNumber":"0x%x",`+
		`"transactionHash":"%s","transactionIndex":"0x0","blockHash":"0x%064x","logIndex":"0x0","removed":false}`,
		strings.ToLower(testContract), topic.Hex(), 1, word(requested), word(settled), block, testTxHash, block)
}

// receiptJSON renders a transaction receipt as returned by a node.
func receiptJSON(block uint64, status, logs string) string {
	return fmt.Sprintf(`{"transactionHash":"%s","transactionIndex":"0x0","blockHash":"0x%064x",`+
		`"blockNumber":"0x%x","cumulativeGasUsed":"0xbef5","gasUsed":"0xbef5","contractAddress":null,`+
		`"logs":[%s],"status":"%s","logsBloom":"0x%s","type":"0x0"}`,
		testTxHash, block, block, logs, status, strings.Repeat("0", 512))
}

func TestInit(t *testing.T) {
	if _, err := Init("http://localhost:8545", "", testKey, 1); !errors.Is(err, types.ErrNoContract) {
		t.Errorf("got error %e, expected ErrNoContract", err)
	}
	if _, err := Init("http://localhost:8545", testContract, "", 1); !errors.Is(err, types.ErrNoKey) {
		t.Errorf("got error %e, expected ErrNoKey", err)
	}
	if _, err := Init("http://localhost:8545", testContract, "zz", 1); err == nil {
		t.Error("expected error for a malformed signing key")
	}
}

func TestReceiptNotMined(t *testing.T) {
	e, _, stop := newTestChain(t)
	defer stop()

	if _, err := e.Receipt(context.Background(), testTxHash); !errors.Is(err, types.ErrNoReceipt) {
		t.Errorf("got error %e, expected ErrNoReceipt", err)
	}
}

// TestReceiptConfirmed checks the confirmation depth arithmetic and the settled amount decoding from the fund event.
func TestReceiptConfirmed(t *testing.T) {
	e, m, stop := newTestChain(t)
	defer stop()

	// mined at 16, head at 21: buried under 6 blocks
	m.set(21, receiptJSON(16, "0x1", fundLog(investedTopic, 16, 100, 105)), "null")

	rcp, err := e.Receipt(context.Background(), testTxHash)
	if err != nil {
		t.Fatalf("Error getting receipt: %e", err)
	}

	if rcp.Block != 16 || rcp.Confirmations != 6 || rcp.Status != types.TrxSuccess || rcp.Settled != 105 {
		t.Errorf("unexpected receipt %+v", rcp)
	}
}

// TestReceiptRedeemed checks the redemption event is decoded the same way.
func TestReceiptRedeemed(t *testing.T) {
	e, m, stop := newTestChain(t)
	defer stop()

	m.set(18, receiptJSON(16, "0x1", fundLog(redeemedTopic, 16, 40, 39)), "null")

	rcp, err := e.Receipt(context.Background(), testTxHash)
	if err != nil {
		t.Fatalf("Error getting receipt: %e", err)
	}

	if rcp.Confirmations != 3 || rcp.Status != types.TrxSuccess || rcp.Settled != 39 {
		t.Errorf("unexpected receipt %+v", rcp)
	}
}

func TestReceiptReverted(t *testing.T) {
	e, m, stop := newTestChain(t)
	defer stop()

	m.set(17, receiptJSON(16, "0x0", ""), "null")

	rcp, err := e.Receipt(context.Background(), testTxHash)
	if err != nil {
		t.Fatalf("Error getting receipt: %e", err)
	}

	if rcp.Status != types.TrxFailed || rcp.Settled != 0 || rcp.Confirmations != 2 {
		t.Errorf("unexpected receipt %+v", rcp)
	}
}

// TestReceiptNoEvent checks a successful receipt with no decodable fund event reports a settled amount of 0.
func TestReceiptNoEvent(t *testing.T) {
	e, m, stop := newTestChain(t)
	defer stop()

	m.set(30, receiptJSON(16, "0x1", ""), "null")

	rcp, err := e.Receipt(context.Background(), testTxHash)
	if err != nil {
		t.Fatalf("Error getting receipt: %e", err)
	}

	if rcp.Status != types.TrxSuccess || rcp.Settled != 0 {
		t.Errorf("unexpected receipt %+v", rcp)
	}
}

func TestSubmit(t *testing.T) {
	e, _, stop := newTestChain(t)
	defer stop()

	hash, err := e.Submit(context.Background(), "invest", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", 100)
	if err != nil {
		t.Fatalf("Error submitting transaction: %e", err)
	}
	if len(hash) != 66 || !strings.HasPrefix(hash, "0x") {
		t.Errorf("got hash %s, expected a 32-byte hex hash", hash)
	}

	if _, err = e.Submit(context.Background(), "transfer", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", 100); !errors.Is(err, types.ErrBadFunc) {
		t.Errorf("got error %e, expected ErrBadFunc", err)
	}
}

func TestBalance(t *testing.T) {
	e, m, stop := newTestChain(t)
	defer stop()

	m.set(10, "null", `"0x`+word(3)+`"`)

	bal, err := e.Balance(context.Background(), "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	if err != nil {
		t.Fatalf("Error getting balance: %e", err)
	}

	if bal.Cmp(util.ToWei(3)) != 0 {
		t.Errorf("got balance %s, expected %s", bal, util.ToWei(3))
	}
}

func TestFundMetrics(t *testing.T) {
	e, m, stop := newTestChain(t)
	defer stop()

	m.set(10, "null", `"0x`+word(2500)+word(1000)+`"`)

	invested, shares, err := e.FundMetrics(context.Background())
	if err != nil {
		t.Fatalf("Error getting fund metrics: %e", err)
	}

	if invested.Cmp(util.ToWei(2500)) != 0 || shares.Cmp(util.ToWei(1000)) != 0 {
		t.Errorf("got metrics %s/%s, expected 2500/1000 in wire units", invested, shares)
	}
}
