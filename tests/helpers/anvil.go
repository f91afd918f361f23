package helpers

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/require"
)

const (
	// Anvil default private key (first account)
	anvilPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	txGasLimit = 200_000
)

// getFreePort asks the kernel for a free open port that is ready to use
func getFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "failed to get free port")

	port := listener.Addr().(*net.TCPAddr).Port

	err = listener.Close()
	require.NoError(t, err, "failed to close port listener")

	return port
}

// AnvilInstance manages an Anvil test node
type AnvilInstance struct {
	cmd        *exec.Cmd
	URL        string
	Client     *ethclient.Client
	PrivateKey *ecdsa.PrivateKey
	Account    common.Address
	ChainID    *big.Int
}

// StartAnvil starts an Anvil instance for testing
func StartAnvil(t *testing.T) *AnvilInstance {
	t.Helper()

	port := getFreePort(t)
	anvilURL := fmt.Sprintf("http://127.0.0.1:%d", port)

	// No --block-time flag = every transaction is mined into its own block
	cmd := exec.Command("anvil",
		"--port", fmt.Sprintf("%d", port),
	)

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Start()
	require.NoError(t, err, "failed to start anvil")

	// Wait for Anvil to be ready
	time.Sleep(2 * time.Second)

	client, err := ethclient.Dial(anvilURL)
	require.NoError(t, err, "failed to connect to anvil")

	ctx := t.Context()
	chainID, err := client.ChainID(ctx)
	require.NoError(t, err, "failed to get chain ID")

	privateKey, err := crypto.HexToECDSA(anvilPrivateKey)
	require.NoError(t, err, "failed to parse private key")

	instance := &AnvilInstance{
		cmd:        cmd,
		URL:        anvilURL,
		Client:     client,
		PrivateKey: privateKey,
		Account:    crypto.PubkeyToAddress(privateKey.PublicKey),
		ChainID:    chainID,
	}

	t.Cleanup(func() {
		instance.Stop()
	})

	return instance
}

// Stop stops the Anvil instance
func (a *AnvilInstance) Stop() {
	if a.Client != nil {
		a.Client.Close()
	}
	if a.cmd != nil && a.cmd.Process != nil {
		_ = a.cmd.Process.Kill()
		_ = a.cmd.Wait()
	}
}

// sendTx signs and sends a legacy transaction from the default account and waits for its receipt.
func (a *AnvilInstance) sendTx(t *testing.T, to *common.Address, data []byte) *types.Receipt {
	t.Helper()

	ctx := t.Context()

	nonce, err := a.Client.PendingNonceAt(ctx, a.Account)
	require.NoError(t, err, "failed to get nonce")

	gasPrice, err := a.Client.SuggestGasPrice(ctx)
	require.NoError(t, err, "failed to get gas price")

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      txGasLimit,
		To:       to,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(a.ChainID), a.PrivateKey)
	require.NoError(t, err, "failed to sign transaction")
	require.NoError(t, a.Client.SendTransaction(ctx, signed), "failed to send transaction")

	var receipt *types.Receipt
	require.Eventually(t, func() bool {
		receipt, err = a.Client.TransactionReceipt(ctx, signed.Hash())
		return err == nil
	}, 10*time.Second, 50*time.Millisecond, "transaction was not mined")
	require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status, "transaction reverted")

	return receipt
}

// DeployTransferEmitter deploys TransferEmitterBytecode and returns its address.
func (a *AnvilInstance) DeployTransferEmitter(t *testing.T) common.Address {
	t.Helper()

	receipt := a.sendTx(t, nil, common.FromHex(TransferEmitterBytecode))
	require.NotEqual(t, common.Address{}, receipt.ContractAddress)

	return receipt.ContractAddress
}

// EmitTransfer makes emitter log Transfer(account, to, value) and returns the receipt.
func (a *AnvilInstance) EmitTransfer(t *testing.T, emitter, to common.Address, value *big.Int) *types.Receipt {
	t.Helper()

	data := append(common.LeftPadBytes(to.Bytes(), 32), common.LeftPadBytes(value.Bytes(), 32)...)

	return a.sendTx(t, &emitter, data)
}

// CreateSnapshot creates a snapshot of the current chain state
func (a *AnvilInstance) CreateSnapshot(t *testing.T) string {
	t.Helper()

	var snapshotID string
	err := a.Client.Client().Call(&snapshotID, "evm_snapshot")
	require.NoError(t, err, "failed to create snapshot")

	return snapshotID
}

// RevertToSnapshot reverts the chain to a previous snapshot. Transactions sent afterwards
// build an alternative chain at the same heights, which is how tests simulate a reorg.
func (a *AnvilInstance) RevertToSnapshot(t *testing.T, snapshotID string) {
	t.Helper()

	var success bool
	err := a.Client.Client().Call(&success, "evm_revert", snapshotID)
	require.NoError(t, err, "failed to revert to snapshot")
	require.True(t, success, "snapshot revert returned false")
}

// Mine mines the specified number of new blocks manually
func (a *AnvilInstance) Mine(t *testing.T, numBlocks int) {
	t.Helper()

	for range numBlocks {
		var blockHash string
		err := a.Client.Client().Call(&blockHash, "evm_mine")
		require.NoError(t, err, "failed to mine block")
	}
}

// GetBlockNumber returns the current block number
func (a *AnvilInstance) GetBlockNumber(t *testing.T) uint64 {
	t.Helper()

	blockNumber, err := a.Client.BlockNumber(t.Context())
	require.NoError(t, err, "failed to get block number")

	return blockNumber
}

// GetBlockHash returns the hash of a specific block
func (a *AnvilInstance) GetBlockHash(t *testing.T, blockNumber uint64) common.Hash {
	t.Helper()

	header, err := a.Client.HeaderByNumber(t.Context(), new(big.Int).SetUint64(blockNumber))
	require.NoError(t, err, "failed to get block")

	return header.Hash()
}

// SkipIfAnvilNotAvailable skips the test if Anvil is not available
func SkipIfAnvilNotAvailable(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("anvil"); err != nil {
		t.Skip("anvil not found in PATH, skipping integration test")
	}
}
