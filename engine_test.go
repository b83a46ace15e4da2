package lending

import (
	"context"
	"fmt"
	"testing"

	"github.com/DomeLiquid/lending/config"
	"github.com/DomeLiquid/lending/core"
	"github.com/DomeLiquid/lending/oracle"
	"github.com/DomeLiquid/lending/store"
	"github.com/DomeLiquid/lending/transfer"
	"github.com/DomeLiquid/lending/utils"
	"github.com/facebookgo/clock"
	"github.com/fox-one/mixin-sdk-go/v2"
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

type testEnv struct {
	ctx       context.Context
	clk       *clock.Mock
	store     *store.Store
	custodian *transfer.Custodian
	prices    *oracle.Static
	engine    *Engine
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.Must(uuid.NewV4()))
	s, err := store.Open(config.DatabaseConfig{Driver: config.DriverSQLite, DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, nil)
}

// newTestEnvWith routes transfers through wrap, e.g. to inject failures.
func newTestEnvWith(t *testing.T, wrap func(c *transfer.Custodian) core.TransferAdapter, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		ctx:       context.Background(),
		clk:       clock.NewMock(),
		store:     openTestStore(t),
		custodian: transfer.NewCustodian(),
		prices:    oracle.NewStatic(core.ONE, nil),
	}
	var adapter core.TransferAdapter = env.custodian
	if wrap != nil {
		adapter = wrap(env.custodian)
	}
	base := []Option{WithClock(env.clk), WithPriceAdapter(env.prices)}
	env.engine = New(env.store, adapter, append(base, opts...)...)
	return env
}

func walletOf(t *testing.T, ownerId string) uuid.UUID {
	t.Helper()
	id, err := utils.WalletId(ownerId)
	require.NoError(t, err)
	return id
}

func treasuryOf(t *testing.T, assetId string) uuid.UUID {
	t.Helper()
	id, err := utils.TreasuryId(assetId)
	require.NoError(t, err)
	return id
}

func (env *testEnv) initBank(t *testing.T, assetId string, lt, maxLtv, rate uint64, opts ...BankOption) {
	t.Helper()
	_, err := env.engine.InitBank(env.ctx, assetId, lt, maxLtv, rate, opts...)
	require.NoError(t, err)
}

func (env *testEnv) initUser(t *testing.T, ownerId string) {
	t.Helper()
	_, err := env.engine.InitUser(env.ctx, ownerId, "mint-usdc")
	require.NoError(t, err)
}

func (env *testEnv) fund(t *testing.T, ownerId, assetId string, amount int64) {
	t.Helper()
	require.NoError(t, env.custodian.Mint(walletOf(t, ownerId), assetId, d(amount)))
}

func (env *testEnv) deposit(t *testing.T, ownerId, assetId string, amount int64) *Receipt {
	t.Helper()
	env.fund(t, ownerId, assetId, amount)
	receipt, err := env.engine.Deposit(env.ctx, ownerId, assetId, d(amount))
	require.NoError(t, err)
	return receipt
}

func (env *testEnv) storedBank(t *testing.T, assetId string) *core.Bank {
	t.Helper()
	bank, err := env.store.GetBankByAssetId(env.ctx, assetId)
	require.NoError(t, err)
	return bank
}

func TestInitBank(t *testing.T) {
	env := newTestEnv(t)

	bankId, err := env.engine.InitBank(env.ctx, "mint-usdc", 2, 1, 5)
	require.NoError(t, err)
	expected, err := utils.BankId("mint-usdc")
	require.NoError(t, err)
	assert.Equal(t, expected, bankId)

	_, err = env.engine.InitBank(env.ctx, "mint-usdc", 80, 50, 5)
	assert.ErrorIs(t, err, core.ErrAlreadyInitialized)

	bank, err := env.engine.GetBank(env.ctx, "mint-usdc")
	require.NoError(t, err)
	assert.True(t, bank.LiquidationThreshold.Equal(decimal.RequireFromString("0.02")), "first init wins")
	assert.True(t, bank.CloseFactor.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, treasuryOf(t, "mint-usdc"), bank.TreasuryAccountId)

	tests := []struct {
		name    string
		assetId string
		lt, ltv uint64
		wantErr error
	}{
		{"ltv above threshold", "mint-a", 50, 80, core.ErrInvalidParameters},
		{"threshold above one", "mint-b", 101, 50, core.ErrInvalidParameters},
		{"empty asset", "", 80, 50, core.ErrInvalidKeyMaterial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.InitBank(env.ctx, tt.assetId, tt.lt, tt.ltv, 5)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err = env.engine.GetBank(env.ctx, "mint-a")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = env.engine.InitBank(env.ctx, "mint-sol", 80, 50, 5, WithLiquidationBonus(10), WithCloseFactor(100), WithAuthority("admin"))
	require.NoError(t, err)
	sol, err := env.engine.GetBank(env.ctx, "mint-sol")
	require.NoError(t, err)
	assert.True(t, sol.LiquidationBonus.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, sol.CloseFactor.Equal(core.ONE))
	assert.Equal(t, "admin", sol.Authority)

	banks, err := env.engine.ListBanks(env.ctx)
	require.NoError(t, err)
	assert.Len(t, banks, 2)

	ops, err := env.engine.Operations(env.ctx, "admin", 0)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, core.OperationTypeInitBank, ops[0].Type)
}

func TestGetOrInitBank(t *testing.T) {
	env := newTestEnv(t)

	bank, err := env.engine.GetOrInitBank(env.ctx, "mint-usdc", 80, 50, 5)
	require.NoError(t, err)
	again, err := env.engine.GetOrInitBank(env.ctx, "mint-usdc", 90, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, bank.Id, again.Id)
	assert.True(t, again.MaxLtv.Equal(decimal.RequireFromString("0.5")))

	_, err = env.engine.GetOrInitBank(env.ctx, "mint-sol", 10, 50, 5)
	assert.ErrorIs(t, err, core.ErrInvalidParameters)
}

func TestInitUser(t *testing.T) {
	env := newTestEnv(t)

	userId, err := env.engine.InitUser(env.ctx, "alice", "mint-usdc")
	require.NoError(t, err)
	expected, err := utils.UserId("alice")
	require.NoError(t, err)
	assert.Equal(t, expected, userId)

	_, err = env.engine.InitUser(env.ctx, "alice", "mint-sol")
	assert.ErrorIs(t, err, core.ErrAlreadyInitialized)

	user, err := env.engine.GetUser(env.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "mint-usdc", user.ReferenceAssetId, "reference asset unchanged")
	assert.Empty(t, user.Positions)

	_, err = env.engine.GetUser(env.ctx, "bob")
	assert.ErrorIs(t, err, core.ErrNotFound)

	bob, err := env.engine.GetOrInitUser(env.ctx, "bob", "mint-sol")
	require.NoError(t, err)
	bobAgain, err := env.engine.GetOrInitUser(env.ctx, "bob", "mint-usdc")
	require.NoError(t, err)
	assert.Equal(t, bob.Id, bobAgain.Id)
	assert.Equal(t, "mint-sol", bobAgain.ReferenceAssetId)

	_, err = env.engine.InitUser(env.ctx, "", "mint-usdc")
	assert.ErrorIs(t, err, core.ErrInvalidKeyMaterial)
	_, err = env.engine.InitUser(env.ctx, "carol", "")
	assert.ErrorIs(t, err, core.ErrInvalidParameters)
}

func TestDepositScenario(t *testing.T) {
	env := newTestEnv(t)
	env.initBank(t, "mint-usdc", 2, 1, 5)
	env.initUser(t, "alice")
	env.initUser(t, "bob")

	receipt := env.deposit(t, "alice", "mint-usdc", 100_000)
	assert.True(t, receipt.Shares.Equal(d(100_000)), "bootstrap mints 1:1")
	assert.True(t, receipt.Position.DepositShares.Equal(d(100_000)))
	assert.Equal(t, core.OperationTypeDeposit, receipt.Type)
	assert.NotEqual(t, uuid.Nil, receipt.OperationId)

	receipt = env.deposit(t, "bob", "mint-usdc", 50_000)
	assert.True(t, receipt.Shares.Equal(d(50_000)))

	bank := env.storedBank(t, "mint-usdc")
	assert.True(t, bank.TotalDeposits.Equal(d(150_000)))
	assert.True(t, bank.TotalDepositShares.Equal(d(150_000)))

	assert.True(t, env.custodian.Balance(treasuryOf(t, "mint-usdc"), "mint-usdc").Equal(d(150_000)))
	assert.True(t, env.custodian.Balance(walletOf(t, "alice"), "mint-usdc").IsZero())

	user, err := env.engine.GetUser(env.ctx, "alice")
	require.NoError(t, err)
	require.Contains(t, user.Positions, "mint-usdc")
	assert.True(t, user.Positions["mint-usdc"].DepositShares.Equal(d(100_000)))
}

func TestDepositRejects(t *testing.T) {
	env := newTestEnv(t)
	env.initBank(t, "mint-usdc", 80, 50, 5)
	env.initUser(t, "alice")
	env.fund(t, "alice", "mint-usdc", 100)

	tests := []struct {
		name    string
		ownerId string
		assetId string
		amount  decimal.Decimal
		wantErr error
	}{
		{"zero", "alice", "mint-usdc", decimal.Zero, core.ErrInvalidAmount},
		{"negative", "alice", "mint-usdc", d(-5), core.ErrInvalidAmount},
		{"fractional", "alice", "mint-usdc", decimal.RequireFromString("1.5"), core.ErrInvalidAmount},
		{"unknown user", "bob", "mint-usdc", d(10), core.ErrNotFound},
		{"unknown bank", "alice", "mint-sol", d(10), core.ErrNotFound},
		{"empty owner", "", "mint-usdc", d(10), core.ErrInvalidKeyMaterial},
		{"wallet too small", "alice", "mint-usdc", d(101), core.ErrTransferFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.Deposit(env.ctx, tt.ownerId, tt.assetId, tt.amount)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	bank := env.storedBank(t, "mint-usdc")
	assert.True(t, bank.TotalDeposits.IsZero())
	ops, err := env.engine.Operations(env.ctx, "alice", 0)
	require.NoError(t, err)
	assert.Len(t, ops, 1, "only init_user was logged")
}

func TestDepositTransferFailureLeavesStateUntouched(t *testing.T) {
	treasury := treasuryOf(t, "mint-usdc")
	env := newTestEnvWith(t, func(c *transfer.Custodian) core.TransferAdapter {
		return transfer.FailTo(c, treasury)
	})
	env.initBank(t, "mint-usdc", 2, 1, 5)
	env.initUser(t, "alice")
	env.fund(t, "alice", "mint-usdc", 1_000)

	before := env.storedBank(t, "mint-usdc")
	opsBefore, err := env.engine.Operations(env.ctx, "alice", 0)
	require.NoError(t, err)

	_, err = env.engine.Deposit(env.ctx, "alice", "mint-usdc", d(1_000))
	assert.ErrorIs(t, err, core.ErrTransferFailed)

	assert.Equal(t, before, env.storedBank(t, "mint-usdc"))
	view, err := env.engine.Position(env.ctx, "alice", "mint-usdc")
	require.NoError(t, err)
	assert.Equal(t, core.NoPosition, view.State)
	opsAfter, err := env.engine.Operations(env.ctx, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, len(opsBefore), len(opsAfter))
	assert.True(t, env.custodian.Balance(walletOf(t, "alice"), "mint-usdc").Equal(d(1_000)))
}

func TestWithdraw(t *testing.T) {
	env := newTestEnv(t)
	env.initBank(t, "mint-usdc", 80, 50, 5)
	env.initUser(t, "alice")
	env.initUser(t, "bob")

	env.deposit(t, "alice", "mint-usdc", 1_000)
	env.deposit(t, "bob", "mint-usdc", 777)

	before, err := env.engine.Position(env.ctx, "alice", "mint-usdc")
	require.NoError(t, err)
	env.deposit(t, "alice", "mint-usdc", 333)
	receipt, err := env.engine.Withdraw(env.ctx, "alice", "mint-usdc", d(333))
	require.NoError(t, err)
	assert.True(t, receipt.Shares.Equal(d(333)))
	after, err := env.engine.Position(env.ctx, "alice", "mint-usdc")
	require.NoError(t, err)
	assert.True(t, after.DepositShares.Equal(before.DepositShares), "deposit then withdraw restores shares")

	bankBefore := env.storedBank(t, "mint-usdc")
	_, err = env.engine.Withdraw(env.ctx, "alice", "mint-usdc", d(1_001))
	assert.ErrorIs(t, err, core.ErrInsufficientBalance)
	assert.Equal(t, bankBefore, env.storedBank(t, "mint-usdc"))

	_, err = env.engine.Withdraw(env.ctx, "carol", "mint-usdc", d(1))
	assert.ErrorIs(t, err, core.ErrNotFound)

	receipt, err = env.engine.Withdraw(env.ctx, "alice", "mint-usdc", d(1_000))
	require.NoError(t, err)
	assert.Equal(t, core.NoPosition, receipt.Position.State())
	assert.True(t, env.custodian.Balance(walletOf(t, "alice"), "mint-usdc").Equal(d(1_333)))

	bank := env.storedBank(t, "mint-usdc")
	assert.True(t, bank.TotalDeposits.Equal(d(777)))
	assert.True(t, bank.TotalDepositShares.Equal(d(777)))
}

func TestWithdrawTransferFailure(t *testing.T) {
	alice := walletOf(t, "alice")
	env := newTestEnvWith(t, func(c *transfer.Custodian) core.TransferAdapter {
		return transfer.FailTo(c, alice)
	})
	env.initBank(t, "mint-usdc", 80, 50, 5)
	env.initUser(t, "alice")
	env.deposit(t, "alice", "mint-usdc", 500)

	before := env.storedBank(t, "mint-usdc")
	_, err := env.engine.Withdraw(env.ctx, "alice", "mint-usdc", d(200))
	assert.ErrorIs(t, err, core.ErrTransferFailed)
	assert.Equal(t, before, env.storedBank(t, "mint-usdc"))
	assert.True(t, env.custodian.Balance(treasuryOf(t, "mint-usdc"), "mint-usdc").Equal(d(500)))
}

func TestDepositTotalsMatchFlows(t *testing.T) {
	env := newTestEnv(t)
	env.initBank(t, "mint-usdc", 80, 50, 5)

	owners := []string{"alice", "bob", "carol"}
	for _, owner := range owners {
		env.initUser(t, owner)
	}

	deposited, withdrawn := int64(0), int64(0)
	minted, burned := decimal.Zero, decimal.Zero
	for i, amount := range []int64{100_000, 50_000, 7, 31_337, 1} {
		receipt := env.deposit(t, owners[i%len(owners)], "mint-usdc", amount)
		deposited += amount
		minted = minted.Add(receipt.Shares)
	}
	withdrawals := []struct {
		owner  string
		amount int64
	}{
		{"alice", 5_000},
		{"carol", 7},
		{"bob", 20_000},
		{"alice", 31_337},
	}
	for _, w := range withdrawals {
		receipt, err := env.engine.Withdraw(env.ctx, w.owner, "mint-usdc", d(w.amount))
		require.NoError(t, err, w.owner)
		withdrawn += w.amount
		burned = burned.Add(receipt.Shares)
	}

	bank := env.storedBank(t, "mint-usdc")
	assert.True(t, bank.TotalDeposits.Equal(d(deposited-withdrawn)))
	assert.True(t, bank.TotalDepositShares.Equal(minted.Sub(burned)))
	assert.True(t, env.custodian.Balance(bank.TreasuryAccountId, "mint-usdc").Equal(bank.TotalDeposits))
}

func TestOperationsLog(t *testing.T) {
	env := newTestEnv(t)
	env.initBank(t, "mint-usdc", 80, 50, 5)
	env.initUser(t, "alice")

	deposit := env.deposit(t, "alice", "mint-usdc", 300)
	withdraw, err := env.engine.Withdraw(env.ctx, "alice", "mint-usdc", d(100))
	require.NoError(t, err)

	ops, err := env.engine.Operations(env.ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, withdraw.OperationId, ops[0].Id)
	assert.Equal(t, core.OperationTypeWithdraw, ops[0].Type)
	assert.Equal(t, deposit.OperationId, ops[1].Id)
	assert.True(t, ops[1].Amount.Equal(d(300)))

	require.Len(t, ops[0].Detail.Transfers, 1)
	tr := ops[0].Detail.Transfers[0]
	assert.Equal(t, treasuryOf(t, "mint-usdc"), tr.From)
	assert.Equal(t, walletOf(t, "alice"), tr.To)
	assert.True(t, tr.Amount.Equal(d(100)))
}

func TestRegisterAssetEnforcesDust(t *testing.T) {
	env := newTestEnv(t)
	env.initBank(t, "mint-btc", 80, 50, 5)
	env.initUser(t, "alice")
	env.fund(t, "alice", "mint-btc", 100_000)

	asset, err := env.engine.RegisterAsset(env.ctx, &mixin.SafeAsset{
		AssetID:   "mint-btc",
		Symbol:    "BTC",
		Precision: 8,
		Dust:      decimal.RequireFromString("0.0001"),
	})
	require.NoError(t, err)
	assert.Equal(t, "0.0001 BTC", asset.Display(d(10_000)))

	_, err = env.engine.Deposit(env.ctx, "alice", "mint-btc", d(9_999))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	_, err = env.engine.Deposit(env.ctx, "alice", "mint-btc", d(10_000))
	assert.NoError(t, err)

	stored, err := env.engine.Asset(env.ctx, "mint-btc")
	require.NoError(t, err)
	assert.Equal(t, "BTC", stored.Symbol)

	_, err = env.engine.RegisterAsset(env.ctx, nil)
	assert.ErrorIs(t, err, core.ErrInvalidParameters)
}

type recordingLocker struct {
	*KeyedLocker
	calls [][]string
}

func (r *recordingLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	r.calls = append(r.calls, orderKeys(keys))
	return r.KeyedLocker.Lock(ctx, keys...)
}

func TestLockOrder(t *testing.T) {
	locker := &recordingLocker{KeyedLocker: NewKeyedLocker()}
	env := newTestEnvWith(t, nil, WithLocker(locker))
	env.initBank(t, "mint-usdc", 80, 50, 5)
	env.initUser(t, "alice")
	env.deposit(t, "alice", "mint-usdc", 10)

	bankId, err := utils.BankId("mint-usdc")
	require.NoError(t, err)
	userId, err := utils.UserId("alice")
	require.NoError(t, err)

	require.Len(t, locker.calls, 3)
	assert.Equal(t, []string{bankLockKey(bankId), userLockKey(userId)}, locker.calls[2])
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Database.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.Must(uuid.NewV4()))
	cfg.Risk.Prices = map[string]string{"mint-sol": "150"}

	_, _, err := NewFromConfig(cfg, nil)
	assert.ErrorIs(t, err, core.ErrInvalidParameters)

	e, closer, err := NewFromConfig(cfg, transfer.NewCustodian())
	require.NoError(t, err)
	defer closer.Close()

	_, err = e.InitBank(context.Background(), "mint-sol", 80, 50, 5)
	require.NoError(t, err)
	bank, err := e.GetBank(context.Background(), "mint-sol")
	require.NoError(t, err)
	assert.True(t, bank.LiquidationBonus.Equal(decimal.RequireFromString("0.05")))

	price, err := e.prices.Price(context.Background(), "mint-sol")
	require.NoError(t, err)
	assert.True(t, price.Equal(d(150)))
}
