package main

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/X1-Sentry/internal/types"
	"github.com/fortiblox/X1-Sentry/pkg/account"
	"github.com/fortiblox/X1-Sentry/pkg/fixture"
	"github.com/fortiblox/X1-Sentry/pkg/harness"
	"github.com/fortiblox/X1-Sentry/pkg/programs/config"
	"github.com/fortiblox/X1-Sentry/pkg/programs/feeconfig"
	"github.com/fortiblox/X1-Sentry/pkg/programs/ledger"
	"github.com/fortiblox/X1-Sentry/pkg/programs/registry"
	"github.com/fortiblox/X1-Sentry/pkg/programs/treasury"
	"github.com/fortiblox/X1-Sentry/pkg/programs/vault"
)

// Scenario is one prepared harness call with its expected terminal
// outcome.
type Scenario struct {
	// Name identifies the scenario, pattern/variant.
	Name string

	// Pattern is the vulnerability pattern family.
	Pattern string

	// Build prepares the instruction, account set, and instruction data.
	// Returns an error when the scenario cannot be constructed (for
	// example, seeds that admit no non-canonical bump).
	Build func() (*harness.Instruction, []*account.Account, []byte, error)

	// WantSuccess is the expected terminal result.
	WantSuccess bool

	// WantCode is the expected rejection code (CodeNone on success).
	WantCode harness.Code
}

func u64Data(v uint64) []byte {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, v)
	return data
}

// Catalog returns the full scenario suite: for each pattern, the exploit
// against the vulnerable instruction, the same exploit against the
// secure one, and a legitimate call against the secure one.
func Catalog() []Scenario {
	return []Scenario{
		// missing-signer
		{
			Name:        "missing-signer/exploit-vulnerable",
			Pattern:     "missing-signer",
			Build:       vaultExploit(vault.VulnerableWithdraw),
			WantSuccess: true,
		},
		{
			Name:     "missing-signer/exploit-secure",
			Pattern:  "missing-signer",
			Build:    vaultExploit(vault.SecureWithdraw),
			WantCode: harness.CodeNotSigner,
		},
		{
			Name:        "missing-signer/sanity-secure",
			Pattern:     "missing-signer",
			Build:       vaultSanity,
			WantSuccess: true,
		},

		// missing-owner
		{
			Name:        "missing-owner/exploit-vulnerable",
			Pattern:     "missing-owner",
			Build:       treasuryExploit(treasury.VulnerableWithdraw),
			WantSuccess: true,
		},
		{
			Name:     "missing-owner/exploit-secure",
			Pattern:  "missing-owner",
			Build:    treasuryExploit(treasury.SecureWithdraw),
			WantCode: harness.CodeWrongOwner,
		},
		{
			Name:        "missing-owner/sanity-secure",
			Pattern:     "missing-owner",
			Build:       treasurySanity,
			WantSuccess: true,
		},

		// integer-overflow
		{
			Name:        "integer-overflow/exploit-vulnerable",
			Pattern:     "integer-overflow",
			Build:       ledgerExploit(ledger.VulnerableBurn),
			WantSuccess: true,
		},
		{
			Name:     "integer-overflow/exploit-secure",
			Pattern:  "integer-overflow",
			Build:    ledgerExploit(ledger.SecureBurn),
			WantCode: harness.CodeArithmeticUnderflow,
		},
		{
			Name:        "integer-overflow/sanity-secure",
			Pattern:     "integer-overflow",
			Build:       ledgerSanity,
			WantSuccess: true,
		},

		// reinitialization
		{
			Name:        "reinitialization/exploit-vulnerable",
			Pattern:     "reinitialization",
			Build:       configExploit(config.VulnerableInitialize),
			WantSuccess: true,
		},
		{
			Name:     "reinitialization/exploit-secure",
			Pattern:  "reinitialization",
			Build:    configExploit(config.SecureInitialize),
			WantCode: harness.CodeAlreadyInitialized,
		},
		{
			Name:        "reinitialization/sanity-secure",
			Pattern:     "reinitialization",
			Build:       configSanity,
			WantSuccess: true,
		},

		// bump-canonicalization
		{
			Name:        "bump-canonicalization/exploit-vulnerable",
			Pattern:     "bump-canonicalization",
			Build:       registryExploit(registry.VulnerableUpdate, false),
			WantSuccess: true,
		},
		{
			Name:     "bump-canonicalization/exploit-secure",
			Pattern:  "bump-canonicalization",
			Build:    registryExploit(registry.SecureUpdate, false),
			WantCode: harness.CodePdaMismatch,
		},
		{
			Name:        "bump-canonicalization/sanity-secure",
			Pattern:     "bump-canonicalization",
			Build:       registryExploit(registry.SecureUpdate, true),
			WantSuccess: true,
		},

		// type-cosplay
		{
			Name:        "type-cosplay/exploit-vulnerable",
			Pattern:     "type-cosplay",
			Build:       feeExploit(feeconfig.VulnerableSetFee),
			WantSuccess: true,
		},
		{
			Name:     "type-cosplay/exploit-secure",
			Pattern:  "type-cosplay",
			Build:    feeExploit(feeconfig.SecureSetFee),
			WantCode: harness.CodeDiscriminatorMismatch,
		},
		{
			Name:        "type-cosplay/sanity-secure",
			Pattern:     "type-cosplay",
			Build:       feeSanity,
			WantSuccess: true,
		},
	}
}

func vaultExploit(ins func() *harness.Instruction) func() (*harness.Instruction, []*account.Account, []byte, error) {
	return func() (*harness.Instruction, []*account.Account, []byte, error) {
		vaultAcc, typed := fixture.Record(fixture.Key("vault"), vault.Program, vault.Schema)
		if err := typed.SetPubkey("authority", fixture.Key("alice")); err != nil {
			return nil, nil, nil, err
		}
		if err := typed.SetU64("balance", 500); err != nil {
			return nil, nil, nil, err
		}
		vaultAcc.Lamports = 500

		authority := fixture.UnsignedWallet("alice")
		attacker := fixture.Wallet("mallory")
		return ins(), []*account.Account{vaultAcc, authority, attacker}, u64Data(500), nil
	}
}

func vaultSanity() (*harness.Instruction, []*account.Account, []byte, error) {
	vaultAcc, typed := fixture.Record(fixture.Key("vault"), vault.Program, vault.Schema)
	if err := typed.SetPubkey("authority", fixture.Key("alice")); err != nil {
		return nil, nil, nil, err
	}
	if err := typed.SetU64("balance", 500); err != nil {
		return nil, nil, nil, err
	}
	vaultAcc.Lamports = 500

	authority := fixture.Wallet("alice")
	destination := fixture.Wallet("alice-savings")
	return vault.SecureWithdraw(), []*account.Account{vaultAcc, authority, destination}, u64Data(200), nil
}

func treasuryState(owner types.Pubkey, authority string) (*account.Account, error) {
	acc, typed := fixture.Record(fixture.Key("treasury-state"), owner, treasury.Schema)
	if err := typed.SetPubkey("authority", fixture.Key(authority)); err != nil {
		return nil, err
	}
	if err := typed.SetBool("is_active", true); err != nil {
		return nil, err
	}
	return acc, nil
}

func treasuryExploit(ins func() *harness.Instruction) func() (*harness.Instruction, []*account.Account, []byte, error) {
	return func() (*harness.Instruction, []*account.Account, []byte, error) {
		fake, err := treasuryState(types.ProgramAddr("mallory-program"), "mallory")
		if err != nil {
			return nil, nil, nil, err
		}
		pool := fixture.Blank(fixture.Key("treasury-pool"), treasury.Program, treasury.Schema)
		pool.Lamports = 1000
		attacker := fixture.Wallet("mallory")
		return ins(), []*account.Account{fake, pool, attacker, attacker}, u64Data(1000), nil
	}
}

func treasurySanity() (*harness.Instruction, []*account.Account, []byte, error) {
	state, err := treasuryState(treasury.Program, "alice")
	if err != nil {
		return nil, nil, nil, err
	}
	pool := fixture.Blank(fixture.Key("treasury-pool"), treasury.Program, treasury.Schema)
	pool.Lamports = 1000
	authority := fixture.Wallet("alice")
	destination := fixture.Wallet("alice-savings")
	return treasury.SecureWithdraw(), []*account.Account{state, pool, authority, destination}, u64Data(400), nil
}

func ledgerAccount(supply, balance uint64) (*account.Account, error) {
	acc, typed := fixture.Record(fixture.Key("ledger"), ledger.Program, ledger.Schema)
	if err := typed.SetPubkey("authority", fixture.Key("alice")); err != nil {
		return nil, err
	}
	if err := typed.SetU64("total_supply", supply); err != nil {
		return nil, err
	}
	if err := typed.SetU64("user_balance", balance); err != nil {
		return nil, err
	}
	return acc, nil
}

func ledgerExploit(ins func() *harness.Instruction) func() (*harness.Instruction, []*account.Account, []byte, error) {
	return func() (*harness.Instruction, []*account.Account, []byte, error) {
		acc, err := ledgerAccount(100, 100)
		if err != nil {
			return nil, nil, nil, err
		}
		return ins(), []*account.Account{acc, fixture.Wallet("alice")}, u64Data(101), nil
	}
}

func ledgerSanity() (*harness.Instruction, []*account.Account, []byte, error) {
	acc, err := ledgerAccount(0, 0)
	if err != nil {
		return nil, nil, nil, err
	}
	return ledger.SecureMint(), []*account.Account{acc, fixture.Wallet("alice")}, u64Data(500), nil
}

func configExploit(ins func() *harness.Instruction) func() (*harness.Instruction, []*account.Account, []byte, error) {
	return func() (*harness.Instruction, []*account.Account, []byte, error) {
		acc, _ := fixture.Record(fixture.Key("config"), config.Program, config.Schema)
		// First, alice initializes legitimately.
		out := harness.Process(config.SecureInitialize(),
			[]*account.Account{acc, fixture.Wallet("alice")}, nil)
		if !out.Success {
			return nil, nil, nil, fmt.Errorf("seed initialize rejected: %v", out.Err)
		}
		// Then mallory tries to initialize again.
		return ins(), []*account.Account{acc, fixture.Wallet("mallory")}, nil, nil
	}
}

func configSanity() (*harness.Instruction, []*account.Account, []byte, error) {
	acc, _ := fixture.Record(fixture.Key("config"), config.Program, config.Schema)
	return config.SecureInitialize(), []*account.Account{acc, fixture.Wallet("alice")}, nil, nil
}

func registryExploit(ins func() *harness.Instruction, canonical bool) func() (*harness.Instruction, []*account.Account, []byte, error) {
	return func() (*harness.Instruction, []*account.Account, []byte, error) {
		user := fixture.Wallet("alice")

		var (
			acc   *account.Account
			typed *account.Typed
			bump  uint8
		)
		if canonical {
			acc, typed, bump = fixture.CanonicalPDA(registry.Program, registry.Schema,
				registry.SeedPrefix, user.Key[:])
		} else {
			var ok bool
			acc, typed, bump, ok = fixture.NonCanonicalPDA(registry.Program, registry.Schema,
				registry.SeedPrefix, user.Key[:])
			if !ok {
				return nil, nil, nil, fmt.Errorf("seeds admit no non-canonical bump")
			}
		}
		if err := typed.SetPubkey("user", user.Key); err != nil {
			return nil, nil, nil, err
		}
		if err := typed.SetU8("bump", bump); err != nil {
			return nil, nil, nil, err
		}
		return ins(), []*account.Account{acc, user}, registry.UpdateData(42, bump), nil
	}
}

func feeExploit(ins func() *harness.Instruction) func() (*harness.Instruction, []*account.Account, []byte, error) {
	return func() (*harness.Instruction, []*account.Account, []byte, error) {
		fake, typed := fixture.Cosplay(fixture.Key("mallory-userdata"), feeconfig.Program, feeconfig.UserSchema)
		if err := typed.SetPubkey("authority", fixture.Key("mallory")); err != nil {
			return nil, nil, nil, err
		}
		return ins(), []*account.Account{fake, fixture.Wallet("mallory")}, u64Data(10_000), nil
	}
}

func feeSanity() (*harness.Instruction, []*account.Account, []byte, error) {
	cfg, typed := fixture.Record(fixture.Key("admin-config"), feeconfig.Program, feeconfig.AdminSchema)
	if err := typed.SetPubkey("admin", fixture.Key("alice")); err != nil {
		return nil, nil, nil, err
	}
	return feeconfig.SecureSetFee(), []*account.Account{cfg, fixture.Wallet("alice")}, u64Data(250), nil
}
