package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"propchain/core/events"
	"propchain/core/ids"
	"propchain/core/state"
	"propchain/core/types"
	"propchain/native/bank"
	"propchain/native/common"
	"propchain/native/escrow"
	"propchain/native/lease"
	"propchain/native/ownership"
	"propchain/native/pricing"
	"propchain/native/verification"
	"propchain/observability"
	"propchain/storage"
)

const instrumentationName = "propchain/core"

// Options configures a Marketplace. Zero values select the defaults: random
// ids, no pauses, the reference pricing policy and the default slog logger.
type Options struct {
	DB storage.Database
	// Emitter receives notifications while the state lock is held, so it
	// must not call back into the marketplace.
	Emitter   events.Emitter
	Allocator ids.Allocator
	Pauses    common.PauseView
	Policy    *pricing.Policy
	Vault     types.Principal
	Logger    *slog.Logger
}

// Marketplace binds the marketplace engines to one state manager, one event
// stream and one id allocator. Every operation is traced, counted and, on
// rejection, logged.
type Marketplace struct {
	state  *state.Manager
	policy pricing.Policy
	vault  types.Principal

	ownership    *ownership.Engine
	leases       *lease.Engine
	verification *verification.Engine
	escrow       *escrow.Engine
	bank         *bank.Ledger

	logger  *slog.Logger
	metrics *observability.MarketplaceMetrics
	tracer  trace.Tracer
	ops     metric.Int64Counter
	clock   func() time.Time
}

var errVaultRequired = errors.New("marketplace: escrow vault address required")

// NewMarketplace wires the engines over opts.DB.
func NewMarketplace(opts Options) (*Marketplace, error) {
	if opts.DB == nil {
		return nil, errors.New("marketplace: database required")
	}
	if opts.Vault == (types.Principal{}) {
		return nil, errVaultRequired
	}
	policy := pricing.DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	alloc := opts.Allocator
	if alloc == nil {
		alloc = ids.UUIDAllocator{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	emitter := events.Fanout{observability.Events()}
	if opts.Emitter != nil {
		emitter = append(emitter, opts.Emitter)
	}

	manager := state.NewManager(opts.DB)
	ledger := bank.NewLedger(manager)

	m := &Marketplace{
		state:        manager,
		policy:       policy,
		vault:        opts.Vault,
		ownership:    ownership.NewEngine(),
		leases:       lease.NewEngine(),
		verification: verification.NewEngine(),
		escrow:       escrow.NewEngine(),
		bank:         ledger,
		logger:       logger.With(slog.String("component", "marketplace")),
		metrics:      observability.Marketplace(),
		tracer:       otel.Tracer(instrumentationName),
		clock:        time.Now,
	}

	m.ownership.SetState(manager)
	m.ownership.SetEmitter(emitter)
	m.ownership.SetAllocator(alloc)
	m.ownership.SetPauses(opts.Pauses)
	m.ownership.SetPolicy(policy)

	m.leases.SetState(manager)
	m.leases.SetEmitter(emitter)
	m.leases.SetAllocator(alloc)
	m.leases.SetPauses(opts.Pauses)
	m.leases.SetPolicy(policy)

	m.verification.SetState(manager)
	m.verification.SetEmitter(emitter)
	m.verification.SetAllocator(alloc)
	m.verification.SetPauses(opts.Pauses)

	m.escrow.SetState(manager)
	m.escrow.SetEmitter(emitter)
	m.escrow.SetAllocator(alloc)
	m.escrow.SetPauses(opts.Pauses)
	m.escrow.SetCustody(ledger)
	m.escrow.SetVault(opts.Vault)

	ops, err := otel.Meter(instrumentationName).Int64Counter("propchain.marketplace.operations",
		metric.WithDescription("Marketplace operations by module, operation and outcome."))
	if err != nil {
		return nil, fmt.Errorf("marketplace: create otel counter: %w", err)
	}
	m.ops = ops
	return m, nil
}

// Policy returns the pricing policy in force.
func (m *Marketplace) Policy() pricing.Policy { return m.policy }

// Vault returns the escrow vault principal.
func (m *Marketplace) Vault() types.Principal { return m.vault }

func (m *Marketplace) observe(ctx context.Context, module, operation string, attrs []attribute.KeyValue, fn func() error) error {
	start := m.clock()
	ctx, span := m.tracer.Start(ctx, module+"."+operation, trace.WithAttributes(attrs...))
	defer span.End()

	err := fn()
	m.metrics.Observe(module, operation, m.clock().Sub(start), err)
	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, observability.Reason(err))
		m.logger.WarnContext(ctx, "operation rejected",
			slog.String("module", module),
			slog.String("operation", operation),
			slog.String("reason", observability.Reason(err)),
			slog.Any("error", err))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	m.ops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("module", module),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
	return err
}

func idAttr(key string, id types.ID) attribute.KeyValue {
	return attribute.String(key, id.Hex())
}

func principalAttr(key string, p types.Principal) attribute.KeyValue {
	return attribute.String(key, p.Hex())
}

// QuoteListingPrice returns the dynamic listing price for factor under the
// configured policy without touching state.
func (m *Marketplace) QuoteListingPrice(ctx context.Context, factor pricing.Factor) (*big.Int, error) {
	var price *big.Int
	err := m.observe(ctx, "pricing", "quote_listing_price", []attribute.KeyValue{
		attribute.Int64("demand", int64(factor.Demand)),
	}, func() error {
		var err error
		price, err = m.policy.ListingPrice(factor)
		return err
	})
	return price, err
}

// QuoteDiscount returns the discount percentage the policy grants rep.
func (m *Marketplace) QuoteDiscount(rep pricing.Reputation) uint64 {
	return m.policy.Discount(rep)
}

// RegisterProperty creates a property owned by owner.
func (m *Marketplace) RegisterProperty(ctx context.Context, owner types.Principal, price *big.Int, caller types.Principal) (*ownership.Property, error) {
	var out *ownership.Property
	err := m.observe(ctx, ownership.ModuleName, "register", []attribute.KeyValue{
		principalAttr("owner", owner),
	}, func() error {
		var err error
		out, err = m.ownership.Register(owner, price, caller)
		return err
	})
	return out, err
}

// ListForSale lists a property at a fixed price.
func (m *Marketplace) ListForSale(ctx context.Context, id types.ID, price *big.Int, caller types.Principal) (*ownership.Property, error) {
	var out *ownership.Property
	err := m.observe(ctx, ownership.ModuleName, "list_for_sale", []attribute.KeyValue{idAttr("property.id", id)}, func() error {
		var err error
		out, err = m.ownership.ListForSale(id, price, caller)
		return err
	})
	return out, err
}

// ListWithDynamicPricing lists a property at the policy price for factor.
func (m *Marketplace) ListWithDynamicPricing(ctx context.Context, id types.ID, factor pricing.Factor, caller types.Principal) (*ownership.Property, error) {
	var out *ownership.Property
	err := m.observe(ctx, ownership.ModuleName, "list_with_dynamic_pricing", []attribute.KeyValue{
		idAttr("property.id", id),
		attribute.Int64("demand", int64(factor.Demand)),
	}, func() error {
		var err error
		out, err = m.ownership.ListWithDynamicPricing(id, factor, caller)
		return err
	})
	return out, err
}

// Delist withdraws a property from sale.
func (m *Marketplace) Delist(ctx context.Context, id types.ID, caller types.Principal) (*ownership.Property, error) {
	var out *ownership.Property
	err := m.observe(ctx, ownership.ModuleName, "delist", []attribute.KeyValue{idAttr("property.id", id)}, func() error {
		var err error
		out, err = m.ownership.Delist(id, caller)
		return err
	})
	return out, err
}

// TransferOwnership hands the property to newOwner.
func (m *Marketplace) TransferOwnership(ctx context.Context, id types.ID, newOwner, caller types.Principal) (*ownership.Property, *ownership.History, error) {
	var (
		prop *ownership.Property
		hist *ownership.History
	)
	err := m.observe(ctx, ownership.ModuleName, "transfer", []attribute.KeyValue{
		idAttr("property.id", id),
		principalAttr("new_owner", newOwner),
	}, func() error {
		var err error
		prop, hist, err = m.ownership.Transfer(id, newOwner, caller)
		return err
	})
	return prop, hist, err
}

// Property returns the stored property.
func (m *Marketplace) Property(id types.ID) (*ownership.Property, error) {
	return m.ownership.Property(id)
}

// History returns the ownership history of a property.
func (m *Marketplace) History(id types.ID) (*ownership.History, error) {
	return m.ownership.History(id)
}

// CreateLease opens a rental agreement owned by caller.
func (m *Marketplace) CreateLease(ctx context.Context, propertyID types.ID, tenant types.Principal, rent *big.Int, dueDate uint64, caller types.Principal) (*lease.Agreement, error) {
	var out *lease.Agreement
	err := m.observe(ctx, lease.ModuleName, "create", []attribute.KeyValue{
		idAttr("property.id", propertyID),
		principalAttr("tenant", tenant),
	}, func() error {
		var err error
		out, err = m.leases.Create(propertyID, tenant, rent, dueDate, caller)
		return err
	})
	return out, err
}

// ApplyDiscount applies the reputation discount to an agreement's rent.
func (m *Marketplace) ApplyDiscount(ctx context.Context, id types.ID, rep pricing.Reputation) (*lease.Agreement, error) {
	var out *lease.Agreement
	err := m.observe(ctx, lease.ModuleName, "apply_discount", []attribute.KeyValue{
		idAttr("agreement.id", id),
		attribute.Int64("reputation", int64(rep.Score)),
	}, func() error {
		var err error
		out, err = m.leases.ApplyDiscount(id, rep)
		return err
	})
	return out, err
}

// ApplyLatePenalty raises the rent when currentDate is past due.
func (m *Marketplace) ApplyLatePenalty(ctx context.Context, id types.ID, currentDate uint64) (*lease.Agreement, error) {
	var out *lease.Agreement
	err := m.observe(ctx, lease.ModuleName, "apply_late_penalty", []attribute.KeyValue{idAttr("agreement.id", id)}, func() error {
		var err error
		out, err = m.leases.ApplyLatePenalty(id, currentDate)
		return err
	})
	return out, err
}

// RenewLease sets a new due date and rent on an active agreement.
func (m *Marketplace) RenewLease(ctx context.Context, id types.ID, newDueDate uint64, newRent *big.Int, caller types.Principal) (*lease.Agreement, error) {
	var out *lease.Agreement
	err := m.observe(ctx, lease.ModuleName, "renew", []attribute.KeyValue{idAttr("agreement.id", id)}, func() error {
		var err error
		out, err = m.leases.Renew(id, newDueDate, newRent, caller)
		return err
	})
	return out, err
}

// TerminateLease deactivates an agreement.
func (m *Marketplace) TerminateLease(ctx context.Context, id types.ID, reason string, caller types.Principal) (*lease.Agreement, error) {
	var out *lease.Agreement
	err := m.observe(ctx, lease.ModuleName, "terminate", []attribute.KeyValue{idAttr("agreement.id", id)}, func() error {
		var err error
		out, err = m.leases.Terminate(id, reason, caller)
		return err
	})
	return out, err
}

// Agreement returns the stored rental agreement.
func (m *Marketplace) Agreement(id types.ID) (*lease.Agreement, error) {
	return m.leases.Agreement(id)
}

// RegisterTransaction creates a transaction with a fixed verifier set.
func (m *Marketplace) RegisterTransaction(ctx context.Context, verifiers []types.Principal) (*verification.Transaction, error) {
	var out *verification.Transaction
	err := m.observe(ctx, verification.ModuleName, "register", []attribute.KeyValue{
		attribute.Int("verifiers", len(verifiers)),
	}, func() error {
		var err error
		out, err = m.verification.Register(verifiers)
		return err
	})
	return out, err
}

// CompleteTransaction verifies and completes a transaction.
func (m *Marketplace) CompleteTransaction(ctx context.Context, id types.ID, verifier, caller types.Principal) (*verification.Transaction, error) {
	var out *verification.Transaction
	err := m.observe(ctx, verification.ModuleName, "complete", []attribute.KeyValue{
		idAttr("transaction.id", id),
		principalAttr("verifier", verifier),
	}, func() error {
		var err error
		out, err = m.verification.Complete(id, verifier, caller)
		return err
	})
	return out, err
}

// Transaction returns the stored transaction.
func (m *Marketplace) Transaction(id types.ID) (*verification.Transaction, error) {
	return m.verification.Transaction(id)
}

// InitiateEscrow custodies amount from caller for a sale.
func (m *Marketplace) InitiateEscrow(ctx context.Context, propertyID types.ID, buyer, seller types.Principal, amount *big.Int, caller types.Principal) (*escrow.Escrow, error) {
	var out *escrow.Escrow
	err := m.observe(ctx, escrow.ModuleName, "initiate", []attribute.KeyValue{
		idAttr("property.id", propertyID),
		principalAttr("buyer", buyer),
		principalAttr("seller", seller),
	}, func() error {
		var err error
		out, err = m.escrow.Initiate(propertyID, buyer, seller, amount, caller)
		return err
	})
	return out, err
}

// ReleaseEscrow pays a locked escrow out to recipient.
func (m *Marketplace) ReleaseEscrow(ctx context.Context, id types.ID, recipient, caller types.Principal) (*escrow.Escrow, error) {
	var out *escrow.Escrow
	err := m.observe(ctx, escrow.ModuleName, "release", []attribute.KeyValue{
		idAttr("escrow.id", id),
		principalAttr("recipient", recipient),
	}, func() error {
		var err error
		out, err = m.escrow.Release(id, recipient, caller)
		return err
	})
	return out, err
}

// Escrow returns the stored escrow.
func (m *Marketplace) Escrow(id types.ID) (*escrow.Escrow, error) {
	return m.escrow.Escrow(id)
}

// Deposit credits addr with externally sourced funds.
func (m *Marketplace) Deposit(ctx context.Context, addr types.Principal, amount *big.Int) error {
	return m.observe(ctx, "bank", "deposit", []attribute.KeyValue{principalAttr("account", addr)}, func() error {
		return m.bank.Deposit(addr, amount)
	})
}

// TransferFunds moves amount between accounts. Only the sender may move its
// own funds.
func (m *Marketplace) TransferFunds(ctx context.Context, from, to types.Principal, amount *big.Int, caller types.Principal) error {
	return m.observe(ctx, "bank", "transfer", []attribute.KeyValue{
		principalAttr("from", from),
		principalAttr("to", to),
	}, func() error {
		if caller != from {
			return fmt.Errorf("bank: transfer: %w", common.ErrUnauthorized)
		}
		return m.bank.Move(amount, from, to)
	})
}

// Balance returns the funds held by addr.
func (m *Marketplace) Balance(addr types.Principal) (*big.Int, error) {
	return m.bank.Balance(addr)
}
