package ports

import (
	"context"
	"time"

	"tiered-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// HashService handles password and PIN hashing (Argon2id).
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(accountID uuid.UUID, role domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AccountID uuid.UUID
	Role      domain.Role
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// AttemptLimiter counts failed credential checks inside a sliding lockout window.
type AttemptLimiter interface {
	// Failures returns the number of failures recorded for key in the current window.
	Failures(ctx context.Context, key string) (int64, error)
	// RecordFailure increments the counter, starting the window on the first failure.
	RecordFailure(ctx context.Context, key string, window time.Duration) (int64, error)
	Reset(ctx context.Context, key string) error
}

// AuditService records audited actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// AccountService manages the account tree. It never mutates balances.
type AccountService interface {
	CreateAccount(ctx context.Context, req CreateAccountRequest) (*domain.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetDescendants(ctx context.Context, id uuid.UUID, role domain.Role) ([]domain.Account, error)
	ListChildren(ctx context.Context, id uuid.UUID) ([]domain.Account, error)
	// Authorize fails with Forbidden unless actorID is accountID or one of its ancestors.
	Authorize(ctx context.Context, actorID, accountID uuid.UUID) error
	Deactivate(ctx context.Context, actorID, id uuid.UUID) (*domain.Account, error)
	Activate(ctx context.Context, actorID, id uuid.UUID) (*domain.Account, error)
	SetExposureLimit(ctx context.Context, actorID, playerID uuid.UUID, limit decimal.Decimal) (*domain.Account, error)
}

// CreateAccountRequest holds validated input for account creation.
type CreateAccountRequest struct {
	ActorID  uuid.UUID
	ParentID *uuid.UUID // nil only when bootstrapping the powerhouse
	Role     domain.Role
	Username string
	Password string
	Pin      string
}

// Credential carries the secret offered to authorize a mutation.
// Pin takes precedence when both are set.
type Credential struct {
	Pin      string
	Password string
}

// CredentialService verifies and rotates PINs and passwords.
type CredentialService interface {
	VerifyPin(ctx context.Context, accountID uuid.UUID, pin string) error
	VerifyPassword(ctx context.Context, accountID uuid.UUID, password string) error
	Verify(ctx context.Context, accountID uuid.UUID, cred Credential) error
	RegeneratePin(ctx context.Context, actorID, accountID uuid.UUID, actorPassword string) (string, error)
	ResetPassword(ctx context.Context, actorID, accountID uuid.UUID, actorPassword, newPassword string) error
}

// LedgerEntry is the input to LedgerService.Append.
type LedgerEntry struct {
	AccountID     uuid.UUID
	Type          domain.TransactionType
	Direction     domain.Direction // defaults to the type's fixed direction
	Amount        decimal.Decimal
	Status        domain.TransactionStatus
	InitiatorID   uuid.UUID
	PaymentModeID *uuid.UUID
	Reference     *string
	Note          *string
}

// TransactionFilter narrows ledger listings.
type TransactionFilter struct {
	Type     *domain.TransactionType
	Status   *domain.TransactionStatus
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// LedgerService is the append-only transaction ledger.
type LedgerService interface {
	Append(ctx context.Context, tx pgx.Tx, entry LedgerEntry) (*domain.Transaction, error)
	MarkProcessed(ctx context.Context, tx pgx.Tx, transactionID uuid.UUID, status domain.TransactionStatus, approverID uuid.UUID, rejectReason *string) (*domain.Transaction, error)
	ListForAccount(ctx context.Context, accountID uuid.UUID, filter TransactionFilter) ([]domain.Transaction, int64, error)
}

// BalanceService applies ledger effects to the balance projection and
// derives roll-ups from it.
type BalanceService interface {
	ApplyDeposit(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount decimal.Decimal) (*domain.Account, error)
	ApplyWithdrawal(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount decimal.Decimal) (*domain.Account, error)
	ApplyBonus(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount decimal.Decimal) (*domain.Account, error)
	AdjustPL(ctx context.Context, tx pgx.Tx, masterID uuid.UUID, amount decimal.Decimal) (*domain.Account, error)
	Apply(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) (*domain.Account, error)
	Rollup(ctx context.Context, accountID uuid.UUID) (*domain.BalanceSummary, error)
	Replay(ctx context.Context, accountID uuid.UUID) (*domain.LedgerReplay, error)
	Reconcile(ctx context.Context, accountID uuid.UUID) (*domain.Reconciliation, error)
}

// RequestInput creates a queued deposit or withdrawal.
type RequestInput struct {
	InitiatorID   uuid.UUID
	AccountID     uuid.UUID
	Amount        decimal.Decimal
	PaymentModeID *uuid.UUID
	Note          *string
}

// DirectInput creates and applies an entry in one step.
type DirectInput struct {
	InitiatorID   uuid.UUID
	AccountID     uuid.UUID
	Amount        decimal.Decimal
	Pin           string
	PaymentModeID *uuid.UUID
	Note          *string
}

// DecisionInput approves a queued request.
type DecisionInput struct {
	ApproverID    uuid.UUID
	TransactionID uuid.UUID
	Type          domain.TransactionType
	Credential    Credential
}

// WorkflowService drives deposits and withdrawals through approval.
type WorkflowService interface {
	CreateDeposit(ctx context.Context, in RequestInput) (*domain.Transaction, error)
	CreateWithdrawal(ctx context.Context, in RequestInput) (*domain.Transaction, error)
	Approve(ctx context.Context, in DecisionInput) (*domain.Transaction, error)
	Reject(ctx context.Context, approverID, transactionID uuid.UUID, txType domain.TransactionType, reason string) (*domain.Transaction, error)
	DirectDeposit(ctx context.Context, in DirectInput) (*domain.Transaction, error)
	DirectWithdraw(ctx context.Context, in DirectInput) (*domain.Transaction, error)
	DirectBonus(ctx context.Context, in DirectInput) (*domain.Transaction, error)
	DirectCommission(ctx context.Context, in DirectInput) (*domain.Transaction, error)
	// ListRequests lists entries of txType on the actor and everything beneath it.
	ListRequests(ctx context.Context, actorID uuid.UUID, txType domain.TransactionType, filter TransactionFilter) ([]domain.Transaction, int64, error)
}

// SettlementService moves a master's P/L to its super.
type SettlementService interface {
	Settle(ctx context.Context, superID, masterID uuid.UUID, pin string) (*domain.SettlementRecord, error)
	ListSettlements(ctx context.Context, accountID uuid.UUID) ([]domain.SettlementRecord, error)
}

// GameResult is one settled game round reported by the game integration.
// Amount is the player's signed net outcome.
type GameResult struct {
	PlayerID uuid.UUID
	RoundRef string
	Amount   decimal.Decimal
}

// GameResultOutcome is what RecordResult produced for a round.
type GameResultOutcome struct {
	Transaction *domain.Transaction  `json:"transaction"`
	Adjustment  *domain.PLAdjustment `json:"adjustment"`
}

// GameResultService records game rounds against balances and P/L.
type GameResultService interface {
	RecordResult(ctx context.Context, result GameResult) (*GameResultOutcome, error)
}

// CreatePaymentModeRequest holds validated input for a new payment mode.
type CreatePaymentModeRequest struct {
	OwnerID       uuid.UUID
	Type          domain.PaymentModeType
	Label         string
	AccountName   string
	AccountNumber string
}

// PaymentModeService manages master payment modes.
type PaymentModeService interface {
	Create(ctx context.Context, req CreatePaymentModeRequest) (*domain.PaymentMode, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]domain.PaymentMode, error)
	SetActive(ctx context.Context, ownerID, id uuid.UUID, active bool) (*domain.PaymentMode, error)
}

// Session is the result of a successful login.
type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   *domain.Account `json:"account"`
}

// AuthService defines authentication business logic.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*Session, error)
}

// AccountingReport summarizes an account's subtree for a period.
type AccountingReport struct {
	Balance            *domain.BalanceSummary `json:"balance"`
	Period             string                 `json:"period"`
	Totals             []TypeTotal            `json:"totals"`
	PendingDeposits    int64                  `json:"pending_deposits"`
	PendingWithdrawals int64                  `json:"pending_withdrawals"`
}

// ReportingService defines dashboard/reporting business logic.
type ReportingService interface {
	GetAccountingReport(ctx context.Context, actorID uuid.UUID, period string) (*AccountingReport, error)
}
