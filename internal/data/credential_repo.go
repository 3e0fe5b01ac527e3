package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/upload"
	apperrors "github.com/driveline/driveline/internal/errors"
)

// CredentialRepoOptions configures CredentialRepo.
type CredentialRepoOptions struct {
	// OAuth is the client configuration used to refresh stored tokens.
	OAuth        *oauth2.Config
	TimeProvider TimeProvider
	Logger       *slog.Logger
}

// CredentialRepo stores recipient OAuth tokens written by the authorization flow
// and hands out refreshing token sources that persist rotated tokens.
type CredentialRepo struct {
	DB           *sql.DB
	oauth        *oauth2.Config
	timeProvider TimeProvider
	logger       *slog.Logger
}

var _ core.CredentialStore = (*CredentialRepo)(nil)

// NewCredentialRepo creates a CredentialRepo.
func NewCredentialRepo(db *sql.DB, opts CredentialRepoOptions) *CredentialRepo {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.OAuth
	if cfg == nil {
		cfg = &oauth2.Config{}
	}
	return &CredentialRepo{
		DB:           db,
		oauth:        cfg,
		timeProvider: timeProviderOrDefault(opts.TimeProvider),
		logger:       logger.With("component", "credential_repo"),
	}
}

// Load returns the stored token of a recipient.
func (r *CredentialRepo) Load(ctx context.Context, recipientID string) (*oauth2.Token, error) {
	var raw []byte
	err := r.DB.QueryRowContext(ctx, `
		SELECT token FROM recipient_tokens WHERE recipient_id = $1
	`, recipientID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recipient %s: %w", recipientID, upload.ErrCredentialNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", apperrors.MapDBError(err))
	}

	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decode credential for %s: %w", recipientID, err)
	}
	return &tok, nil
}

// Save upserts the token of a recipient.
func (r *CredentialRepo) Save(ctx context.Context, recipientID string, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("token is required")
	}
	raw, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	now := r.timeProvider.Now()
	if _, err := r.DB.ExecContext(ctx, `
		INSERT INTO recipient_tokens (recipient_id, token, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (recipient_id) DO UPDATE SET token = EXCLUDED.token, updated_at = EXCLUDED.updated_at
	`, recipientID, raw, now); err != nil {
		return fmt.Errorf("save credential: %w", apperrors.MapDBError(err))
	}
	return nil
}

// TokenSource implements core.CredentialStore. A token that is expired and
// cannot be refreshed is reported as upload.ErrCredentialExpired.
func (r *CredentialRepo) TokenSource(ctx context.Context, recipientID string) (oauth2.TokenSource, error) {
	tok, err := r.Load(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if tok.RefreshToken == "" && !tok.Expiry.IsZero() && !tok.Expiry.After(r.timeProvider.Now()) {
		return nil, fmt.Errorf("recipient %s: %w", recipientID, upload.ErrCredentialExpired)
	}

	// The refreshing source outlives the caller's request.
	base := r.oauth.TokenSource(context.WithoutCancel(ctx), tok)
	return &persistingTokenSource{
		base:        base,
		repo:        r,
		recipientID: recipientID,
		last:        tok.AccessToken,
	}, nil
}

// persistingTokenSource writes refreshed tokens back so the next task does not
// refresh again.
type persistingTokenSource struct {
	base        oauth2.TokenSource
	repo        *CredentialRepo
	recipientID string

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := tok.AccessToken != s.last
	if changed {
		s.last = tok.AccessToken
	}
	s.mu.Unlock()

	if changed {
		if err := s.repo.Save(context.Background(), s.recipientID, tok); err != nil {
			s.repo.logger.Warn("persist refreshed token failed",
				"recipient_id", s.recipientID,
				"error", err,
			)
		}
	}
	return tok, nil
}
