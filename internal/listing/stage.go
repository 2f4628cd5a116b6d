package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bookpub/internal/config"
	"bookpub/internal/logging"
	"bookpub/internal/queue"
	"bookpub/internal/services"
	"bookpub/internal/stage"
)

const stageName = "listing"

// Creator posts listings. *Client satisfies it.
type Creator interface {
	Create(ctx context.Context, classID string, payload Payload) error
}

// Lister publishes the storefront listing of a minted book.
type Lister struct {
	client     Creator
	currency   string
	moderators []string
	logger     *slog.Logger
}

// New constructs the listing stage.
func New(client Creator, currency string, moderators []string, logger *slog.Logger) *Lister {
	return &Lister{
		client:     client,
		currency:   currency,
		moderators: moderators,
		logger:     logging.NewComponentLogger(logger, stageName),
	}
}

// NewFromConfig builds the stage and its HTTP client from the [listing]
// section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) *Lister {
	client := NewClient(Config{
		BaseURL:   cfg.Listing.APIURL,
		AuthToken: cfg.Listing.AuthToken,
		Timeout:   cfg.ListingTimeout(),
	}, opts...)
	return New(client, cfg.Listing.DefaultCurrency, cfg.Listing.ModeratorWallets, logger)
}

func (l *Lister) Prepare(_ context.Context, item *queue.Item) error {
	if err := stage.RequireField(stageName, "asset class id", item.AssetClassID); err != nil {
		return err
	}
	if item.ListPrice < 0 {
		return services.Wrap(services.ErrValidation, stageName, "prepare",
			fmt.Sprintf("list price %.2f is negative", item.ListPrice), nil)
	}
	return nil
}

// Execute creates the listing. A listing that already exists counts as
// success so a resumed item can finish.
func (l *Lister) Execute(ctx context.Context, item *queue.Item) error {
	if item.Stage.AtLeast(queue.StageListed) {
		return nil
	}
	logger := logging.WithContext(ctx, l.logger)
	payload := BuildPayload(item, l.currency, l.moderators)

	err := l.client.Create(ctx, item.AssetClassID, payload)
	switch {
	case errors.Is(err, ErrAlreadyListed):
		logger.Info("listing already exists", logging.String("class_id", item.AssetClassID))
	case err != nil:
		return services.Wrap(services.ErrListingFailed, stageName, "create listing", item.AssetClassID, err)
	default:
		logger.Info("listing created",
			logging.String("class_id", item.AssetClassID),
			logging.Float64("price", item.ListPrice))
	}
	item.Advance(queue.StageListed)
	return nil
}

func (l *Lister) HealthCheck(context.Context) stage.Health {
	if l.client == nil {
		return stage.Unhealthy(stageName, "listing client not configured")
	}
	return stage.Healthy(stageName)
}
