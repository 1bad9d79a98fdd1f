package cart

import (
	"context"
	"errors"
	"fmt"

	"storefront-be/internal/apperror"
	"storefront-be/internal/logger"
	"storefront-be/internal/product"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Catalog is the slice of the product store the cart reads from.
type Catalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*product.Product, error)
}

type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*Cart, error)
	AddItem(ctx context.Context, userID uuid.UUID, in AddItemInput) (*Cart, error)
	UpdateItem(ctx context.Context, userID uuid.UUID, in UpdateItemInput) (*Cart, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*Cart, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo    Repository
	catalog Catalog
}

func NewService(repo Repository, catalog Catalog) Service {
	return &service{repo: repo, catalog: catalog}
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*Cart, error) {
	c, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to load cart",
			zap.String("layer", "service"),
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return nil, apperror.Internal(err)
	}
	return c, nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, in AddItemInput) (*Cart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "AddItem"),
		zap.String("user_id", userID.String()),
	)

	if in.ProductID == uuid.Nil {
		return nil, apperror.Validation("Product ID is required")
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if in.Quantity < 0 {
		return nil, apperror.Validation("Quantity must be at least 1")
	}

	p, err := s.activeProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		log.Error("failed to load cart", zap.Error(err))
		return nil, apperror.Internal(err)
	}

	qty := in.Quantity
	if existing, ok := c.Find(p.ID); ok {
		qty += existing.Quantity
	}
	if qty > p.Stock {
		log.Warn("add to cart rejected: insufficient stock",
			zap.String("product_id", p.ID.String()),
			zap.Int("requested", qty),
			zap.Int("available", p.Stock),
		)
		return nil, apperror.Conflict(fmt.Sprintf("Insufficient stock. Available: %d", p.Stock), product.ErrInsufficientStock)
	}

	if err := s.repo.UpsertItem(ctx, c.ID, p.ID, qty, p.EffectivePrice()); err != nil {
		log.Error("failed to upsert cart item", zap.Error(err))
		return nil, apperror.Internal(err)
	}

	return s.GetCart(ctx, userID)
}

func (s *service) UpdateItem(ctx context.Context, userID uuid.UUID, in UpdateItemInput) (*Cart, error) {
	if in.ProductID == uuid.Nil {
		return nil, apperror.Validation("Product ID is required")
	}
	if in.Quantity < 0 {
		return nil, apperror.Validation("Quantity must not be negative")
	}

	c, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	existing, ok := c.Find(in.ProductID)
	if !ok {
		return nil, apperror.NotFound("Item not found in cart")
	}

	if in.Quantity == 0 {
		return s.RemoveItem(ctx, userID, in.ProductID)
	}

	p, err := s.activeProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if in.Quantity > p.Stock {
		return nil, apperror.Conflict(fmt.Sprintf("Insufficient stock. Available: %d", p.Stock), product.ErrInsufficientStock)
	}

	// quantity changes keep the price captured when the line was added
	if err := s.repo.UpsertItem(ctx, c.ID, in.ProductID, in.Quantity, existing.Price); err != nil {
		return nil, apperror.Internal(err)
	}
	return s.GetCart(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*Cart, error) {
	c, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	if err := s.repo.RemoveItem(ctx, c.ID, productID); err != nil {
		if errors.Is(err, ErrCartItemNotFound) {
			return nil, apperror.NotFound("Item not found in cart")
		}
		return nil, apperror.Internal(err)
	}
	return s.GetCart(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		logger.FromCtx(ctx).Error("failed to clear cart", zap.String("layer", "service"), zap.Error(err))
		return apperror.Internal(err)
	}
	return nil
}

func (s *service) activeProduct(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	p, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if p == nil || !p.IsActive {
		return nil, apperror.NotFound("Product not found or unavailable")
	}
	return p, nil
}
