package product

import (
	"context"
	"errors"
	"fmt"

	"storefront-be/internal/apperror"
	"storefront-be/internal/logger"
	"storefront-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Cache is a read-through cache for single products.
type Cache interface {
	Get(ctx context.Context, id uuid.UUID) (*Product, bool)
	Set(ctx context.Context, p *Product)
	Invalidate(ctx context.Context, ids ...uuid.UUID)
}

type nopCache struct{}

func (nopCache) Get(context.Context, uuid.UUID) (*Product, bool) { return nil, false }
func (nopCache) Set(context.Context, *Product)                   {}
func (nopCache) Invalidate(context.Context, ...uuid.UUID)        {}

type Page struct {
	Items    []Response     `json:"items"`
	PageInfo utils.PageInfo `json:"pagination"`
}

// CollectionPage is a page of active products inside one collection.
type CollectionPage struct {
	Collection *Collection    `json:"collection"`
	Items      []Response     `json:"items"`
	PageInfo   utils.PageInfo `json:"pagination"`
}

type ListQuery struct {
	CollectionID *uuid.UUID
	Search       string
	MinPrice     *float64
	MaxPrice     *float64
	utils.Pagination
}

// AdminListQuery filters the full catalog, inactive products included
// unless IsActive narrows it.
type AdminListQuery struct {
	CollectionID *uuid.UUID
	Search       string
	IsActive     *bool
	utils.Pagination
}

type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context, q ListQuery) (*Page, error)
	ListProductsByCollection(ctx context.Context, slug string, pg utils.Pagination) (*CollectionPage, error)
	ListCollections(ctx context.Context) ([]Collection, error)

	AdminGetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	AdminListProducts(ctx context.Context, q AdminListQuery) (*Page, error)
	CreateProduct(ctx context.Context, in CreateProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, in UpdateProductInput) (*Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	AdminListCollections(ctx context.Context) ([]Collection, error)
	AdminGetCollection(ctx context.Context, id uuid.UUID) (*Collection, error)
	CreateCollection(ctx context.Context, in CreateCollectionInput) (*Collection, error)
	UpdateCollection(ctx context.Context, id uuid.UUID, in UpdateCollectionInput) (*Collection, error)
	DeleteCollection(ctx context.Context, id uuid.UUID) error

	InvalidateProducts(ctx context.Context, ids ...uuid.UUID)
}

type service struct {
	repo  Repository
	cache Cache
}

// NewService wires the catalog. cache may be nil.
func NewService(repo Repository, cache Cache) Service {
	if cache == nil {
		cache = nopCache{}
	}
	return &service{repo: repo, cache: cache}
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	if p, ok := s.cache.Get(ctx, id); ok {
		if !p.IsActive {
			return nil, apperror.NotFound("Product not found")
		}
		return p, nil
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to get product",
			zap.String("layer", "service"),
			zap.String("product_id", id.String()),
			zap.Error(err),
		)
		return nil, apperror.Internal(err)
	}
	if p == nil {
		return nil, apperror.NotFound("Product not found")
	}

	s.cache.Set(ctx, p)
	if !p.IsActive {
		return nil, apperror.NotFound("Product not found")
	}
	return p, nil
}

func (s *service) ListProducts(ctx context.Context, q ListQuery) (*Page, error) {
	pg := q.Pagination.Normalize(20, 100)

	products, total, err := s.repo.List(ctx, ListFilter{
		CollectionID: q.CollectionID,
		Search:       q.Search,
		MinPrice:     q.MinPrice,
		MaxPrice:     q.MaxPrice,
		OnlyActive:   true,
		Limit:        pg.Limit,
		Offset:       pg.Offset(),
	})
	if err != nil {
		logger.FromCtx(ctx).Error("failed to list products", zap.String("layer", "service"), zap.Error(err))
		return nil, apperror.Internal(err)
	}

	return &Page{Items: ToResponses(products), PageInfo: utils.NewPageInfo(pg, total)}, nil
}

func (s *service) ListProductsByCollection(ctx context.Context, slug string, pg utils.Pagination) (*CollectionPage, error) {
	c, err := s.repo.GetCollectionBySlug(ctx, slug)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if c == nil || !c.IsActive {
		return nil, apperror.NotFound("Collection not found")
	}

	pg = pg.Normalize(20, 100)
	products, total, err := s.repo.List(ctx, ListFilter{
		CollectionID: &c.ID,
		OnlyActive:   true,
		Limit:        pg.Limit,
		Offset:       pg.Offset(),
	})
	if err != nil {
		logger.FromCtx(ctx).Error("failed to list collection products",
			zap.String("layer", "service"),
			zap.String("slug", slug),
			zap.Error(err),
		)
		return nil, apperror.Internal(err)
	}

	return &CollectionPage{
		Collection: c,
		Items:      ToResponses(products),
		PageInfo:   utils.NewPageInfo(pg, total),
	}, nil
}

func (s *service) ListCollections(ctx context.Context) ([]Collection, error) {
	cs, err := s.repo.ListCollections(ctx, true)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return cs, nil
}

// AdminGetProduct reads through to storage and returns inactive products too.
func (s *service) AdminGetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if p == nil {
		return nil, apperror.NotFound("Product not found")
	}
	return p, nil
}

func (s *service) AdminListProducts(ctx context.Context, q AdminListQuery) (*Page, error) {
	pg := q.Pagination.Normalize(20, 100)

	products, total, err := s.repo.List(ctx, ListFilter{
		CollectionID: q.CollectionID,
		Search:       q.Search,
		IsActive:     q.IsActive,
		Limit:        pg.Limit,
		Offset:       pg.Offset(),
	})
	if err != nil {
		logger.FromCtx(ctx).Error("failed to list products", zap.String("layer", "service"), zap.Error(err))
		return nil, apperror.Internal(err)
	}

	return &Page{Items: ToResponses(products), PageInfo: utils.NewPageInfo(pg, total)}, nil
}

func (s *service) CreateProduct(ctx context.Context, in CreateProductInput) (*Product, error) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "service"), zap.String("method", "CreateProduct"))

	p := &Product{
		Name:          in.Name,
		Description:   in.Description,
		SKU:           in.SKU,
		Price:         in.Price,
		DiscountPrice: in.DiscountPrice,
		Stock:         in.Stock,
		IsActive:      in.IsActive == nil || *in.IsActive,
		CollectionID:  in.CollectionID,
		Tags:          NormalizeTags(in.Tags),
	}
	if err := p.Validate(); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if ae := mapCatalogError(err); ae != nil {
			return nil, ae
		}
		log.Error("failed to create product", zap.Error(err))
		return nil, apperror.Internal(err)
	}

	log.Info("product created", zap.String("product_id", p.ID.String()))
	return p, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, in UpdateProductInput) (*Product, error) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "service"), zap.String("method", "UpdateProduct"))

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if p == nil {
		return nil, apperror.NotFound("Product not found")
	}

	applyUpdate(p, in)
	if err := p.Validate(); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	if err := s.repo.Update(ctx, p, in.Stock); err != nil {
		if ae := mapCatalogError(err); ae != nil {
			return nil, ae
		}
		log.Error("failed to update product", zap.Error(err))
		return nil, apperror.Internal(err)
	}

	s.cache.Invalidate(ctx, id)
	return p, nil
}

func applyUpdate(p *Product, in UpdateProductInput) {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.SKU != nil {
		p.SKU = *in.SKU
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.ClearDiscount {
		p.DiscountPrice = nil
	} else if in.DiscountPrice != nil {
		p.DiscountPrice = in.DiscountPrice
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if in.CollectionID != nil {
		p.CollectionID = in.CollectionID
	}
	if in.Tags != nil {
		p.Tags = NormalizeTags(in.Tags)
	}
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return apperror.NotFound("Product not found")
		}
		return apperror.Internal(err)
	}
	s.cache.Invalidate(ctx, id)
	return nil
}

func (s *service) CreateCollection(ctx context.Context, in CreateCollectionInput) (*Collection, error) {
	if in.Name == "" {
		return nil, apperror.Validation("Collection name is required")
	}
	slug := in.Slug
	if slug == "" {
		slug = Slugify(in.Name)
	}

	c := &Collection{Name: in.Name, Slug: slug, Description: in.Description, IsActive: true}
	if err := s.repo.CreateCollection(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateSlug) {
			return nil, apperror.Conflict("Collection slug already exists", err)
		}
		return nil, apperror.Internal(err)
	}
	return c, nil
}

func (s *service) AdminListCollections(ctx context.Context) ([]Collection, error) {
	cs, err := s.repo.ListCollections(ctx, false)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return cs, nil
}

func (s *service) AdminGetCollection(ctx context.Context, id uuid.UUID) (*Collection, error) {
	c, err := s.repo.GetCollectionByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if c == nil {
		return nil, apperror.NotFound("Collection not found")
	}
	return c, nil
}

func (s *service) UpdateCollection(ctx context.Context, id uuid.UUID, in UpdateCollectionInput) (*Collection, error) {
	c, err := s.AdminGetCollection(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.Slug != nil {
		c.Slug = Slugify(*in.Slug)
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	if c.Name == "" {
		return nil, apperror.Validation("Collection name is required")
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}

	if err := s.repo.UpdateCollection(ctx, c); err != nil {
		return nil, mapCollectionServiceError(err)
	}
	return c, nil
}

// DeleteCollection refuses while any product, active or not, still points
// at the collection.
func (s *service) DeleteCollection(ctx context.Context, id uuid.UUID) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "DeleteCollection"),
		zap.String("collection_id", id.String()),
	)

	if _, err := s.AdminGetCollection(ctx, id); err != nil {
		return err
	}

	n, err := s.repo.CountByCollection(ctx, id)
	if err != nil {
		log.Error("failed to count collection products", zap.Error(err))
		return apperror.Internal(err)
	}
	if n > 0 {
		return apperror.Conflict(fmt.Sprintf("Cannot delete, %d product(s) belong to this collection", n), ErrCollectionInUse)
	}

	if err := s.repo.DeleteCollection(ctx, id); err != nil {
		if errors.Is(err, ErrCollectionInUse) {
			return apperror.Conflict("Cannot delete, products belong to this collection", err)
		}
		return mapCollectionServiceError(err)
	}

	log.Info("collection deleted")
	return nil
}

func mapCollectionServiceError(err error) error {
	switch {
	case errors.Is(err, ErrCollectionNotFound):
		return apperror.NotFound("Collection not found")
	case errors.Is(err, ErrDuplicateSlug):
		return apperror.Conflict("Collection slug already exists", err)
	}
	return apperror.Internal(err)
}

// InvalidateProducts drops cached entries after out-of-band stock changes.
func (s *service) InvalidateProducts(ctx context.Context, ids ...uuid.UUID) {
	if len(ids) > 0 {
		s.cache.Invalidate(ctx, ids...)
	}
}

func mapCatalogError(err error) *apperror.Error {
	switch {
	case errors.Is(err, ErrProductNotFound):
		return apperror.NotFound("Product not found")
	case errors.Is(err, ErrDuplicateSKU):
		return apperror.Conflict("SKU already exists", err)
	case errors.Is(err, ErrCollectionNotFound):
		return apperror.Validation("Collection does not exist")
	}
	return nil
}
