package pricing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/RahulXTmCoding/desi-otaku-backend/internal/catalog"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/config"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/enums"
	pkgerrors "github.com/RahulXTmCoding/desi-otaku-backend/pkg/errors"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/logger"
	"github.com/RahulXTmCoding/desi-otaku-backend/pkg/types"
)

// CartItemInput is a raw, client-supplied cart line. Every field except
// quantity and size is re-derived server-side before it is trusted.
type CartItemInput struct {
	ProductID     *uuid.UUID
	Name          string
	Quantity      int
	Size          enums.GarmentSize
	IsCustom      bool
	Customization *types.Customization
}

// ResolvedLineItem carries server-derived prices. Immutable once produced.
type ResolvedLineItem struct {
	ProductID      *uuid.UUID
	Name           string
	Quantity       int
	Size           enums.GarmentSize
	IsCustom       bool
	Customization  *types.Customization
	UnitPricePaise int64
	LineTotalPaise int64
}

// Resolution is the priced cart.
type Resolution struct {
	Items         []ResolvedLineItem
	SubtotalPaise int64
	ItemCount     int
}

// Service resolves authoritative unit prices for cart lines. This is the
// single point where client-asserted prices are discarded and replaced.
type Service interface {
	Resolve(ctx context.Context, items []CartItemInput) (*Resolution, error)
}

type service struct {
	products catalog.ProductRepository
	designs  catalog.DesignRepository
	cfg      config.CheckoutConfig
	logg     *logger.Logger
}

// NewService builds the pricing resolver.
func NewService(products catalog.ProductRepository, designs catalog.DesignRepository, cfg config.CheckoutConfig, logg *logger.Logger) (Service, error) {
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if designs == nil {
		return nil, fmt.Errorf("design repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{products: products, designs: designs, cfg: cfg, logg: logg}, nil
}

func (s *service) Resolve(ctx context.Context, items []CartItemInput) (*Resolution, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}

	resolution := &Resolution{Items: make([]ResolvedLineItem, 0, len(items))}
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be at least 1")
		}
		if !item.Size.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid size %q", item.Size))
		}

		var resolved ResolvedLineItem
		var err error
		if item.IsCustom {
			resolved, err = s.resolveCustom(ctx, item)
		} else {
			resolved, err = s.resolveCatalog(ctx, item)
		}
		if err != nil {
			return nil, err
		}

		resolved.LineTotalPaise = resolved.UnitPricePaise * int64(resolved.Quantity)
		resolution.Items = append(resolution.Items, resolved)
		resolution.SubtotalPaise += resolved.LineTotalPaise
		resolution.ItemCount += resolved.Quantity
	}
	return resolution, nil
}

func (s *service) resolveCatalog(ctx context.Context, item CartItemInput) (ResolvedLineItem, error) {
	if item.ProductID == nil || *item.ProductID == uuid.Nil {
		return ResolvedLineItem{}, pkgerrors.New(pkgerrors.CodeValidation, "catalog line requires a product id")
	}
	product, err := s.products.FindActiveByID(ctx, *item.ProductID)
	if err != nil {
		return ResolvedLineItem{}, err
	}
	return ResolvedLineItem{
		ProductID:      item.ProductID,
		Name:           product.Name,
		Quantity:       item.Quantity,
		Size:           item.Size,
		UnitPricePaise: product.PricePaise,
	}, nil
}

// resolveCustom prices a custom garment as base price plus one fee per
// printed side. A side whose design cannot be resolved falls back to the
// configured default side fee rather than pricing the side at zero.
func (s *service) resolveCustom(ctx context.Context, item CartItemInput) (ResolvedLineItem, error) {
	unit := s.cfg.CustomBasePaise
	if item.Customization != nil {
		for _, side := range item.Customization.Sides() {
			unit += s.sideFee(ctx, side)
		}
	}

	name := item.Name
	if name == "" {
		name = "Custom T-Shirt"
	}
	return ResolvedLineItem{
		Name:           name,
		Quantity:       item.Quantity,
		Size:           item.Size,
		IsCustom:       true,
		Customization:  item.Customization,
		UnitPricePaise: unit,
	}, nil
}

func (s *service) sideFee(ctx context.Context, side *types.DesignSide) int64 {
	if side.DesignID == nil || *side.DesignID == uuid.Nil {
		return s.cfg.DefaultSideFeePaise
	}
	design, err := s.designs.FindActiveByID(ctx, *side.DesignID)
	if err != nil {
		logCtx := s.logg.WithField(ctx, "design_id", side.DesignID.String())
		s.logg.Warn(logCtx, "design lookup failed, using default side fee")
		return s.cfg.DefaultSideFeePaise
	}
	return design.PricePaise
}
