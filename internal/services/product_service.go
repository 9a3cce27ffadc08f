// internal/services/product_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/modelmint/modelmint-backend/internal/models"
	"github.com/modelmint/modelmint-backend/internal/utils"
)

type ProductService struct {
	db        *gorm.DB
	licensing *LicensingService
}

type CreateProductRequest struct {
	StoreID      uuid.UUID `json:"store_id" validate:"required"`
	GenerationID uuid.UUID `json:"generation_id" validate:"required"`
	Title        string    `json:"title" validate:"required,min=3,max=255"`
	Description  string    `json:"description" validate:"max=5000"`
	Category     string    `json:"category" validate:"max=100"`
	PriceCents   int64     `json:"price_cents" validate:"min=0"`
	DiscountBps  int64     `json:"discount_bps" validate:"bps"`
	Tags         []string  `json:"tags" validate:"max=20"`
}

type ProductListQuery struct {
	StoreID    *uuid.UUID
	Pagination utils.PaginationParams
}

func NewProductService(db *gorm.DB, licensing *LicensingService) *ProductService {
	return &ProductService{
		db:        db,
		licensing: licensing,
	}
}

// CreateProduct lists a completed generation for sale. The listing is checked
// against the generation creator's licensing policy before anything is
// persisted; policy violations come back in the ValidationResult, not as an
// error.
func (s *ProductService) CreateProduct(storeOwnerID uuid.UUID, req *CreateProductRequest) (*models.Product, *ValidationResult, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, nil, fmt.Errorf("validation failed: %w", err)
	}

	var store models.Store
	if err := s.db.First(&store, "id = ? AND owner_id = ?", req.StoreID, storeOwnerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errors.New("store not found")
		}
		return nil, nil, fmt.Errorf("database error: %w", err)
	}

	var generation models.Generation
	if err := s.db.First(&generation, "id = ?", req.GenerationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errors.New("generation not found")
		}
		return nil, nil, fmt.Errorf("database error: %w", err)
	}
	if generation.Status != models.GenerationStatusSucceeded {
		return nil, nil, errors.New("generation is not completed")
	}

	result, err := s.licensing.ValidateProductPolicy(&ProductPolicyInput{
		CreatorID:         generation.CreatorID,
		StoreOwnerID:      storeOwnerID,
		GenerationOwnerID: generation.UserID,
		PriceCents:        req.PriceCents,
		DiscountBps:       req.DiscountBps,
	})
	if err != nil {
		return nil, nil, err
	}
	if !result.IsValid {
		return nil, result, nil
	}

	images := pq.StringArray{}
	if generation.WatermarkedURL != "" {
		images = append(images, generation.WatermarkedURL)
	}

	product := &models.Product{
		CreatorID:    generation.CreatorID,
		StoreID:      store.ID,
		GenerationID: generation.ID,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		PriceCents:   req.PriceCents,
		DiscountBps:  req.DiscountBps,
		Images:       images,
		Tags:         pq.StringArray(req.Tags),
		Status:       models.ProductStatusActive,
	}

	if err := s.db.Create(product).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create product: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"product_id": product.ID,
		"store_id":   store.ID,
		"creator_id": generation.CreatorID,
	}).Info("Product listed")

	return product, result, nil
}

func (s *ProductService) GetProduct(productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := s.db.
		Preload("Creator").
		Preload("Store").
		First(&product, "id = ? AND status = ?", productID, models.ProductStatusActive).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("product not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &product, nil
}

func (s *ProductService) ListProducts(query *ProductListQuery) (*utils.PaginationResult, error) {
	db := s.db.Model(&models.Product{}).Where("status = ?", models.ProductStatusActive)

	if query.Pagination.Category != "" {
		db = db.Where("category = ?", query.Pagination.Category)
	}
	if query.StoreID != nil {
		db = db.Where("store_id = ?", *query.StoreID)
	}
	if query.Pagination.Search != "" {
		like := "%" + query.Pagination.Search + "%"
		db = db.Where("title LIKE ? OR description LIKE ?", like, like)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	var products []models.Product
	sortable := []string{"created_at", "price_cents", "sales_count", "title"}
	db = utils.ApplySort(db, query.Pagination, sortable)
	if err := utils.ApplyPagination(db, query.Pagination).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	result := utils.CreatePaginationResult(products, total, query.Pagination)
	return &result, nil
}

// ArchiveProduct takes a listing off sale. Existing orders are unaffected.
func (s *ProductService) ArchiveProduct(storeOwnerID, productID uuid.UUID) error {
	result := s.db.Model(&models.Product{}).
		Where("id = ? AND store_id IN (?)",
			productID,
			s.db.Model(&models.Store{}).Select("id").Where("owner_id = ?", storeOwnerID)).
		Update("status", models.ProductStatusArchived)
	if result.Error != nil {
		return fmt.Errorf("failed to archive product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.New("product not found")
	}
	return nil
}
