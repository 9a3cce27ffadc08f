// internal/services/order_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
	"gorm.io/gorm"

	"github.com/modelmint/modelmint-backend/internal/config"
	"github.com/modelmint/modelmint-backend/internal/database"
	"github.com/modelmint/modelmint-backend/internal/models"
	"github.com/modelmint/modelmint-backend/internal/utils"
)

type OrderService struct {
	db     *gorm.DB
	config *config.Config
}

type CheckoutItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"min=1"`
}

type CreateCheckoutRequest struct {
	Items []CheckoutItemRequest `json:"items" validate:"required,min=1,dive"`
}

type CheckoutResponse struct {
	OrderID     uuid.UUID `json:"order_id"`
	SessionID   string    `json:"session_id"`
	CheckoutURL string    `json:"checkout_url"`
	TotalCents  int64     `json:"total_cents"`
}

func NewOrderService(db *gorm.DB, config *config.Config) *OrderService {
	stripe.Key = config.Payment.StripeSecretKey

	return &OrderService{
		db:     db,
		config: config,
	}
}

// CreateCheckout creates a PENDING order and its Stripe checkout session.
// The order becomes PAID only through the checkout-completion webhook.
func (s *OrderService) CreateCheckout(userID uuid.UUID, req *CreateCheckoutRequest) (*CheckoutResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var products []models.Product
	productIDs := make([]uuid.UUID, 0, len(req.Items))
	for _, item := range req.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	if err := s.db.Where("id IN ? AND status = ?", productIDs, models.ProductStatusActive).
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	productsByID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		productsByID[products[i].ID] = &products[i]
	}

	var totalCents int64
	orderItems := make([]models.OrderItem, 0, len(req.Items))
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))

	for _, item := range req.Items {
		product, ok := productsByID[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %s not found or not active", item.ProductID)
		}

		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}

		totalCents += product.PriceCents * int64(quantity)
		orderItems = append(orderItems, models.OrderItem{
			ProductID:  product.ID,
			PriceCents: product.PriceCents,
			Quantity:   quantity,
		})

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(product.PriceCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(product.Title),
				},
			},
		})
	}

	platformFeeCents := totalCents * s.config.Payment.PlatformFeeBps / 10000

	order := &models.Order{
		UserID:           userID,
		Status:           models.OrderStatusPending,
		TotalCents:       totalCents,
		PlatformFeeCents: platformFeeCents,
		Items:            orderItems,
	}

	if err := s.db.Create(order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  lineItems,
		SuccessURL: stripe.String(s.config.Frontend.BaseURL + "/orders/success?order_id=" + order.ID.String()),
		CancelURL:  stripe.String(s.config.Frontend.BaseURL + "/orders/cancelled"),
	}
	params.AddMetadata("order_id", order.ID.String())

	sess, err := session.New(params)
	if err != nil {
		// The order row stays PENDING; a later checkout attempt replaces it.
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	if err := s.db.Model(order).Update("stripe_session_id", sess.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to attach session to order: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"session_id":  sess.ID,
		"total_cents": totalCents,
	}).Info("Checkout session created")

	return &CheckoutResponse{
		OrderID:     order.ID,
		SessionID:   sess.ID,
		CheckoutURL: sess.URL,
		TotalCents:  totalCents,
	}, nil
}

func (s *OrderService) GetOrder(userID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.
		Preload("Items").
		Preload("Items.Product").
		First(&order, "id = ? AND user_id = ?", orderID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("order not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &order, nil
}

// CancelOrder cancels a still-pending order.
func (s *OrderService) CancelOrder(userID, orderID uuid.UUID) error {
	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&models.Order{}).
			Where("id = ? AND user_id = ? AND status = ?", orderID, userID, models.OrderStatusPending).
			Update("status", models.OrderStatusCancelled)
		if result.Error != nil {
			return fmt.Errorf("failed to cancel order: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return errors.New("order not found or not cancellable")
		}
		return nil
	})
}
