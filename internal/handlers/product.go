// internal/handlers/product.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/modelmint/modelmint-backend/internal/services"
	"github.com/modelmint/modelmint-backend/internal/utils"
)

type ProductHandler struct {
	productService *services.ProductService
}

func NewProductHandler(productService *services.ProductService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
	}
}

// POST /products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	var req services.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	product, validation, err := h.productService.CreateProduct(userID, &req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}
	if validation != nil && !validation.IsValid {
		utils.ErrorResponse(c, 422, "POLICY_VIOLATION", "Listing violates creator licensing policy", validation)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"product":  product,
		"warnings": validation.Warnings,
	})
}

// GET /products
func (h *ProductHandler) ListProducts(c *gin.Context) {
	query := &services.ProductListQuery{
		Pagination: utils.GetPaginationParams(c),
	}

	if storeIDStr := c.Query("store_id"); storeIDStr != "" {
		storeID, err := uuid.Parse(storeIDStr)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid store ID", nil)
			return
		}
		query.StoreID = &storeID
	}

	result, err := h.productService.ListProducts(query)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.PaginatedResponse(c, *result)
}

// GET /products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	product, err := h.productService.GetProduct(productID)
	if err != nil {
		utils.NotFoundResponse(c, "Product")
		return
	}

	utils.SuccessResponse(c, product)
}

// DELETE /products/:id
func (h *ProductHandler) ArchiveProduct(c *gin.Context) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid product ID", nil)
		return
	}

	if err := h.productService.ArchiveProduct(userID, productID); err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Product archived",
	})
}
