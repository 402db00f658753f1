package api

import (
	"net/http"

	"storefront-service/internal/models"

	"github.com/gin-gonic/gin"
)

// setupAdminRoutes mounts the back-office CRUD surface. Authentication sits
// in front of this group at the gateway.
func (h *Handler) setupAdminRoutes(admin *gin.RouterGroup) {
	admin.POST("/products", h.createProduct)
	admin.PUT("/products/:id", h.updateProduct)
	admin.DELETE("/products/:id", h.deleteProduct)

	admin.POST("/products/:id/variants", h.createVariant)
	admin.PUT("/products/:id/variants/:variantId", h.updateVariant)
	admin.DELETE("/products/:id/variants/:variantId", h.deleteVariant)

	admin.POST("/categories", h.createCategory)
	admin.PUT("/categories/:id", h.updateCategory)
	admin.DELETE("/categories/:id", h.deleteCategory)

	admin.POST("/brands", h.createBrand)
	admin.PUT("/brands/:id", h.updateBrand)
	admin.DELETE("/brands/:id", h.deleteBrand)

	admin.GET("/settings", h.getSettings)
	admin.PUT("/settings", h.updateSettings)

	admin.PATCH("/orders/:id/status", h.updateOrderStatus)
}

func (h *Handler) createProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := validateProduct(&product); err != nil {
		respondError(c, err)
		return
	}

	if err := h.catalog.CreateProduct(c.Request.Context(), &product); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	product.ID = id
	if err := validateProduct(&product); err != nil {
		respondError(c, err)
		return
	}

	if err := h.catalog.UpdateProduct(c.Request.Context(), &product); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) createVariant(c *gin.Context) {
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var variant models.ProductVariant
	if err := c.ShouldBindJSON(&variant); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	variant.ProductID = productID
	if err := validateVariant(&variant); err != nil {
		respondError(c, err)
		return
	}

	if err := h.catalog.CreateVariant(c.Request.Context(), &variant); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"variant": variant})
}

func (h *Handler) updateVariant(c *gin.Context) {
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}
	variantID, ok := pathID(c, "variantId")
	if !ok {
		return
	}

	var variant models.ProductVariant
	if err := c.ShouldBindJSON(&variant); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	variant.ID = variantID
	variant.ProductID = productID
	if err := validateVariant(&variant); err != nil {
		respondError(c, err)
		return
	}

	if err := h.catalog.UpdateVariant(c.Request.Context(), &variant); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"variant": variant})
}

func (h *Handler) deleteVariant(c *gin.Context) {
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}
	variantID, ok := pathID(c, "variantId")
	if !ok {
		return
	}
	if err := h.catalog.DeleteVariant(c.Request.Context(), productID, variantID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) createCategory(c *gin.Context) {
	var category models.Category
	if err := c.ShouldBindJSON(&category); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.catalog.CreateCategory(c.Request.Context(), &category); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": category})
}

func (h *Handler) updateCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var category models.Category
	if err := c.ShouldBindJSON(&category); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	category.ID = id

	if err := h.catalog.UpdateCategory(c.Request.Context(), &category); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category})
}

func (h *Handler) deleteCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteCategory(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) createBrand(c *gin.Context) {
	var brand models.Brand
	if err := c.ShouldBindJSON(&brand); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.catalog.CreateBrand(c.Request.Context(), &brand); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"brand": brand})
}

func (h *Handler) updateBrand(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var brand models.Brand
	if err := c.ShouldBindJSON(&brand); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	brand.ID = id

	if err := h.catalog.UpdateBrand(c.Request.Context(), &brand); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brand": brand})
}

// deleteBrand refuses deletion while products still reference the brand.
func (h *Handler) deleteBrand(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteBrand(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getSettings(c *gin.Context) {
	settings, err := h.settings.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *Handler) updateSettings(c *gin.Context) {
	var settings models.AppSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.settings.Update(c.Request.Context(), &settings); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.orders.ChangeStatus(c.Request.Context(), id, req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

func validateProduct(p *models.Product) error {
	violations := map[string]string{}
	if p.Name.En == "" || p.Name.Ar == "" {
		violations["name"] = "both en and ar names are required"
	}
	if p.Price.IsNegative() {
		violations["price"] = "must not be negative"
	}
	if p.Stock < 0 {
		violations["stock"] = "must not be negative"
	}
	if p.CategoryID == 0 {
		violations["category_id"] = "is required"
	}
	if len(violations) > 0 {
		return models.NewValidationError(violations)
	}
	return nil
}

func validateVariant(v *models.ProductVariant) error {
	violations := map[string]string{}
	if v.Price.IsNegative() {
		violations["price"] = "must not be negative"
	}
	if v.Stock < 0 {
		violations["stock"] = "must not be negative"
	}
	if len(v.Values) == 0 {
		violations["values"] = "at least one variant value is required"
	}
	if len(violations) > 0 {
		return models.NewValidationError(violations)
	}
	return nil
}
