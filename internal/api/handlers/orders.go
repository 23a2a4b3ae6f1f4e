package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/api/dto"
	"github.com/hugh/ash-erp/internal/api/respond"
	"github.com/hugh/ash-erp/internal/api/validation"
	"github.com/hugh/ash-erp/internal/database/models"
	"gorm.io/gorm"
)

type OrderHandler struct {
	db       *gorm.DB
	usage    UsageTracker
	notifier UsageNotifier
	rs       *respond.Responder
}

func NewOrderHandler(db *gorm.DB, usage UsageTracker, notifier UsageNotifier, rs *respond.Responder) *OrderHandler {
	return &OrderHandler{db: db, usage: usage, notifier: notifier, rs: rs}
}

// List handles GET /orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	sc, err := requestScope(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	pagination := paginationFrom(r)

	query := h.db.WithContext(r.Context()).Model(&models.Order{}).Where("tenant_id = ?", sc.tenant.TenantID)
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", strings.ToUpper(status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.rs.Error(w, r, err)
		return
	}

	var orders []models.Order
	if err := query.
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&orders).Error; err != nil {
		h.rs.Error(w, r, err)
		return
	}

	data := make([]dto.OrderDTO, len(orders))
	for i := range orders {
		data[i] = dto.NewOrderDTO(&orders[i])
	}

	respond.JSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		TotalPages: pagination.TotalPages(total),
	})
}

// Create handles POST /orders. The monthly order quota was checked by the
// gate.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	sc, err := requestScope(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	var req dto.CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validate(w, req.Validate()) {
		return
	}

	number := req.Number
	if number == "" {
		number = "ORD-" + strings.ToUpper(uuid.New().String()[:8])
	}

	order := models.Order{
		TenantID:   sc.tenant.TenantID,
		Number:     number,
		ClientName: validation.SanitizeString(strings.TrimSpace(req.ClientName)),
		Status:     models.OrderStatusIntake,
		Quantity:   req.Quantity,
		CreatedBy:  sc.principal.UserID,
	}
	if err := h.db.WithContext(r.Context()).Create(&order).Error; err != nil {
		h.rs.Error(w, r, err)
		return
	}

	usageChanged(r.Context(), h.usage, h.notifier, sc.tenant.TenantID, "order created")
	respond.JSON(w, http.StatusCreated, dto.NewOrderDTO(&order))
}
