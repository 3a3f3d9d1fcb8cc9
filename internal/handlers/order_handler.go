package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"storefront-order-service/internal/dto"
	"storefront-order-service/internal/models"
	"storefront-order-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const IdempotencyHeader = "Idempotency-Key"

type OrderHandler struct {
	svc service.OrderService
	log *zap.Logger
}

func NewOrderHandler(svc service.OrderService, log *zap.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, log: log}
}

func badBody(c *gin.Context, log *zap.Logger, err error) {
	log.Debug("invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadRequest, dto.NewValidationError("invalid request body", []dto.FieldError{}))
}

func isAdmin(c *gin.Context) bool {
	role, _ := service.RoleFromContext(c.Request.Context())
	return role == service.RoleAdmin
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func toCreateInput(req dto.CreateOrderRequest, idemKey string) (service.CreateOrderInput, error) {
	in := service.CreateOrderInput{
		Customer: service.CustomerInfo{
			Email:     req.Customer.Email,
			FirstName: req.Customer.FirstName,
			LastName:  req.Customer.LastName,
			Phone:     req.Customer.Phone,
		},
		ShippingAddress:       req.ShippingAddress.ToModel(),
		BillingSameAsShipping: req.BillingSameAsShipping == nil || *req.BillingSameAsShipping,
		Charges: service.Charges{
			ShippingCost:   orZero(req.ShippingCost),
			TaxAmount:      orZero(req.TaxAmount),
			DiscountAmount: orZero(req.DiscountAmount),
		},
		ClientTotal:    req.TotalAmount,
		PaymentMethod:  req.PaymentMethod,
		ShippingMethod: req.ShippingMethod,
		CustomerNotes:  req.CustomerNotes,
		IdempotencyKey: idemKey,
	}
	if req.BillingAddress != nil {
		b := req.BillingAddress.ToModel()
		in.BillingAddress = &b
	}

	in.Items = make([]service.CreateOrderItem, 0, len(req.Items))
	for i, it := range req.Items {
		pid, err := uuid.Parse(it.ProductID)
		if err != nil {
			return in, &service.ValidationError{Fields: []service.FieldError{{
				Field: fmt.Sprintf("items[%d].product_id", i), Message: "must be a UUID",
			}}}
		}
		qty, err := strconv.Atoi(it.Quantity.String())
		if err != nil {
			return in, fmt.Errorf("%w: items[%d]: %q", service.ErrInvalidQuantity, i, it.Quantity.String())
		}
		in.Items = append(in.Items, service.CreateOrderItem{ProductID: pid, Quantity: qty, Price: it.Price})
	}
	return in, nil
}

// CreateOrder godoc
// @Summary Оформление заказа
// @Description Проверяет позиции по каталогу, пересчитывает суммы и сохраняет заказ атомарно
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Ключ идемпотентности"
// @Param order body dto.CreateOrderRequest true "Данные заказа"
// @Success 201 {object} dto.OrderResponse
// @Failure 400 {object} dto.ValidationErrorResponse "Неверные данные"
// @Failure 401 {object} dto.UnauthorizedErrorResponse "Требуется авторизация"
// @Failure 404 {object} dto.NotFoundErrorResponse "Товар не найден"
// @Failure 409 {object} dto.ConflictErrorResponse "Повторите запрос"
// @Failure 503 {object} dto.UnavailableErrorResponse "Хранилище недоступно"
// @Router /api/v1/orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, h.log, err)
		return
	}
	in, err := toCreateInput(req, c.GetHeader(IdempotencyHeader))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	ord, err := h.svc.CreateOrder(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewOrderResponse(ord, isAdmin(c)))
}

// ListMyOrders godoc
// @Summary Мои заказы
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.OrderListResponse
// @Failure 401 {object} dto.UnauthorizedErrorResponse
// @Router /api/v1/orders [get]
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	uid, ok := service.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.NewUnauthorizedError("authentication required"))
		return
	}
	h.listForUser(c, uid)
}

// ListUserOrders godoc
// @Summary Заказы пользователя
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID пользователя"
// @Success 200 {object} dto.OrderListResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 403 {object} dto.ForbiddenErrorResponse
// @Router /api/v1/admin/users/{id}/orders [get]
func (h *OrderHandler) ListUserOrders(c *gin.Context) {
	uid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewValidationError("invalid user id", []dto.FieldError{{Field: "id", Message: "must be a UUID"}}))
		return
	}
	h.listForUser(c, uid)
}

func (h *OrderHandler) listForUser(c *gin.Context, uid uuid.UUID) {
	list, err := h.svc.ListOrdersForUser(c.Request.Context(), uid)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	admin := isAdmin(c)
	resp := dto.OrderListResponse{Orders: make([]dto.OrderResponse, 0, len(list)), Total: int64(len(list))}
	for _, o := range list {
		resp.Orders = append(resp.Orders, dto.NewOrderResponse(o, admin))
	}
	c.JSON(http.StatusOK, resp)
}

// GetOrder godoc
// @Summary Заказ по номеру
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param number path string true "Номер заказа"
// @Success 200 {object} dto.OrderResponse
// @Failure 401 {object} dto.UnauthorizedErrorResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Router /api/v1/orders/{number} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ord, err := h.svc.GetOrder(c.Request.Context(), c.Param("number"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewOrderResponse(ord, isAdmin(c)))
}

// CancelOrder godoc
// @Summary Отмена заказа покупателем
// @Description Доступна только для заказов в статусе pending или confirmed
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param number path string true "Номер заказа"
// @Param body body dto.CancelOrderRequest false "Причина"
// @Success 200 {object} dto.OrderResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Failure 409 {object} dto.ConflictErrorResponse
// @Router /api/v1/orders/{number}/cancel [post]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req dto.CancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badBody(c, h.log, err)
			return
		}
	}
	ord, err := h.svc.CancelOrder(c.Request.Context(), c.Param("number"), req.Reason)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewOrderResponse(ord, isAdmin(c)))
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, dto.NewValidationError("invalid query parameter",
			[]dto.FieldError{{Field: key, Message: "must be a non-negative integer"}}))
		return 0, false
	}
	return n, true
}

// ListRecentOrders godoc
// @Summary Последние заказы
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Количество (по умолчанию 20, максимум 100)"
// @Success 200 {object} dto.OrderListResponse
// @Failure 403 {object} dto.ForbiddenErrorResponse
// @Router /api/v1/admin/orders/recent [get]
func (h *OrderHandler) ListRecentOrders(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	list, total, err := h.svc.ListRecentOrders(c.Request.Context(), limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	resp := dto.OrderListResponse{Orders: make([]dto.OrderResponse, 0, len(list)), Total: total}
	for _, o := range list {
		resp.Orders = append(resp.Orders, dto.NewOrderResponse(o, true))
	}
	c.JSON(http.StatusOK, resp)
}

// ListCustomers godoc
// @Summary Покупатели
// @Description Агрегирует заказы по email покупателя
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param skip query int false "Смещение"
// @Param limit query int false "Количество (по умолчанию 50, максимум 200)"
// @Success 200 {object} dto.CustomerListResponse
// @Failure 403 {object} dto.ForbiddenErrorResponse
// @Router /api/v1/admin/customers [get]
func (h *OrderHandler) ListCustomers(c *gin.Context) {
	skip, ok := queryInt(c, "skip")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	rows, total, err := h.svc.ListAllCustomers(c.Request.Context(), skip, limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	resp := dto.CustomerListResponse{Customers: make([]dto.CustomerSummaryResponse, 0, len(rows)), Total: total}
	for _, r := range rows {
		resp.Customers = append(resp.Customers, dto.NewCustomerSummaryResponse(r))
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateOrderStatus godoc
// @Summary Смена статуса заказа
// @Description Шаг вперёд по цепочке; override разрешает пропуск шагов
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param number path string true "Номер заказа"
// @Param body body dto.UpdateStatusRequest true "Новый статус"
// @Success 200 {object} dto.OrderResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Failure 409 {object} dto.ConflictErrorResponse
// @Router /api/v1/admin/orders/{number}/status [put]
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, h.log, err)
		return
	}
	st, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		writeError(c, h.log, fmt.Errorf("%w: %v", service.ErrInvalidStatus, err))
		return
	}
	ord, err := h.svc.UpdateOrderStatus(c.Request.Context(), service.UpdateStatusInput{
		OrderNumber:    c.Param("number"),
		Status:         st,
		Override:       req.Override,
		TrackingNumber: req.TrackingNumber,
		Note:           req.Note,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewOrderResponse(ord, true))
}

// UpdatePaymentStatus godoc
// @Summary Смена статуса оплаты
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param number path string true "Номер заказа"
// @Param body body dto.UpdatePaymentRequest true "Статус оплаты"
// @Success 200 {object} dto.OrderResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Failure 409 {object} dto.ConflictErrorResponse
// @Router /api/v1/admin/orders/{number}/payment [put]
func (h *OrderHandler) UpdatePaymentStatus(c *gin.Context) {
	var req dto.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, h.log, err)
		return
	}
	st, err := models.ParsePaymentStatus(req.Status)
	if err != nil {
		writeError(c, h.log, fmt.Errorf("%w: %v", service.ErrInvalidStatus, err))
		return
	}
	ord, err := h.svc.UpdatePaymentStatus(c.Request.Context(), service.UpdatePaymentInput{
		OrderNumber: c.Param("number"),
		Status:      st,
		Reference:   req.Reference,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewOrderResponse(ord, true))
}

// UpdateFulfillment godoc
// @Summary Данные доставки и заметки
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param number path string true "Номер заказа"
// @Param body body dto.UpdateFulfillmentRequest true "Изменения"
// @Success 200 {object} dto.OrderResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Failure 409 {object} dto.ConflictErrorResponse
// @Router /api/v1/admin/orders/{number} [patch]
func (h *OrderHandler) UpdateFulfillment(c *gin.Context) {
	var req dto.UpdateFulfillmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, h.log, err)
		return
	}
	ord, err := h.svc.UpdateFulfillment(c.Request.Context(), service.UpdateFulfillmentInput{
		OrderNumber:    c.Param("number"),
		TrackingNumber: req.TrackingNumber,
		ShippingMethod: req.ShippingMethod,
		AdminNotes:     req.AdminNotes,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewOrderResponse(ord, true))
}

// DeleteOrder godoc
// @Summary Удаление заказа
// @Description Безвозвратно удаляет заказ вместе с позициями
// @Tags admin
// @Security BearerAuth
// @Param number path string true "Номер заказа"
// @Success 204
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Router /api/v1/admin/orders/{number} [delete]
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	if err := h.svc.DeleteOrder(c.Request.Context(), c.Param("number")); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
