package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/jotalevi/TheFirm/internal/coupon"
	"github.com/jotalevi/TheFirm/internal/inventory"
	"github.com/jotalevi/TheFirm/internal/logger"
	"github.com/jotalevi/TheFirm/internal/models"
	"github.com/jotalevi/TheFirm/internal/notify"
	"github.com/jotalevi/TheFirm/internal/order/db"
)

var (
	ErrUnknownUser = errors.New("invalid user")
	ErrEmptyOrder  = errors.New("order has no items")
)

// FinalizationError reports a failed post-commit status flip. The
// reservation and tickets already committed stand; the order remains
// pending and is not retried.
type FinalizationError struct {
	OrderID int64
	Err     error
}

func (e *FinalizationError) Error() string {
	return fmt.Sprintf("order %d created but finalization failed: %v", e.OrderID, e.Err)
}

func (e *FinalizationError) Unwrap() error { return e.Err }

type StockReserver interface {
	Reserve(ctx context.Context, idb bun.IDB, tierID int64, quantity int) (*inventory.Reservation, error)
}

type CouponEvaluator interface {
	Evaluate(ctx context.Context, idb bun.IDB, code string, eventIDs map[int64]struct{}, now time.Time) (*models.Coupon, error)
	RecordUsage(ctx context.Context, idb bun.IDB, c *models.Coupon, orderID int64, now time.Time) error
}

type TicketIssuer interface {
	Issue(ctx context.Context, idb bun.IDB, userRun string, tierID, orderID int64, count int, now time.Time) ([]models.Ticket, error)
}

type OrderPublisher interface {
	PublishOrderCompleted(order models.Order) error
}

type OrderService struct {
	DB        *db.DB
	Ledger    StockReserver
	Coupons   CouponEvaluator
	Issuer    TicketIssuer
	Notifier  notify.Dispatcher
	Publisher OrderPublisher
	Logger    *logger.Logger
}

func NewOrderService(store *db.DB, ledger StockReserver, coupons CouponEvaluator, issuer TicketIssuer, notifier notify.Dispatcher, publisher OrderPublisher, log *logger.Logger) *OrderService {
	return &OrderService{
		DB:        store,
		Ledger:    ledger,
		Coupons:   coupons,
		Issuer:    issuer,
		Notifier:  notifier,
		Publisher: publisher,
		Logger:    log,
	}
}

func (s *OrderService) GetOrder(ctx context.Context, id int64) (*models.OrderResponse, error) {
	return s.DB.GetOrderWithItems(ctx, id)
}

// PlaceOrder runs the whole checkout: stock reservation, coupon
// application, order/item/ticket creation — all inside one
// transaction — then a post-commit finalization and best-effort
// notifications.
func (s *OrderService) PlaceOrder(ctx context.Context, req models.CreateOrderRequest) (*models.OrderResponse, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	user, err := s.DB.GetUserByRun(ctx, req.UserRun)
	if err != nil {
		return nil, ErrUnknownUser
	}

	now := time.Now().UTC()

	var (
		order        models.Order
		reservations []*inventory.Reservation
	)

	err = s.DB.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		reservations = reservations[:0]

		// Reserve every line item first; the first shortage aborts the
		// transaction and unwinds all prior reservations.
		subtotal := 0.0
		eventIDs := make(map[int64]struct{})
		for _, item := range req.Items {
			reservation, err := s.Ledger.Reserve(ctx, tx, item.TierID, item.Quantity)
			if err != nil {
				return err
			}
			reservations = append(reservations, reservation)
			subtotal += reservation.UnitPrice * float64(item.Quantity)
			eventIDs[reservation.EventID] = struct{}{}
		}

		total := subtotal
		var appliedCoupon *models.Coupon
		if req.CouponCode != "" {
			appliedCoupon, err = s.Coupons.Evaluate(ctx, tx, req.CouponCode, eventIDs, now)
			if err != nil {
				return err
			}
			total = coupon.Discount(appliedCoupon, subtotal)
		}

		order = models.Order{
			UserRun:       req.UserRun,
			OrderDate:     now,
			TotalAmount:   total,
			Status:        models.OrderStatusPending,
			PaymentMethod: req.PaymentMethod,
		}
		if err := s.DB.InsertOrder(ctx, tx, &order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		items := make([]models.OrderItem, 0, len(reservations))
		for _, r := range reservations {
			items = append(items, models.OrderItem{
				OrderID:        order.ID,
				TierID:         r.TierID,
				Quantity:       r.Quantity,
				PricePerTicket: r.UnitPrice,
			})
		}
		if err := s.DB.InsertOrderItems(ctx, tx, items); err != nil {
			return fmt.Errorf("failed to create order items: %w", err)
		}

		for _, r := range reservations {
			if _, err := s.Issuer.Issue(ctx, tx, req.UserRun, r.TierID, order.ID, r.Quantity, now); err != nil {
				return err
			}
		}

		if appliedCoupon != nil {
			if err := s.Coupons.RecordUsage(ctx, tx, appliedCoupon, order.ID, now); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.LogOrder("PLACED", order.ID, fmt.Sprintf("user=%s total=%.2f", order.UserRun, order.TotalAmount))

	// Simulated payment: flip the order to completed outside the
	// transaction. A failure here leaves the committed order pending.
	paymentRef := "REF-" + uuid.NewString()[:8]
	if err := s.DB.FinalizeOrder(ctx, order.ID, paymentRef); err != nil {
		s.Logger.Error("ORDER", fmt.Sprintf("finalization failed for order %d: %v", order.ID, err))
		return nil, &FinalizationError{OrderID: order.ID, Err: err}
	}
	order.Status = models.OrderStatusCompleted
	order.PaymentReference = &paymentRef

	s.notifyAndPublish(order, user, reservations)

	return buildResponse(order, reservations), nil
}

// notifyAndPublish runs the best-effort post-commit side effects:
// confirmation emails per purchased event and the order-completed
// stream event. Failures are logged and swallowed.
func (s *OrderService) notifyAndPublish(order models.Order, user *models.User, reservations []*inventory.Reservation) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		notified := make(map[int64]struct{})
		for _, r := range reservations {
			if _, done := notified[r.TierID]; done {
				continue
			}
			notified[r.TierID] = struct{}{}

			tier, err := s.DB.GetTierWithEvent(ctx, r.TierID)
			if err != nil || tier.Event == nil {
				s.Logger.Warn("MAIL", fmt.Sprintf("could not resolve event for tier %d: %v", r.TierID, err))
				continue
			}

			if err := s.Notifier.SendTicketConfirmation(user.Email, user.FullName(), tier.Event.EventName, tier.TierName, tier.Event.StartDate); err != nil {
				s.Logger.Error("MAIL", fmt.Sprintf("failed to send confirmation for order %d: %v", order.ID, err))
			}
		}

		if s.Publisher != nil {
			if err := s.Publisher.PublishOrderCompleted(order); err != nil {
				s.Logger.Error("KAFKA", fmt.Sprintf("failed to publish order %d: %v", order.ID, err))
			}
		}
	}()
}

func buildResponse(order models.Order, reservations []*inventory.Reservation) *models.OrderResponse {
	resp := &models.OrderResponse{
		ID:               order.ID,
		UserRun:          order.UserRun,
		OrderDate:        order.OrderDate,
		TotalAmount:      order.TotalAmount,
		Status:           order.Status,
		PaymentMethod:    order.PaymentMethod,
		PaymentReference: order.PaymentReference,
		Items:            make([]models.OrderItemResponse, 0, len(reservations)),
	}
	for _, r := range reservations {
		resp.Items = append(resp.Items, models.OrderItemResponse{
			TierID:         r.TierID,
			TierName:       r.TierName,
			Quantity:       r.Quantity,
			PricePerTicket: r.UnitPrice,
			Subtotal:       r.UnitPrice * float64(r.Quantity),
		})
	}
	return resp
}
