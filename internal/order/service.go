package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sharifboss/bookhaven/internal/catalog"
)

var (
	ErrNoLines        = errors.New("order has no lines")
	ErrUnknownProduct = errors.New("unknown product")
	ErrBadQuantity    = errors.New("quantity must be at least 1")
	ErrMissingPayment = errors.New("payment reference is required")
)

// StockError reports which lines could not be covered by current stock.
type StockError struct {
	Depleted []catalog.DepletedLine
}

func (e *StockError) Error() string {
	ids := make([]string, 0, len(e.Depleted))
	for _, d := range e.Depleted {
		ids = append(ids, fmt.Sprintf("%s (want %d, have %d)", d.ProductID, d.Requested, d.Available))
	}
	return "insufficient stock: " + strings.Join(ids, ", ")
}

// Catalog is the slice of the book catalog the order service needs.
type Catalog interface {
	Get(ctx context.Context, productID string) (catalog.Book, error)
	ReserveStock(ctx context.Context, orderID string, lines []catalog.Line) (catalog.ReserveResult, error)
}

// Intent is the provider-side payment authorization.
type Intent struct {
	ID           string
	ClientSecret string
}

// IntentCreator creates a payment authorization with the provider for an
// amount this service computed. Client-supplied totals never reach it.
type IntentCreator interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string) (Intent, error)
}

// Publisher emits the OrderCreated event after an order is recorded.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, o *Order) error
}

type Service struct {
	books   Catalog
	orders  Repository
	intents IntentCreator
	pub     Publisher
	log     logrus.FieldLogger

	currency string
	now      func() time.Time
}

func NewService(books Catalog, orders Repository, intents IntentCreator, pub Publisher, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		books:    books,
		orders:   orders,
		intents:  intents,
		pub:      pub,
		log:      log,
		currency: "usd",
		now:      time.Now,
	}
}

// CreatePaymentIntent prices the submitted lines from the catalog and opens a
// payment authorization for that amount. The response amount is the one the
// provider will charge; whatever total the client displayed is advisory only.
func (s *Service) CreatePaymentIntent(ctx context.Context, lines []LineRequest) (IntentResponse, error) {
	items, total, err := s.price(ctx, lines)
	if err != nil {
		return IntentResponse{}, err
	}

	for _, it := range items {
		book, err := s.books.Get(ctx, it.ProductID)
		if err != nil {
			return IntentResponse{}, fmt.Errorf("load product %s: %w", it.ProductID, err)
		}
		if book.Stock < it.Quantity {
			return IntentResponse{}, &StockError{Depleted: []catalog.DepletedLine{
				{ProductID: it.ProductID, Requested: it.Quantity, Available: book.Stock},
			}}
		}
	}

	amountCents := int64(math.Round(total * 100))
	intent, err := s.intents.CreateIntent(ctx, amountCents, s.currency)
	if err != nil {
		return IntentResponse{}, fmt.Errorf("create intent: %w", err)
	}

	return IntentResponse{
		ClientSecret: intent.ClientSecret,
		AmountCents:  amountCents,
		Currency:     s.currency,
		Total:        total,
	}, nil
}

type PlaceRequest struct {
	Items     []LineRequest `json:"items"`
	PaymentID string        `json:"paymentId"`
	Shipping  Address       `json:"shippingAddress"`
}

// Place records a paid order: reserves stock, writes the order, publishes
// OrderCreated. Re-submitting the same payment reference returns the order
// already recorded for it, so a client retrying after a timeout never creates
// a duplicate (and is never charged again; payment happened upstream).
func (s *Service) Place(ctx context.Context, userID string, req PlaceRequest) (*Order, error) {
	if req.PaymentID == "" {
		return nil, ErrMissingPayment
	}

	existing, err := s.orders.GetByPaymentID(ctx, req.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("lookup payment %s: %w", req.PaymentID, err)
	}
	if existing != nil {
		return existing, nil
	}

	items, total, err := s.price(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:          uuid.NewString(),
		UserID:      userID,
		Items:       items,
		TotalAmount: total,
		PaymentID:   req.PaymentID,
		Shipping:    req.Shipping,
		CreatedAt:   s.now().UTC(),
	}

	reserveLines := make([]catalog.Line, 0, len(items))
	for _, it := range items {
		reserveLines = append(reserveLines, catalog.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	res, err := s.books.ReserveStock(ctx, o.ID, reserveLines)
	if err != nil {
		return nil, fmt.Errorf("reserve stock: %w", err)
	}
	if len(res.Depleted) > 0 {
		return nil, &StockError{Depleted: res.Depleted}
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if s.pub != nil {
		// Best effort: the order is recorded either way, downstream consumers
		// reconcile from the database.
		if err := s.pub.PublishOrderCreated(ctx, o); err != nil {
			s.log.WithError(err).WithField("orderId", o.ID).Warn("order: publish OrderCreated")
		}
	}

	return o, nil
}

func (s *Service) GetByID(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// price resolves each line against the catalog and returns priced items plus
// the authoritative total.
func (s *Service) price(ctx context.Context, lines []LineRequest) ([]Item, float64, error) {
	if len(lines) == 0 {
		return nil, 0, ErrNoLines
	}

	items := make([]Item, 0, len(lines))
	total := 0.0
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, 0, fmt.Errorf("%w: %s", ErrBadQuantity, l.ProductID)
		}
		book, err := s.books.Get(ctx, l.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return nil, 0, fmt.Errorf("%w: %s", ErrUnknownProduct, l.ProductID)
			}
			return nil, 0, fmt.Errorf("load product %s: %w", l.ProductID, err)
		}
		items = append(items, Item{ProductID: l.ProductID, Quantity: l.Quantity, Price: book.Price})
		total += book.Price * float64(l.Quantity)
	}
	return items, total, nil
}
