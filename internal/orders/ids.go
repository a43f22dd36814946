package orders

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Order id shapes. Customer orders are YYMMDD plus a 2-digit daily
// counter; back-office orders carry a DB prefix and a 4-digit counter.
const (
	customerCounterWidth = 2
	dbCounterWidth       = 4
	requestSeqWidth      = 2
	dbOrderPrefix        = "DB"
)

var (
	customerOrderPattern = regexp.MustCompile(`^\d{6}\d{2}$`)
	dbOrderPattern       = regexp.MustCompile(`^DB\d{6}\d{4}$`)
)

// Directory is the slice of the store the generator needs: the most
// recently created order id of a given shape, and how many requests an
// order already holds.
type Directory interface {
	// LatestOrderID returns the order id of the most recently created
	// request whose order id matches the shape ("" when none exists).
	LatestOrderID(ctx context.Context, dbOrder bool) (string, error)
	// CountInOrder returns how many requests share the given order id.
	CountInOrder(ctx context.Context, orderID string) (int64, error)
}

// Generator derives composite order and request identifiers from
// existing row counts. The read-then-format sequence is not atomic on
// its own; callers run it inside a transaction and retry on
// ErrIdentifierCollision (the unique index on request_id is the
// backstop).
type Generator struct {
	dir Directory
	now func() time.Time
}

func NewGenerator(dir Directory) *Generator {
	return &Generator{dir: dir, now: time.Now}
}

// GenerateOrderID builds the next order id for today. The counter
// continues from the last matching row and wraps (99->00, 9999->0000);
// the date stamp keeps wrapped ids unique across days.
func (g *Generator) GenerateOrderID(ctx context.Context, dbOrder bool) (string, error) {
	last, err := g.dir.LatestOrderID(ctx, dbOrder)
	if err != nil {
		return "", err
	}
	width := customerCounterWidth
	if dbOrder {
		width = dbCounterWidth
	}
	counter := NextCounter(last, width)
	date := g.now().Format("060102")
	if dbOrder {
		return fmt.Sprintf("%s%s%0*d", dbOrderPrefix, date, width, counter), nil
	}
	return fmt.Sprintf("%s%0*d", date, width, counter), nil
}

// GenerateRequestID builds the id of the next request under an order:
// the order id plus the zero-based sibling count, zero-padded to two
// digits.
func (g *Generator) GenerateRequestID(ctx context.Context, orderID string) (string, error) {
	n, err := g.dir.CountInOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	return BuildRequestID(orderID, int(n)), nil
}

// NextCounter parses the trailing counter of the last order id and
// increments it modulo 10^width. An empty or malformed last id starts
// the counter at zero.
func NextCounter(lastOrderID string, width int) int {
	if len(lastOrderID) < width {
		return 0
	}
	tail := lastOrderID[len(lastOrderID)-width:]
	n, err := strconv.Atoi(tail)
	if err != nil {
		return 0
	}
	mod := 1
	for i := 0; i < width; i++ {
		mod *= 10
	}
	return (n + 1) % mod
}

// BuildRequestID appends the per-order sequence to the order id.
func BuildRequestID(orderID string, seq int) string {
	return fmt.Sprintf("%s%0*d", orderID, requestSeqWidth, seq)
}

// MatchesOrderShape reports whether an id has the expected composite
// shape for its kind.
func MatchesOrderShape(orderID string, dbOrder bool) bool {
	if dbOrder {
		return dbOrderPattern.MatchString(orderID)
	}
	return customerOrderPattern.MatchString(orderID)
}
