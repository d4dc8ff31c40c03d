package ordermanagement

import (
	"context"
	"fmt"
	"time"

	"github.com/sweetoven/bakeshop/lib/mylog"
	"github.com/sweetoven/bakeshop/lib/mystore"
	"github.com/sweetoven/bakeshop/lib/mytime"
	"github.com/sweetoven/bakeshop/services/orderapi"
)

const orderUIDPrefix = "SO"

// identifiers are day-scoped in the storefront's market timezone, so the
// daily sequence restarts at the same moment for every server instance
var istZone = time.FixedZone("IST", 5*3600+30*60)

// identifierGenerator produces human-readable order uids: SO + YYYYMMDD + a
// 3-digit sequence. The sequence is a formatting convenience derived from a
// count; uniqueness is enforced by the transactional insert in the assembler,
// which retries once with a fresh uid on a collision.
type identifierGenerator struct {
	orderStore mystore.Store[orderapi.Order]
	nower      mytime.Nower
	logger     mylog.Logger
}

func newIdentifierGenerator(orderStore mystore.Store[orderapi.Order], nower mytime.Nower, logger mylog.Logger) *identifierGenerator {
	return &identifierGenerator{
		orderStore: orderStore,
		nower:      nower,
		logger:     logger,
	}
}

// Generate never fails: when the counting query is unavailable it degrades to
// an epoch-millisecond suffix, trading readability for uniqueness.
func (g *identifierGenerator) Generate(c context.Context) string {
	now := g.nower.Now().In(istZone)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, istZone)

	ordersToday, err := g.orderStore.Query(c, []mystore.Filter{
		{Field: "CreatedAt", Compare: ">=", Value: startOfDay},
	}, "CreatedAt")
	if err != nil {
		g.logger.Log(c, "", mylog.SeverityWarn, "Counting today's orders failed, falling back to timestamp uid: %s", err)
		return fmt.Sprintf("%s%d", orderUIDPrefix, now.UnixMilli())
	}

	return fmt.Sprintf("%s%s%03d", orderUIDPrefix, now.Format("20060102"), len(ordersToday)+1)
}
