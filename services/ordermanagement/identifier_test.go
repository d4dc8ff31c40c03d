package ordermanagement

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/sweetoven/bakeshop/lib/mylog"
	"github.com/sweetoven/bakeshop/lib/mystore"
	"github.com/sweetoven/bakeshop/lib/mytime"
	"github.com/sweetoven/bakeshop/services/orderapi"
)

func TestGenerateDayScopedIdentifier(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := context.Background()

	orderStore, _, err := mystore.NewInMemoryStore[orderapi.Order](c)
	assert.NoError(t, err)

	nower := mytime.NewMockNower(ctrl)
	nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()

	generator := newIdentifierGenerator(orderStore, nower, mylog.New("test"))

	// 2026-08-28T10:30:00Z is the same calendar day in IST
	assert.Equal(t, "SO20260828001", generator.Generate(c))

	// yesterday's orders are outside the day scope and must not count
	assert.NoError(t, orderStore.Put(c, "SO20260827009", orderapi.Order{
		UID:       "SO20260827009",
		CreatedAt: mytime.ExampleTime.Add(-24 * time.Hour),
	}))
	assert.Equal(t, "SO20260828001", generator.Generate(c))

	assert.NoError(t, orderStore.Put(c, "SO20260828001", orderapi.Order{
		UID:       "SO20260828001",
		CreatedAt: mytime.ExampleTime,
	}))
	assert.Equal(t, "SO20260828002", generator.Generate(c))
}

func TestGenerateFallsBackToTimestampWhenCountingFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := context.Background()

	nower := mytime.NewMockNower(ctrl)
	nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()

	generator := newIdentifierGenerator(&brokenQueryStore{}, nower, mylog.New("test"))

	uid := generator.Generate(c)

	assert.True(t, strings.HasPrefix(uid, "SO"))
	assert.Equal(t, fmt.Sprintf("SO%d", mytime.ExampleTime.UnixMilli()), uid)
}

type brokenQueryStore struct {
	mystore.Store[orderapi.Order]
}

func (s *brokenQueryStore) Query(c context.Context, filters []mystore.Filter, orderByField string) ([]orderapi.Order, error) {
	return nil, fmt.Errorf("datastore unavailable")
}
