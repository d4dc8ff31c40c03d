package ordermanagement

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/sweetoven/bakeshop/lib/myerrors"
	"github.com/sweetoven/bakeshop/lib/mylog"
	"github.com/sweetoven/bakeshop/lib/mypublisher"
	"github.com/sweetoven/bakeshop/lib/mystore"
	"github.com/sweetoven/bakeshop/lib/mytime"
	"github.com/sweetoven/bakeshop/services/imageupload"
	"github.com/sweetoven/bakeshop/services/orderapi"
	"github.com/sweetoven/bakeshop/services/orderevents"
)

var validForm = orderapi.CheckoutForm{
	FullName:     "Asha Rao",
	Email:        "asha@example.com",
	Mobile:       "9876543210",
	Address:      "12 MG Road",
	Area:         "Indiranagar",
	PinCode:      "560038",
	DeliveryDate: "2026-08-29",
	DeliveryType: "standard",
	TimeSlot:     "14:00-16:00",
}

func cartWithSubtotal(subtotal int64) orderapi.Cart {
	return orderapi.Cart{
		Items: []orderapi.CartItem{
			{ProductUID: "choco-truffle", Name: "Chocolate Truffle", UnitPrice: subtotal, Quantity: 1},
		},
	}
}

func TestAssembleFreeDeliveryAboveThreshold(t *testing.T) {
	c, svc, _, _ := setupService(t)

	order, err := svc.assemble(c, cartWithSubtotal(1100), validForm, orderapi.PaymentMethodOnline)

	assert.NoError(t, err)
	assert.Equal(t, int64(1100), order.Subtotal)
	assert.Equal(t, int64(0), order.DeliveryCharge)
	assert.Equal(t, int64(1100), order.TotalAmount)
	assert.Equal(t, orderapi.OrderStatusPending, order.OrderStatus)
	assert.Equal(t, orderapi.PaymentStatusPending, order.PaymentStatus)
}

func TestAssembleChargesDeliveryBelowThreshold(t *testing.T) {
	c, svc, _, _ := setupService(t)

	order, err := svc.assemble(c, cartWithSubtotal(500), validForm, orderapi.PaymentMethodCOD)

	assert.NoError(t, err)
	assert.Equal(t, int64(500), order.Subtotal)
	assert.Equal(t, int64(60), order.DeliveryCharge)
	assert.Equal(t, int64(560), order.TotalAmount)
	assert.Equal(t, orderapi.PaymentMethodCOD, order.PaymentMethod)
}

func TestAssembleUsesInjectedPricer(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := context.Background()

	orderStore, _, err := mystore.NewInMemoryStore[orderapi.Order](c)
	assert.NoError(t, err)

	nower := mytime.NewMockNower(ctrl)
	nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()

	publisher := mypublisher.NewMockPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	svc := newService(orderStore, flatPricer{charge: 60}, imageupload.NewMockUploader(ctrl), publisher, nower, mylog.New("test"))

	order, err := svc.assemble(c, cartWithSubtotal(1100), validForm, orderapi.PaymentMethodOnline)

	assert.NoError(t, err)
	assert.Equal(t, int64(60), order.DeliveryCharge)
	assert.Equal(t, int64(1160), order.TotalAmount)
}

type flatPricer struct {
	charge int64
}

func (p flatPricer) Charge(area string, subtotal int64) int64 {
	return p.charge
}

func TestAssembleUsesDiscountedPrice(t *testing.T) {
	c, svc, _, _ := setupService(t)

	cart := orderapi.Cart{
		Items: []orderapi.CartItem{
			{ProductUID: "red-velvet", Name: "Red Velvet", UnitPrice: 700, DiscountedUnitPrice: 600, Quantity: 2},
		},
	}

	order, err := svc.assemble(c, cart, validForm, orderapi.PaymentMethodOnline)

	assert.NoError(t, err)
	assert.Equal(t, int64(1200), order.Subtotal)
	assert.Equal(t, int64(600), order.Items[0].UnitPrice)
}

func TestAssembleRejectsEmptyCart(t *testing.T) {
	c, svc, _, _ := setupService(t)

	_, err := svc.assemble(c, orderapi.Cart{}, validForm, orderapi.PaymentMethodOnline)

	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, myerrors.GetHTTPStatus(err))
}

func TestAssembleRejectsIncompleteForm(t *testing.T) {
	c, svc, _, _ := setupService(t)

	form := validForm
	form.Mobile = ""

	_, err := svc.assemble(c, cartWithSubtotal(500), form, orderapi.PaymentMethodOnline)

	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, myerrors.GetHTTPStatus(err))
}

func TestAssembleUploadsPendingPhotoCakeImage(t *testing.T) {
	c, svc, uploader, orderStore := setupService(t)

	uploader.EXPECT().Upload(gomock.Any(), []byte{0x1, 0x2}, "birthday.jpg").
		Return("https://storage.googleapis.com/cakes/photo-cakes/abc-birthday.jpg", nil)

	cart := orderapi.Cart{
		Items: []orderapi.CartItem{
			{
				ProductUID: "photo-cake", Name: "Photo Cake", UnitPrice: 900, Quantity: 1,
				Customization: orderapi.Customization{
					Kind:    orderapi.CustomizationPhotoCake,
					Message: "Happy Birthday",
					Image: orderapi.ImageState{
						State:         orderapi.ImageStatePending,
						PendingBytes:  []byte{0x1, 0x2},
						SuggestedName: "birthday.jpg",
					},
				},
			},
		},
	}

	order, err := svc.assemble(c, cart, validForm, orderapi.PaymentMethodOnline)

	assert.NoError(t, err)
	image := order.Items[0].Customization.Image
	assert.Equal(t, orderapi.ImageStateUploaded, image.State)
	assert.Equal(t, "https://storage.googleapis.com/cakes/photo-cakes/abc-birthday.jpg", image.URL)
	assert.Empty(t, image.PendingBytes)

	// the persisted copy must reference the url, never raw bytes
	stored, found, err := orderStore.Get(c, order.UID)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, orderapi.ImageStateUploaded, stored.Items[0].Customization.Image.State)
	assert.Empty(t, stored.Items[0].Customization.Image.PendingBytes)
}

func TestAssembleDegradesOnUploadFailure(t *testing.T) {
	c, svc, uploader, _ := setupService(t)

	uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", fmt.Errorf("bucket unavailable"))

	cart := orderapi.Cart{
		Items: []orderapi.CartItem{
			{
				ProductUID: "photo-cake", Name: "Photo Cake", UnitPrice: 900, Quantity: 1,
				Customization: orderapi.Customization{
					Kind: orderapi.CustomizationPhotoCake,
					Image: orderapi.ImageState{
						State:         orderapi.ImageStatePending,
						PendingBytes:  []byte{0x1},
						SuggestedName: "birthday.jpg",
					},
				},
			},
		},
	}

	order, err := svc.assemble(c, cart, validForm, orderapi.PaymentMethodOnline)

	// a lost image must not lose the sale
	assert.NoError(t, err)
	assert.Equal(t, orderapi.ImageStateFailed, order.Items[0].Customization.Image.State)
	assert.Empty(t, order.Items[0].Customization.Image.URL)
}

func TestAssembleTreatsPendingImageWithoutBytesAsFailed(t *testing.T) {
	// the uploader mock carries no expectations: a byteless pending image
	// must never reach the bucket
	c, svc, _, _ := setupService(t)

	cart := orderapi.Cart{
		Items: []orderapi.CartItem{
			{
				ProductUID: "photo-cake", Name: "Photo Cake", UnitPrice: 900, Quantity: 1,
				Customization: orderapi.Customization{
					Kind: orderapi.CustomizationPhotoCake,
					Image: orderapi.ImageState{
						State:         orderapi.ImageStatePending,
						SuggestedName: "birthday.jpg",
					},
				},
			},
		},
	}

	order, err := svc.assemble(c, cart, validForm, orderapi.PaymentMethodOnline)

	assert.NoError(t, err)
	image := order.Items[0].Customization.Image
	assert.Equal(t, orderapi.ImageStateFailed, image.State)
	assert.Equal(t, "birthday.jpg", image.SuggestedName)
	assert.Empty(t, image.URL)
}

func TestAssembleGeneratesDistinctDailyIdentifiers(t *testing.T) {
	c, svc, _, _ := setupService(t)

	first, err := svc.assemble(c, cartWithSubtotal(500), validForm, orderapi.PaymentMethodOnline)
	assert.NoError(t, err)
	second, err := svc.assemble(c, cartWithSubtotal(500), validForm, orderapi.PaymentMethodOnline)
	assert.NoError(t, err)

	assert.Equal(t, "SO20260828001", first.UID)
	assert.Equal(t, "SO20260828002", second.UID)
}

func TestAssembleRetriesOnceOnIdentifierCollision(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := context.Background()

	orderStore, _, _ := mystore.NewInMemoryStore[orderapi.Order](c)
	collidingStore := &collideOnceStore{Store: orderStore}

	nower := mytime.NewMockNower(ctrl)
	nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()

	publisher := mypublisher.NewMockPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), orderevents.TopicName, gomock.Any()).Return(nil).Times(1)

	svc := newService(collidingStore, NewDeliveryPricer(), imageupload.NewMockUploader(ctrl), publisher, nower, mylog.New("test"))

	order, err := svc.assemble(c, cartWithSubtotal(500), validForm, orderapi.PaymentMethodOnline)

	assert.NoError(t, err)
	assert.NotEmpty(t, order.UID)
	assert.Equal(t, 2, collidingStore.getCalls)
}

func TestAssembleFailsWhenCollisionPersists(t *testing.T) {
	c, svc, _, orderStore := setupService(t)

	// occupy the uid the generator will produce on both attempts: one stored
	// order makes the next daily sequence number 002
	err := orderStore.Put(c, "SO20260828002", orderapi.Order{UID: "SO20260828002", CreatedAt: mytime.ExampleTime})
	assert.NoError(t, err)

	_, err = svc.assemble(c, cartWithSubtotal(500), validForm, orderapi.PaymentMethodOnline)

	assert.Error(t, err)
	assert.Equal(t, http.StatusConflict, myerrors.GetHTTPStatus(err))
}

func TestProgressStatusFollowsChain(t *testing.T) {
	c, svc, _, _ := setupService(t)

	order, err := svc.assemble(c, cartWithSubtotal(500), validForm, orderapi.PaymentMethodOnline)
	assert.NoError(t, err)

	_, err = svc.progressStatus(c, order.UID, orderapi.OrderStatusPreparing)
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, myerrors.GetHTTPStatus(err))

	updated, err := svc.progressStatus(c, order.UID, orderapi.OrderStatusConfirmed)
	assert.NoError(t, err)
	assert.Equal(t, orderapi.OrderStatusConfirmed, updated.OrderStatus)
	assert.NotNil(t, updated.LastModified)

	// payment state must be left alone
	assert.Equal(t, orderapi.PaymentStatusPending, updated.PaymentStatus)
}

func TestGetOrderNotFound(t *testing.T) {
	c, svc, _, _ := setupService(t)

	_, err := svc.getOrder(c, "SO20260828999")

	assert.Error(t, err)
	assert.Equal(t, http.StatusNotFound, myerrors.GetHTTPStatus(err))
}

func setupService(t *testing.T) (context.Context, *service, *imageupload.MockUploader, mystore.Store[orderapi.Order]) {
	t.Helper()

	ctrl := gomock.NewController(t)
	c := context.Background()

	orderStore, _, err := mystore.NewInMemoryStore[orderapi.Order](c)
	assert.NoError(t, err)

	nower := mytime.NewMockNower(ctrl)
	nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()

	uploader := imageupload.NewMockUploader(ctrl)

	publisher := mypublisher.NewMockPublisher(ctrl)
	publisher.EXPECT().CreateTopic(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	publisher.EXPECT().Publish(gomock.Any(), orderevents.TopicName, gomock.Any()).Return(nil).AnyTimes()

	svc := newService(orderStore, NewDeliveryPricer(), uploader, publisher, nower, mylog.New("test"))

	return c, svc, uploader, orderStore
}

// collideOnceStore reports the first uniqueness check as taken, mimicking a
// concurrent checkout that claimed the uid between generation and insert.
type collideOnceStore struct {
	mystore.Store[orderapi.Order]
	getCalls int
}

func (s *collideOnceStore) Get(c context.Context, uid string) (orderapi.Order, bool, error) {
	s.getCalls++
	if s.getCalls == 1 {
		return orderapi.Order{UID: uid}, true, nil
	}

	return s.Store.Get(c, uid)
}
