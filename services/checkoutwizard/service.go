package checkoutwizard

import (
	"context"
	"fmt"

	"github.com/sweetoven/bakeshop/lib/myerrors"
	"github.com/sweetoven/bakeshop/lib/mylog"
	"github.com/sweetoven/bakeshop/lib/mystore"
	"github.com/sweetoven/bakeshop/lib/mytime"
	"github.com/sweetoven/bakeshop/lib/myuuid"
	"github.com/sweetoven/bakeshop/services/orderapi"
)

// OrderAssembler is the slice of the order service the wizard depends on.
//
//go:generate mockgen -source=service.go -package checkoutwizard -destination assembler_mock.go OrderAssembler
type OrderAssembler interface {
	Assemble(c context.Context, cart orderapi.Cart, form orderapi.CheckoutForm, method orderapi.PaymentMethod) (orderapi.Order, error)
	GetOrder(c context.Context, orderUID string) (orderapi.Order, error)
}

type service struct {
	wizardStore mystore.Store[WizardState]
	assembler   OrderAssembler
	nower       mytime.Nower
	uuider      myuuid.UUIDer
	logger      mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(wizardStore mystore.Store[WizardState], assembler OrderAssembler, nower mytime.Nower,
	uuider myuuid.UUIDer, logger mylog.Logger) *service {
	return &service{
		wizardStore: wizardStore,
		assembler:   assembler,
		nower:       nower,
		uuider:      uuider,
		logger:      logger,
	}
}

func (s *service) start(c context.Context) (WizardState, error) {
	wizard := WizardState{
		SchemaVersion: wizardSchemaVersion,
		UID:           s.uuider.Create(),
		Step:          StepCart,
		CreatedAt:     s.nower.Now(),
	}

	err := s.wizardStore.Put(c, wizard.UID, wizard)
	if err != nil {
		return WizardState{}, myerrors.NewInternalError(fmt.Errorf("error storing checkout %s: %s", wizard.UID, err))
	}

	s.logger.Log(c, wizard.UID, mylog.SeverityInfo, "Started checkout %s", wizard.UID)

	return wizard, nil
}

func (s *service) get(c context.Context, wizardUID string) (WizardState, error) {
	wizard, found, err := s.wizardStore.Get(c, wizardUID)
	if err != nil {
		return WizardState{}, myerrors.NewInternalError(fmt.Errorf("error fetching checkout %s: %s", wizardUID, err))
	}
	if !found {
		return WizardState{}, myerrors.NewNotFoundError(fmt.Errorf("checkout %s not found", wizardUID))
	}

	if wizard.SchemaVersion != wizardSchemaVersion {
		// state written by an incompatible release: restart rather than misread
		s.logger.Log(c, wizardUID, mylog.SeverityWarn, "Checkout %s has schema version %d, resetting", wizardUID, wizard.SchemaVersion)
		return s.reset(c, wizardUID)
	}

	return wizard, nil
}

func (s *service) reset(c context.Context, wizardUID string) (WizardState, error) {
	wizard := WizardState{
		SchemaVersion: wizardSchemaVersion,
		UID:           wizardUID,
		Step:          StepCart,
		CreatedAt:     s.nower.Now(),
	}

	err := s.wizardStore.Put(c, wizardUID, wizard)
	if err != nil {
		return WizardState{}, myerrors.NewInternalError(fmt.Errorf("error storing checkout %s: %s", wizardUID, err))
	}

	return wizard, nil
}

func (s *service) saveCart(c context.Context, wizardUID string, cart orderapi.Cart) (WizardState, error) {
	return s.update(c, wizardUID, func(wizard *WizardState) error {
		wizard.Cart = cart
		wizard.Step = StepCart

		return nil
	})
}

func (s *service) saveDetails(c context.Context, wizardUID string, form orderapi.CheckoutForm, method orderapi.PaymentMethod) (WizardState, error) {
	return s.update(c, wizardUID, func(wizard *WizardState) error {
		if err := wizard.Cart.Validate(); err != nil {
			return myerrors.NewInvalidInputError(fmt.Errorf("cannot enter details: %s", err))
		}

		wizard.Form = form
		wizard.PaymentMethod = method
		wizard.Step = StepDetails

		return nil
	})
}

// proceed runs order assembly and advances to the payment step. Each advance
// assembles a fresh order, so details changed after going back never leak
// into an order assembled earlier.
func (s *service) proceed(c context.Context, wizardUID string) (WizardState, error) {
	// claim the assembly slot first: a double-clicked submit must not
	// assemble two orders
	wizard, err := s.update(c, wizardUID, func(wizard *WizardState) error {
		if wizard.Step != StepDetails {
			return myerrors.NewInvalidInputErrorf("checkout %s is at step %s, details must be completed first", wizardUID, wizard.Step)
		}
		if wizard.AssemblyInFlight {
			return myerrors.NewConflictError(fmt.Errorf("checkout %s is already assembling an order", wizardUID))
		}

		wizard.AssemblyInFlight = true

		return nil
	})
	if err != nil {
		return WizardState{}, err
	}

	order, assembleErr := s.assembler.Assemble(c, wizard.Cart, wizard.Form, wizard.PaymentMethod)

	wizard, err = s.update(c, wizardUID, func(wizard *WizardState) error {
		wizard.AssemblyInFlight = false
		if assembleErr != nil {
			return nil
		}

		wizard.OrderUID = order.UID
		wizard.Step = StepPayment

		return nil
	})
	if assembleErr != nil {
		return WizardState{}, assembleErr
	}
	if err != nil {
		return WizardState{}, err
	}

	return wizard, nil
}

func (s *service) back(c context.Context, wizardUID string) (WizardState, error) {
	return s.update(c, wizardUID, func(wizard *WizardState) error {
		previous, found := previousSteps[wizard.Step]
		if !found {
			return myerrors.NewInvalidInputErrorf("checkout %s is already at the first step", wizardUID)
		}

		// the assembled order is kept: returning forward without changes
		// reuses nothing, a new order is assembled on the next proceed
		wizard.Step = previous

		return nil
	})
}

// complete finishes the wizard once its order has been confirmed. The wizard
// state is removed so a later visit starts a clean checkout.
func (s *service) complete(c context.Context, wizardUID string) (orderapi.Order, error) {
	wizard, err := s.get(c, wizardUID)
	if err != nil {
		return orderapi.Order{}, err
	}

	if wizard.OrderUID == "" {
		return orderapi.Order{}, myerrors.NewInvalidInputErrorf("checkout %s has no order yet", wizardUID)
	}

	order, err := s.assembler.GetOrder(c, wizard.OrderUID)
	if err != nil {
		return orderapi.Order{}, err
	}

	if order.OrderStatus == orderapi.OrderStatusPending && order.PaymentStatus != orderapi.PaymentStatusPaid {
		return orderapi.Order{}, myerrors.NewConflictError(fmt.Errorf("order %s is not confirmed yet", wizard.OrderUID))
	}

	err = s.wizardStore.Remove(c, wizardUID)
	if err != nil {
		return orderapi.Order{}, myerrors.NewInternalError(fmt.Errorf("error removing checkout %s: %s", wizardUID, err))
	}

	s.logger.Log(c, wizardUID, mylog.SeverityInfo, "Checkout %s completed with order %s", wizardUID, wizard.OrderUID)

	return order, nil
}

func (s *service) update(c context.Context, wizardUID string, apply func(wizard *WizardState) error) (WizardState, error) {
	var wizard WizardState
	err := s.wizardStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		var found bool
		var err error
		wizard, found, err = s.wizardStore.Get(c, wizardUID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching checkout %s: %s", wizardUID, err))
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("checkout %s not found", wizardUID))
		}

		err = apply(&wizard)
		if err != nil {
			return err
		}

		now := s.nower.Now()
		wizard.LastModified = &now

		err = s.wizardStore.Put(c, wizardUID, wizard)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing checkout %s: %s", wizardUID, err))
		}

		return nil
	})
	if err != nil {
		return WizardState{}, err
	}

	return wizard, nil
}
