package checkoutwizard

import (
	"time"

	"github.com/sweetoven/bakeshop/services/orderapi"
)

// wizardSchemaVersion guards persisted wizard state across releases: state
// written by an older incompatible release is discarded, never misread.
const wizardSchemaVersion = 2

type WizardStep string

const (
	StepCart         WizardStep = "cart"
	StepDetails      WizardStep = "details"
	StepPayment      WizardStep = "payment"
	StepConfirmation WizardStep = "confirmation"
)

// previousSteps supports backwards navigation. Cart is the first step.
var previousSteps = map[WizardStep]WizardStep{
	StepDetails:      StepCart,
	StepPayment:      StepDetails,
	StepConfirmation: StepPayment,
}

// WizardState is the server-side snapshot of a checkout in progress. The
// client only holds the uid, so an interrupted checkout resumes on any device
// that presents it.
type WizardState struct {
	SchemaVersion int        `json:"schemaVersion"`
	UID           string     `json:"uid"`
	Step          WizardStep `json:"step"`

	Cart          orderapi.Cart          `json:"cart"`
	Form          orderapi.CheckoutForm  `json:"form"`
	PaymentMethod orderapi.PaymentMethod `json:"paymentMethod,omitempty"`

	// OrderUID is set once order assembly has run. Going back keeps it; the
	// order it points at stays valid until a later advance replaces it.
	OrderUID string `json:"orderUid,omitempty"`

	// AssemblyInFlight guards against double submission: set before assembly
	// starts, cleared when it finishes, checked-and-set in one transaction.
	AssemblyInFlight bool `json:"assemblyInFlight,omitempty"`

	CreatedAt    time.Time  `json:"createdAt"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}
