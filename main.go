package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/sweetoven/bakeshop/lib/myhttpclient"
	"github.com/sweetoven/bakeshop/lib/mypublisher"
	"github.com/sweetoven/bakeshop/lib/mypubsub"
	"github.com/sweetoven/bakeshop/lib/myqueue"
	"github.com/sweetoven/bakeshop/lib/myratelimit"
	"github.com/sweetoven/bakeshop/lib/mystore"
	"github.com/sweetoven/bakeshop/lib/mytime"
	"github.com/sweetoven/bakeshop/lib/myuuid"
	"github.com/sweetoven/bakeshop/services/checkoutwizard"
	"github.com/sweetoven/bakeshop/services/imageupload"
	"github.com/sweetoven/bakeshop/services/notification"
	"github.com/sweetoven/bakeshop/services/orderapi"
	"github.com/sweetoven/bakeshop/services/ordermanagement"
	"github.com/sweetoven/bakeshop/services/payment"
)

const (
	maxOrdersPerCustomer = 3
	orderRateWindow      = 10 * time.Minute
)

func main() {
	c := context.Background()

	// local development keeps its config in .env, deployed environments
	// provide real environment variables
	err := godotenv.Load()
	if err != nil {
		log.Printf("No .env file loaded: %s", err)
	}

	nower := mytime.RealNower{}
	uuider := myuuid.RealUUIDer{}
	router := mux.NewRouter()

	orderStore, orderStoreCleanup, err := mystore.New[orderapi.Order](c)
	if err != nil {
		log.Fatalf("Error creating order store: %s", err)
	}
	defer orderStoreCleanup()

	wizardStore, wizardStoreCleanup, err := mystore.New[checkoutwizard.WizardState](c)
	if err != nil {
		log.Fatalf("Error creating checkout store: %s", err)
	}
	defer wizardStoreCleanup()

	queue, queueCleanup, err := myqueue.New(c)
	if err != nil {
		log.Fatalf("Error creating task queue: %s", err)
	}
	defer queueCleanup()

	pubsub, pubsubCleanup, err := mypubsub.New(c)
	if err != nil {
		log.Fatalf("Error creating pubsub: %s", err)
	}
	defer pubsubCleanup()

	publisher, publisherCleanup, err := mypublisher.New(c, pubsub, queue, nower)
	if err != nil {
		log.Fatalf("Error creating publisher: %s", err)
	}
	defer publisherCleanup()
	publisher.RegisterEndpoints(c, router)

	uploader, uploaderCleanup, err := imageupload.New(c)
	if err != nil {
		log.Fatalf("Error creating image uploader: %s", err)
	}
	defer uploaderCleanup()

	limiter := myratelimit.New(nower, maxOrdersPerCustomer, orderRateWindow)

	orderService := ordermanagement.NewWebService(orderStore, ordermanagement.NewDeliveryPricer(),
		uploader, publisher, limiter, nower)
	err = orderService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering order endpoints: %s", err)
	}

	payers := []payment.Payer{
		payment.NewStripePayer(os.Getenv("STRIPE_API_KEY"), os.Getenv("STRIPE_WEBHOOK_SECRET")),
	}
	molliePayer, err := payment.NewMolliePayer(os.Getenv("MOLLIE_API_KEY"))
	if err != nil {
		log.Fatalf("Error creating mollie payer: %s", err)
	}
	payers = append(payers, molliePayer)

	paymentService := payment.NewWebService(orderStore, payers, publisher, nower)
	err = paymentService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering payment endpoints: %s", err)
	}

	wizardService := checkoutwizard.NewWebService(wizardStore, orderService, nower, uuider)
	err = wizardService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering checkout endpoints: %s", err)
	}

	notificationService := notification.NewWebService(notification.WhatsAppConfig{
		PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		AccessToken:   os.Getenv("WHATSAPP_ACCESS_TOKEN"),
		AdminMobile:   os.Getenv("WHATSAPP_ADMIN_MOBILE"),
	}, myhttpclient.New(), pubsub)
	err = notificationService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering notification endpoints: %s", err)
	}

	startWebServerBlocking(router)
}

func startWebServerBlocking(router *mux.Router) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting webserver on port %s (try http://localhost:%s)", port, port)
	err := http.ListenAndServe(fmt.Sprintf(":%s", port), router)
	if err != nil {
		log.Fatalf("Error starting webserver on port %s: %s", port, err)
	}
}
