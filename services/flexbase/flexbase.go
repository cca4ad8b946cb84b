package main

import (
	"net/http"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/flexbase-tech/flexbase/core"
	"github.com/flexbase-tech/flexbase/core/access"
	"github.com/flexbase-tech/flexbase/core/backend"
	"github.com/flexbase-tech/flexbase/core/csql"
	"github.com/flexbase-tech/flexbase/core/logger"
	"github.com/flexbase-tech/flexbase/core/notifier"
)

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres password=docker dbname=postgres sslmode=disable"
type Service struct {
	Postgres     string `env:"POSTGRES,required" description:"the connection string for the Postgres DB"`
	Port         string `env:"PORT,default=3000" description:"the port the service listens on"`
	JwtSecret    string `env:"JWT_SECRET,default=" description:"HMAC secret for access tokens; authorization is disabled when empty"`
	KafkaBrokers string `env:"KAFKA_BROKERS,default=" description:"comma-separated Kafka brokers for record notifications"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=record_notification" description:"the Kafka topic for record notifications"`
}

func main() {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}

	logger.InitLogger(logrus.InfoLevel)
	rlog := logger.Default()

	db := csql.OpenWithSchema(service.Postgres, "flexbase")
	defer db.Close()

	var changeNotifier core.Notifier = notifier.LogNotifier{}
	if service.KafkaBrokers != "" {
		kafkaNotifier := notifier.NewKafkaNotifier(strings.Split(service.KafkaBrokers, ","), service.KafkaTopic)
		defer kafkaNotifier.Close()
		changeNotifier = kafkaNotifier
	}

	router := mux.NewRouter()
	logger.AddRequestID(router)
	if service.JwtSecret != "" {
		router.Use(access.NewJwtMiddleware(&access.JwtMiddlewareBuilder{
			Secret: service.JwtSecret,
		}))
	}

	backend.New(&backend.Builder{
		DB:                   db,
		Router:               router,
		Notifier:             changeNotifier,
		AuthorizationEnabled: service.JwtSecret != "",
		UpdateSchema:         true,
	})

	handler := handlers.CompressHandler(handlers.CORS(
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedOrigins([]string{"*"}),
	)(router))

	rlog.Infoln("listen on port :" + service.Port)
	rlog.Fatalln(http.ListenAndServe(":"+service.Port, handler))
}
