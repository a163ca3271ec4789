// Package main: fund service.
//
// The fund service exposes the RESTful investment API. It records intents, broadcasts the matching fund contract
// transactions and serves fund queries. Settlement of recorded intents is performed asynchronously by the reconciler
// service, which shares this service's database and publishes settlement events to the message broker.
package main

import (
	"encoding/hex"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tarancss/hd"

	"github.com/tarancss/fundadp/fund"
	"github.com/tarancss/fundadp/lib/chain"
	"github.com/tarancss/fundadp/lib/config"
	"github.com/tarancss/fundadp/lib/msg"
	"github.com/tarancss/fundadp/lib/msg/amqp"
	"github.com/tarancss/fundadp/lib/store"
	"github.com/tarancss/fundadp/lib/store/db"
	"github.com/tarancss/fundadp/lib/util"
)

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json file")
	monitor := flag.Bool("m", false, "flag to monitor the server with Prometheus at http://localhost:9090")
	flag.Parse()

	// extract configuration
	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		panic(err)
	}

	log.Printf("Configuration:%+v", conf)

	// connect to database
	var dbConn store.DB

	if conf.DBConn != "" {
		if !util.In([]string{db.MONGODB, db.POSTGRES}, conf.DBType) {
			panic("unsupported database type: " + conf.DBType)
		}

		if dbConn, err = db.New(conf.DBType, conf.DBConn); err != nil {
			panic(err)
		}

		log.Printf("Connecting to database:%+v\n", conf.DBConn)
	}

	// resolve the operator signing key and load the blockchain client
	key, err := operatorKey(conf)
	if err != nil {
		panic(err)
	}

	bc, err := chain.Init(conf, key)
	if err != nil {
		panic(err)
	}
	defer chain.End(bc)

	log.Print("Blockchain client loaded")

	// load Prometheus monitor
	if *monitor {
		go func() {
			log.Println("Serving metrics API")

			h := http.NewServeMux()

			h.Handle("/metrics", promhttp.Handler())
			http.ListenAndServe(":9100", h)
		}()
	}

	// load message broker
	var mb msg.MsgBroker

	switch conf.MbType {
	case "amqp":
		if mb, err = amqp.New(conf.MbConn); err != nil {
			time.Sleep(10 * time.Second) // wait 10s for AMQP to be ready and try to reconnect

			if mb, err = amqp.New(conf.MbConn); err != nil {
				panic(err)
			}
		}

		if err = mb.Setup(); err != nil {
			panic(err)
		}
	default:
		log.Printf("Unknown message broker type: %s\n", conf.MbType)
	}

	// create fund service
	f := fund.New(conf.DBType, dbConn, mb, bc)

	// capture CTRL+C or docker's SIGTERM for gracious exit
	finish := make(chan int)

	go func() {
		sigchan := make(chan os.Signal, 10)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		log.Println("Program killed !")
		// do last actions and wait for all write operations to end
		f.Stop()
		close(finish)
	}()

	// manage reconciler settlement events
	if err := f.ManageEvents(); err != nil {
		log.Printf("Error setting up broker readers for events:%e", err)
	}

	// init RESTful API, wait for its return and log response
	log.Printf("Fund: %s\n", f.Init(conf.RestfulEndpoint, conf.Port, conf.SSLPort, conf.SSLCert, conf.SSLKey))

	<-finish
}

// operatorKey resolves the signing key for fund contract submissions: the raw hex key from config or, when absent,
// an HD wallet derivation from the configured seed.
func operatorKey(conf config.ServiceConfig) (string, error) {
	if conf.PrivKey != "" {
		return conf.PrivKey, nil
	}

	seed, err := hex.DecodeString(conf.HdSeed)
	if err != nil {
		return "", err
	}

	hdw, err := hd.Init(seed)
	if err != nil {
		return "", err
	}

	_, key, _, err := hdw.Address(conf.HdWallet, hd.External, conf.HdID)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(key), nil
}
