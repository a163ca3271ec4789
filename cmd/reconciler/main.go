// package main: reconciler service
//
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

	"github.com/tarancss/fundadp/lib/chain"
	"github.com/tarancss/fundadp/lib/config"
	"github.com/tarancss/fundadp/lib/msg"
	"github.com/tarancss/fundadp/lib/msg/amqp"
	"github.com/tarancss/fundadp/lib/store"
	"github.com/tarancss/fundadp/lib/store/db"
	"github.com/tarancss/fundadp/lib/util"
	"github.com/tarancss/fundadp/reconciler"
)

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json file")
	monitor := flag.Bool("m", false, "flag to monitor the server with Prometheus at http://localhost:9090")
	flag.Parse()

	// extract configuration
	var err error
	var conf config.ServiceConfig
	if conf, err = config.ExtractConfiguration(*confPath); err != nil {
		panic(err)
	}
	log.Printf("Configuration:%+v", conf)

	// connect to database
	var dbConn store.DB
	if conf.DBConn != "" {
		if !util.In([]string{db.MONGODB, db.POSTGRES}, conf.DBType) {
			panic("unsupported database type: " + conf.DBType)
		}
		log.Printf("Connecting to database:%+v\n", conf.DBConn)
		if dbConn, err = db.New(conf.DBType, conf.DBConn); err != nil {
			panic(err)
		}
	}

	// resolve the operator signing key and load the blockchain client
	key, err := operatorKey(conf)
	if err != nil {
		panic(err)
	}

	var bc chain.Chain
	if bc, err = chain.Init(conf, key); err != nil {
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
		defer func() {
			err := mb.Close()
			log.Printf("Closing messageBroker: %e", err)
		}()
	default:
		log.Printf("Unknown message broker type: %s\n", conf.MbType)
	}

	// create reconciler service
	r := reconciler.New(dbConn, bc, mb)

	// capture CTRL+C or docker's SIGTERM for gracious exit
	go func() {
		sigchan := make(chan os.Signal, 10)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		log.Println("Program killed !")
		// do last actions and wait for all write operations to end
		r.Stop()
	}()

	// launch the reconciliation loop, wait for its return and log response
	done, err := r.Run()
	if err != nil {
		panic(err)
	}
	log.Printf("Reconcile: %s\n", <-done)
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
