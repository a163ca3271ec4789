package fund

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const timeout = 15

// router wires the investment API.
func (f *Fund) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", f.homeHandler)
	r.HandleFunc("/investment/invest", f.investHandler).Methods("POST")             // submit an investment
	r.HandleFunc("/investment/redeem", f.redeemHandler).Methods("POST")             // submit a redemption
	r.HandleFunc("/investment/balance/{investor}", f.balanceHandler).Methods("GET") // get investor balance
	r.HandleFunc("/investment/fund-metrics", f.fundMetricsHandler).Methods("GET")   // get fund totals
	return r
}

// Init sets up and starts the http/https server to service the RESTful API for a fund service. If sslPort, sslCert
// and sslKey are informed, it will start an https (TLS) server on the specified endpoint.
func (f *Fund) Init(endpoint, port, sslPort, sslCert, sslKey string) string {
	var err, errTLS error

	// API definition
	r := f.router()
	http.Handle("/", r)

	// setup shutdown channel
	f.sc = make(chan struct{})

	// start http server
	if port != "" {
		f.s = &http.Server{
			Handler: r,
			Addr:    endpoint + ":" + port,
			// Good practice: enforce timeouts for servers you create!
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			err = f.s.ListenAndServe()
		}()

		log.Printf("Listening to API http requests on %s:%s", endpoint, port)
	}
	// start https server
	if sslPort != "" && sslCert != "" && sslKey != "" {
		f.ss = &http.Server{
			Handler: r,
			Addr:    endpoint + ":" + sslPort,
			// Good practice: enforce timeouts for servers you create!
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			errTLS = f.ss.ListenAndServeTLS(sslCert, sslKey)
		}()

		log.Printf("Listening to API https requests on %s:%s", endpoint, sslPort)
	}
	// wait for servers to be shutdown
	<-f.sc

	return fmt.Sprintf("shutdown http server:%e, https server:%e", err, errTLS)
}
