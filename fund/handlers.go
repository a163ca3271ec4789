package fund

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/tarancss/fundadp/lib/store"
	"github.com/tarancss/fundadp/lib/util"
)

// Errors returned to client requests.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrNoInvestor  = errors.New("undefined investor address - missing in uri")
	ErrBadInvestor = errors.New("investor address length out of bounds")
)

// maxInvestorLen bounds the investor address (0x plus 40 hex digits). No format check beyond length is applied.
const maxInvestorLen = 42

// InvestReq is the request body to submit an investment.
type InvestReq struct {
	Investor  string `json:"investor"`
	USDAmount uint64 `json:"usdAmount"`
}

// RedeemReq is the request body to submit a redemption.
type RedeemReq struct {
	Investor string `json:"investor"`
	Shares   uint64 `json:"shares"`
}

// SubmitRes defines the data structure returned to invest and redeem requests.
type SubmitRes struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	TxHash  string `json:"txHash,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Response defines the data structure returned to the client for query requests.
type Response struct {
	Body  string `json:"body,omitempty"`
	Error string `json:"error,omitempty"`
}

// checkInvestor applies the length bounds to an investor address.
func checkInvestor(investor string) error {
	if len(investor) == 0 || len(investor) > maxInvestorLen {
		return ErrBadInvestor
	}

	return nil
}

// homeHandler just replies a welcome message to the client.
func (f *Fund) homeHandler(rw http.ResponseWriter, r *http.Request) {
	var res Response
	// log request
	log.Printf("httpreq from %v %s\n", r.RemoteAddr, r.RequestURI)
	// just reply a welcome message
	res.Body = "Hello, this is your fund adaptor!"
	// reply
	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	_ = json.NewEncoder(rw).Encode(res)
}

// investHandler records an investment intent and submits the corresponding transaction to the fund contract. A
// response is given to the client with the transaction hash or error.
func (f *Fund) investHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res SubmitRes

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			if errors.Is(err, ErrSubmit) || errors.Is(err, ErrLink) {
				rw.WriteHeader(http.StatusBadGateway)
			} else {
				rw.WriteHeader(http.StatusBadRequest)
			}
		} else {
			res.Success = true

			rw.WriteHeader(http.StatusAccepted)
		}
		// log request and tx hash
		log.Printf("httpreq from %v %s id:%s hash:%s err:%e\n", r.RemoteAddr, r.RequestURI, res.ID, res.TxHash, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	// get request
	var req InvestReq
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding investment request %+v\n", r.Body)

		err = ErrBadRequest

		return
	}

	if err = checkInvestor(req.Investor); err != nil {
		return
	}

	res.ID, res.TxHash, err = f.Submit(r.Context(), store.Investment, strings.ToLower(req.Investor), req.USDAmount)
}

// redeemHandler records a redemption intent and submits the corresponding transaction to the fund contract. A
// response is given to the client with the transaction hash or error.
func (f *Fund) redeemHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res SubmitRes

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			if errors.Is(err, ErrSubmit) || errors.Is(err, ErrLink) {
				rw.WriteHeader(http.StatusBadGateway)
			} else {
				rw.WriteHeader(http.StatusBadRequest)
			}
		} else {
			res.Success = true

			rw.WriteHeader(http.StatusAccepted)
		}
		// log request and tx hash
		log.Printf("httpreq from %v %s id:%s hash:%s err:%e\n", r.RemoteAddr, r.RequestURI, res.ID, res.TxHash, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	// get request
	var req RedeemReq
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding redemption request %+v\n", r.Body)

		err = ErrBadRequest

		return
	}

	if err = checkInvestor(req.Investor); err != nil {
		return
	}

	res.ID, res.TxHash, err = f.Submit(r.Context(), store.Redemption, strings.ToLower(req.Investor), req.Shares)
}

// balanceHandler replies the fund balance of the investor requested as a decimal string.
func (f *Fund) balanceHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var bal string

	defer func() {
		// reply to requester accordingly
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		if err != nil {
			rw.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(rw).Encode(&Response{Error: fmt.Sprintf("%s", err)})
		} else {
			rw.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(rw).Encode(bal)
		}
		// log request and balance
		log.Printf("httpreq from %v %s bal:%s err:%e\n", r.RemoteAddr, r.RequestURI, bal, err)
	}()

	v := mux.Vars(r)
	investor, ok := v["investor"]
	if !ok {
		err = ErrNoInvestor

		return
	}

	if err = checkInvestor(investor); err != nil {
		return
	}

	wei, err := f.bc.Balance(r.Context(), strings.ToLower(investor))
	if err != nil {
		return
	}

	bal = util.FormatWei(wei)
}

// fundMetricsHandler replies the fund totals, served from a short-lived cache to avoid redundant chain reads within
// one block interval.
func (f *Fund) fundMetricsHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var fm FundMetrics

	defer func() {
		// reply to requester accordingly
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		if err != nil {
			rw.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(rw).Encode(&Response{Error: fmt.Sprintf("%s", err)})
		} else {
			rw.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(rw).Encode(&fm)
		}
		// log request and metrics
		log.Printf("httpreq from %v %s metrics:%+v err:%e\n", r.RemoteAddr, r.RequestURI, fm, err)
	}()

	fm, err = f.FundMetrics(r.Context())
}
