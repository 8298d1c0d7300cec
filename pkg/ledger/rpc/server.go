package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/donation-ledger/pkg/ledger/runtime"
	"github.com/code-payments/donation-ledger/pkg/rate"
)

type call struct {
	params params

	// remote is the client's address, used as the rate limiting key
	remote string
}

type method func(ctx context.Context, c *call) (interface{}, error)

// Server exposes a Bank over the Solana JSON-RPC API
type Server struct {
	log  *logrus.Entry
	conf *conf
	bank *runtime.Bank

	sendLimiter    rate.Limiter
	airdropLimiter rate.Limiter

	methods map[string]method
}

func NewServer(bank *runtime.Bank, configProvider ConfigProvider) *Server {
	conf := configProvider()
	ctx := context.Background()

	s := &Server{
		log:            logrus.StandardLogger().WithField("type", "ledger/rpc"),
		conf:           conf,
		bank:           bank,
		sendLimiter:    newLimiter(conf.sendTransactionRateLimit.Get(ctx)),
		airdropLimiter: newLimiter(conf.airdropRateLimit.Get(ctx)),
	}

	s.methods = map[string]method{
		"getAccountInfo":                    s.getAccountInfo,
		"getBalance":                        s.getBalance,
		"getHealth":                         s.getHealth,
		"getLatestBlockhash":                s.getLatestBlockhash,
		"getMinimumBalanceForRentExemption": s.getMinimumBalanceForRentExemption,
		"getProgramAccounts":                s.getProgramAccounts,
		"getSignatureStatuses":              s.getSignatureStatuses,
		"getSlot":                           s.getSlot,
		"requestAirdrop":                    s.requestAirdrop,
		"sendTransaction":                   s.sendTransaction,
		"simulateTransaction":               s.simulateTransaction,
	}

	return s
}

func newLimiter(perSecond float64) rate.Limiter {
	if perSecond <= 0 {
		return &rate.NoLimiter{}
	}
	return rate.NewLocalRateLimiter(xrate.Limit(perSecond))
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(instrument)

	r.Post("/", s.serveRPC)
	r.Get("/health", s.serveHealth)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, int64(s.conf.maxRequestBytes.Get(r.Context()))+1))
	if err != nil {
		s.writeResponse(w, &response{Error: newError(CodeParseError, "failed to read request")})
		return
	}
	if uint64(len(body)) > s.conf.maxRequestBytes.Get(r.Context()) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeResponse(w, &response{Error: newError(CodeParseError, "invalid request json")})
		return
	}

	s.writeResponse(w, s.handle(r.Context(), &req, remoteHost(r.RemoteAddr)))
}

func (s *Server) handle(ctx context.Context, req *request, remote string) *response {
	start := time.Now()

	resp := &response{ID: req.ID}

	label := req.Method
	fn, ok := s.methods[req.Method]
	switch {
	case req.JSONRPC != jsonrpcVersion:
		label = "invalid"
		resp.Error = newError(CodeInvalidRequest, "unsupported jsonrpc version")
	case !ok:
		label = "unknown"
		resp.Error = newError(CodeMethodNotFound, "Method not found")
	default:
		result, err := s.invoke(ctx, fn, req.Params, remote)
		if err != nil {
			resp.Error = s.toError(req.Method, err)
			break
		}

		encoded, err := json.Marshal(result)
		if err != nil {
			resp.Error = s.toError(req.Method, err)
			break
		}
		resp.Result = encoded
	}

	code := 0
	if resp.Error != nil {
		code = resp.Error.Code
	}
	recordCall(label, code, time.Since(start))

	return resp
}

func (s *Server) invoke(ctx context.Context, fn method, raw json.RawMessage, remote string) (interface{}, error) {
	p, err := parseParams(raw)
	if err != nil {
		return nil, err
	}
	return fn(ctx, &call{params: p, remote: remote})
}

func (s *Server) toError(method string, err error) *Error {
	if rpcErr, ok := err.(*Error); ok {
		return rpcErr
	}

	s.log.WithError(err).WithField("method", method).Warn("failure handling rpc call")
	return newError(CodeInternalError, "Internal error")
}

func (s *Server) writeResponse(w http.ResponseWriter, resp *response) {
	resp.JSONRPC = jsonrpcVersion
	if resp.ID == nil {
		resp.ID = json.RawMessage("null")
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.WithError(err).Debug("failed to write response")
	}
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
