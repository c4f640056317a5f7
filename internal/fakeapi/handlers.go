package fakeapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-shop-client/api"
	"github.com/jrsteele09/go-shop-client/sales"
	"github.com/rs/zerolog/log"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc(RouteToken, s.handleToken)
	s.RegisterRouteFunc(RouteRefresh, s.handleRefresh)
	s.RegisterRouteFunc(RouteSignup, s.handleSignup)
	s.RegisterRouteFunc(RouteLogout, ChainMiddleware(s.handleLogout, s.RequireAuth()))
	s.RegisterRouteFunc(RouteMe, ChainMiddleware(s.handleMe, s.RequireAuth()))
	s.RegisterRouteFunc(RouteSalesList, ChainMiddleware(s.handleListSales, s.RequireAuth()))
	s.RegisterRouteFunc(RouteSalesCreate, ChainMiddleware(s.handleCreateSale, s.RequireAuth()))
	s.RegisterRouteFunc(RouteSalesDelete, ChainMiddleware(s.handleDeleteSale, s.RequireAuth()))
	s.RegisterRouteFunc(RouteShops, ChainMiddleware(s.handleShops, s.RequireAuth()))
	s.RegisterRouteFunc(RoutePerformance, ChainMiddleware(s.handlePerformance, s.RequireAuth()))
	s.RegisterRouteFunc(RouteEcho, ChainMiddleware(s.handleEcho, s.RequireAuth()))

	for _, route := range s.routes {
		s.logger.Debug().Str("route", route).Msg("Registered route")
	}
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var creds api.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON parse error", "parse_error")
		return
	}

	s.lock.Lock()
	gate := s.loginGate
	s.lock.Unlock()
	waitGate(gate, nil)

	if !s.checkPassword(creds.Email, creds.Password) {
		writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials", "")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	access, err := s.issueAccessLocked(creds.Email)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, api.TokenPair{Access: access, Refresh: s.issueRefreshLocked(creds.Email)})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req api.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON parse error", "parse_error")
		return
	}

	s.lock.Lock()
	gate, started := s.refreshGate, s.refreshStart
	s.lock.Unlock()
	waitGate(gate, started)

	s.lock.Lock()
	defer s.lock.Unlock()
	email, ok := s.refresh[req.Refresh]
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired", "token_not_valid")
		return
	}
	access, err := s.issueAccessLocked(email)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, api.RefreshResponse{Access: access})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req api.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON parse error", "parse_error")
		return
	}

	s.lock.Lock()
	_, exists := s.accounts[req.Email]
	id := len(s.accounts) + 100
	s.lock.Unlock()
	if exists {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"email": {"user with this email already exists."}})
		return
	}

	user := api.User{ID: id, Email: req.Email, Username: req.Username}
	if err := s.AddAccount(req.Email, req.Password, user); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	access, err := s.issueAccessLocked(req.Email)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	writeJSON(w, http.StatusCreated, api.TokenPair{Access: access, Refresh: s.issueRefreshLocked(req.Email)})
}

// handleLogout revokes the access token the request was made with.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.logoutStatus >= http.StatusBadRequest {
		writeDetail(w, s.logoutStatus, http.StatusText(s.logoutStatus), "")
		return
	}
	_, token, _ := strings.Cut(r.Header.Get("Authorization"), " ")
	delete(s.access, token)
	w.WriteHeader(s.logoutStatus)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	email, _ := r.Context().Value(contextKeyEmail).(string)

	s.lock.Lock()
	acc, ok := s.accounts[email]
	s.lock.Unlock()
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "User not found", "user_not_found")
		return
	}
	writeJSON(w, http.StatusOK, acc.user)
}

func (s *Server) handleListSales(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Sales())
}

func (s *Server) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeDetail(w, http.StatusUnsupportedMediaType, err.Error(), "")
		return
	}

	errs := map[string][]string{}
	shop, err := strconv.Atoi(r.FormValue("shop"))
	if err != nil {
		errs["shop"] = []string{"A valid integer is required."}
	}
	amount := func(field string) sales.Amount {
		v, err := strconv.ParseFloat(r.FormValue(field), 64)
		if err != nil {
			errs[field] = []string{"A valid number is required."}
		}
		return sales.Amount(v)
	}
	sale := sales.Sale{
		Shop:    shop,
		Date:    r.FormValue("date"),
		CashIn:  amount("cash_in"),
		CashOut: amount("cash_out"),
		TillIn:  amount("till_in"),
		TillOut: amount("till_out"),
	}
	if r.FormValue("closing_balance") != "" {
		closing := amount("closing_balance")
		sale.ClosingBalance = &closing
	}
	if _, header, err := r.FormFile("image"); err == nil {
		sale.Image = "/media/receipts/" + header.Filename
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	s.lock.Lock()
	s.nextSaleID++
	sale.ID = s.nextSaleID
	s.sales = append(s.sales, sale)
	s.lock.Unlock()
	writeJSON(w, http.StatusCreated, sale)
}

func (s *Server) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.", "")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	for i, sale := range s.sales {
		if sale.ID == id {
			s.sales = append(s.sales[:i], s.sales[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Not found.", "")
}

func (s *Server) handleShops(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	shops := append([]sales.Shop(nil), s.shops...)
	s.lock.Unlock()
	writeJSON(w, http.StatusOK, shops)
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	perf := s.performance
	s.lock.Unlock()
	writeJSON(w, http.StatusOK, perf)
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "echo": body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("fakeapi: encode response")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail, code string) {
	body := map[string]string{"detail": detail}
	if code != "" {
		body["code"] = code
	}
	writeJSON(w, status, body)
}

func waitGate(gate chan struct{}, started chan struct{}) {
	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
}
