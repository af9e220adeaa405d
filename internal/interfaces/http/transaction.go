package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finsync/internal/domain/transaction"
)

const queryDateLayout = "2006-01-02"

type TransactionHandler struct {
	transactions *transaction.Service
}

func NewTransactionHandler(transactions *transaction.Service) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

// HandleListTransactions handles GET /api/transactions/
func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	params, err := parseListParams(r.URL.Query())
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	params.UserID = userID

	res, err := h.transactions.List(r.Context(), params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGetTransaction handles GET /api/transactions/{id}
func (h *TransactionHandler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeMessage(w, http.StatusBadRequest, "Transaction ID is required")
		return
	}

	detail, err := h.transactions.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// parseListParams reads page, limit, search and the listing filters.
// Unparseable page or limit values fall back to the defaults.
func parseListParams(q url.Values) (transaction.ListParams, error) {
	p := transaction.ListParams{
		Page:   atoiOr(q.Get("page"), transaction.DefaultPage),
		Limit:  atoiOr(q.Get("limit"), transaction.DefaultLimit),
		Search: q.Get("search"),
	}

	var err error
	if p.Filters.From, err = parseDate(q.Get("from")); err != nil {
		return p, errors.New("invalid from date (use YYYY-MM-DD)")
	}
	if p.Filters.To, err = parseDate(q.Get("to")); err != nil {
		return p, errors.New("invalid to date (use YYYY-MM-DD)")
	}
	if p.Filters.MinAmount, err = parseAmount(q.Get("minAmount")); err != nil {
		return p, errors.New("invalid minAmount")
	}
	if p.Filters.MaxAmount, err = parseAmount(q.Get("maxAmount")); err != nil {
		return p, errors.New("invalid maxAmount")
	}

	for _, v := range q["paymentMethod"] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				p.Filters.PaymentMethods = append(p.Filters.PaymentMethods, name)
			}
		}
	}
	return p, nil
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(queryDateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseAmount(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
