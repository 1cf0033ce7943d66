package web

import (
	"net/http"

	"github.com/vbonduro/cashreg/internal/domain"
	"github.com/vbonduro/cashreg/internal/service"
)

type cartLine struct {
	ItemID   int64  `json:"item_id"`
	Barcode  string `json:"barcode"`
	Quantity int    `json:"quantity"`
}

type cartRequest struct {
	Items          []cartLine `json:"items"`
	PaymentMethod  string     `json:"payment_method"`
	CustomerID     *int64     `json:"customer_id"`
	DecrementStock bool       `json:"decrement_stock"`
}

func (c cartRequest) lines() []service.CartLine {
	lines := make([]service.CartLine, len(c.Items))
	for i, item := range c.Items {
		lines[i] = service.CartLine{ItemID: item.ItemID, Barcode: item.Barcode, Quantity: item.Quantity}
	}
	return lines
}

func (s *Server) handleListInventory(w http.ResponseWriter, r *http.Request) {
	items, err := s.Inventory.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []*domain.InventoryItem{}
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	item, err := s.Inventory.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleLookupBarcode(w http.ResponseWriter, r *http.Request) {
	item, err := s.Inventory.LookupBarcode(r.Context(), r.PathValue("barcode"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	q, err := s.Checkout.Quote(r.Context(), req.lines())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	receipt, err := s.Checkout.Run(r.Context(), service.Cart{
		Lines:          req.lines(),
		PaymentMethod:  req.PaymentMethod,
		CustomerID:     req.CustomerID,
		DecrementStock: req.DecrementStock,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	var (
		txs []*domain.Transaction
		err error
	)
	if c := r.URL.Query().Get("customer_id"); c != "" {
		id, perr := parsePositiveID(c)
		if perr != nil {
			s.writeError(w, r, perr)
			return
		}
		txs, err = s.Transactions.ListByCustomer(r.Context(), id)
	} else {
		txs, err = s.Transactions.List(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	s.writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tx, err := s.Transactions.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tx)
}
