// Package woocommercetest provides an in-memory woocommerce products api for tests.
package woocommercetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"catalogsync/internal/woocommerce"
)

const (
	ProductsPath   = "/wp-json/wc/v3/products"
	ConsumerKey    = "ck_test"
	ConsumerSecret = "cs_test"
)

// Call is a request the server received.
type Call struct {
	Method string
	Path   string
	Query  string
}

type Server struct {
	*httptest.Server

	mutex      sync.Mutex
	nextId     int64
	products   map[int64]woocommerce.Product
	created    map[int64]woocommerce.NewProduct
	categories []woocommerce.Category
	calls      []Call

	// Fail, when set, is consulted before every request, a non-zero status
	// is returned as is.
	Fail func(r *http.Request) int
}

func NewServer() *Server {
	s := &Server{
		nextId:   1,
		products: map[int64]woocommerce.Product{},
		created:  map[int64]woocommerce.NewProduct{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+ProductsPath, s.listProducts)
	mux.HandleFunc("GET "+ProductsPath+"/categories", s.listCategories)
	mux.HandleFunc("POST "+ProductsPath, s.createProduct)
	mux.HandleFunc("PUT "+ProductsPath+"/{id}", s.updateProduct)
	mux.HandleFunc("DELETE "+ProductsPath+"/{id}", s.deleteProduct)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mutex.Lock()
		s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery})
		fail := s.Fail
		s.mutex.Unlock()

		if fail != nil {
			if status := fail(r); status != 0 {
				writeError(w, status, "injected failure")
				return
			}
		}
		if !authorized(r) {
			writeError(w, http.StatusUnauthorized, "woocommerce_rest_cannot_view")
			return
		}
		mux.ServeHTTP(w, r)
	}))
	return s
}

// BaseUrl is the products endpoint of the server.
func (s *Server) BaseUrl() string {
	return s.URL + ProductsPath
}

func (s *Server) Options() woocommerce.Options {
	return woocommerce.Options{
		BaseUrl:        s.BaseUrl(),
		ConsumerKey:    ConsumerKey,
		ConsumerSecret: ConsumerSecret,
	}
}

func authorized(r *http.Request) bool {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		return q.Get("consumer_key") == ConsumerKey && q.Get("consumer_secret") == ConsumerSecret
	}
	user, pass, ok := r.BasicAuth()
	return ok && user == ConsumerKey && pass == ConsumerSecret
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJson(w, status, map[string]any{"code": code, "message": code, "data": map[string]int{"status": status}})
}

// AddProduct seeds a product and returns its id.
func (s *Server) AddProduct(sku, regularPrice string) int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	id := s.nextId
	s.nextId++
	s.products[id] = woocommerce.Product{
		ID:           id,
		SKU:          sku,
		Name:         sku,
		Price:        regularPrice,
		RegularPrice: regularPrice,
	}
	return id
}

func (s *Server) AddCategory(name string) int64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	id := int64(len(s.categories) + 100)
	s.categories = append(s.categories, woocommerce.Category{
		ID:   id,
		Name: name,
		Slug: strings.ToLower(strings.ReplaceAll(name, " ", "-")),
	})
	return id
}

// Products returns the current catalog ordered by id.
func (s *Server) Products() []woocommerce.Product {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.sortedProducts()
}

// Created returns the creation body a product was created with.
func (s *Server) Created(id int64) (woocommerce.NewProduct, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	p, ok := s.created[id]
	return p, ok
}

func (s *Server) Calls() []Call {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]Call(nil), s.calls...)
}

// MutatingCalls returns only the PUT, POST and DELETE calls.
func (s *Server) MutatingCalls() []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method != http.MethodGet {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) sortedProducts() []woocommerce.Product {
	out := make([]woocommerce.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func paginate[T any](items []T, r *http.Request) []T {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(r.URL.Query().Get("per_page"))
	if err != nil || perPage < 1 {
		perPage = 10
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	products := s.sortedProducts()
	if sku := r.URL.Query().Get("sku"); sku != "" {
		// the real api matches loosely as well
		var matched []woocommerce.Product
		for _, p := range products {
			if strings.Contains(p.SKU, sku) {
				matched = append(matched, p)
			}
		}
		products = matched
	}
	writeJson(w, http.StatusOK, paginate(products, r))
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	writeJson(w, http.StatusOK, paginate(s.categories, r))
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var body woocommerce.NewProduct
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "rest_invalid_json")
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, p := range s.products {
		if p.SKU == body.SKU {
			writeError(w, http.StatusBadRequest, "product_invalid_sku")
			return
		}
	}
	id := s.nextId
	s.nextId++
	product := woocommerce.Product{
		ID:           id,
		SKU:          body.SKU,
		Name:         body.Name,
		Price:        body.RegularPrice,
		RegularPrice: body.RegularPrice,
	}
	s.products[id] = product
	s.created[id] = body
	writeJson(w, http.StatusCreated, product)
}

func (s *Server) productFromPath(w http.ResponseWriter, r *http.Request) (woocommerce.Product, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "rest_no_route")
		return woocommerce.Product{}, false
	}
	product, ok := s.products[id]
	if !ok {
		writeError(w, http.StatusNotFound, "woocommerce_rest_product_invalid_id")
		return woocommerce.Product{}, false
	}
	return product, true
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RegularPrice *string `json:"regular_price"`
	}
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "rest_invalid_json")
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	product, ok := s.productFromPath(w, r)
	if !ok {
		return
	}
	if body.RegularPrice != nil {
		product.RegularPrice = *body.RegularPrice
		product.Price = *body.RegularPrice
	}
	s.products[product.ID] = product
	writeJson(w, http.StatusOK, product)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	product, ok := s.productFromPath(w, r)
	if !ok {
		return
	}
	delete(s.products, product.ID)
	writeJson(w, http.StatusOK, product)
}
