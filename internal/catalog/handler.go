package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/storage"
	"github.com/joao-fontenele/storefront/internal/web"
)

const maxUploadMemory = 32 << 20

type Store interface {
	ListInStock(ctx context.Context) ([]domain.Product, error)
	ListFeatured(ctx context.Context) ([]domain.Product, error)
	Search(ctx context.Context, q string) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error)
	ToggleFeatured(ctx context.Context, id string) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) (*domain.Product, error)

	ListValidOffers(ctx context.Context, at time.Time) ([]domain.Offer, error)
	GetOffer(ctx context.Context, id string) (*domain.Offer, error)
	CreateOffer(ctx context.Context, o *domain.Offer) error
	UpdateOffer(ctx context.Context, id string, patch domain.OfferPatch) (*domain.Offer, error)
	DeleteOffer(ctx context.Context, id string) error
}

type Handler struct {
	store    Store
	uploader storage.Uploader
	logger   *slog.Logger
	now      func() time.Time
}

func NewHandler(store Store, uploader storage.Uploader, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		uploader: uploader,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *Handler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListInStock(r.Context())
	if err != nil {
		web.Fail(w, h.logger, err, "failed to list products")
		return
	}

	h.logger.Info("products listed", "count", len(products))
	web.WriteJSON(w, h.logger, http.StatusOK, products)
}

func (h *Handler) HandleFeatured(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListFeatured(r.Context())
	if err != nil {
		web.Fail(w, h.logger, err, "failed to list featured products")
		return
	}

	web.WriteJSON(w, h.logger, http.StatusOK, products)
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		web.WriteError(w, h.logger, http.StatusBadRequest, "missing search query")
		return
	}

	products, err := h.store.Search(r.Context(), q)
	if err != nil {
		web.Fail(w, h.logger, err, "failed to search products", "query", q)
		return
	}

	h.logger.Info("products searched", "query", q, "count", len(products))
	web.WriteJSON(w, h.logger, http.StatusOK, products)
}

func (h *Handler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	product, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		web.Fail(w, h.logger, err, "failed to get product", "product_id", id)
		return
	}

	web.WriteJSON(w, h.logger, http.StatusOK, product)
}

// HandleCreateProduct accepts a multipart form with the product fields and
// between one and MaxProductImages files under "images".
func (h *Handler) HandleCreateProduct(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		web.WriteError(w, h.logger, http.StatusBadRequest, "invalid multipart form")
		return
	}

	product, err := productFromForm(r.MultipartForm)
	if err != nil {
		web.Fail(w, h.logger, err, "rejected product")
		return
	}

	files := r.MultipartForm.File["images"]
	switch {
	case len(files) == 0:
		web.WriteError(w, h.logger, http.StatusBadRequest, "at least one image is required")
		return
	case len(files) > domain.MaxProductImages:
		web.WriteError(w, h.logger, http.StatusBadRequest,
			fmt.Sprintf("at most %d images are allowed", domain.MaxProductImages))
		return
	}

	images, err := h.upload(r.Context(), files)
	if err != nil {
		web.Fail(w, h.logger, err, "failed to upload product images")
		return
	}
	product.Images = images

	if err := h.store.CreateProduct(r.Context(), product); err != nil {
		h.release(r.Context(), images)
		web.Fail(w, h.logger, err, "failed to create product")
		return
	}

	h.logger.Info("product created", "product_id", product.ID, "images", len(images))
	web.WriteJSON(w, h.logger, http.StatusCreated, product)
}

func productFromForm(form *multipart.Form) (*domain.Product, error) {
	value := func(key string) string {
		if v := form.Value[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	price, err := decimal.NewFromString(value("price"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid price", domain.ErrValidation)
	}
	quantity, err := strconv.Atoi(value("quantity"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid quantity", domain.ErrValidation)
	}

	p := &domain.Product{
		Name:        value("name"),
		Description: value("description"),
		Price:       price,
		Quantity:    quantity,
		Category:    value("category"),
		IsFeatured:  value("isFeatured") == "true",
	}
	if offer := value("offer"); offer != "" {
		p.OfferID = &offer
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (h *Handler) upload(ctx context.Context, files []*multipart.FileHeader) (domain.Images, error) {
	images := make(domain.Images, 0, len(files))
	for _, fh := range files {
		img, err := h.uploadOne(ctx, fh)
		if err != nil {
			h.release(ctx, images)
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

func (h *Handler) uploadOne(ctx context.Context, fh *multipart.FileHeader) (domain.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.Image{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer func() { _ = f.Close() }()
	return h.uploader.Upload(ctx, fh.Filename, f)
}

func (h *Handler) release(ctx context.Context, images domain.Images) {
	for _, img := range images {
		if err := h.uploader.Delete(ctx, img.StorageID); err != nil {
			h.logger.Warn("failed to delete image", "error", err, "storage_id", img.StorageID)
		}
	}
}

func (h *Handler) HandleEditProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch domain.ProductPatch
	if err := web.DecodeJSON(r, &patch); err != nil {
		web.Fail(w, h.logger, err, "rejected product edit", "product_id", id)
		return
	}
	if err := patch.Validate(); err != nil {
		web.Fail(w, h.logger, err, "rejected product edit", "product_id", id)
		return
	}

	product, err := h.store.UpdateProduct(r.Context(), id, patch)
	if err != nil {
		web.Fail(w, h.logger, err, "failed to edit product", "product_id", id)
		return
	}

	h.logger.Info("product edited", "product_id", id)
	web.WriteJSON(w, h.logger, http.StatusOK, product)
}

func (h *Handler) HandleToggleFeatured(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	product, err := h.store.ToggleFeatured(r.Context(), id)
	if err != nil {
		web.Fail(w, h.logger, err, "failed to toggle featured", "product_id", id)
		return
	}

	h.logger.Info("product featured toggled", "product_id", id, "featured", product.IsFeatured)
	web.WriteJSON(w, h.logger, http.StatusOK, product)
}

func (h *Handler) HandleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	product, err := h.store.DeleteProduct(r.Context(), id)
	if err != nil {
		web.Fail(w, h.logger, err, "failed to delete product", "product_id", id)
		return
	}
	h.release(r.Context(), product.Images)

	h.logger.Info("product deleted", "product_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := h.store.ListValidOffers(r.Context(), h.now().UTC())
	if err != nil {
		web.Fail(w, h.logger, err, "failed to list offers")
		return
	}

	web.WriteJSON(w, h.logger, http.StatusOK, offers)
}

func (h *Handler) HandleGetOffer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	offer, err := h.store.GetOffer(r.Context(), id)
	if err != nil {
		web.Fail(w, h.logger, err, "failed to get offer", "offer_id", id)
		return
	}

	web.WriteJSON(w, h.logger, http.StatusOK, offer)
}

type createOfferRequest struct {
	Title              string          `json:"offerTitle"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	StartDate          time.Time       `json:"startDate"`
	EndDate            time.Time       `json:"endDate"`
}

func (h *Handler) HandleCreateOffer(w http.ResponseWriter, r *http.Request) {
	var req createOfferRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.Fail(w, h.logger, err, "rejected offer")
		return
	}

	offer := &domain.Offer{
		Title:              strings.TrimSpace(req.Title),
		DiscountPercentage: req.DiscountPercentage,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
	}
	if err := offer.Validate(); err != nil {
		web.Fail(w, h.logger, err, "rejected offer")
		return
	}

	if err := h.store.CreateOffer(r.Context(), offer); err != nil {
		web.Fail(w, h.logger, err, "failed to create offer")
		return
	}

	h.logger.Info("offer created", "offer_id", offer.ID)
	web.WriteJSON(w, h.logger, http.StatusCreated, offer)
}

func (h *Handler) HandleEditOffer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch domain.OfferPatch
	if err := web.DecodeJSON(r, &patch); err != nil {
		web.Fail(w, h.logger, err, "rejected offer edit", "offer_id", id)
		return
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		web.WriteError(w, h.logger, http.StatusBadRequest, "offer title cannot be empty")
		return
	}

	offer, err := h.store.UpdateOffer(r.Context(), id, patch)
	if err != nil {
		web.Fail(w, h.logger, err, "failed to edit offer", "offer_id", id)
		return
	}

	h.logger.Info("offer edited", "offer_id", id)
	web.WriteJSON(w, h.logger, http.StatusOK, offer)
}

func (h *Handler) HandleDeleteOffer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.DeleteOffer(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			web.WriteError(w, h.logger, http.StatusNotFound, "offer not found")
			return
		}
		web.Fail(w, h.logger, err, "failed to delete offer", "offer_id", id)
		return
	}

	h.logger.Info("offer deleted", "offer_id", id)
	w.WriteHeader(http.StatusNoContent)
}
