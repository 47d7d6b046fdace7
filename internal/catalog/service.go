package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/melkor648/apple-e-commerce/internal/apperror"
	"github.com/melkor648/apple-e-commerce/internal/money"
	"github.com/melkor648/apple-e-commerce/internal/store"
	"github.com/melkor648/apple-e-commerce/pkg/models"
	"github.com/sirupsen/logrus"
)

const opAddProduct = "add product"

type AddProductInput struct {
	Title       string
	Price       *float64
	Description string
	ImageURL    string
}

type Service struct {
	catalog     store.Catalog
	callTimeout time.Duration
	logger      *logrus.Logger
}

func NewService(catalog store.Catalog, callTimeout time.Duration, logger *logrus.Logger) *Service {
	return &Service{
		catalog:     catalog,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

func (s *Service) AddProduct(ctx context.Context, input AddProductInput) (string, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return "", apperror.Validation(opAddProduct, "title is required")
	}
	if input.Price == nil {
		return "", apperror.Validation(opAddProduct, "price is required")
	}
	if !money.Valid(*input.Price) {
		return "", apperror.Validation(opAddProduct, "price must be a non-negative number")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	id, err := s.catalog.AddProduct(callCtx, &models.Product{
		Title:       title,
		Price:       *input.Price,
		Description: input.Description,
		ImageURL:    input.ImageURL,
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to add product")
		return "", apperror.Collaborator(opAddProduct, err)
	}

	s.logger.WithFields(logrus.Fields{
		"product_id": id,
		"title":      title,
	}).Info("Product added")
	return id, nil
}
