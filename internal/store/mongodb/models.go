package mongodb

import (
	"time"

	"github.com/melkor648/apple-e-commerce/pkg/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserDocument struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Email     string    `bson:"email"`
	CreatedAt time.Time `bson:"createdAt"`
}

type OrderDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"userId"`
	Cart      []interface{}      `bson:"cart"`
	Total     float64            `bson:"total"`
	Status    string             `bson:"status"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type ProductDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Price       float64            `bson:"price"`
	Description string             `bson:"description"`
	ImageURL    string             `bson:"imageURL"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

func toUserEntity(doc *UserDocument) *models.User {
	return &models.User{
		ID:        doc.ID,
		Name:      doc.Name,
		Email:     doc.Email,
		CreatedAt: doc.CreatedAt,
	}
}

func toOrderDocument(order *models.Order, now time.Time) *OrderDocument {
	cart := order.Cart
	if cart == nil {
		cart = []interface{}{}
	}
	return &OrderDocument{
		UserID:    order.UserID,
		Cart:      cart,
		Total:     order.Total,
		Status:    string(order.Status),
		CreatedAt: now,
	}
}

func toOrderEntity(doc *OrderDocument) models.Order {
	return models.Order{
		ID:        doc.ID.Hex(),
		UserID:    doc.UserID,
		Cart:      doc.Cart,
		Total:     doc.Total,
		Status:    models.OrderStatus(doc.Status),
		CreatedAt: doc.CreatedAt,
	}
}

func toProductDocument(product *models.Product, now time.Time) *ProductDocument {
	return &ProductDocument{
		Title:       product.Title,
		Price:       product.Price,
		Description: product.Description,
		ImageURL:    product.ImageURL,
		CreatedAt:   now,
	}
}
