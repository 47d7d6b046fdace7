package firestoredb

import (
	"time"

	"github.com/melkor648/apple-e-commerce/pkg/models"
)

type userDocument struct {
	Name      string    `firestore:"name"`
	Email     string    `firestore:"email"`
	CreatedAt time.Time `firestore:"createdAt,serverTimestamp"`
}

type orderDocument struct {
	UserID    string        `firestore:"userId"`
	Cart      []interface{} `firestore:"cart"`
	Total     float64       `firestore:"total"`
	Status    string        `firestore:"status"`
	CreatedAt time.Time     `firestore:"createdAt,serverTimestamp"`
}

type productDocument struct {
	Title       string    `firestore:"title"`
	Price       float64   `firestore:"price"`
	Description string    `firestore:"description"`
	ImageURL    string    `firestore:"imageURL"`
	CreatedAt   time.Time `firestore:"createdAt,serverTimestamp"`
}

func toUserDocument(user *models.User) userDocument {
	return userDocument{Name: user.Name, Email: user.Email}
}

func toUserModel(id string, doc *userDocument) *models.User {
	return &models.User{
		ID:        id,
		Name:      doc.Name,
		Email:     doc.Email,
		CreatedAt: doc.CreatedAt,
	}
}

func toOrderDocument(order *models.Order) orderDocument {
	cart := order.Cart
	if cart == nil {
		cart = []interface{}{}
	}
	return orderDocument{
		UserID: order.UserID,
		Cart:   cart,
		Total:  order.Total,
		Status: string(order.Status),
	}
}

func toOrderModel(id string, doc *orderDocument) models.Order {
	return models.Order{
		ID:        id,
		UserID:    doc.UserID,
		Cart:      doc.Cart,
		Total:     doc.Total,
		Status:    models.OrderStatus(doc.Status),
		CreatedAt: doc.CreatedAt,
	}
}

func toProductDocument(product *models.Product) productDocument {
	return productDocument{
		Title:       product.Title,
		Price:       product.Price,
		Description: product.Description,
		ImageURL:    product.ImageURL,
	}
}
