package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/melkor648/apple-e-commerce/internal/money"
	"github.com/melkor648/apple-e-commerce/pkg/models"
)

const orderConfirmationSubject = "Order Confirmation"

var orderConfirmationHTML = template.Must(template.New("order-confirmation").Parse(`
<h2>Thanks for your order, {{.Name}}!</h2>
<p>Order ID: {{.OrderID}}</p>
<p>Total: ${{.Total}}</p>
`))

type confirmationData struct {
	Name    string
	OrderID string
	Total   string
}

// OrderConfirmation builds the email sent after an order is recorded.
func OrderConfirmation(user *models.User, orderID string, total float64) (Message, error) {
	data := confirmationData{
		Name:    user.Name,
		OrderID: orderID,
		Total:   money.FormatAmount(total),
	}

	var body bytes.Buffer
	if err := orderConfirmationHTML.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("failed to render confirmation: %w", err)
	}

	return Message{
		To:      user.Email,
		ToName:  user.Name,
		Subject: orderConfirmationSubject,
		HTML:    body.String(),
		Text: fmt.Sprintf("Thanks for your order, %s!\nOrder ID: %s\nTotal: $%s\n",
			data.Name, data.OrderID, data.Total),
	}, nil
}
