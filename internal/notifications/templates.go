package notifications

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var bodyTemplate = template.Must(template.New("body").Parse(
	`<p>{{.Greeting}}</p><p>{{.Body}}</p><p>Order reference: <strong>{{.OrderID}}</strong></p>`))

type bodyData struct {
	Greeting string
	Body     string
	OrderID  string
}

func render(userID, orderID uuid.UUID, subject, body string) Notification {
	var html strings.Builder
	_ = bodyTemplate.Execute(&html, bodyData{Greeting: "Hello,", Body: body, OrderID: orderID.String()})
	return Notification{
		UserID:  userID,
		Subject: subject,
		Text:    fmt.Sprintf("%s\n\nOrder reference: %s", body, orderID),
		HTML:    html.String(),
	}
}

// OrderConfirmed is sent once the payment notification created the order.
func OrderConfirmed(order models.Order) Notification {
	body := fmt.Sprintf("We received your payment of %d. Your order is being prepared.", order.TotalAmount)
	return render(order.UserID, order.ID, "Your order is confirmed", body)
}

// OrderStatusChanged reports a fulfillment transition.
func OrderStatusChanged(order models.Order, status enums.OrderStatus) Notification {
	body := fmt.Sprintf("Your order is now %s.", strings.ReplaceAll(string(status), "_", " "))
	return render(order.UserID, order.ID, "Order update", body)
}

// DeliveryStatusChanged reports a delivery transition to the buyer.
func DeliveryStatusChanged(userID uuid.UUID, delivery models.Delivery) Notification {
	body := fmt.Sprintf("Your delivery is now %s.", strings.ReplaceAll(string(delivery.Status), "_", " "))
	return render(userID, delivery.OrderID, "Delivery update", body)
}

// ReturnStatusChanged reports a return request decision.
func ReturnStatusChanged(userID uuid.UUID, req models.ReturnRequest) Notification {
	body := fmt.Sprintf("Your return request is now %s.", req.Status)
	return render(userID, req.OrderID, "Return request update", body)
}

// RefundStatusChanged reports a refund transition.
func RefundStatusChanged(refund models.RefundRequest) Notification {
	body := fmt.Sprintf("Your refund of %d is now %s.", refund.Amount, refund.Status)
	return render(refund.UserID, refund.OrderID, "Refund update", body)
}
