package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var buyerTmpl = template.Must(template.New("buyer").Parse(`<h2>Thank you for your order, {{.Username}}!</h2>
<p>Order <strong>{{.OrderID}}</strong> has been received and is pending shipment.</p>
<table>
{{- range .Items}}
<tr><td>{{.Name}}</td><td>{{.Quantity}} &times; {{.Price.StringFixed 2}}</td></tr>
{{- end}}
</table>
<p>Total: <strong>{{.TotalAmount.StringFixed 2}}</strong></p>
<p>Shipping to {{.City}}, paying with {{.PaymentMethod}}.</p>`))

var adminTmpl = template.Must(template.New("admin").Parse(`<h2>New order {{.OrderID}}</h2>
<ul>
<li>Buyer: {{.Username}} ({{.Email}})</li>
<li>Total: {{.TotalAmount.StringFixed 2}}</li>
<li>City: {{.City}}</li>
<li>Payment method: {{.PaymentMethod}}</li>
<li>Items: {{len .Items}}</li>
</ul>`))

var resetTmpl = template.Must(template.New("reset").Parse(`<p>Hello {{.Username}},</p>
<p>Use the link below to choose a new password. It expires in {{.Minutes}} minutes.</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>If you did not ask for this, ignore this email.</p>`))

func BuyerConfirmation(evt domain.OrderPlacedEvent) (Message, error) {
	html, err := render(buyerTmpl, evt)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      evt.Email,
		Subject: "Order Confirmation: " + evt.OrderID,
		HTML:    html,
		Text: fmt.Sprintf("Hi %s, your order %s (total %s) has been received. Shipping to %s, payment: %s.",
			evt.Username, evt.OrderID, evt.TotalAmount.StringFixed(2), evt.City, evt.PaymentMethod),
	}, nil
}

func AdminAlert(evt domain.OrderPlacedEvent, adminEmail string) (Message, error) {
	html, err := render(adminTmpl, evt)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      adminEmail,
		Subject: "New Order: " + evt.OrderID,
		HTML:    html,
		Text: fmt.Sprintf("Order %s by %s <%s>: total %s, city %s, payment %s.",
			evt.OrderID, evt.Username, evt.Email, evt.TotalAmount.StringFixed(2), evt.City, evt.PaymentMethod),
	}, nil
}

func PasswordReset(user *domain.User, link string) (Message, error) {
	minutes := int(domain.PasswordResetTTL.Minutes())
	html, err := render(resetTmpl, struct {
		Username string
		Link     string
		Minutes  int
	}{user.Username, link, minutes})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      user.Email,
		Subject: "Reset your password",
		HTML:    html,
		Text:    fmt.Sprintf("Reset your password within %d minutes: %s", minutes, link),
	}, nil
}

// Newsletter wraps an admin-authored body. The body is trusted HTML.
func Newsletter(to, subject, body string) Message {
	return Message{
		To:      to,
		Subject: subject,
		HTML:    body,
		Text:    stripTags(body),
	}
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
